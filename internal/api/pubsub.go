package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/storefront/internal/domain"
)

const maxConcurrent = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// UserChannel is where notifications for a single user are published.
func UserChannel(prefix, userID string) string {
	return fmt.Sprintf("%s:user:%s", prefix, userID)
}

// AdminChannel receives every quiz result saved in the storefront.
func AdminChannel(prefix string) string {
	return fmt.Sprintf("%s:admin", prefix)
}

func (a *API) PublishQuizResultSaved(ctx context.Context, e domain.EventQuizResultSaved) error {
	channels := []string{
		UserChannel(a.prefix, e.UserID),
		AdminChannel(a.prefix),
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, ch := range channels {
		ch := ch
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), e.Result)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
