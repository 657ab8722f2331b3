//go:build integration_test

package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/victornm/storefront/internal/api"
	"github.com/victornm/storefront/internal/domain"
)

// Run against a server started with config/local.yaml.
const (
	grpcAddr     = "localhost:8081"
	httpAddr     = "http://localhost:8080"
	pubsubPrefix = "local:pubsub"
)

func TestQuizResults(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		qc      = makeQuizResultClient(t)
		wg      = new(sync.WaitGroup)
		user    = "demo-" + uuid.NewString()
		quizzes = []string{"colors", "shapes", "animals"}
	)

	// Prepare Redis subscriber
	received := subscribeAsUser(t, makeRedis(t), wg, user, len(quizzes))

	// Users save their quizzes one after the other
	for i, q := range quizzes {
		r, err := qc.SaveQuizResult(ctx, user, map[string]any{"quiz": q, "score": i + 1})
		require.NoError(t, err)
		t.Logf("Saved %q: id=%.0f date=%s", q, r.GetFields()["id"].GetNumberValue(), r.GetFields()["date"].GetStringValue())
	}

	l, err := qc.ListQuizResults(ctx, user)
	require.NoError(t, err)
	require.Len(t, l.GetValues(), len(quizzes))
	for i, v := range l.GetValues() {
		assert.Equal(t, quizzes[i], v.GetStructValue().GetFields()["quiz"].GetStringValue())
	}

	// The HTTP API sees the same results
	var resp api.QuizResultsResponse
	getJSON(t, ctx, fmt.Sprintf("%s/api/quiz-results/%s", httpAddr, user), &resp)
	require.Len(t, resp.Results, len(quizzes))
	assert.Equal(t, "2", resp.Summary.AverageScore.String())

	wg.Wait()
	assert.Len(t, *received, len(quizzes))
}

func TestQuizResults_ConcurrentSaves(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		qc   = makeQuizResultClient(t)
		user = "demo-" + uuid.NewString()
		n    = 10
	)

	var eg errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			_, err := qc.SaveQuizResult(ctx, user, map[string]any{"attempt": i})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	l, err := qc.ListQuizResults(ctx, user)
	require.NoError(t, err)

	// Without store.serialize, concurrent saves of one user may overwrite each other.
	t.Logf("%d of %d concurrent saves kept", len(l.GetValues()), n)
	assert.NotEmpty(t, l.GetValues())
}

func makeQuizResultClient(t *testing.T) *api.Client {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return api.NewClient(conn)
}

func getJSON(t *testing.T, ctx context.Context, url string, v any) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func subscribeAsUser(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, u string, want int) *[]domain.QuizResult {
	var received []domain.QuizResult

	wg.Add(1)
	sub := subscribeRedis(t, rc, api.UserChannel(pubsubPrefix, u))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			switch n.Event {
			case domain.EventNameQuizResultSaved:
				var r domain.QuizResult
				if err := json.Unmarshal(n.Data, &r); err != nil {
					t.Logf("unmarshal quiz result: %v", err)
					continue
				}

				t.Logf("%s saved quiz result %d", u, r.ID)
				received = append(received, r)
			}

			if len(received) == want {
				return
			}
		}
	}()

	return &received
}

func subscribeRedis(t *testing.T, rc redis.UniversalClient, pattern string) <-chan *redis.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	sub := rc.PSubscribe(ctx, pattern)
	t.Cleanup(func() { sub.Close() })

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}
