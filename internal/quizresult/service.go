package quizresult

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/victornm/storefront/internal/domain"
	"github.com/victornm/storefront/internal/errors"
	"github.com/victornm/storefront/internal/event"
	"github.com/victornm/storefront/internal/kv"
	"github.com/victornm/storefront/internal/telemetry"
)

const (
	keyPrefix  = "quiz_results:"
	tracerName = "github.com/victornm/storefront/internal/quizresult"
)

// Key returns the storage key holding the results of a user.
func Key(userID string) string {
	return keyPrefix + userID
}

type Config struct {
	KV       kv.Store
	EventBus *event.Bus
	// Now defaults to time.Now.
	Now func() time.Time
	// Serialize runs saves of the same user as a compare-and-swap when KV
	// implements kv.Updater. When false, concurrent saves of one user may
	// overwrite each other and drop a record.
	Serialize bool
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

type Service struct {
	kv        kv.Store
	eb        *event.Bus
	now       func() time.Time
	serialize bool
	tracer    trace.Tracer
}

func NewService(c Config) *Service {
	s := &Service{
		kv:        c.KV,
		eb:        c.EventBus,
		now:       c.Now,
		serialize: c.Serialize,
	}

	if s.now == nil {
		s.now = time.Now
	}

	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s.tracer = tp.Tracer(tracerName)

	return s
}

// Save appends result to the results of userID and returns the stored record.
// result must be a JSON object, anything else is InvalidArgument; the record
// adds "id" and "date" to it. Store failures come back as Unavailable with the
// store error as cause.
func (s *Service) Save(ctx context.Context, userID string, result json.RawMessage) (_ *domain.QuizResult, err error) {
	ctx, span := s.tracer.Start(ctx, "quizresult.Save")
	span.SetAttributes(attribute.String("user_id", userID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if userID == "" {
		return nil, errors.InvalidArgument("user id is required")
	}

	payload, err := decodePayload(result)
	if err != nil {
		return nil, err
	}

	var r domain.QuizResult
	appendResult := func(old []byte) ([]byte, error) {
		l, err := decodeList(userID, old)
		if err != nil {
			return nil, err
		}

		r = domain.NewQuizResult(payload, s.now())
		return json.Marshal(append(l, r))
	}

	if u, ok := s.kv.(kv.Updater); ok && s.serialize {
		err = u.Update(ctx, Key(userID), appendResult)
	} else {
		err = s.readModifyWrite(ctx, Key(userID), appendResult)
	}
	if err != nil {
		return nil, classify(err)
	}

	telemetry.QuizResultsSaved.Inc()

	s.eb.Publish(ctx, domain.EventQuizResultSaved{
		UserID: userID,
		Result: r,
	})

	return &r, nil
}

// readModifyWrite holds no lock between its two round trips to the store.
func (s *Service) readModifyWrite(ctx context.Context, key string, fn kv.UpdateFunc) error {
	old, err := s.kv.Get(ctx, key)
	if err != nil && !stderrors.Is(err, kv.ErrNotFound) {
		return err
	}

	v, err := fn(old)
	if err != nil {
		return err
	}

	return s.kv.Set(ctx, key, v)
}

// Get returns the results of userID in save order. A user without results has
// an empty, non-nil list.
func (s *Service) Get(ctx context.Context, userID string) (_ []domain.QuizResult, err error) {
	ctx, span := s.tracer.Start(ctx, "quizresult.Get")
	span.SetAttributes(attribute.String("user_id", userID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if userID == "" {
		return nil, errors.InvalidArgument("user id is required")
	}

	b, err := s.kv.Get(ctx, Key(userID))
	if err != nil && !stderrors.Is(err, kv.ErrNotFound) {
		return nil, classify(err)
	}

	return decodeList(userID, b)
}

func decodePayload(result json.RawMessage) (map[string]json.RawMessage, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(result), []byte("{")) {
		return nil, errors.InvalidArgument("quiz result must be a JSON object")
	}

	var p map[string]json.RawMessage
	if err := json.Unmarshal(result, &p); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("quiz result is not valid JSON"),
			errors.WithCause(err),
		)
	}

	return p, nil
}

func decodeList(userID string, b []byte) ([]domain.QuizResult, error) {
	l := make([]domain.QuizResult, 0)
	if b == nil {
		return l, nil
	}

	if err := json.Unmarshal(b, &l); err != nil {
		return nil, errors.New(errors.CodeDataLoss,
			errors.WithMessagef("stored quiz results are malformed: user=%s", userID),
			errors.WithCause(err),
		)
	}

	// A stored JSON null decodes to a nil slice.
	if l == nil {
		l = make([]domain.QuizResult, 0)
	}

	return l, nil
}

// classify keeps errors already carrying a code and marks the rest as the
// store being unavailable.
func classify(err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e
	}

	return errors.Unavailable(fmt.Errorf("quiz result store: %w", err))
}
