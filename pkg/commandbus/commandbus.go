// Package commandbus validates, dispatches, and folds commands against
// an aggregate repository, caching results by idempotency key and
// tracing each step the way the rest of the core subsystems do.
package commandbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborgrid-justin/cadcore/common"
	cn "github.com/harborgrid-justin/cadcore/common/constant"
	"github.com/harborgrid-justin/cadcore/common/mopentelemetry"
	"github.com/harborgrid-justin/cadcore/pkg/aggregate"
)

// Command is the contract a command object must satisfy to run through
// the bus. IdempotencyKey's second return is false when the command has
// no idempotency requirement.
type Command interface {
	CommandType() string
	AggregateID() string
	Validate() error
	IdempotencyKey() (string, bool)
}

// Handler produces the events a command implies, given the command and
// the aggregate's current state (ok is false for a brand-new aggregate).
type Handler[T aggregate.Root, C Command] func(ctx context.Context, cmd C, agg T, ok bool) ([]aggregate.ProducedEvent, error)

// Result is the outcome of a successfully dispatched command.
type Result struct {
	CommandID     string
	AggregateID   string
	EventTypes    []string
	Version       uint64
	Timestamp     time.Time
}

// Publisher sends a successfully-dispatched command's Result onward as
// a transport-level notification. OutboxPublisher implements it.
type Publisher interface {
	Publish(ctx context.Context, result Result) error
}

// Bus routes commands of type C against aggregates of type T through a
// single registered handler, with idempotency-key result caching.
type Bus[T aggregate.Root, C Command] struct {
	Repo      *aggregate.Repository[T]
	Handler   Handler[T, C]
	Publisher Publisher

	mu          sync.Mutex
	idempotency map[string]Result
}

// New returns a bus bound to repo and handler.
func New[T aggregate.Root, C Command](repo *aggregate.Repository[T], handler Handler[T, C]) *Bus[T, C] {
	return &Bus[T, C]{
		Repo:        repo,
		Handler:     handler,
		idempotency: make(map[string]Result),
	}
}

// WithPublisher attaches an outbox publisher: after Execute saves the
// aggregate, its Result is published before Execute returns. A publish
// failure is logged, not returned: the outbox is best-effort
// notification, not the durability boundary.
func (b *Bus[T, C]) WithPublisher(p Publisher) *Bus[T, C] {
	b.Publisher = p
	return b
}

// Execute runs the full command protocol: idempotency short-circuit,
// validate, load, dispatch, fold, save, cache.
func (b *Bus[T, C]) Execute(ctx context.Context, cmd C, correlationID string) (Result, error) {
	logger := common.NewLoggerFromContext(ctx)
	tracer := common.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "commandbus.execute")
	defer span.End()

	if key, ok := cmd.IdempotencyKey(); ok {
		b.mu.Lock()
		cached, hit := b.idempotency[key]
		b.mu.Unlock()

		if hit {
			logger.Infof("command %s short-circuited by idempotency key %s", cmd.CommandType(), key)
			return cached, nil
		}
	}

	if err := cmd.Validate(); err != nil {
		mopentelemetry.HandleSpanError(&span, "command validation failed", err)
		return Result{}, fmt.Errorf("%w: %v", cn.ErrValidationFailed, err)
	}

	aggregateID := cmd.AggregateID()

	agg, ok, err := b.Repo.Load(ctx, aggregateID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to load aggregate", err)
		return Result{}, err
	}

	expectedVersion := int64(0)
	if ok {
		expectedVersion = int64(agg.Version())
	} else {
		agg = b.Repo.NewAggregate()
	}

	events, err := b.Handler(ctx, cmd, agg, ok)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "command handler returned an error", err)
		return Result{}, err
	}

	if len(events) == 0 {
		err := fmt.Errorf("%w: command %s produced no events", cn.ErrEmptyHandlerResult, cmd.CommandType())
		mopentelemetry.HandleSpanError(&span, "empty handler result", err)

		return Result{}, err
	}

	for _, e := range events {
		if err := agg.ApplyEvent(e.EventType, e.Payload); err != nil {
			mopentelemetry.HandleSpanError(&span, "failed folding produced event into aggregate", err)
			return Result{}, fmt.Errorf("folding event %s: %w", e.EventType, err)
		}
	}

	commandID := uuid.NewString()

	if err := b.Repo.Save(ctx, agg, events, expectedVersion, correlationID, commandID); err != nil {
		mopentelemetry.HandleSpanError(&span, "failed saving aggregate", err)
		return Result{}, err
	}

	eventTypes := make([]string, len(events))
	for i, e := range events {
		eventTypes[i] = e.EventType
	}

	result := Result{
		CommandID:   commandID,
		AggregateID: aggregateID,
		EventTypes:  eventTypes,
		Version:     agg.Version(),
		Timestamp:   time.Now().UTC(),
	}

	if key, hasKey := cmd.IdempotencyKey(); hasKey {
		b.mu.Lock()
		b.idempotency[key] = result
		b.mu.Unlock()
	}

	if b.Publisher != nil {
		if err := b.Publisher.Publish(ctx, result); err != nil {
			logger.Errorf("failed to publish outbox notification for command %s: %v", commandID, err)
		}
	}

	logger.Infof("command %s dispatched against aggregate %s, new version %d", cmd.CommandType(), aggregateID, result.Version)

	return result, nil
}

// ClearIdempotencyCache empties the cached results. Intended for tests.
func (b *Bus[T, C]) ClearIdempotencyCache() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idempotency = make(map[string]Result)
}

// IdempotencyCacheSize reports the number of cached results.
func (b *Bus[T, C]) IdempotencyCacheSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.idempotency)
}
