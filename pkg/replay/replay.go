// Package replay drives an application-provided handler over the event
// store's history, applying an upcaster chain to bring old event
// payloads forward and tracking per-operation progress.
package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborgrid-justin/cadcore/common"
	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
	"github.com/harborgrid-justin/cadcore/pkg/eventstore"
)

// Upcaster transforms an event whose event_version tag it recognizes
// into a newer payload plus the version that results.
type Upcaster interface {
	CanUpcast(eventType, version string) bool
	Upcast(ctx context.Context, event cadmodel.StoredEvent) ([]byte, string, error)
}

// UpcasterChain applies every matching upcaster to an event, in
// registration order, advancing event_version after each application.
type UpcasterChain struct {
	upcasters []Upcaster
}

// NewUpcasterChain returns an empty chain.
func NewUpcasterChain() *UpcasterChain { return &UpcasterChain{} }

// Add appends an upcaster to the chain.
func (c *UpcasterChain) Add(u Upcaster) { c.upcasters = append(c.upcasters, u) }

// Upcast applies every upcaster in the chain whose CanUpcast matches the
// event's current version, updating event_version as it goes. Given an
// unchanged chain, repeated application is a no-op once no upcaster
// matches the resulting version.
func (c *UpcasterChain) Upcast(ctx context.Context, event cadmodel.StoredEvent) (cadmodel.StoredEvent, error) {
	version := event.EventVersion
	if version == "" {
		version = "1"
	}

	for _, u := range c.upcasters {
		if !u.CanUpcast(event.EventType, version) {
			continue
		}

		data, newVersion, err := u.Upcast(ctx, event)
		if err != nil {
			return event, fmt.Errorf("upcasting event %s (stream %s, v%d): %w", event.EventType, event.StreamID, event.Version, err)
		}

		event.Payload = data
		version = newVersion
		event.EventVersion = newVersion
	}

	return event, nil
}

// Status is the lifecycle state of a replay operation.
type Status int

const (
	StatusRunning Status = iota
	StatusPaused
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusPaused:
		return "Paused"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Progress tracks one replay operation's counters and lifecycle.
type Progress struct {
	ReplayID     string
	TotalEvents  uint64
	Processed    uint64
	Failed       uint64
	StartTime    time.Time
	LastUpdate   time.Time
	CompletedAt  *time.Time
	Status       Status
	Error        string
}

// Percentage is processed/total*100, or 100 if there was nothing to do.
func (p Progress) Percentage() float64 {
	if p.TotalEvents == 0 {
		return 100
	}

	return float64(p.Processed) / float64(p.TotalEvents) * 100
}

// EstimatedTimeRemaining projects completion time from elapsed time and
// current throughput. It returns 0 when the replay isn't running or
// hasn't processed anything yet.
func (p Progress) EstimatedTimeRemaining() time.Duration {
	if p.Status != StatusRunning || p.Processed == 0 {
		return 0
	}

	elapsed := time.Since(p.StartTime)
	if elapsed <= 0 {
		return 0
	}

	rate := float64(p.Processed) / elapsed.Seconds()
	if rate <= 0 {
		return 0
	}

	remaining := p.TotalEvents - p.Processed

	return time.Duration(float64(remaining)/rate) * time.Second
}

// Handler processes events during a replay. A per-event error is
// counted and logged but does not halt the replay; on_start/on_complete
// errors are fatal and abort it with StatusFailed.
type Handler interface {
	Handle(ctx context.Context, event cadmodel.StoredEvent) error
	OnStart(ctx context.Context) error
	OnComplete(ctx context.Context) error
}

// Engine replays events from a Store through a Handler, applying an
// UpcasterChain first and tracking Progress per replay ID.
type Engine struct {
	store    eventstore.Store
	upcaster *UpcasterChain

	mu       sync.RWMutex
	progress map[string]*Progress
}

// NewEngine returns an engine with an empty upcaster chain.
func NewEngine(store eventstore.Store) *Engine {
	return NewEngineWithUpcasters(store, NewUpcasterChain())
}

// NewEngineWithUpcasters returns an engine using the given chain.
func NewEngineWithUpcasters(store eventstore.Store, chain *UpcasterChain) *Engine {
	return &Engine{store: store, upcaster: chain, progress: make(map[string]*Progress)}
}

const progressUpdateInterval = 100

// ReplayAll replays the full global log from fromSequence up to and
// including toSequence (0 meaning "through the end"), batchSize events
// per store read.
func (e *Engine) ReplayAll(ctx context.Context, handler Handler, fromSequence, toSequence uint64, batchSize int) (string, error) {
	logger := common.NewLoggerFromContext(ctx)
	tracer := common.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "replay.replay_all")
	defer span.End()

	replayID := uuid.NewString()

	globalSequence, err := e.store.GetGlobalSequence(ctx)
	if err != nil {
		return "", err
	}

	endSeq := toSequence
	if endSeq == 0 {
		endSeq = globalSequence
	}

	total := uint64(0)
	if endSeq >= fromSequence {
		total = endSeq - fromSequence + 1
	}

	e.initProgress(replayID, total)

	if err := handler.OnStart(ctx); err != nil {
		e.markFailed(replayID, err.Error())
		return "", err
	}

	currentSequence := fromSequence
	var processed, failed uint64

	for {
		events, err := e.store.ReadAll(ctx, currentSequence, batchSize)
		if err != nil {
			e.markFailed(replayID, err.Error())
			return "", err
		}

		if len(events) == 0 {
			break
		}

		stop := false

		for _, event := range events {
			if toSequence != 0 && event.Sequence > toSequence {
				stop = true
				break
			}

			upcasted, err := e.upcaster.Upcast(ctx, event)
			if err != nil {
				e.markFailed(replayID, err.Error())
				return "", err
			}

			if err := handler.Handle(ctx, upcasted); err != nil {
				failed++
				logger.Errorf("replay %s: error processing event %s (seq %d): %v", replayID, upcasted.EventType, upcasted.Sequence, err)
			} else {
				processed++
			}

			currentSequence = upcasted.Sequence + 1

			if processed%progressUpdateInterval == 0 {
				e.updateProgress(replayID, processed, failed)
			}
		}

		if stop || (toSequence != 0 && currentSequence > toSequence) {
			break
		}
	}

	e.updateProgress(replayID, processed, failed)

	if err := handler.OnComplete(ctx); err != nil {
		e.markFailed(replayID, err.Error())
		return "", err
	}

	e.markCompleted(replayID)

	return replayID, nil
}

// ReplayStream replays one stream's events between fromVersion and
// toVersion (0 meaning "through the end").
func (e *Engine) ReplayStream(ctx context.Context, streamID string, handler Handler, fromVersion, toVersion uint64) (string, error) {
	logger := common.NewLoggerFromContext(ctx)
	tracer := common.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "replay.replay_stream")
	defer span.End()

	replayID := uuid.NewString()

	slice, err := e.store.ReadStreamAll(ctx, streamID)
	if err != nil {
		return "", err
	}

	e.initProgress(replayID, uint64(len(slice.Events)))

	if err := handler.OnStart(ctx); err != nil {
		e.markFailed(replayID, err.Error())
		return "", err
	}

	var processed, failed uint64

	for _, event := range slice.Events {
		if event.Version < fromVersion {
			continue
		}

		if toVersion != 0 && event.Version > toVersion {
			break
		}

		upcasted, err := e.upcaster.Upcast(ctx, event)
		if err != nil {
			e.markFailed(replayID, err.Error())
			return "", err
		}

		if err := handler.Handle(ctx, upcasted); err != nil {
			failed++
			logger.Errorf("replay %s: error processing event %s (stream %s, v%d): %v", replayID, upcasted.EventType, streamID, upcasted.Version, err)
		} else {
			processed++
		}

		e.updateProgress(replayID, processed, failed)
	}

	if err := handler.OnComplete(ctx); err != nil {
		e.markFailed(replayID, err.Error())
		return "", err
	}

	e.markCompleted(replayID)

	return replayID, nil
}

// GetProgress returns a snapshot of a replay operation's progress.
func (e *Engine) GetProgress(replayID string) (Progress, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.progress[replayID]
	if !ok {
		return Progress{}, false
	}

	return *p, true
}

func (e *Engine) initProgress(replayID string, total uint64) {
	now := time.Now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.progress[replayID] = &Progress{
		ReplayID:    replayID,
		TotalEvents: total,
		StartTime:   now,
		LastUpdate:  now,
		Status:      StatusRunning,
	}
}

func (e *Engine) updateProgress(replayID string, processed, failed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.progress[replayID]
	if !ok {
		return
	}

	p.Processed = processed
	p.Failed = failed
	p.LastUpdate = time.Now().UTC()
}

func (e *Engine) markCompleted(replayID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.progress[replayID]
	if !ok {
		return
	}

	now := time.Now().UTC()
	p.Status = StatusCompleted
	p.CompletedAt = &now
	p.LastUpdate = now
}

func (e *Engine) markFailed(replayID, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.progress[replayID]
	if !ok {
		return
	}

	now := time.Now().UTC()
	p.Status = StatusFailed
	p.Error = errMsg
	p.CompletedAt = &now
	p.LastUpdate = now
}
