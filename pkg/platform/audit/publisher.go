package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher fronts a Store. With an async buffer, Emit never blocks the
// request path: events are queued and persisted by a background worker, and
// a full buffer drops the event with a warning rather than stalling an
// authorization decision.
type Publisher struct {
	store  Store
	events chan Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues events in a buffered channel drained by a worker
// goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit event not persisted",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
	}
}

// Emit records one event. In async mode a full buffer drops the event.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.async {
		select {
		case p.events <- event:
		default:
			if p.logger != nil {
				p.logger.Warn("audit buffer full, event dropped",
					"action", event.Action,
					"subject", event.Subject,
				)
			}
		}
		return
	}
	if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
		p.logger.Error("audit event not persisted",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
}

// Close stops the worker and waits for queued events to flush.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}
