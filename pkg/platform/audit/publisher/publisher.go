// Package publisher decouples domain code from the audit store. Synchronous
// mode appends inline (and therefore joins any transaction carried in the
// context); async mode buffers events for non-critical paths where losing an
// event on shutdown is acceptable.
package publisher

import (
	"context"
	"sync"

	id "servio/pkg/domain"
	audit "servio/pkg/platform/audit"
)

// Publisher emits audit events to a store.
type Publisher struct {
	store audit.Store

	inbox  chan audit.Event
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission through a buffered channel.
// Async events must not rely on the caller's transaction.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// NewPublisher constructs a publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. In sync mode failures are returned to the caller; in
// async mode Emit only fails when the publisher is already closed.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case <-p.closed:
		return context.Canceled
	case p.inbox <- event:
		return nil
	}
}

// List returns events recorded for one identity.
func (p *Publisher) List(ctx context.Context, identityID id.IdentityID) ([]audit.Event, error) {
	return p.store.ListByIdentity(ctx, identityID)
}

// Close stops the async drain goroutine after flushing buffered events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.closed)
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		// Async events get a fresh context; the emitting request is long gone.
		_ = p.store.Append(context.Background(), event)
	}
}
