package memory

import (
	"context"
	"sync"

	"github.com/ledgerline/importd/internal/domain"
)

// Publisher fans progress events out to in-process subscribers. Sends are
// non-blocking: a slow subscriber drops events rather than stalling the
// processor, matching the fire-and-forget contract.
type Publisher struct {
	mu   sync.RWMutex
	subs map[int]chan domain.ProgressEvent
	next int
}

// NewPublisher creates an in-process progress publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[int]chan domain.ProgressEvent)}
}

// Publish delivers the event to all current subscribers.
func (p *Publisher) Publish(_ context.Context, event domain.ProgressEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range p.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (p *Publisher) Subscribe() (<-chan domain.ProgressEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.next
	p.next++
	ch := make(chan domain.ProgressEvent, 64)
	p.subs[id] = ch

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
}
