package snapshot

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/san-kum/cosim/internal/dynamo"
)

// Publisher keeps only the newest frame. Publishing never waits for
// readers; a reader that falls behind skips the frames it missed.
type Publisher struct {
	latest atomic.Pointer[Frame]
	gen    atomic.Uint64

	// mu guards the swap and the wake-up channel, nothing else.
	mu     sync.Mutex
	notify chan struct{}
	closed bool
}

func NewPublisher() *Publisher {
	return &Publisher{notify: make(chan struct{})}
}

// Publish stamps f with the next generation and makes it current.
func (p *Publisher) Publish(f *Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return dynamo.ErrStopped
	}
	f.Generation = p.gen.Add(1)
	p.latest.Store(f)
	close(p.notify)
	p.notify = make(chan struct{})
	return nil
}

// Latest returns the current frame without blocking.
func (p *Publisher) Latest() (*Frame, bool) {
	f := p.latest.Load()
	return f, f != nil
}

func (p *Publisher) Generation() uint64 { return p.gen.Load() }

// Next blocks until a frame newer than generation after exists. After Close
// it returns the final frame with ErrStopped, or ErrNoSnapshot when nothing
// was ever published.
func (p *Publisher) Next(ctx context.Context, after uint64) (*Frame, error) {
	for {
		p.mu.Lock()
		f, ch, closed := p.latest.Load(), p.notify, p.closed
		p.mu.Unlock()

		if f != nil && f.Generation > after {
			return f, nil
		}
		if closed {
			if f == nil {
				return nil, dynamo.ErrNoSnapshot
			}
			return f, dynamo.ErrStopped
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

// Close marks the current frame final and wakes every waiting reader.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.notify)
}

func (p *Publisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
