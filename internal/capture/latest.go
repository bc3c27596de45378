package capture

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrMailboxClosed is returned by Take after Close.
var ErrMailboxClosed = errors.New("frame mailbox closed")

// Latest is a single-slot mailbox between a frame producer and a slower
// consumer. Put never blocks: a frame that was not taken before the next
// Put is closed and counted as dropped, so the consumer always sees the
// newest frame.
type Latest struct {
	mu      sync.Mutex
	frame   *Frame
	ready   chan struct{}
	closed  bool
	put     uint64
	dropped uint64
}

// NewLatest returns an empty mailbox.
func NewLatest() *Latest {
	return &Latest{ready: make(chan struct{}, 1)}
}

// Put stores f, replacing and releasing any frame still waiting. After
// Close the frame is released immediately.
func (l *Latest) Put(f *Frame) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		f.Close()
		return
	}
	stale := l.frame
	l.frame = f
	l.put++
	if stale != nil {
		l.dropped++
	}
	select {
	case l.ready <- struct{}{}:
	default:
	}
	l.mu.Unlock()

	stale.Close()
}

// Take waits for a frame and removes it from the mailbox. The caller owns
// the returned frame.
func (l *Latest) Take(ctx context.Context) (*Frame, error) {
	for {
		l.mu.Lock()
		if f := l.frame; f != nil {
			l.frame = nil
			l.mu.Unlock()
			return f, nil
		}
		closed := l.closed
		l.mu.Unlock()

		if closed {
			return nil, ErrMailboxClosed
		}

		select {
		case <-l.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close releases the waiting frame and wakes any waiter.
func (l *Latest) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	stale := l.frame
	l.frame = nil
	close(l.ready)
	l.mu.Unlock()

	stale.Close()
}

// Counts returns the number of frames put and the number dropped unseen.
func (l *Latest) Counts() (put, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.put, l.dropped
}
