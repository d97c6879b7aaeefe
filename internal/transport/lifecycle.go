// ABOUTME: Shared close bookkeeping and negotiation revisions for Connection implementations.
// ABOUTME: Close handlers run outside the lock so they may call back into Disconnect.

package transport

import (
	"context"
	"fmt"
	"sync"
)

type lifecycle struct {
	mu       sync.Mutex
	closed   bool
	done     chan struct{}
	onClosed []func()
}

func newLifecycle() *lifecycle {
	return &lifecycle{done: make(chan struct{})}
}

func (l *lifecycle) OnClosed(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		fn()
		return
	}
	l.onClosed = append(l.onClosed, fn)
	l.mu.Unlock()
}

func (l *lifecycle) Done() <-chan struct{} {
	return l.done
}

func (l *lifecycle) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// markClosed flips the connection to closed and hands back the registered
// handlers. It returns false if the connection was already closed.
func (l *lifecycle) markClosed() ([]func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, false
	}
	l.closed = true
	close(l.done)
	handlers := l.onClosed
	l.onClosed = nil
	return handlers, true
}

func runHandlers(handlers []func()) {
	for _, fn := range handlers {
		fn()
	}
}

// negotiation tracks the answer for the latest accepted offer.
type negotiation struct {
	mu       sync.Mutex
	revision int
	attach   string
	answer   Answer
}

func (n *negotiation) apply(ctx context.Context, offer Offer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := offer.Validate(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revision++
	n.answer = Answer{
		Type: "answer",
		SDP:  fmt.Sprintf("v=0\r\na=x-attach:%s\r\na=x-revision:%d\r\n", n.attach, n.revision),
	}
	return nil
}

func (n *negotiation) current() Answer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.answer
}

func (n *negotiation) initialized() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.revision > 0
}
