// ABOUTME: In-process Connection used by tests and local tooling.
// ABOUTME: The "client" end is driven through Push and Next instead of a socket.

package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// MemoryFactory creates Memory connections and remembers them by id.
type MemoryFactory struct {
	// FailInitialize, when set, is returned by every Initialize call.
	FailInitialize error

	mu      sync.Mutex
	conns   map[string]*Memory
	created atomic.Int64
}

// NewMemoryFactory creates an empty factory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{conns: make(map[string]*Memory)}
}

// NewConnection implements Factory.
func (f *MemoryFactory) NewConnection(id string) Connection {
	m := NewMemory(id)
	m.failInit = f.FailInitialize
	f.mu.Lock()
	f.conns[id] = m
	f.mu.Unlock()
	f.created.Add(1)
	return m
}

// Get returns the connection created for id.
func (f *MemoryFactory) Get(id string) (*Memory, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.conns[id]
	return m, ok
}

// Created returns how many connections the factory has made.
func (f *MemoryFactory) Created() int {
	return int(f.created.Load())
}

// Memory is a Connection backed by channels.
type Memory struct {
	id string
	*lifecycle
	neg      *negotiation
	failInit error

	toServer chan []byte
	toClient chan []byte

	renegotiations atomic.Int64
	disconnects    atomic.Int64
}

// NewMemory creates a Memory connection for id.
func NewMemory(id string) *Memory {
	return &Memory{
		id:        id,
		lifecycle: newLifecycle(),
		neg:       &negotiation{attach: "memory://" + id},
		toServer:  make(chan []byte, 64),
		toClient:  make(chan []byte, 64),
	}
}

func (m *Memory) ID() string { return m.id }

func (m *Memory) Initialize(ctx context.Context, offer Offer) error {
	if m.failInit != nil {
		return m.failInit
	}
	if m.isClosed() {
		return ErrClosed
	}
	return m.neg.apply(ctx, offer)
}

func (m *Memory) Renegotiate(ctx context.Context, offer Offer) error {
	if m.isClosed() {
		return ErrClosed
	}
	if err := m.neg.apply(ctx, offer); err != nil {
		return err
	}
	m.renegotiations.Add(1)
	return nil
}

func (m *Memory) Answer() Answer { return m.neg.current() }

func (m *Memory) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-m.toServer:
		return frame, nil
	case <-m.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Memory) Send(ctx context.Context, frame []byte) error {
	select {
	case <-m.Done():
		return ErrClosed
	default:
	}
	select {
	case m.toClient <- frame:
		return nil
	case <-m.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Disconnect(context.Context) error {
	handlers, ok := m.markClosed()
	if !ok {
		return nil
	}
	m.disconnects.Add(1)
	runHandlers(handlers)
	return nil
}

// Push delivers a frame from the client side.
func (m *Memory) Push(ctx context.Context, frame []byte) error {
	select {
	case m.toServer <- frame:
		return nil
	case <-m.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next frame the server sent.
func (m *Memory) Next(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-m.toClient:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drop simulates the client going away.
func (m *Memory) Drop() {
	_ = m.Disconnect(context.Background())
}

// Renegotiations returns how many successful renegotiations occurred.
func (m *Memory) Renegotiations() int { return int(m.renegotiations.Load()) }

// Disconnects returns 1 once the connection has been closed, else 0.
func (m *Memory) Disconnects() int { return int(m.disconnects.Load()) }

// Closed reports whether the connection has been closed.
func (m *Memory) Closed() bool { return m.isClosed() }

// ErrMemoryInit is a ready-made FailInitialize value for tests.
var ErrMemoryInit = errors.New("memory transport: initialize failed")
