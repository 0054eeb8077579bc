package imap

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

var ErrPoolClosed = errors.New("session pool is closed")

// Factory builds an unconnected session.
type Factory func() Session

// Pool hands out at most size authenticated sessions at a time. Released
// sessions are kept idle and re-checked with NOOP before reuse.
type Pool struct {
	factory Factory
	logger  *slog.Logger
	slots   chan struct{}

	mu     sync.Mutex
	idle   []Session
	closed bool
}

func NewPool(size int, factory Factory, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		factory: factory,
		logger:  logger,
		slots:   make(chan struct{}, size),
	}
}

// Acquire blocks until a slot is free or ctx is done, then returns a
// connected session. Every successful Acquire must be paired with Release.
func (p *Pool) Acquire(ctx context.Context) (Session, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for {
		session, ok, err := p.popIdle()
		if err != nil {
			<-p.slots
			return nil, err
		}
		if !ok {
			break
		}
		if err := session.Ping(ctx); err == nil && session.Healthy() {
			return session, nil
		}
		p.logger.Debug("discarding stale IMAP session")
		_ = session.Close()
	}

	session := p.factory()
	if err := session.Connect(ctx); err != nil {
		<-p.slots
		return nil, err
	}
	return session, nil
}

// Release returns a session to the pool. Unhealthy sessions are closed.
func (p *Pool) Release(session Session) {
	if session == nil {
		return
	}
	defer func() { <-p.slots }()

	p.mu.Lock()
	if p.closed || !session.Healthy() {
		p.mu.Unlock()
		_ = session.Close()
		return
	}
	p.idle = append(p.idle, session)
	p.mu.Unlock()
}

// Close logs out every idle session. Sessions still checked out are closed
// when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, session := range idle {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("close %d idle sessions: %v", len(errs), errs)
	}
	return nil
}

func (p *Pool) popIdle() (Session, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, ErrPoolClosed
	}
	if len(p.idle) == 0 {
		return nil, false, nil
	}
	session := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]
	return session, true, nil
}
