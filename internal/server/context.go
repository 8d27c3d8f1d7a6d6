package server

import (
	"context"
	"sync"
)

// ServerContext holds the process lifetime of the HTTP service: the context
// cancelled on shutdown and the cleanup of long-lived resources such as
// database pools and session stores.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	closers  []func()
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// OnShutdown registers fn to run on Shutdown. Functions run in reverse
// registration order. Registering after Shutdown runs fn immediately.
func (sc *ServerContext) OnShutdown(fn func()) {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		fn()
		return
	}
	sc.closers = append(sc.closers, fn)
	sc.mu.Unlock()
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and releases registered resources.
// It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	closers := sc.closers
	sc.closers = nil
	sc.mu.Unlock()

	sc.cancel()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	return nil
}
