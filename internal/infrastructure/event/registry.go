package event

import (
	"sync"

	"github.com/erp/dispensing/internal/domain/shared"
)

// HandlerRegistry tracks which handlers receive which event types.
// Handlers registered without event types receive everything.
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	catchAll []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byType: make(map[string][]shared.EventHandler),
	}
}

// Register adds handler for the given event types
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.catchAll = appendUnique(r.catchAll, handler)
		return
	}
	for _, t := range eventTypes {
		r.byType[t] = appendUnique(r.byType[t], handler)
	}
}

// Unregister removes handler everywhere it was registered
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.catchAll = without(r.catchAll, handler)
	for t, hs := range r.byType {
		remaining := without(hs, handler)
		if len(remaining) == 0 {
			delete(r.byType, t)
			continue
		}
		r.byType[t] = remaining
	}
}

// HandlersFor returns the handlers for eventType, typed handlers first
func (r *HandlerRegistry) HandlersFor(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.byType[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(r.catchAll))
	out = append(out, typed...)
	return append(out, r.catchAll...)
}

// Count returns the number of distinct registered handlers
func (r *HandlerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[shared.EventHandler]struct{})
	for _, h := range r.catchAll {
		seen[h] = struct{}{}
	}
	for _, hs := range r.byType {
		for _, h := range hs {
			seen[h] = struct{}{}
		}
	}
	return len(seen)
}

func appendUnique(hs []shared.EventHandler, h shared.EventHandler) []shared.EventHandler {
	for _, existing := range hs {
		if existing == h {
			return hs
		}
	}
	return append(hs, h)
}

func without(hs []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	out := make([]shared.EventHandler, 0, len(hs))
	for _, h := range hs {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}
