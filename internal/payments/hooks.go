package payments

import (
	"context"
	"sync"
)

// HookNamespace scopes all hook events fired by this package.
const HookNamespace = "payments"

// HookPayload is handed to hook handlers. Handlers may inspect and
// mutate it before deciding the outcome.
type HookPayload struct {
	// Status is the target status for transition hooks, empty otherwise.
	Status string

	// Transaction is the aggregate the event concerns.
	Transaction *Transaction

	// Params carries caller-supplied parameters.
	Params map[string]any
}

// HookFunc handles a triggered hook and reports the outcome. For
// vetoable events a false return blocks the transition.
type HookFunc func(ctx context.Context, event, namespace string, payload *HookPayload) bool

// Hooks is the dispatcher boundary through which the aggregate submits
// status transitions for veto and announces refund requests. The default
// result applies when no handler is registered for the event.
type Hooks interface {
	// TriggerVetoable runs the handlers for event and returns the final
	// outcome; a missing handler yields def (callers pass true, so an
	// unguarded transition is allowed).
	TriggerVetoable(ctx context.Context, event, namespace string, payload *HookPayload, def bool) bool

	// TriggerBestEffort announces an event whose handlers perform side
	// effects and report acceptance; a missing handler yields def
	// (callers pass false, so an unhandled refund is rejected).
	TriggerBestEffort(ctx context.Context, event, namespace string, payload *HookPayload, def bool) bool
}

// HookRegistry is a map-based Hooks implementation. Handlers are keyed
// by event and namespace and run in registration order; each handler
// sees the previous result implicitly through the shared payload, and
// the last handler's return wins. Safe for concurrent use.
type HookRegistry struct {
	mu       sync.RWMutex
	handlers map[hookKey][]HookFunc
}

type hookKey struct {
	event     string
	namespace string
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		handlers: make(map[hookKey][]HookFunc),
	}
}

// Register appends a handler for the given event and namespace.
func (r *HookRegistry) Register(event, namespace string, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := hookKey{event: event, namespace: namespace}
	r.handlers[key] = append(r.handlers[key], fn)
}

// TriggerVetoable implements Hooks.
func (r *HookRegistry) TriggerVetoable(ctx context.Context, event, namespace string, payload *HookPayload, def bool) bool {
	return r.trigger(ctx, event, namespace, payload, def)
}

// TriggerBestEffort implements Hooks.
func (r *HookRegistry) TriggerBestEffort(ctx context.Context, event, namespace string, payload *HookPayload, def bool) bool {
	return r.trigger(ctx, event, namespace, payload, def)
}

func (r *HookRegistry) trigger(ctx context.Context, event, namespace string, payload *HookPayload, def bool) bool {
	r.mu.RLock()
	handlers := r.handlers[hookKey{event: event, namespace: namespace}]
	r.mu.RUnlock()

	result := def
	for _, fn := range handlers {
		result = fn(ctx, event, namespace, payload)
	}
	return result
}
