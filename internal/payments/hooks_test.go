package payments

import (
	"context"
	"testing"
)

func TestHookRegistry_Defaults(t *testing.T) {
	reg := NewHookRegistry()
	ctx := context.Background()

	if !reg.TriggerVetoable(ctx, "transaction:completed", HookNamespace, &HookPayload{}, true) {
		t.Error("unregistered vetoable hook should yield the default (allow)")
	}
	if reg.TriggerBestEffort(ctx, "refund", HookNamespace, &HookPayload{}, false) {
		t.Error("unregistered best-effort hook should yield the default (reject)")
	}
}

func TestHookRegistry_LastHandlerWins(t *testing.T) {
	reg := NewHookRegistry()
	reg.Register("transaction:failed", HookNamespace, func(ctx context.Context, event, ns string, p *HookPayload) bool {
		return true
	})
	reg.Register("transaction:failed", HookNamespace, func(ctx context.Context, event, ns string, p *HookPayload) bool {
		return false
	})

	if reg.TriggerVetoable(context.Background(), "transaction:failed", HookNamespace, &HookPayload{}, true) {
		t.Error("expected the last registered handler to decide the outcome")
	}
}

func TestHookRegistry_NamespaceIsolation(t *testing.T) {
	reg := NewHookRegistry()
	reg.Register("refund", "other", func(ctx context.Context, event, ns string, p *HookPayload) bool {
		return true
	})

	if reg.TriggerBestEffort(context.Background(), "refund", HookNamespace, &HookPayload{}, false) {
		t.Error("handler in another namespace must not fire")
	}
}

func TestHookRegistry_PayloadMutation(t *testing.T) {
	reg := NewHookRegistry()
	reg.Register("transaction:pending", HookNamespace, func(ctx context.Context, event, ns string, p *HookPayload) bool {
		p.Params["checked"] = true
		return true
	})

	payload := &HookPayload{Params: map[string]any{}}
	reg.TriggerVetoable(context.Background(), "transaction:pending", HookNamespace, payload, true)

	if payload.Params["checked"] != true {
		t.Error("handlers should be able to mutate the payload")
	}
}
