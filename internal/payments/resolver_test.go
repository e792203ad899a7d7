package payments

import (
	"context"
	"testing"

	"github.com/hypejunction/payments/internal/entity"
	"github.com/hypejunction/payments/internal/logger"
	"github.com/hypejunction/payments/internal/store/inmemory"
)

func TestResolver_OrderWinsOverExplicit(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil)

	m1 := savedEntity(t, store, "order merchant")
	m2 := savedEntity(t, store, "explicit merchant")

	tx := svc.NewTransaction()
	if err := tx.SetOrder(&testOrder{merchant: m1, total: MustMoney(100, "USD")}); err != nil {
		t.Fatalf("SetOrder failed: %v", err)
	}
	tx.SetMerchant(m2)

	got := tx.Merchant(ctx)
	if got == nil || got.GUID != m1.GUID {
		t.Errorf("Merchant() = %+v, want order-derived merchant %q", got, m1.GUID)
	}
}

func TestResolver_ExplicitValue(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil)

	customer := savedEntity(t, store, "customer")

	tx := svc.NewTransaction()
	tx.SetCustomer(customer)

	got := tx.Customer(ctx)
	if got == nil || got.GUID != customer.GUID {
		t.Errorf("Customer() = %+v, want explicitly set customer", got)
	}
}

// countingRels counts inbound lookups to assert tier-3 caching.
type countingRels struct {
	*inmemory.Store
	lookups int
}

func (r *countingRels) Inbound(ctx context.Context, role, toGUID string, limit int) ([]*entity.Entity, error) {
	r.lookups++
	return r.Store.Inbound(ctx, role, toGUID, limit)
}

func TestResolver_StoreLookupIsCached(t *testing.T) {
	ctx := context.Background()
	mem := inmemory.NewStore()
	rels := &countingRels{Store: mem}
	svc := NewService(mem, rels, nil, logger.Nop())

	customer := savedEntity(t, mem, "customer")

	tx := svc.NewTransaction()
	if err := tx.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := mem.Add(ctx, customer.GUID, RoleCustomer, tx.GUID()); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	first := tx.Customer(ctx)
	if first == nil || first.GUID != customer.GUID {
		t.Fatalf("Customer() = %+v, want store-resolved customer", first)
	}
	second := tx.Customer(ctx)
	if second == nil || second.GUID != customer.GUID {
		t.Fatalf("second Customer() = %+v", second)
	}
	if rels.lookups != 1 {
		t.Errorf("store queried %d times, want 1 (tier-3 result cached)", rels.lookups)
	}
}

func TestResolver_MissIsSentinel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	tx := svc.NewTransaction()
	if err := tx.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if got := tx.Merchant(ctx); got != nil {
		t.Errorf("Merchant() with no relationship = %+v, want nil", got)
	}
}

func TestResolver_OrderEditsReflected(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil)

	m1 := savedEntity(t, store, "first merchant")
	m2 := savedEntity(t, store, "second merchant")

	tx := svc.NewTransaction()
	if err := tx.SetOrder(&testOrder{merchant: m1, total: MustMoney(100, "USD")}); err != nil {
		t.Fatalf("SetOrder failed: %v", err)
	}
	if got := tx.Merchant(ctx); got == nil || got.GUID != m1.GUID {
		t.Fatalf("Merchant() = %+v, want %q", got, m1.GUID)
	}

	// Replacing the order replaces the derived merchant, bypassing any
	// previously resolved value.
	if err := tx.SetOrder(&testOrder{merchant: m2, total: MustMoney(200, "USD")}); err != nil {
		t.Fatalf("second SetOrder failed: %v", err)
	}
	if got := tx.Merchant(ctx); got == nil || got.GUID != m2.GUID {
		t.Errorf("Merchant() after order edit = %+v, want %q", got, m2.GUID)
	}
}
