package payments

import (
	"context"

	"github.com/hypejunction/payments/internal/entity"
)

// Counterpart resolution runs in three tiers, evaluated lazily on every
// access:
//
//  1. a resolvable order is authoritative, so order edits are always
//     reflected, even over a previously cached value;
//  2. an explicitly set value comes next;
//  3. finally the relationship store is queried for a single inbound
//     link of the role, and the result is cached for the lifetime of
//     this instance.
//
// Tier 1 and 2 results are never re-cached. A miss resolves to nil, the
// not-found sentinel; resolution never fails.

// SetCustomer explicitly sets the paying party.
func (t *Transaction) SetCustomer(customer *entity.Entity) {
	t.customer = customer
}

// Customer resolves the paying party, or nil when unknown.
func (t *Transaction) Customer(ctx context.Context) *entity.Entity {
	return t.resolveCounterpart(ctx, RoleCustomer, &t.customer, func(o Order) *entity.Entity {
		return o.Customer()
	})
}

// SetMerchant explicitly sets the party being paid.
func (t *Transaction) SetMerchant(merchant *entity.Entity) {
	t.merchant = merchant
}

// Merchant resolves the party being paid, or nil when unknown.
func (t *Transaction) Merchant(ctx context.Context) *entity.Entity {
	return t.resolveCounterpart(ctx, RoleMerchant, &t.merchant, func(o Order) *entity.Entity {
		return o.Merchant()
	})
}

func (t *Transaction) resolveCounterpart(ctx context.Context, role string, cached **entity.Entity, fromOrder func(Order) *entity.Entity) *entity.Entity {
	if order := t.Order(); order != nil {
		return fromOrder(order)
	}
	if *cached != nil {
		return *cached
	}
	if t.guid == "" || t.svc.relationships == nil {
		return nil
	}

	matches, err := t.svc.relationships.Inbound(ctx, role, t.guid, 1)
	if err != nil {
		t.svc.log.Warn().Str("guid", t.guid).Str("role", role).Err(err).Msg("relationship lookup failed")
		return nil
	}
	if len(matches) == 0 {
		return nil
	}
	*cached = matches[0]
	return *cached
}
