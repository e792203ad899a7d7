package payments

import (
	"encoding/json"
	"time"

	"github.com/hypejunction/payments/internal/entity"
)

// Order describes what is being paid for. The aggregate consumes it only
// through these accessors and stores it as a nested snapshot; the
// concrete order lives outside this package.
type Order interface {
	// Merchant returns the party being paid.
	Merchant() *entity.Entity

	// Customer returns the paying party.
	Customer() *entity.Entity

	// TotalAmount returns the order total.
	TotalAmount() Money
}

// Payment is a single payment attempt record. Attempts are stored in an
// append-only log on the transaction.
type Payment interface {
	// Amount returns the attempted amount.
	Amount() Money

	// TimeCreated returns when the attempt was made.
	TimeCreated() time.Time
}

// PaymentRecord is the snapshot form of a Payment; log entries decode
// back into it.
type PaymentRecord struct {
	Value Money     `json:"amount"`
	Made  time.Time `json:"time_created"`
}

// Amount implements Payment.
func (p *PaymentRecord) Amount() Money {
	return p.Value
}

// TimeCreated implements Payment.
func (p *PaymentRecord) TimeCreated() time.Time {
	return p.Made
}

// orderRecord is the stored snapshot of an order: the contract fields
// captured at SetOrder time. It round-trips through JSON and implements
// Order on rehydration.
type orderRecord struct {
	MerchantEnt *entity.Entity `json:"merchant,omitempty"`
	CustomerEnt *entity.Entity `json:"customer,omitempty"`
	Total       *Money         `json:"total"`
}

func (r *orderRecord) Merchant() *entity.Entity {
	return r.MerchantEnt
}

func (r *orderRecord) Customer() *entity.Entity {
	return r.CustomerEnt
}

func (r *orderRecord) TotalAmount() Money {
	if r.Total == nil {
		return Money{}
	}
	return *r.Total
}

// snapshotOrder captures an Order's contract fields into a record.
func snapshotOrder(o Order) *orderRecord {
	total := o.TotalAmount()
	return &orderRecord{
		MerchantEnt: o.Merchant(),
		CustomerEnt: o.Customer(),
		Total:       &total,
	}
}

// decodeOrder rehydrates a stored order snapshot. A record without a
// valid total does not satisfy the order contract and is treated as
// corrupted.
func decodeOrder(raw []byte) (*orderRecord, error) {
	var rec orderRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if rec.Total == nil || rec.Total.IsZero() {
		return nil, &MalformedValueError{Kind: "order", Reason: "missing total amount"}
	}
	return &rec, nil
}
