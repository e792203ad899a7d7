package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hypejunction/payments/internal/entity"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// Snapshot field keys. Underscore-prefixed keys are reserved codec
// fields; every exported entity additionally carries its identifier
// under entity.ExportIDKey.
const (
	snapTimeCreated   = "_time_created"
	snapOrder         = "_order"
	snapAmount        = "_amount"
	snapProcessorFee  = "_processor_fee"
	snapPaymentMethod = "_payment_method"
	snapStatus        = "_status"
	snapMerchant      = "_merchant"
	snapCustomer      = "_customer"
)

// Export produces a flat, transportable mapping of the transaction:
// its primitive fields plus nested exports of the order, amounts,
// merchant and customer. Counterparts are resolved through the usual
// tiers, so the export reflects live state.
func (t *Transaction) Export(ctx context.Context) map[string]any {
	export := map[string]any{
		entity.ExportIDKey: t.guid,
		"type":             "object",
		"subtype":          SubtypeTransaction,
		metaTransactionID:  t.transactionID,
		snapTimeCreated:    t.timeCreated.Unix(),
		snapAmount:         t.Amount(),
		snapProcessorFee:   t.ProcessorFee(),
		snapPaymentMethod:  t.paymentMethod,
		snapStatus:         t.status,
	}

	if order := t.Order(); order != nil {
		export[snapOrder] = snapshotOrder(order)
	}
	if merchant := t.Merchant(ctx); merchant != nil {
		export[snapMerchant] = merchant.Export()
	}
	if customer := t.Customer(ctx); customer != nil {
		export[snapCustomer] = customer.Export()
	}
	return export
}

// Serialize byte-encodes the export for persistence or transport.
// Deserialize with Service.Unserialize.
func (t *Transaction) Serialize(ctx context.Context) ([]byte, error) {
	data, err := json.Marshal(t.Export(ctx))
	if err != nil {
		return nil, fmt.Errorf("Serialize: %w", err)
	}
	return data, nil
}

// snapshot is the decoded wire form. Fields are kept raw so each can be
// decoded independently; one corrupted field never fails the whole
// rehydration.
type snapshot struct {
	ID            string          `json:"_id"`
	TimeCreated   json.RawMessage `json:"_time_created"`
	Order         json.RawMessage `json:"_order"`
	Amount        json.RawMessage `json:"_amount"`
	ProcessorFee  json.RawMessage `json:"_processor_fee"`
	PaymentMethod json.RawMessage `json:"_payment_method"`
	Status        json.RawMessage `json:"_status"`
	Merchant      json.RawMessage `json:"_merchant"`
	Customer      json.RawMessage `json:"_customer"`
}

// subExport is the part of a nested entity export the codec needs back.
type subExport struct {
	ID string `json:"_id"`
}

// Unserialize reconstructs a transaction from serialized snapshot bytes.
//
// When the snapshot carries a durable identifier that still loads, the
// durably-loaded state wins and the inlined fields are discarded.
// Otherwise the aggregate is populated field-by-field from the inlined
// values, tolerating corruption per field. In both paths, merchant and
// customer sub-exports are re-resolved fresh from the entity store and
// attached, repairing the relationship cache that the durable record
// alone does not carry.
func (s *Service) Unserialize(ctx context.Context, data []byte) (*Transaction, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Unserialize: decoding snapshot: %w", err)
	}

	t := s.NewTransaction()

	loaded := false
	if snap.ID != "" {
		if e, err := s.entities.Load(ctx, snap.ID); err == nil {
			t = s.fromEntity(e)
			loaded = true
		} else {
			s.log.Warn().Str("guid", snap.ID).Err(err).Msg("snapshot identifier did not load, falling back to inlined fields")
		}
	}

	if !loaded {
		s.populateFromSnapshot(t, &snap)
	}

	if e := s.resolveSubExport(ctx, snap.Merchant, "merchant", snap.ID); e != nil {
		t.SetMerchant(e)
	}
	if e := s.resolveSubExport(ctx, snap.Customer, "customer", snap.ID); e != nil {
		t.SetCustomer(e)
	}
	return t, nil
}

// populateFromSnapshot fills the aggregate from the inlined snapshot
// fields, degrading gracefully: each corrupted field is logged and
// skipped, never failing the rehydration.
func (s *Service) populateFromSnapshot(t *Transaction, snap *snapshot) {
	if len(snap.Order) > 0 && string(snap.Order) != "null" {
		if rec, err := decodeOrder(snap.Order); err == nil {
			if err := t.SetOrder(rec); err != nil {
				s.log.Warn().Err(err).Msg("snapshot order could not be restored")
			}
		} else {
			s.log.Warn().Str("raw", string(snap.Order)).Err(err).Msg("snapshot order is corrupted")
		}
	}

	var method string
	if err := json.Unmarshal(snap.PaymentMethod, &method); err == nil {
		t.paymentMethod = method
	}
	var status string
	if err := json.Unmarshal(snap.Status, &status); err == nil {
		t.status = status
	}

	var amount Money
	if err := json.Unmarshal(snap.Amount, &amount); err == nil {
		t.SetAmount(amount)
	} else if len(snap.Amount) > 0 {
		s.log.Warn().Str("raw", string(snap.Amount)).Err(err).Msg("snapshot amount is corrupted")
	}
	var fee Money
	if err := json.Unmarshal(snap.ProcessorFee, &fee); err == nil {
		t.SetProcessorFee(fee)
	} else if len(snap.ProcessorFee) > 0 {
		s.log.Warn().Str("raw", string(snap.ProcessorFee)).Err(err).Msg("snapshot processor fee is corrupted")
	}

	var created int64
	if err := json.Unmarshal(snap.TimeCreated, &created); err == nil && created != 0 {
		t.timeCreated = unixTime(created)
	}
}

// resolveSubExport loads the entity referenced by a merchant/customer
// sub-export. Misses and corrupt sub-exports degrade to nil.
func (s *Service) resolveSubExport(ctx context.Context, raw json.RawMessage, field, txGUID string) *entity.Entity {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var sub subExport
	if err := json.Unmarshal(raw, &sub); err != nil {
		s.log.Warn().Str("guid", txGUID).Str("field", field).Str("raw", string(raw)).Err(err).Msg("snapshot sub-export is corrupted")
		return nil
	}
	if sub.ID == "" {
		return nil
	}
	e, err := s.entities.Load(ctx, sub.ID)
	if err != nil {
		s.log.Warn().Str("guid", txGUID).Str("field", field).Str("entity_guid", sub.ID).Err(err).Msg("snapshot sub-export did not resolve")
		return nil
	}
	return e
}
