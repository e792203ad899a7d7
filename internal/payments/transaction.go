package payments

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hypejunction/payments/internal/entity"
)

// SubtypeTransaction is the entity subtype stamped on persisted
// transaction records.
const SubtypeTransaction = "transaction"

// StatusNew is the default initial status, assigned automatically when a
// transaction is saved without one. All other status codes are
// domain-defined and opaque to this package.
const StatusNew = "NEW"

// Relationship roles recorded from counterpart entities to a saved
// transaction.
const (
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
)

// Metadata keys of the persisted entity record.
const (
	metaTransactionID = "transaction_id"
	metaPaymentMethod = "payment_method"
	metaStatus        = "status"
	metaAmount        = "amount"
	metaCurrency      = "currency"
	metaProcessorFee  = "processor_fee"
	metaOrder         = "order"
	metaPayments      = "payments"
	metaFundingSource = "funding_source"
	metaDetails       = "details"
)

// Service wires transaction aggregates to their external collaborators:
// the entity store, the relationship store, and the hook dispatcher.
// Aggregates created or loaded through the same Service share them.
type Service struct {
	entities      entity.Store
	relationships entity.Relationships
	hooks         Hooks
	log           zerolog.Logger
}

// NewService creates a Service. hooks may be nil, in which case status
// transitions are always allowed and refunds are always rejected.
func NewService(entities entity.Store, relationships entity.Relationships, hooks Hooks, log zerolog.Logger) *Service {
	return &Service{
		entities:      entities,
		relationships: relationships,
		hooks:         hooks,
		log:           log,
	}
}

// NewTransaction creates a transient aggregate with no durable
// identifier.
func (s *Service) NewTransaction() *Transaction {
	return &Transaction{svc: s}
}

// Transaction is a persisted record of a single payment attempt against
// an order: its monetary amount, processor fee, status lifecycle, linked
// customer and merchant, originating order snapshot, payment-attempt
// log, and an opaque funding-source reference.
//
// A Transaction is not safe for concurrent use; ordering guarantees are
// per-instance only.
type Transaction struct {
	svc *Service

	guid        string
	timeCreated time.Time

	transactionID string
	paymentMethod string
	status        string

	amount       int64
	currency     string
	processorFee int64

	orderRaw      json.RawMessage
	paymentsRaw   []json.RawMessage
	fundingSource json.RawMessage

	details       map[string]any
	detailsRaw    string
	detailsLoaded bool

	// Explicitly set or tier-3 cached counterpart entities. Recorded as
	// relationships on save.
	customer *entity.Entity
	merchant *entity.Entity
}

// GUID returns the durable identifier, empty while the transaction is
// transient.
func (t *Transaction) GUID() string {
	return t.guid
}

// TimeCreated returns when the transaction was first persisted, zero
// while transient.
func (t *Transaction) TimeCreated() time.Time {
	return t.timeCreated
}

// SetID sets the business-level transaction token. Normally the token is
// derived at first save; SetID exists for importing externally issued
// tokens.
func (t *Transaction) SetID(transactionID string) {
	t.transactionID = transactionID
}

// ID returns the business-level transaction token.
func (t *Transaction) ID() string {
	return t.transactionID
}

// SetStatus submits a status transition to the veto hook
// ("transaction:<status>" in the payments namespace) and commits it only
// when allowed. A vetoed transition is a silent no-op, not an error.
// With no dispatcher or no registered handler the transition is allowed.
func (t *Transaction) SetStatus(ctx context.Context, status string, params map[string]any) {
	allowed := true
	if t.svc.hooks != nil {
		payload := &HookPayload{Status: status, Transaction: t, Params: params}
		allowed = t.svc.hooks.TriggerVetoable(ctx, "transaction:"+status, HookNamespace, payload, true)
	}
	if allowed {
		t.status = status
	}
}

// Status returns the current status code.
func (t *Transaction) Status() string {
	return t.status
}

// Refund announces a refund request on the best-effort refund hook and
// reports whether any handler accepted it. It does not mutate status;
// callers transition the status themselves once a handler approves.
func (t *Transaction) Refund(ctx context.Context, params map[string]any) bool {
	if t.svc.hooks == nil {
		return false
	}
	payload := &HookPayload{Transaction: t, Params: params}
	return t.svc.hooks.TriggerBestEffort(ctx, "refund", HookNamespace, payload, false)
}

// SetOrder stores a snapshot of the order and eagerly derives the
// merchant, customer and amount from it. The order then becomes the
// authoritative source for counterpart resolution.
func (t *Transaction) SetOrder(o Order) error {
	rec := snapshotOrder(o)
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("SetOrder: encoding order snapshot: %w", err)
	}
	t.orderRaw = raw
	t.SetMerchant(o.Merchant())
	t.SetCustomer(o.Customer())
	t.SetAmount(o.TotalAmount())
	return nil
}

// Order returns the stored order, or nil when none was set. A stored
// snapshot that no longer decodes into a valid order is a
// data-corruption condition: it is logged with the transaction's
// identifier and raw payload, and reported as not available.
func (t *Transaction) Order() Order {
	if len(t.orderRaw) == 0 {
		return nil
	}
	rec, err := decodeOrder(t.orderRaw)
	if err != nil {
		corrupted := &CorruptedReferenceError{GUID: t.guid, Field: "order", Raw: string(t.orderRaw), Err: err}
		t.svc.log.Error().
			Str("guid", t.guid).
			Str("raw", string(t.orderRaw)).
			Err(corrupted).
			Msg("order snapshot is corrupted")
		return nil
	}
	return rec
}

// AddPayment appends a payment attempt to the log. Prior entries are
// never mutated or removed.
func (t *Transaction) AddPayment(p Payment) error {
	rec := &PaymentRecord{Value: p.Amount(), Made: p.TimeCreated()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("AddPayment: encoding payment: %w", err)
	}
	t.paymentsRaw = append(t.paymentsRaw, raw)
	return nil
}

// Payments returns the full ordered attempt log. Entries that fail to
// decode are logged and skipped.
func (t *Transaction) Payments() []Payment {
	out := make([]Payment, 0, len(t.paymentsRaw))
	for i, raw := range t.paymentsRaw {
		var rec PaymentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			t.svc.log.Error().
				Str("guid", t.guid).
				Int("index", i).
				Str("raw", string(raw)).
				Err(err).
				Msg("payment log entry is corrupted")
			continue
		}
		out = append(out, &rec)
	}
	return out
}

// SetAmount sets the primary amount. Both the amount and the currency
// are taken from the single Money value; the currency is never mutated
// independently.
func (t *Transaction) SetAmount(m Money) {
	t.amount = m.Amount()
	t.currency = m.Currency()
}

// Amount returns the primary amount.
func (t *Transaction) Amount() Money {
	return Money{amount: t.amount, currency: t.currency}
}

// SetProcessorFee records the fee withheld by the processor. Only the
// fee's amount is retained; the fee always reports in the transaction's
// primary currency.
func (t *Transaction) SetProcessorFee(fee Money) {
	t.processorFee = fee.Amount()
}

// ProcessorFee returns the processor fee in the transaction's currency.
func (t *Transaction) ProcessorFee() Money {
	return Money{amount: t.processorFee, currency: t.currency}
}

// SetPaymentMethod records the payment method used.
func (t *Transaction) SetPaymentMethod(method string) {
	t.paymentMethod = method
}

// PaymentMethod returns the payment method.
func (t *Transaction) PaymentMethod() string {
	return t.paymentMethod
}

// SetFundingSource stores an opaque reference to how funds were sourced.
// The blob is kept verbatim and never interpreted.
func (t *Transaction) SetFundingSource(ref json.RawMessage) {
	t.fundingSource = ref
}

// FundingSource returns the stored reference verbatim. When never set it
// returns the unset value (nil) rather than a not-found sentinel; this
// asymmetry with relationship resolution is kept for compatibility.
func (t *Transaction) FundingSource() json.RawMessage {
	return t.fundingSource
}

// Save persists the transaction. On first save an unset status defaults
// to StatusNew and an unset transaction token is derived from the
// current time, a random component and the order snapshot. After a
// successful save, customer and merchant relationships are recorded from
// the in-memory counterpart fields. On failure no relationships are
// recorded and the derived token is retained for retry.
func (t *Transaction) Save(ctx context.Context) error {
	if t.status == "" {
		t.status = StatusNew
	}
	if t.transactionID == "" {
		t.transactionID = deriveTransactionID(t.orderRaw)
	}

	e := t.toEntity()
	if err := t.svc.entities.Save(ctx, e); err != nil {
		return &PersistenceError{Op: "Save", Err: err}
	}
	t.guid = e.GUID
	t.timeCreated = e.TimeCreated

	if t.customer != nil {
		if err := t.svc.relationships.Add(ctx, t.customer.GUID, RoleCustomer, t.guid); err != nil {
			t.svc.log.Warn().Str("guid", t.guid).Err(err).Msg("recording customer relationship failed")
		}
	}
	if t.merchant != nil {
		if err := t.svc.relationships.Add(ctx, t.merchant.GUID, RoleMerchant, t.guid); err != nil {
			t.svc.log.Warn().Str("guid", t.guid).Err(err).Msg("recording merchant relationship failed")
		}
	}
	return nil
}

// TransactionFromID looks up a transaction by its business-level token,
// earliest-created first. An empty token short-circuits to ErrNotFound
// without touching the store.
func (s *Service) TransactionFromID(ctx context.Context, transactionID string) (*Transaction, error) {
	if transactionID == "" {
		return nil, ErrNotFound
	}
	matches, err := s.entities.QueryByMetadata(ctx, metaTransactionID, transactionID, 1, true)
	if err != nil {
		return nil, fmt.Errorf("TransactionFromID: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return s.fromEntity(matches[0]), nil
}

// Load rehydrates a transaction by its durable identifier.
func (s *Service) Load(ctx context.Context, guid string) (*Transaction, error) {
	e, err := s.entities.Load(ctx, guid)
	if err != nil {
		return nil, err
	}
	return s.fromEntity(e), nil
}

// Details returns the legacy free-form details map, decoded lazily from
// its JSON-encoded metadata field.
//
// Deprecated: superseded by the structured fields; retained for
// backward compatibility.
func (t *Transaction) Details() map[string]any {
	t.loadDetails()
	return t.details
}

// Detail returns a single legacy detail value, or nil when unset.
//
// Deprecated: superseded by the structured fields.
func (t *Transaction) Detail(name string) any {
	t.loadDetails()
	return t.details[name]
}

// SetDetail records a legacy detail value.
//
// Deprecated: superseded by the structured fields.
func (t *Transaction) SetDetail(name string, value any) {
	t.loadDetails()
	t.details[name] = value
	if raw, err := json.Marshal(t.details); err == nil {
		t.detailsRaw = string(raw)
	}
}

func (t *Transaction) loadDetails() {
	if t.detailsLoaded {
		return
	}
	t.details = make(map[string]any)
	if t.detailsRaw != "" {
		if err := json.Unmarshal([]byte(t.detailsRaw), &t.details); err != nil {
			t.svc.log.Warn().Str("guid", t.guid).Str("raw", t.detailsRaw).Err(err).Msg("details field is corrupted")
			t.details = make(map[string]any)
		}
	}
	t.detailsLoaded = true
}

// toEntity encodes the aggregate into its persisted entity record.
func (t *Transaction) toEntity() *entity.Entity {
	e := &entity.Entity{
		GUID:        t.guid,
		Type:        "object",
		Subtype:     SubtypeTransaction,
		TimeCreated: t.timeCreated,
	}
	e.SetMeta(metaTransactionID, t.transactionID)
	e.SetMeta(metaPaymentMethod, t.paymentMethod)
	e.SetMeta(metaStatus, t.status)
	e.SetMeta(metaAmount, strconv.FormatInt(t.amount, 10))
	e.SetMeta(metaCurrency, t.currency)
	e.SetMeta(metaProcessorFee, strconv.FormatInt(t.processorFee, 10))
	if len(t.orderRaw) > 0 {
		e.SetMeta(metaOrder, string(t.orderRaw))
	}
	if len(t.paymentsRaw) > 0 {
		if raw, err := json.Marshal(t.paymentsRaw); err == nil {
			e.SetMeta(metaPayments, string(raw))
		}
	}
	if len(t.fundingSource) > 0 {
		e.SetMeta(metaFundingSource, string(t.fundingSource))
	}
	if t.detailsRaw != "" {
		e.SetMeta(metaDetails, t.detailsRaw)
	}
	return e
}

// fromEntity decodes a persisted entity record into an aggregate.
// Numeric fields that fail to parse fall back to zero; nested blobs are
// kept raw and validated at access time.
func (s *Service) fromEntity(e *entity.Entity) *Transaction {
	t := &Transaction{
		svc:           s,
		guid:          e.GUID,
		timeCreated:   e.TimeCreated,
		transactionID: e.Meta(metaTransactionID),
		paymentMethod: e.Meta(metaPaymentMethod),
		status:        e.Meta(metaStatus),
		currency:      e.Meta(metaCurrency),
		detailsRaw:    e.Meta(metaDetails),
	}
	t.amount, _ = strconv.ParseInt(e.Meta(metaAmount), 10, 64)
	t.processorFee, _ = strconv.ParseInt(e.Meta(metaProcessorFee), 10, 64)
	if raw := e.Meta(metaOrder); raw != "" {
		t.orderRaw = json.RawMessage(raw)
	}
	if raw := e.Meta(metaPayments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.paymentsRaw); err != nil {
			s.log.Warn().Str("guid", e.GUID).Str("raw", raw).Err(err).Msg("payment log is corrupted")
		}
	}
	if raw := e.Meta(metaFundingSource); raw != "" {
		t.fundingSource = json.RawMessage(raw)
	}
	return t
}

// deriveTransactionID builds the business-level token from the current
// time, a random component and the order snapshot, so that distinct
// orders created at the same instant still diverge.
func deriveTransactionID(orderRaw []byte) string {
	seed := fmt.Sprintf("%d|%s|%s", time.Now().UnixNano(), uuid.NewString(), orderRaw)
	return fmt.Sprintf("%x", sha1.Sum([]byte(seed)))
}
