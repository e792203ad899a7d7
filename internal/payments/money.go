package payments

import "encoding/json"

// Money is an immutable monetary value: an integer amount in minor units
// (cents) paired with an ISO-4217-like currency code. 1050 USD minor
// units is $10.50. Negative amounts are allowed for adjustments.
type Money struct {
	amount   int64
	currency string
}

// NewMoney constructs a Money value. Both fields are required together;
// a missing currency yields a MalformedValueError.
func NewMoney(amount int64, currency string) (Money, error) {
	if currency == "" {
		return Money{}, &MalformedValueError{Kind: "money", Reason: "currency is required"}
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney is NewMoney for statically known values; it panics on a
// malformed pair.
func MustMoney(amount int64, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the value in minor units.
func (m Money) Amount() int64 {
	return m.amount
}

// Currency returns the currency code.
func (m Money) Currency() string {
	return m.currency
}

// Equal reports whether both amount and currency match. There is no
// implicit cross-currency comparison.
func (m Money) Equal(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}

// IsZero reports whether m is the zero (unconstructed) value.
func (m Money) IsZero() bool {
	return m.currency == ""
}

type moneyJSON struct {
	Amount   *int64  `json:"amount"`
	Currency *string `json:"currency"`
}

// MarshalJSON encodes the value as {"amount": n, "currency": "XXX"}.
func (m Money) MarshalJSON() ([]byte, error) {
	amount, currency := m.amount, m.currency
	return json.Marshal(moneyJSON{Amount: &amount, Currency: &currency})
}

// UnmarshalJSON decodes a Money value, requiring both fields to be
// present and the currency non-empty.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Amount == nil || raw.Currency == nil {
		return &MalformedValueError{Kind: "money", Reason: "amount and currency must be set together"}
	}
	parsed, err := NewMoney(*raw.Amount, *raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
