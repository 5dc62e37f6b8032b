package payments

import (
	"context"
	"fmt"
	"strings"
)

// AmountPaise is an integer currency amount in minor units.
type AmountPaise int64

// OrderRef identifies an order at the external gateway.
type OrderRef struct {
	value string
}

// PaymentRef identifies a completed payment at the external gateway.
type PaymentRef struct {
	value string
}

// AccountRef is a weak reference into the account union. Ledger entries
// carry it for lookup only; anonymous entries omit it.
type AccountRef struct {
	value string
}

// CurrencyCode is an ISO 4217 alphabetic code.
type CurrencyCode struct {
	value string
}

// PayerSnapshot is the free-form payer details captured with an entry.
type PayerSnapshot struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// EntryStatus defines the ledger entry lifecycle.
type EntryStatus string

const (
	EntryStatusCreated EntryStatus = "created"
	EntryStatusSuccess EntryStatus = "success"
	EntryStatusFailed  EntryStatus = "failed"
)

// String returns the stored status value.
func (status EntryStatus) String() string {
	return string(status)
}

// Terminal reports whether the status never transitions further.
func (status EntryStatus) Terminal() bool {
	return status == EntryStatusSuccess || status == EntryStatusFailed
}

// ParseEntryStatus validates a stored status value.
func ParseEntryStatus(raw string) (EntryStatus, error) {
	switch EntryStatus(raw) {
	case EntryStatusCreated, EntryStatusSuccess, EntryStatusFailed:
		return EntryStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryStatus, raw)
}

// Entry is a single payment or donation attempt and its lifecycle.
type Entry struct {
	EntryID        string
	OrderRef       string
	PaymentRef     string
	Signature      string
	AmountPaise    AmountPaise
	Currency       string
	AccountID      string
	Payer          PayerSnapshot
	Status         EntryStatus
	CreatedUnixUTC int64
	UpdatedUnixUTC int64
}

// NewOrderRef validates and normalizes an order reference.
func NewOrderRef(raw string) (OrderRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OrderRef{}, fmt.Errorf("%w: empty value", ErrInvalidOrderRef)
	}
	return OrderRef{value: trimmed}, nil
}

// String returns the normalized reference.
func (ref OrderRef) String() string {
	return ref.value
}

// NewPaymentRef validates and normalizes a payment reference.
func NewPaymentRef(raw string) (PaymentRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PaymentRef{}, fmt.Errorf("%w: empty value", ErrInvalidPaymentRef)
	}
	return PaymentRef{value: trimmed}, nil
}

// String returns the normalized reference.
func (ref PaymentRef) String() string {
	return ref.value
}

// NewAccountRef validates and normalizes an account reference.
func NewAccountRef(raw string) (AccountRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountRef{}, fmt.Errorf("%w: empty value", ErrInvalidAccountRef)
	}
	return AccountRef{value: trimmed}, nil
}

// String returns the normalized reference.
func (ref AccountRef) String() string {
	return ref.value
}

// NewCurrencyCode validates a three-letter currency code.
func NewCurrencyCode(raw string) (CurrencyCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if len(normalized) != 3 {
		return CurrencyCode{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, raw)
	}
	return CurrencyCode{value: normalized}, nil
}

// String returns the normalized code.
func (code CurrencyCode) String() string {
	return code.value
}

// NewAmountPaise validates an amount and ensures it is strictly positive.
func NewAmountPaise(raw int64) (AmountPaise, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountPaise)
	}
	return AmountPaise(raw), nil
}

// Int64 returns the raw minor-unit amount.
func (amount AmountPaise) Int64() int64 {
	return int64(amount)
}

// Store is the persistence contract used by Service. Uniqueness of
// order_ref and payment_ref is enforced by the storage layer; Insert
// reports violations as ErrDuplicateOrder / ErrDuplicatePayment.
type Store interface {
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	GetByOrderRef(ctx context.Context, orderRef string) (Entry, error)
	GetByPaymentRef(ctx context.Context, paymentRef string) (Entry, error)
	SettleEntry(ctx context.Context, orderRef string, paymentRef string, signature string, status EntryStatus, updatedUnixUTC int64) (bool, error)
	SumSuccessful(ctx context.Context, accountID string) (int64, error)
}
