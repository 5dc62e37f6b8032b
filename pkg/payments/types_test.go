package payments

import (
	"errors"
	"testing"
)

func TestNewOrderRefRejectsBlankValues(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{"", "   ", "\t"} {
		if _, err := NewOrderRef(raw); !errors.Is(err, ErrInvalidOrderRef) {
			test.Fatalf("expected ErrInvalidOrderRef for %q, got %v", raw, err)
		}
	}
	ref, err := NewOrderRef("  order_1  ")
	if err != nil {
		test.Fatalf("order ref: %v", err)
	}
	if ref.String() != "order_1" {
		test.Fatalf("expected trimmed ref, got %q", ref.String())
	}
}

func TestNewAmountPaiseRequiresPositiveValue(test *testing.T) {
	test.Parallel()
	for _, raw := range []int64{0, -1, -50000} {
		if _, err := NewAmountPaise(raw); !errors.Is(err, ErrInvalidAmountPaise) {
			test.Fatalf("expected ErrInvalidAmountPaise for %d, got %v", raw, err)
		}
	}
	amount, err := NewAmountPaise(50000)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	if amount.Int64() != 50000 {
		test.Fatalf("expected 50000, got %d", amount.Int64())
	}
}

func TestNewCurrencyCodeNormalizes(test *testing.T) {
	test.Parallel()
	code, err := NewCurrencyCode(" inr ")
	if err != nil {
		test.Fatalf("currency: %v", err)
	}
	if code.String() != "INR" {
		test.Fatalf("expected INR, got %q", code.String())
	}
	if _, err := NewCurrencyCode("rupees"); !errors.Is(err, ErrInvalidCurrency) {
		test.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestParseEntryStatus(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{"created", "success", "failed"} {
		status, err := ParseEntryStatus(raw)
		if err != nil {
			test.Fatalf("parse %q: %v", raw, err)
		}
		if status.String() != raw {
			test.Fatalf("expected %q, got %q", raw, status.String())
		}
	}
	if _, err := ParseEntryStatus("pending"); !errors.Is(err, ErrInvalidEntryStatus) {
		test.Fatalf("expected ErrInvalidEntryStatus, got %v", err)
	}
	if EntryStatusCreated.Terminal() {
		test.Fatalf("created must not be terminal")
	}
	if !EntryStatusSuccess.Terminal() || !EntryStatusFailed.Terminal() {
		test.Fatalf("success and failed must be terminal")
	}
}

func TestOperationErrorExposesSegments(test *testing.T) {
	test.Parallel()
	wrapped := WrapError("store", "entry", "duplicate", ErrDuplicateOrder)
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError, got %T", wrapped)
	}
	if operationError.Operation() != "store" || operationError.Subject() != "entry" || operationError.Code() != "duplicate" {
		test.Fatalf("unexpected segments: %s.%s.%s", operationError.Operation(), operationError.Subject(), operationError.Code())
	}
	if !errors.Is(wrapped, ErrDuplicateOrder) {
		test.Fatalf("expected unwrap to ErrDuplicateOrder")
	}
	if WrapError("store", "entry", "duplicate", nil) != nil {
		test.Fatalf("wrapping nil must return nil")
	}
}
