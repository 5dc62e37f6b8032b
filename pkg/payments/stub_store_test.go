package payments

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// stubStore mimics the storage layer's unique-index semantics in memory.
type stubStore struct {
	mu          sync.Mutex
	byOrder     map[string]Entry
	byPayment   map[string]Entry
	nextEntryID int

	insertError     error
	getOrderError   error
	getPaymentError error
	settleError     error
	sumError        error
}

func newStubStore() *stubStore {
	return &stubStore{
		byOrder:   make(map[string]Entry),
		byPayment: make(map[string]Entry),
	}
}

func (store *stubStore) InsertEntry(_ context.Context, entry Entry) (Entry, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.insertError != nil {
		return Entry{}, store.insertError
	}
	if entry.OrderRef != "" {
		if _, exists := store.byOrder[entry.OrderRef]; exists {
			return Entry{}, WrapError("store", "entry", "duplicate", ErrDuplicateOrder)
		}
	}
	if entry.PaymentRef != "" {
		if _, exists := store.byPayment[entry.PaymentRef]; exists {
			return Entry{}, WrapError("store", "entry", "duplicate", ErrDuplicatePayment)
		}
	}
	store.nextEntryID++
	entry.EntryID = fmt.Sprintf("entry-%d", store.nextEntryID)
	store.put(entry)
	return entry, nil
}

func (store *stubStore) GetByOrderRef(_ context.Context, orderRef string) (Entry, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.getOrderError != nil {
		return Entry{}, store.getOrderError
	}
	entry, exists := store.byOrder[orderRef]
	if !exists {
		return Entry{}, WrapError("store", "entry", "get", ErrOrderNotFound)
	}
	return entry, nil
}

func (store *stubStore) GetByPaymentRef(_ context.Context, paymentRef string) (Entry, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.getPaymentError != nil {
		return Entry{}, store.getPaymentError
	}
	entry, exists := store.byPayment[paymentRef]
	if !exists {
		return Entry{}, WrapError("store", "entry", "get", ErrPaymentNotFound)
	}
	return entry, nil
}

func (store *stubStore) SettleEntry(_ context.Context, orderRef string, paymentRef string, signature string, status EntryStatus, updatedUnixUTC int64) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.settleError != nil {
		return false, store.settleError
	}
	entry, exists := store.byOrder[orderRef]
	if !exists || entry.Status != EntryStatusCreated {
		return false, nil
	}
	entry.PaymentRef = paymentRef
	entry.Signature = signature
	entry.Status = status
	entry.UpdatedUnixUTC = updatedUnixUTC
	store.put(entry)
	return true, nil
}

func (store *stubStore) SumSuccessful(_ context.Context, accountID string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.sumError != nil {
		return 0, store.sumError
	}
	var total int64
	for _, entry := range store.byOrder {
		if entry.AccountID == accountID && entry.Status == EntryStatusSuccess {
			total += entry.AmountPaise.Int64()
		}
	}
	for _, entry := range store.byPayment {
		if entry.OrderRef != "" {
			continue // already counted via byOrder
		}
		if entry.AccountID == accountID && entry.Status == EntryStatusSuccess {
			total += entry.AmountPaise.Int64()
		}
	}
	return total, nil
}

func (store *stubStore) put(entry Entry) {
	if entry.OrderRef != "" {
		store.byOrder[entry.OrderRef] = entry
	}
	if entry.PaymentRef != "" {
		store.byPayment[entry.PaymentRef] = entry
	}
}

func (store *stubStore) entryCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	seen := make(map[string]struct{})
	for _, entry := range store.byOrder {
		seen[entry.EntryID] = struct{}{}
	}
	for _, entry := range store.byPayment {
		seen[entry.EntryID] = struct{}{}
	}
	return len(seen)
}

func mustNewService(test *testing.T, store Store) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 1700000000 })
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustOrderRef(test *testing.T, raw string) OrderRef {
	test.Helper()
	ref, err := NewOrderRef(raw)
	if err != nil {
		test.Fatalf("order ref %q: %v", raw, err)
	}
	return ref
}

func mustPaymentRef(test *testing.T, raw string) PaymentRef {
	test.Helper()
	ref, err := NewPaymentRef(raw)
	if err != nil {
		test.Fatalf("payment ref %q: %v", raw, err)
	}
	return ref
}

func mustAccountRef(test *testing.T, raw string) AccountRef {
	test.Helper()
	ref, err := NewAccountRef(raw)
	if err != nil {
		test.Fatalf("account ref %q: %v", raw, err)
	}
	return ref
}

func mustAmount(test *testing.T, raw int64) AmountPaise {
	test.Helper()
	amount, err := NewAmountPaise(raw)
	if err != nil {
		test.Fatalf("amount %d: %v", raw, err)
	}
	return amount
}

func mustCurrency(test *testing.T, raw string) CurrencyCode {
	test.Helper()
	code, err := NewCurrencyCode(raw)
	if err != nil {
		test.Fatalf("currency %q: %v", raw, err)
	}
	return code
}
