package payments

import (
	"context"
	"errors"
	"fmt"
)

const defaultCurrencyCode = "INR"

// Service contains the ledger domain logic over a Store.
//
// All exactly-once guarantees are pushed down to the storage layer's
// unique-index semantics; the service holds no locks of its own.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidService)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidService)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreatePending records a freshly created gateway order. A second call with
// the same order ref fails with ErrDuplicateOrder and leaves exactly one
// stored entry.
func (service *Service) CreatePending(ctx context.Context, orderRef OrderRef, amount AmountPaise, currency CurrencyCode, payer PayerSnapshot, accountRef *AccountRef) (Entry, error) {
	nowUnixUTC := service.nowFn()
	entry := Entry{
		OrderRef:       orderRef.String(),
		AmountPaise:    amount,
		Currency:       currency.String(),
		AccountID:      accountRefValue(accountRef),
		Payer:          payer,
		Status:         EntryStatusCreated,
		CreatedUnixUTC: nowUnixUTC,
		UpdatedUnixUTC: nowUnixUTC,
	}
	inserted, operationError := service.store.InsertEntry(ctx, entry)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreatePending,
		OrderRef:  orderRef.String(),
		AccountID: entry.AccountID,
		Amount:    amount,
		Error:     operationError,
	})
	if operationError != nil {
		return Entry{}, operationError
	}
	return inserted, nil
}

// RecordDirect records a fully completed external transaction that had no
// prior pending order (the anonymous donation flow). It is idempotent per
// payment ref: a retried client or a duplicated webhook-and-confirm race
// observes the first stored entry unchanged.
func (service *Service) RecordDirect(ctx context.Context, paymentRef PaymentRef, amount AmountPaise, payer PayerSnapshot, accountRef *AccountRef) (Entry, error) {
	existing, err := service.store.GetByPaymentRef(ctx, paymentRef.String())
	if err == nil {
		service.logOperation(ctx, OperationLog{
			Operation:  operationRecordDirect,
			PaymentRef: paymentRef.String(),
			AccountID:  existing.AccountID,
			Amount:     existing.AmountPaise,
			Outcome:    existing.Status,
		})
		return existing, nil
	}
	if !errors.Is(err, ErrPaymentNotFound) {
		return Entry{}, err
	}

	nowUnixUTC := service.nowFn()
	entry := Entry{
		PaymentRef:     paymentRef.String(),
		AmountPaise:    amount,
		Currency:       defaultCurrencyCode,
		AccountID:      accountRefValue(accountRef),
		Payer:          payer,
		Status:         EntryStatusSuccess,
		CreatedUnixUTC: nowUnixUTC,
		UpdatedUnixUTC: nowUnixUTC,
	}
	inserted, insertError := service.store.InsertEntry(ctx, entry)
	if errors.Is(insertError, ErrDuplicatePayment) {
		// A concurrent insert won the unique-index race; return the winner.
		inserted, insertError = service.store.GetByPaymentRef(ctx, paymentRef.String())
	}
	service.logOperation(ctx, OperationLog{
		Operation:  operationRecordDirect,
		PaymentRef: paymentRef.String(),
		AccountID:  entry.AccountID,
		Amount:     amount,
		Outcome:    EntryStatusSuccess,
		Error:      insertError,
	})
	if insertError != nil {
		return Entry{}, insertError
	}
	return inserted, nil
}

// MarkOutcome transitions a created entry to a terminal state. An entry that
// is already terminal is returned unchanged with no error. The transition is
// monotonic: the guarded update only matches entries still in created.
func (service *Service) MarkOutcome(ctx context.Context, orderRef OrderRef, paymentRef PaymentRef, signature string, outcome EntryStatus) (Entry, error) {
	if !outcome.Terminal() {
		return Entry{}, fmt.Errorf("%w: outcome must be terminal, got %q", ErrInvalidEntryStatus, outcome)
	}
	entry, err := service.store.GetByOrderRef(ctx, orderRef.String())
	if err != nil {
		service.logOperation(ctx, OperationLog{
			Operation:  operationMarkOutcome,
			OrderRef:   orderRef.String(),
			PaymentRef: paymentRef.String(),
			Outcome:    outcome,
			Error:      err,
		})
		return Entry{}, err
	}
	if entry.Status.Terminal() {
		service.logOperation(ctx, OperationLog{
			Operation:  operationMarkOutcome,
			OrderRef:   orderRef.String(),
			PaymentRef: paymentRef.String(),
			AccountID:  entry.AccountID,
			Amount:     entry.AmountPaise,
			Outcome:    entry.Status,
		})
		return entry, nil
	}
	_, settleError := service.store.SettleEntry(ctx, orderRef.String(), paymentRef.String(), signature, outcome, service.nowFn())
	if settleError != nil {
		service.logOperation(ctx, OperationLog{
			Operation:  operationMarkOutcome,
			OrderRef:   orderRef.String(),
			PaymentRef: paymentRef.String(),
			Outcome:    outcome,
			Error:      settleError,
		})
		return Entry{}, settleError
	}
	// Re-read so a lost guarded-update race still reports the settled row.
	settled, readError := service.store.GetByOrderRef(ctx, orderRef.String())
	service.logOperation(ctx, OperationLog{
		Operation:  operationMarkOutcome,
		OrderRef:   orderRef.String(),
		PaymentRef: paymentRef.String(),
		AccountID:  settled.AccountID,
		Amount:     settled.AmountPaise,
		Outcome:    settled.Status,
		Error:      readError,
	})
	if readError != nil {
		return Entry{}, readError
	}
	return settled, nil
}

// TotalForAccount sums successful entry amounts for one account. The sum is
// a single database-level aggregate, never an application-side loop.
func (service *Service) TotalForAccount(ctx context.Context, accountRef AccountRef) (int64, error) {
	total, err := service.store.SumSuccessful(ctx, accountRef.String())
	if err != nil {
		service.logOperation(ctx, OperationLog{
			Operation: operationTotal,
			AccountID: accountRef.String(),
			Error:     err,
		})
		return 0, err
	}
	return total, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func accountRefValue(accountRef *AccountRef) string {
	if accountRef == nil {
		return ""
	}
	return accountRef.String()
}
