package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/AlumNetLabs/alumnet/pkg/payments"
	"gorm.io/gorm"
)

// InsertEntry stores a new ledger entry. Unique indexes on order_ref and
// payment_ref are the at-most-once guarantee; a violation is reported as the
// duplicate sentinel matching whichever ref the entry carried.
func (store *Store) InsertEntry(ctx context.Context, entry payments.Entry) (payments.Entry, error) {
	model, err := paymentEntryModel(entry)
	if err != nil {
		return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeInsert, err)
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		if entry.OrderRef != "" {
			return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeDuplicate, payments.ErrDuplicateOrder)
		}
		return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeDuplicate, payments.ErrDuplicatePayment)
	}
	if err != nil {
		return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeInsert, err)
	}
	return mapPaymentEntry(model)
}

// GetByOrderRef fetches the entry owning an order ref.
func (store *Store) GetByOrderRef(ctx context.Context, orderRef string) (payments.Entry, error) {
	var model PaymentEntry
	err := store.db.WithContext(ctx).Where("order_ref = ?", orderRef).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeGet, payments.ErrOrderNotFound)
	}
	if err != nil {
		return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeGet, err)
	}
	return mapPaymentEntry(model)
}

// GetByPaymentRef fetches the entry owning a payment ref.
func (store *Store) GetByPaymentRef(ctx context.Context, paymentRef string) (payments.Entry, error) {
	var model PaymentEntry
	err := store.db.WithContext(ctx).Where("payment_ref = ?", paymentRef).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeGet, payments.ErrPaymentNotFound)
	}
	if err != nil {
		return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeGet, err)
	}
	return mapPaymentEntry(model)
}

// SettleEntry performs the guarded monotonic transition created -> terminal.
// The WHERE status clause makes the update a no-op against terminal rows.
func (store *Store) SettleEntry(ctx context.Context, orderRef string, paymentRef string, signature string, status payments.EntryStatus, updatedUnixUTC int64) (bool, error) {
	result := store.db.WithContext(ctx).
		Model(&PaymentEntry{}).
		Where("order_ref = ? AND status = ?", orderRef, payments.EntryStatusCreated.String()).
		Updates(map[string]any{
			"payment_ref": paymentRef,
			"signature":   signature,
			"status":      status.String(),
			"updated_at":  time.Unix(updatedUnixUTC, 0).UTC(),
		})
	if result.Error != nil {
		return false, wrapPaymentError(errorSubjectEntry, errorCodeSettle, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SumSuccessful aggregates successful amounts for one account in a single
// database-level read.
func (store *Store) SumSuccessful(ctx context.Context, accountID string) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&PaymentEntry{}).
		Select("coalesce(sum(amount_paise),0) as total").
		Where("account_id = ?", accountID).
		Where("status = ?", payments.EntryStatusSuccess.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapPaymentError(errorSubjectTotal, errorCodeSum, err)
	}
	return sum.Total, nil
}

type sqlSum struct {
	Total int64
}

func wrapPaymentError(subject string, code string, err error) error {
	return payments.WrapError(errorOperationStore, subject, code, err)
}

func paymentEntryModel(entry payments.Entry) (PaymentEntry, error) {
	payer, err := json.Marshal(entry.Payer)
	if err != nil {
		return PaymentEntry{}, err
	}
	model := PaymentEntry{
		EntryID:     entry.EntryID,
		Signature:   entry.Signature,
		AmountPaise: entry.AmountPaise.Int64(),
		Currency:    entry.Currency,
		Payer:       payer,
		Status:      entry.Status.String(),
		CreatedAt:   time.Unix(entry.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:   time.Unix(entry.UpdatedUnixUTC, 0).UTC(),
	}
	if entry.OrderRef != "" {
		value := entry.OrderRef
		model.OrderRef = &value
	}
	if entry.PaymentRef != "" {
		value := entry.PaymentRef
		model.PaymentRef = &value
	}
	if entry.AccountID != "" {
		value := entry.AccountID
		model.AccountID = &value
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	return model, nil
}

func mapPaymentEntry(model PaymentEntry) (payments.Entry, error) {
	status, err := payments.ParseEntryStatus(model.Status)
	if err != nil {
		return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeGet, err)
	}
	var payer payments.PayerSnapshot
	if len(model.Payer) > 0 {
		if err := json.Unmarshal(model.Payer, &payer); err != nil {
			return payments.Entry{}, wrapPaymentError(errorSubjectEntry, errorCodeGet, err)
		}
	}
	return payments.Entry{
		EntryID:        model.EntryID,
		OrderRef:       stringOrEmpty(model.OrderRef),
		PaymentRef:     stringOrEmpty(model.PaymentRef),
		Signature:      model.Signature,
		AmountPaise:    payments.AmountPaise(model.AmountPaise),
		Currency:       model.Currency,
		AccountID:      stringOrEmpty(model.AccountID),
		Payer:          payer,
		Status:         status,
		CreatedUnixUTC: model.CreatedAt.Unix(),
		UpdatedUnixUTC: model.UpdatedAt.Unix(),
	}, nil
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
