package pgstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlumNetLabs/alumnet/pkg/payments"
)

const (
	constraintOrderRef    = "uniq_payment_order_ref"
	constraintPaymentRef  = "uniq_payment_payment_ref"
	pgUniqueViolationCode = "23505"
	errorOperationStore   = "store"
	errorSubjectEntry     = "entry"
	errorSubjectTotal     = "total"
	errorCodeDuplicate    = "duplicate"
	errorCodeGet          = "get"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeSettle       = "settle"
	errorCodeSum          = "sum"

	sqlInsertEntry = `
		insert into payment_entries(
			entry_id, order_ref, payment_ref, signature, amount_paise, currency, account_id, payer, status, created_at, updated_at
		)
		values(
			gen_random_uuid(),
			nullif($1,''), nullif($2,''),
			$3, $4, $5,
			nullif($6,''),
			coalesce(nullif($7,''),'{}')::jsonb,
			$8,
			to_timestamp($9), to_timestamp($10)
		)
		returning entry_id::text
	`

	sqlSelectEntry = `
		select
			entry_id::text,
			coalesce(order_ref,''),
			coalesce(payment_ref,''),
			signature,
			amount_paise,
			currency,
			coalesce(account_id,''),
			coalesce(payer::text,'{}'),
			status,
			extract(epoch from created_at)::bigint,
			extract(epoch from updated_at)::bigint
		from payment_entries
	`

	sqlSelectByOrderRef   = sqlSelectEntry + ` where order_ref = $1`
	sqlSelectByPaymentRef = sqlSelectEntry + ` where payment_ref = $1`

	sqlSettleEntry = `
		update payment_entries
		set payment_ref = $2, signature = $3, status = $4, updated_at = to_timestamp($5)
		where order_ref = $1 and status = 'created'
	`

	sqlSumSuccessful = `
		select coalesce(sum(amount_paise),0) from payment_entries
		where account_id = $1 and status = 'success'
	`
)

// Store implements payments.Store using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (store *Store) InsertEntry(ctx context.Context, entry payments.Entry) (payments.Entry, error) {
	payerJSON, err := json.Marshal(entry.Payer)
	if err != nil {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	var entryIDValue string
	err = store.pool.QueryRow(ctx, sqlInsertEntry,
		entry.OrderRef,
		entry.PaymentRef,
		entry.Signature,
		entry.AmountPaise.Int64(),
		entry.Currency,
		entry.AccountID,
		string(payerJSON),
		entry.Status.String(),
		entry.CreatedUnixUTC,
		entry.UpdatedUnixUTC,
	).Scan(&entryIDValue)
	if isUniqueViolation(err, constraintOrderRef) {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeDuplicate, payments.ErrDuplicateOrder)
	}
	if isUniqueViolation(err, constraintPaymentRef) {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeDuplicate, payments.ErrDuplicatePayment)
	}
	if err != nil {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	entry.EntryID = entryIDValue
	return entry, nil
}

func (store *Store) GetByOrderRef(ctx context.Context, orderRef string) (payments.Entry, error) {
	entry, err := store.queryEntry(ctx, sqlSelectByOrderRef, orderRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, payments.ErrOrderNotFound)
	}
	return entry, err
}

func (store *Store) GetByPaymentRef(ctx context.Context, paymentRef string) (payments.Entry, error) {
	entry, err := store.queryEntry(ctx, sqlSelectByPaymentRef, paymentRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, payments.ErrPaymentNotFound)
	}
	return entry, err
}

// SettleEntry runs the guarded update so terminal rows are never rewritten.
func (store *Store) SettleEntry(ctx context.Context, orderRef string, paymentRef string, signature string, status payments.EntryStatus, updatedUnixUTC int64) (bool, error) {
	tag, err := store.pool.Exec(ctx, sqlSettleEntry, orderRef, paymentRef, signature, status.String(), updatedUnixUTC)
	if err != nil {
		return false, wrapStoreError(errorSubjectEntry, errorCodeSettle, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (store *Store) SumSuccessful(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	if err := store.pool.QueryRow(ctx, sqlSumSuccessful, accountID).Scan(&sum); err != nil {
		return 0, wrapStoreError(errorSubjectTotal, errorCodeSum, err)
	}
	return sum, nil
}

func (store *Store) queryEntry(ctx context.Context, query string, ref string) (payments.Entry, error) {
	var (
		entryIDValue    string
		orderRefValue   string
		paymentRefValue string
		signatureValue  string
		amountValue     int64
		currencyValue   string
		accountIDValue  string
		payerValue      string
		statusValue     string
		createdUnixUTC  int64
		updatedUnixUTC  int64
	)
	err := store.pool.QueryRow(ctx, query, ref).Scan(
		&entryIDValue,
		&orderRefValue,
		&paymentRefValue,
		&signatureValue,
		&amountValue,
		&currencyValue,
		&accountIDValue,
		&payerValue,
		&statusValue,
		&createdUnixUTC,
		&updatedUnixUTC,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return payments.Entry{}, err
	}
	if err != nil {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	amount, err := payments.NewAmountPaise(amountValue)
	if err != nil {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	status, err := payments.ParseEntryStatus(statusValue)
	if err != nil {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	var payer payments.PayerSnapshot
	if err := json.Unmarshal([]byte(payerValue), &payer); err != nil {
		return payments.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return payments.Entry{
		EntryID:        entryIDValue,
		OrderRef:       orderRefValue,
		PaymentRef:     paymentRefValue,
		Signature:      signatureValue,
		AmountPaise:    amount,
		Currency:       currencyValue,
		AccountID:      accountIDValue,
		Payer:          payer,
		Status:         status,
		CreatedUnixUTC: createdUnixUTC,
		UpdatedUnixUTC: updatedUnixUTC,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return payments.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintName
	}
	return false
}
