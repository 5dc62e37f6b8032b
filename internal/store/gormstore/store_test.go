package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/AlumNetLabs/alumnet/pkg/directory"
	"github.com/AlumNetLabs/alumnet/pkg/payments"
)

func openTestStore(test *testing.T) *Store {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(test.TempDir()+"/alumnet.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		test.Fatalf("automigrate failed: %v", err)
	}
	return New(db)
}

func mustAmount(test *testing.T, raw int64) payments.AmountPaise {
	test.Helper()
	amount, err := payments.NewAmountPaise(raw)
	if err != nil {
		test.Fatalf("amount init failed: %v", err)
	}
	return amount
}

func pendingEntry(test *testing.T, orderRef string, accountID string, amount int64) payments.Entry {
	test.Helper()
	return payments.Entry{
		OrderRef:       orderRef,
		AmountPaise:    mustAmount(test, amount),
		Currency:       "INR",
		AccountID:      accountID,
		Status:         payments.EntryStatusCreated,
		CreatedUnixUTC: 1700000000,
		UpdatedUnixUTC: 1700000000,
	}
}

func directEntry(test *testing.T, paymentRef string, accountID string, amount int64) payments.Entry {
	test.Helper()
	return payments.Entry{
		PaymentRef:     paymentRef,
		AmountPaise:    mustAmount(test, amount),
		Currency:       "INR",
		AccountID:      accountID,
		Payer:          payments.PayerSnapshot{Name: "Asha Rao", Email: "asha@example.com"},
		Status:         payments.EntryStatusSuccess,
		CreatedUnixUTC: 1700000000,
		UpdatedUnixUTC: 1700000000,
	}
}

func TestInsertEntryRejectsDuplicateOrderRef(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	first, err := store.InsertEntry(ctx, pendingEntry(test, "order_dup", "acct-1", 12500))
	if err != nil {
		test.Fatalf("first insert failed: %v", err)
	}
	if first.EntryID == "" {
		test.Fatal("expected generated entry id")
	}
	_, err = store.InsertEntry(ctx, pendingEntry(test, "order_dup", "acct-2", 900))
	if !errors.Is(err, payments.ErrDuplicateOrder) {
		test.Fatalf("expected duplicate order error, got %v", err)
	}
}

func TestInsertEntryRejectsDuplicatePaymentRef(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	if _, err := store.InsertEntry(ctx, directEntry(test, "pay_dup", "acct-1", 5000)); err != nil {
		test.Fatalf("first insert failed: %v", err)
	}
	_, err := store.InsertEntry(ctx, directEntry(test, "pay_dup", "acct-1", 5000))
	if !errors.Is(err, payments.ErrDuplicatePayment) {
		test.Fatalf("expected duplicate payment error, got %v", err)
	}
}

func TestEntriesWithoutRefsDoNotCollide(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	first := directEntry(test, "pay_a", "", 100)
	second := directEntry(test, "pay_b", "", 200)
	if _, err := store.InsertEntry(ctx, first); err != nil {
		test.Fatalf("first anonymous insert failed: %v", err)
	}
	if _, err := store.InsertEntry(ctx, second); err != nil {
		test.Fatalf("second anonymous insert failed: %v", err)
	}
}

func TestGetByOrderRefMiss(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)

	_, err := store.GetByOrderRef(context.Background(), "order_absent")
	if !errors.Is(err, payments.ErrOrderNotFound) {
		test.Fatalf("expected order not found, got %v", err)
	}
}

func TestSettleEntryIsMonotonic(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	if _, err := store.InsertEntry(ctx, pendingEntry(test, "order_settle", "acct-1", 7500)); err != nil {
		test.Fatalf("insert failed: %v", err)
	}
	settled, err := store.SettleEntry(ctx, "order_settle", "pay_settle", "sig", payments.EntryStatusSuccess, 1700000100)
	if err != nil {
		test.Fatalf("settle failed: %v", err)
	}
	if !settled {
		test.Fatal("expected first settle to update the row")
	}

	again, err := store.SettleEntry(ctx, "order_settle", "pay_other", "sig2", payments.EntryStatusFailed, 1700000200)
	if err != nil {
		test.Fatalf("second settle failed: %v", err)
	}
	if again {
		test.Fatal("expected settle on terminal row to be a no-op")
	}

	entry, err := store.GetByOrderRef(ctx, "order_settle")
	if err != nil {
		test.Fatalf("get failed: %v", err)
	}
	if entry.Status != payments.EntryStatusSuccess {
		test.Fatalf("expected status success, got %s", entry.Status)
	}
	if entry.PaymentRef != "pay_settle" {
		test.Fatalf("expected winning payment ref retained, got %q", entry.PaymentRef)
	}
}

func TestSumSuccessfulAggregatesOnlySuccessfulRows(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	if _, err := store.InsertEntry(ctx, directEntry(test, "pay_1", "acct-sum", 50000)); err != nil {
		test.Fatalf("insert failed: %v", err)
	}
	if _, err := store.InsertEntry(ctx, directEntry(test, "pay_2", "acct-sum", 25000)); err != nil {
		test.Fatalf("insert failed: %v", err)
	}
	if _, err := store.InsertEntry(ctx, pendingEntry(test, "order_open", "acct-sum", 90000)); err != nil {
		test.Fatalf("insert failed: %v", err)
	}
	if _, err := store.InsertEntry(ctx, directEntry(test, "pay_3", "acct-other", 11111)); err != nil {
		test.Fatalf("insert failed: %v", err)
	}

	total, err := store.SumSuccessful(ctx, "acct-sum")
	if err != nil {
		test.Fatalf("sum failed: %v", err)
	}
	if total != 75000 {
		test.Fatalf("expected 75000, got %d", total)
	}

	empty, err := store.SumSuccessful(ctx, "acct-none")
	if err != nil {
		test.Fatalf("sum failed: %v", err)
	}
	if empty != 0 {
		test.Fatalf("expected zero total, got %d", empty)
	}
}

func TestCreateMemberRejectsDuplicateEmail(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	created, err := store.CreateMember(ctx, directory.Account{Email: "ravi@example.com", DisplayName: "Ravi"})
	if err != nil {
		test.Fatalf("create failed: %v", err)
	}
	if created.AccountID == "" {
		test.Fatal("expected generated account id")
	}
	_, err = store.CreateMember(ctx, directory.Account{Email: "ravi@example.com"})
	if !errors.Is(err, directory.ErrDuplicateEmail) {
		test.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestMemberProfileSurvivesRoundTrip(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	created, err := store.CreateMember(ctx, directory.Account{
		Email:       "maya@example.com",
		DisplayName: "Maya",
		ClassYear:   2015,
		Degree:      "B.Tech",
	})
	if err != nil {
		test.Fatalf("create failed: %v", err)
	}

	created.Verified = true
	created.PasswordHash = "hash"
	created.OTPCode = "482913"
	created.OTPExpiresUnixUTC = time.Now().Add(10 * time.Minute).UTC().Unix()
	created.MediaURLs = []string{"https://cdn.example.com/maya/1.jpg"}
	created.Links = map[string]string{"linkedin": "https://linkedin.com/in/maya"}
	if err := store.SaveMember(ctx, created); err != nil {
		test.Fatalf("save failed: %v", err)
	}

	loaded, err := store.GetMemberByID(ctx, created.AccountID)
	if err != nil {
		test.Fatalf("get failed: %v", err)
	}
	if !loaded.Verified {
		test.Fatal("expected verified flag to persist")
	}
	if loaded.OTPCode != "482913" {
		test.Fatalf("expected otp code to persist, got %q", loaded.OTPCode)
	}
	if len(loaded.MediaURLs) != 1 || loaded.MediaURLs[0] != "https://cdn.example.com/maya/1.jpg" {
		test.Fatalf("unexpected media urls: %v", loaded.MediaURLs)
	}
	if loaded.Links["linkedin"] != "https://linkedin.com/in/maya" {
		test.Fatalf("unexpected links: %v", loaded.Links)
	}
	if loaded.ClassYear != 2015 {
		test.Fatalf("expected class year 2015, got %d", loaded.ClassYear)
	}
}

func TestGetStaffByEmailMiss(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)

	_, err := store.GetStaffByEmail(context.Background(), "absent@example.com")
	if !errors.Is(err, directory.ErrAccountNotFound) {
		test.Fatalf("expected account not found, got %v", err)
	}
}

func TestCreateRegistrationRejectsSecondRegistration(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	event, err := store.CreateEvent(ctx, Event{
		Title:     "Annual Reunion",
		StartsAt:  time.Now().Add(72 * time.Hour).UTC(),
		FeePaise:  150000,
		CreatedBy: "acct-admin",
	})
	if err != nil {
		test.Fatalf("event create failed: %v", err)
	}

	first, err := store.CreateRegistration(ctx, EventRegistration{
		EventID:   event.EventID,
		AccountID: "acct-1",
		OrderRef:  "order_reg_1",
	})
	if err != nil {
		test.Fatalf("registration failed: %v", err)
	}
	if first.Status != registrationStatusPending {
		test.Fatalf("expected pending status, got %q", first.Status)
	}

	_, err = store.CreateRegistration(ctx, EventRegistration{
		EventID:   event.EventID,
		AccountID: "acct-1",
		OrderRef:  "order_reg_2",
	})
	if !errors.Is(err, ErrDuplicateRegistration) {
		test.Fatalf("expected duplicate registration error, got %v", err)
	}
}

func TestConfirmRegistrationByOrderRef(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	event, err := store.CreateEvent(ctx, Event{
		Title:     "Guest Lecture",
		StartsAt:  time.Now().Add(24 * time.Hour).UTC(),
		CreatedBy: "acct-admin",
	})
	if err != nil {
		test.Fatalf("event create failed: %v", err)
	}
	if _, err := store.CreateRegistration(ctx, EventRegistration{
		EventID:   event.EventID,
		AccountID: "acct-2",
		OrderRef:  "order_conf",
	}); err != nil {
		test.Fatalf("registration failed: %v", err)
	}

	confirmed, err := store.ConfirmRegistrationByOrderRef(ctx, "order_conf")
	if err != nil {
		test.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Status != RegistrationStatusConfirmed {
		test.Fatalf("expected confirmed status, got %q", confirmed.Status)
	}

	_, err = store.ConfirmRegistrationByOrderRef(ctx, "order_absent")
	if !errors.Is(err, ErrRegistrationNotFound) {
		test.Fatalf("expected registration not found, got %v", err)
	}
}

func TestJobLifecycle(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	created, err := store.CreateJob(ctx, JobPosting{
		Title:    "Backend Engineer",
		Company:  "Acme",
		PostedBy: "acct-1",
	})
	if err != nil {
		test.Fatalf("job create failed: %v", err)
	}

	jobs, err := store.ListJobs(ctx)
	if err != nil {
		test.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 1 {
		test.Fatalf("expected one posting, got %d", len(jobs))
	}

	if err := store.DeleteJob(ctx, created.JobID); err != nil {
		test.Fatalf("delete failed: %v", err)
	}
	if err := store.DeleteJob(ctx, created.JobID); !errors.Is(err, ErrJobNotFound) {
		test.Fatalf("expected job not found, got %v", err)
	}
}

func TestIncrementVisitsCountsSequentially(test *testing.T) {
	test.Parallel()
	store := openTestStore(test)
	ctx := context.Background()

	for expected := int64(1); expected <= 3; expected++ {
		count, err := store.IncrementVisits(ctx, "homepage")
		if err != nil {
			test.Fatalf("increment failed: %v", err)
		}
		if count != expected {
			test.Fatalf("expected count %d, got %d", expected, count)
		}
	}
}
