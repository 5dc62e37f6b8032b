package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Member represents the members table (alumni accounts).
type Member struct {
	AccountID    string  `gorm:"type:uuid;primaryKey"`
	Email        string  `gorm:"not null;index:uniq_members_email,unique"`
	Verified     bool    `gorm:"not null;default:false"`
	PasswordHash string  `gorm:""`
	OTPCode      string  `gorm:""`
	OTPExpiresAt *time.Time
	DisplayName  string         `gorm:""`
	Phone        string         `gorm:""`
	Achievements string         `gorm:""`
	MediaURLs    datatypes.JSON `gorm:""`
	Links        datatypes.JSON `gorm:""`
	ClassYear    int            `gorm:""`
	Degree       string         `gorm:""`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func (Member) TableName() string { return "members" }

func (member *Member) BeforeCreate(tx *gorm.DB) error {
	if member.AccountID == "" {
		member.AccountID = uuid.NewString()
	}
	return nil
}

// Staff represents the staff table (faculty accounts).
type Staff struct {
	AccountID    string  `gorm:"type:uuid;primaryKey"`
	Email        string  `gorm:"not null;index:uniq_staff_email,unique"`
	Verified     bool    `gorm:"not null;default:false"`
	PasswordHash string  `gorm:""`
	OTPCode      string  `gorm:""`
	OTPExpiresAt *time.Time
	DisplayName  string         `gorm:""`
	Phone        string         `gorm:""`
	Achievements string         `gorm:""`
	MediaURLs    datatypes.JSON `gorm:""`
	Links        datatypes.JSON `gorm:""`
	Department   string         `gorm:""`
	Designation  string         `gorm:""`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func (Staff) TableName() string { return "staff" }

func (staff *Staff) BeforeCreate(tx *gorm.DB) error {
	if staff.AccountID == "" {
		staff.AccountID = uuid.NewString()
	}
	return nil
}

// PaymentEntry mirrors the payment_entries table. order_ref and payment_ref
// are nullable so the unique indexes treat absent refs as distinct.
type PaymentEntry struct {
	EntryID     string         `gorm:"type:uuid;primaryKey"`
	OrderRef    *string        `gorm:"index:uniq_payment_order_ref,unique"`
	PaymentRef  *string        `gorm:"index:uniq_payment_payment_ref,unique"`
	Signature   string         `gorm:""`
	AmountPaise int64          `gorm:"not null"`
	Currency    string         `gorm:"not null"`
	AccountID   *string        `gorm:"index:idx_payment_account_status,priority:1"`
	Payer       datatypes.JSON `gorm:""`
	Status      string         `gorm:"not null;index:idx_payment_account_status,priority:2"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

func (PaymentEntry) TableName() string { return "payment_entries" }

func (entry *PaymentEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// Event represents the events table.
type Event struct {
	EventID     string    `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:""`
	Venue       string    `gorm:""`
	StartsAt    time.Time `gorm:"not null;index"`
	FeePaise    int64     `gorm:"not null"`
	CreatedBy   string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (Event) TableName() string { return "events" }

func (event *Event) BeforeCreate(tx *gorm.DB) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return nil
}

// EventRegistration links an account's paid registration to an event. One
// registration per account per event; the order ref ties it to the ledger.
type EventRegistration struct {
	RegistrationID string    `gorm:"type:uuid;primaryKey"`
	EventID        string    `gorm:"not null;index:uniq_event_account,unique,priority:1"`
	AccountID      string    `gorm:"not null;index:uniq_event_account,unique,priority:2"`
	OrderRef       string    `gorm:"not null;index"`
	Status         string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (EventRegistration) TableName() string { return "event_registrations" }

func (registration *EventRegistration) BeforeCreate(tx *gorm.DB) error {
	if registration.RegistrationID == "" {
		registration.RegistrationID = uuid.NewString()
	}
	return nil
}

// JobPosting represents the job_postings table.
type JobPosting struct {
	JobID       string    `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"not null"`
	Company     string    `gorm:"not null"`
	Location    string    `gorm:""`
	Description string    `gorm:""`
	ApplyURL    string    `gorm:""`
	PostedBy    string    `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (JobPosting) TableName() string { return "job_postings" }

func (job *JobPosting) BeforeCreate(tx *gorm.DB) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	return nil
}

// SiteCounter is the append-only counter record for the site-wide visit
// tally (find-and-increment pattern).
type SiteCounter struct {
	Name      string    `gorm:"primaryKey"`
	Count     int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (SiteCounter) TableName() string { return "site_counters" }

// Models lists every table for schema migration.
func Models() []any {
	return []any{
		&Member{},
		&Staff{},
		&PaymentEntry{},
		&Event{},
		&EventRegistration{},
		&JobPosting{},
		&SiteCounter{},
	}
}
