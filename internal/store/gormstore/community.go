package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sentinel errors for the community tables.
var (
	ErrEventNotFound         = errors.New("event not found")
	ErrJobNotFound           = errors.New("job not found")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrDuplicateRegistration = errors.New("duplicate registration")
)

// Registration lifecycle statuses. A registration is pending until the
// payment entry behind its order ref settles successfully.
const (
	registrationStatusPending   = "pending"
	RegistrationStatusConfirmed = "confirmed"
)

// CreateEvent inserts a new event.
func (store *Store) CreateEvent(ctx context.Context, event Event) (Event, error) {
	if err := store.db.WithContext(ctx).Create(&event).Error; err != nil {
		return Event{}, err
	}
	return event, nil
}

// ListEvents returns upcoming events first.
func (store *Store) ListEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	err := store.db.WithContext(ctx).Order("starts_at ASC").Find(&events).Error
	return events, err
}

// GetEvent fetches one event.
func (store *Store) GetEvent(ctx context.Context, eventID string) (Event, error) {
	var event Event
	err := store.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, ErrEventNotFound
	}
	return event, err
}

// CreateRegistration inserts a pending registration. The unique
// (event, account) index rejects double registration.
func (store *Store) CreateRegistration(ctx context.Context, registration EventRegistration) (EventRegistration, error) {
	if registration.Status == "" {
		registration.Status = registrationStatusPending
	}
	err := store.db.WithContext(ctx).Create(&registration).Error
	if isUniqueViolation(err) {
		return EventRegistration{}, ErrDuplicateRegistration
	}
	if err != nil {
		return EventRegistration{}, err
	}
	return registration, nil
}

// ConfirmRegistrationByOrderRef flips the registration tied to a settled
// payment order to confirmed.
func (store *Store) ConfirmRegistrationByOrderRef(ctx context.Context, orderRef string) (EventRegistration, error) {
	var registration EventRegistration
	err := store.db.WithContext(ctx).Where("order_ref = ?", orderRef).Take(&registration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return EventRegistration{}, ErrRegistrationNotFound
	}
	if err != nil {
		return EventRegistration{}, err
	}
	registration.Status = RegistrationStatusConfirmed
	if err := store.db.WithContext(ctx).Save(&registration).Error; err != nil {
		return EventRegistration{}, err
	}
	return registration, nil
}

// CreateJob inserts a job posting.
func (store *Store) CreateJob(ctx context.Context, job JobPosting) (JobPosting, error) {
	if err := store.db.WithContext(ctx).Create(&job).Error; err != nil {
		return JobPosting{}, err
	}
	return job, nil
}

// ListJobs returns postings newest first.
func (store *Store) ListJobs(ctx context.Context) ([]JobPosting, error) {
	var jobs []JobPosting
	err := store.db.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// GetJob fetches one posting.
func (store *Store) GetJob(ctx context.Context, jobID string) (JobPosting, error) {
	var job JobPosting
	err := store.db.WithContext(ctx).Where("job_id = ?", jobID).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return JobPosting{}, ErrJobNotFound
	}
	return job, err
}

// DeleteJob removes one posting.
func (store *Store) DeleteJob(ctx context.Context, jobID string) error {
	result := store.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&JobPosting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// IncrementVisits bumps the named site counter atomically and returns the
// new tally (find-and-increment, no application-level read-modify-write).
func (store *Store) IncrementVisits(ctx context.Context, name string) (int64, error) {
	now := time.Now().UTC()
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("site_counters.count + 1"),
				"updated_at": now,
			}),
		}).
		Create(&SiteCounter{Name: name, Count: 1, UpdatedAt: now}).Error
	if err != nil {
		return 0, err
	}
	var counter SiteCounter
	if err := store.db.WithContext(ctx).Where("name = ?", name).Take(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Count, nil
}
