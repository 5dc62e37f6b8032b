package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AlumNetLabs/alumnet/pkg/directory"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GetMemberByID looks up a member account.
func (store *Store) GetMemberByID(ctx context.Context, accountID string) (directory.Account, error) {
	var model Member
	err := store.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return directory.Account{}, fmt.Errorf("%w: member %s", directory.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return directory.Account{}, err
	}
	return mapMember(model)
}

// GetStaffByID looks up a staff account.
func (store *Store) GetStaffByID(ctx context.Context, accountID string) (directory.Account, error) {
	var model Staff
	err := store.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return directory.Account{}, fmt.Errorf("%w: staff %s", directory.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return directory.Account{}, err
	}
	return mapStaff(model)
}

// GetMemberByEmail looks up a member account by normalized email.
func (store *Store) GetMemberByEmail(ctx context.Context, email string) (directory.Account, error) {
	var model Member
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return directory.Account{}, fmt.Errorf("%w: member email", directory.ErrAccountNotFound)
	}
	if err != nil {
		return directory.Account{}, err
	}
	return mapMember(model)
}

// GetStaffByEmail looks up a staff account by normalized email.
func (store *Store) GetStaffByEmail(ctx context.Context, email string) (directory.Account, error) {
	var model Staff
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return directory.Account{}, fmt.Errorf("%w: staff email", directory.ErrAccountNotFound)
	}
	if err != nil {
		return directory.Account{}, err
	}
	return mapStaff(model)
}

// CreateMember inserts a new member account. The unique email index reports
// a duplicate across the member collection; callers resolve the staff side
// through the resolver before creating.
func (store *Store) CreateMember(ctx context.Context, account directory.Account) (directory.Account, error) {
	model, err := memberModel(account)
	if err != nil {
		return directory.Account{}, err
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return directory.Account{}, fmt.Errorf("%w: %s", directory.ErrDuplicateEmail, account.Email)
	}
	if err != nil {
		return directory.Account{}, err
	}
	return mapMember(model)
}

// SaveMember persists the full member record, creating it when the
// account id is new.
func (store *Store) SaveMember(ctx context.Context, account directory.Account) error {
	model, err := memberModel(account)
	if err != nil {
		return err
	}
	return upsertByAccountID(store.db.WithContext(ctx), &Member{}, model.AccountID, &model, memberAssignments(model))
}

// SaveStaff persists the full staff record, creating it when the account
// id is new.
func (store *Store) SaveStaff(ctx context.Context, account directory.Account) error {
	model, err := staffModel(account)
	if err != nil {
		return err
	}
	return upsertByAccountID(store.db.WithContext(ctx), &Staff{}, model.AccountID, &model, staffAssignments(model))
}

// upsertByAccountID updates the mutable columns of an existing row and
// inserts the model when the account id is unknown. Column maps keep zero
// values from being silently skipped.
func upsertByAccountID(db *gorm.DB, table any, accountID string, model any, assignments map[string]any) error {
	result := db.Model(table).Where("account_id = ?", accountID).Updates(assignments)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.Create(model).Error
	}
	return nil
}

func memberAssignments(model Member) map[string]any {
	assignments := profileAssignments(model.Email, model.Verified, model.PasswordHash, model.OTPCode, model.OTPExpiresAt,
		model.DisplayName, model.Phone, model.Achievements, model.MediaURLs, model.Links)
	assignments["class_year"] = model.ClassYear
	assignments["degree"] = model.Degree
	return assignments
}

func staffAssignments(model Staff) map[string]any {
	assignments := profileAssignments(model.Email, model.Verified, model.PasswordHash, model.OTPCode, model.OTPExpiresAt,
		model.DisplayName, model.Phone, model.Achievements, model.MediaURLs, model.Links)
	assignments["department"] = model.Department
	assignments["designation"] = model.Designation
	return assignments
}

func profileAssignments(email string, verified bool, passwordHash string, otpCode string, otpExpiresAt *time.Time,
	displayName string, phone string, achievements string, mediaURLs datatypes.JSON, links datatypes.JSON) map[string]any {
	return map[string]any{
		"email":          email,
		"verified":       verified,
		"password_hash":  passwordHash,
		"otp_code":       otpCode,
		"otp_expires_at": otpExpiresAt,
		"display_name":   displayName,
		"phone":          phone,
		"achievements":   achievements,
		"media_urls":     mediaURLs,
		"links":          links,
		"updated_at":     time.Now().UTC(),
	}
}

func memberModel(account directory.Account) (Member, error) {
	mediaURLs, links, err := marshalProfileJSON(account)
	if err != nil {
		return Member{}, err
	}
	return Member{
		AccountID:    account.AccountID,
		Email:        account.Email,
		Verified:     account.Verified,
		PasswordHash: account.PasswordHash,
		OTPCode:      account.OTPCode,
		OTPExpiresAt: unixToTime(account.OTPExpiresUnixUTC),
		DisplayName:  account.DisplayName,
		Phone:        account.Phone,
		Achievements: account.Achievements,
		MediaURLs:    mediaURLs,
		Links:        links,
		ClassYear:    account.ClassYear,
		Degree:       account.Degree,
	}, nil
}

func staffModel(account directory.Account) (Staff, error) {
	mediaURLs, links, err := marshalProfileJSON(account)
	if err != nil {
		return Staff{}, err
	}
	return Staff{
		AccountID:    account.AccountID,
		Email:        account.Email,
		Verified:     account.Verified,
		PasswordHash: account.PasswordHash,
		OTPCode:      account.OTPCode,
		OTPExpiresAt: unixToTime(account.OTPExpiresUnixUTC),
		DisplayName:  account.DisplayName,
		Phone:        account.Phone,
		Achievements: account.Achievements,
		MediaURLs:    mediaURLs,
		Links:        links,
		Department:   account.Department,
		Designation:  account.Designation,
	}, nil
}

func mapMember(model Member) (directory.Account, error) {
	mediaURLs, links, err := unmarshalProfileJSON(model.MediaURLs, model.Links)
	if err != nil {
		return directory.Account{}, err
	}
	return directory.Account{
		AccountID:         model.AccountID,
		Email:             model.Email,
		Verified:          model.Verified,
		PasswordHash:      model.PasswordHash,
		OTPCode:           model.OTPCode,
		OTPExpiresUnixUTC: timeToUnix(model.OTPExpiresAt),
		DisplayName:       model.DisplayName,
		Phone:             model.Phone,
		Achievements:      model.Achievements,
		MediaURLs:         mediaURLs,
		Links:             links,
		ClassYear:         model.ClassYear,
		Degree:            model.Degree,
	}, nil
}

func mapStaff(model Staff) (directory.Account, error) {
	mediaURLs, links, err := unmarshalProfileJSON(model.MediaURLs, model.Links)
	if err != nil {
		return directory.Account{}, err
	}
	return directory.Account{
		AccountID:         model.AccountID,
		Email:             model.Email,
		Verified:          model.Verified,
		PasswordHash:      model.PasswordHash,
		OTPCode:           model.OTPCode,
		OTPExpiresUnixUTC: timeToUnix(model.OTPExpiresAt),
		DisplayName:       model.DisplayName,
		Phone:             model.Phone,
		Achievements:      model.Achievements,
		MediaURLs:         mediaURLs,
		Links:             links,
		Department:        model.Department,
		Designation:       model.Designation,
	}, nil
}

func marshalProfileJSON(account directory.Account) ([]byte, []byte, error) {
	mediaURLs, err := json.Marshal(orEmptySlice(account.MediaURLs))
	if err != nil {
		return nil, nil, err
	}
	links, err := json.Marshal(orEmptyMap(account.Links))
	if err != nil {
		return nil, nil, err
	}
	return mediaURLs, links, nil
}

func unmarshalProfileJSON(rawMediaURLs []byte, rawLinks []byte) ([]string, map[string]string, error) {
	mediaURLs := []string{}
	if len(rawMediaURLs) > 0 {
		if err := json.Unmarshal(rawMediaURLs, &mediaURLs); err != nil {
			return nil, nil, err
		}
	}
	links := map[string]string{}
	if len(rawLinks) > 0 {
		if err := json.Unmarshal(rawLinks, &links); err != nil {
			return nil, nil, err
		}
	}
	return mediaURLs, links, nil
}

func orEmptySlice(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyMap(values map[string]string) map[string]string {
	if values == nil {
		return map[string]string{}
	}
	return values
}

func unixToTime(unixUTC int64) *time.Time {
	if unixUTC == 0 {
		return nil
	}
	value := time.Unix(unixUTC, 0).UTC()
	return &value
}

func timeToUnix(value *time.Time) int64 {
	if value == nil {
		return 0
	}
	return value.Unix()
}
