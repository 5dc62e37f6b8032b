package directory

import "context"

// Variant tags which account collection owns a record.
type Variant string

const (
	VariantMember Variant = "member"
	VariantStaff  Variant = "staff"
)

// String returns the stored variant tag.
func (variant Variant) String() string {
	return string(variant)
}

// Account is the normalized record shared by both variants. Variant-specific
// fields are zero-valued on the other variant.
type Account struct {
	AccountID         string
	Email             string
	Verified          bool
	PasswordHash      string
	OTPCode           string
	OTPExpiresUnixUTC int64

	DisplayName  string
	Phone        string
	Achievements string
	MediaURLs    []string
	Links        map[string]string

	// Member discriminators.
	ClassYear int
	Degree    string

	// Staff discriminators.
	Department  string
	Designation string
}

// Redacted returns a copy with credential material cleared. The password
// hash, OTP code, and OTP expiry never leave the service boundary.
func (account Account) Redacted() Account {
	account.PasswordHash = ""
	account.OTPCode = ""
	account.OTPExpiresUnixUTC = 0
	return account
}

// Descriptor pairs an account record with its owning variant.
type Descriptor struct {
	Variant Variant
	Account Account
}

// ProfilePatch is a partial profile update; nil fields are left unchanged.
type ProfilePatch struct {
	DisplayName  *string            `json:"display_name" validate:"omitempty,min=1,max=120"`
	Phone        *string            `json:"phone" validate:"omitempty,min=7,max=20"`
	Achievements *string            `json:"achievements" validate:"omitempty,max=4000"`
	MediaURLs    *[]string          `json:"media_urls" validate:"omitempty,dive,url"`
	Links        *map[string]string `json:"links" validate:"omitempty,dive,url"`
	ClassYear    *int               `json:"class_year" validate:"omitempty,gte=1900,lte=2100"`
	Degree       *string            `json:"degree" validate:"omitempty,max=120"`
	Department   *string            `json:"department" validate:"omitempty,max=120"`
	Designation  *string            `json:"designation" validate:"omitempty,max=120"`
}

// AccountStore is the persistence contract over the two account collections.
// Each collection is unique-indexed on email; Create reports violations as
// ErrDuplicateEmail and lookups report misses as ErrAccountNotFound.
type AccountStore interface {
	GetMemberByID(ctx context.Context, accountID string) (Account, error)
	GetStaffByID(ctx context.Context, accountID string) (Account, error)
	GetMemberByEmail(ctx context.Context, email string) (Account, error)
	GetStaffByEmail(ctx context.Context, email string) (Account, error)
	CreateMember(ctx context.Context, account Account) (Account, error)
	SaveMember(ctx context.Context, account Account) error
	SaveStaff(ctx context.Context, account Account) error
}
