package directory

import (
	"context"
	"errors"
	"testing"
)

func mustProfiles(test *testing.T, store AccountStore) *Profiles {
	test.Helper()
	resolver := mustResolver(test, store)
	profiles, err := NewProfiles(resolver, store)
	if err != nil {
		test.Fatalf("new profiles: %v", err)
	}
	return profiles
}

func secretiveAccount(accountID string) Account {
	return Account{
		AccountID:         accountID,
		Email:             "grad@campus.edu",
		Verified:          true,
		PasswordHash:      "$2a$10$secret",
		OTPCode:           "482913",
		OTPExpiresUnixUTC: 1700000600,
		DisplayName:       "Grad User",
		ClassYear:         2012,
	}
}

func TestGetPublicRedactsCredentialsForBothVariants(test *testing.T) {
	test.Parallel()
	store := newStubAccountStore()
	store.members[memberUUID] = secretiveAccount(memberUUID)
	staffAccount := secretiveAccount(staffUUID)
	staffAccount.ClassYear = 0
	staffAccount.Department = "History"
	store.staff[staffUUID] = staffAccount
	profiles := mustProfiles(test, store)

	for _, accountID := range []string{memberUUID, staffUUID} {
		descriptor, err := profiles.GetPublic(context.Background(), accountID)
		if err != nil {
			test.Fatalf("get public %s: %v", accountID, err)
		}
		if descriptor.Account.PasswordHash != "" {
			test.Fatalf("password hash leaked for %s", accountID)
		}
		if descriptor.Account.OTPCode != "" {
			test.Fatalf("otp code leaked for %s", accountID)
		}
		if descriptor.Account.OTPExpiresUnixUTC != 0 {
			test.Fatalf("otp expiry leaked for %s", accountID)
		}
	}
}

func TestGetOwnPropagatesResolverMiss(test *testing.T) {
	test.Parallel()
	profiles := mustProfiles(test, newStubAccountStore())

	_, err := profiles.GetOwn(context.Background(), unusedUUID)
	if !errors.Is(err, ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestUpdateOwnMergesPartialPatch(test *testing.T) {
	test.Parallel()
	store := newStubAccountStore()
	store.members[memberUUID] = secretiveAccount(memberUUID)
	profiles := mustProfiles(test, store)

	displayName := "Updated Name"
	achievements := "Published a paper"
	descriptor, err := profiles.UpdateOwn(context.Background(), memberUUID, ProfilePatch{
		DisplayName:  &displayName,
		Achievements: &achievements,
	})
	if err != nil {
		test.Fatalf("update own: %v", err)
	}
	if descriptor.Account.DisplayName != displayName {
		test.Fatalf("display name not applied: %q", descriptor.Account.DisplayName)
	}
	if descriptor.Account.Achievements != achievements {
		test.Fatalf("achievements not applied: %q", descriptor.Account.Achievements)
	}
	// Unspecified fields unchanged.
	if descriptor.Account.ClassYear != 2012 {
		test.Fatalf("class year clobbered: %d", descriptor.Account.ClassYear)
	}
	stored := store.members[memberUUID]
	if stored.PasswordHash == "" || stored.OTPCode == "" {
		test.Fatalf("credentials must survive a profile update")
	}
}

func TestUpdateOwnReportsPerFieldValidationErrors(test *testing.T) {
	test.Parallel()
	store := newStubAccountStore()
	store.members[memberUUID] = secretiveAccount(memberUUID)
	profiles := mustProfiles(test, store)

	badYear := 1537
	badURLs := []string{"not a url"}
	_, err := profiles.UpdateOwn(context.Background(), memberUUID, ProfilePatch{
		ClassYear: &badYear,
		MediaURLs: &badURLs,
	})
	var validationError *ValidationError
	if !errors.As(err, &validationError) {
		test.Fatalf("expected ValidationError, got %v", err)
	}
	if len(validationError.Fields) != 2 {
		test.Fatalf("expected two field errors, got %v", validationError.Fields)
	}
}

func TestUpdateOwnRejectsForeignDiscriminators(test *testing.T) {
	test.Parallel()
	store := newStubAccountStore()
	store.members[memberUUID] = secretiveAccount(memberUUID)
	profiles := mustProfiles(test, store)

	department := "Physics"
	_, err := profiles.UpdateOwn(context.Background(), memberUUID, ProfilePatch{Department: &department})
	var validationError *ValidationError
	if !errors.As(err, &validationError) {
		test.Fatalf("expected ValidationError, got %v", err)
	}
	if _, present := validationError.Fields["department"]; !present {
		test.Fatalf("expected department field error, got %v", validationError.Fields)
	}
}
