package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Profiles is CRUD over the account union with field-level redaction of
// credentials, composed on top of the Resolver.
type Profiles struct {
	resolver *Resolver
	store    AccountStore
	validate *validator.Validate
}

// NewProfiles wires a Profiles service.
func NewProfiles(resolver *Resolver, store AccountStore) (*Profiles, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: resolver dependency is nil", ErrInvalidResolver)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidResolver)
	}
	return &Profiles{
		resolver: resolver,
		store:    store,
		validate: validator.New(),
	}, nil
}

// GetOwn returns the caller's profile. Credential fields stay inside the
// service even for the owner; only the verified flag is observable.
func (profiles *Profiles) GetOwn(ctx context.Context, accountID string) (Descriptor, error) {
	descriptor, err := profiles.resolver.Resolve(ctx, accountID)
	if err != nil {
		return Descriptor{}, err
	}
	descriptor.Account = descriptor.Account.Redacted()
	return descriptor, nil
}

// GetPublic returns another account's profile with credentials redacted for
// both variants.
func (profiles *Profiles) GetPublic(ctx context.Context, accountID string) (Descriptor, error) {
	descriptor, err := profiles.resolver.Resolve(ctx, accountID)
	if err != nil {
		return Descriptor{}, err
	}
	descriptor.Account = descriptor.Account.Redacted()
	return descriptor, nil
}

// UpdateOwn applies a partial merge (nil fields unchanged) and re-validates
// the merged record against the owning variant's schema. A patch carrying
// discriminators of the wrong variant is a per-field validation failure.
func (profiles *Profiles) UpdateOwn(ctx context.Context, accountID string, patch ProfilePatch) (Descriptor, error) {
	descriptor, err := profiles.resolver.Resolve(ctx, accountID)
	if err != nil {
		return Descriptor{}, err
	}

	claimed, classifyErr := profiles.resolver.ResolveByFields(patch)
	if classifyErr == nil && claimed != descriptor.Variant {
		return Descriptor{}, &ValidationError{Fields: foreignDiscriminatorFields(descriptor.Variant, patch)}
	}
	if errors.Is(classifyErr, ErrAmbiguousVariant) {
		return Descriptor{}, &ValidationError{Fields: foreignDiscriminatorFields(descriptor.Variant, patch)}
	}

	if fieldErrors := profiles.validatePatch(patch); len(fieldErrors) > 0 {
		return Descriptor{}, &ValidationError{Fields: fieldErrors}
	}

	merged := mergePatch(descriptor.Account, patch)
	switch descriptor.Variant {
	case VariantStaff:
		err = profiles.store.SaveStaff(ctx, merged)
	default:
		err = profiles.store.SaveMember(ctx, merged)
	}
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Variant: descriptor.Variant, Account: merged.Redacted()}, nil
}

func (profiles *Profiles) validatePatch(patch ProfilePatch) map[string]string {
	err := profiles.validate.Struct(patch)
	if err == nil {
		return nil
	}
	fieldErrors := make(map[string]string)
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		fieldErrors["patch"] = err.Error()
		return fieldErrors
	}
	for _, fieldError := range invalid {
		fieldErrors[fieldError.Field()] = fmt.Sprintf("failed %q constraint", fieldError.Tag())
	}
	return fieldErrors
}

func mergePatch(account Account, patch ProfilePatch) Account {
	if patch.DisplayName != nil {
		account.DisplayName = *patch.DisplayName
	}
	if patch.Phone != nil {
		account.Phone = *patch.Phone
	}
	if patch.Achievements != nil {
		account.Achievements = *patch.Achievements
	}
	if patch.MediaURLs != nil {
		account.MediaURLs = *patch.MediaURLs
	}
	if patch.Links != nil {
		account.Links = *patch.Links
	}
	if patch.ClassYear != nil {
		account.ClassYear = *patch.ClassYear
	}
	if patch.Degree != nil {
		account.Degree = *patch.Degree
	}
	if patch.Department != nil {
		account.Department = *patch.Department
	}
	if patch.Designation != nil {
		account.Designation = *patch.Designation
	}
	return account
}

func foreignDiscriminatorFields(owning Variant, patch ProfilePatch) map[string]string {
	fieldErrors := make(map[string]string)
	if owning != VariantMember {
		if patch.ClassYear != nil {
			fieldErrors["class_year"] = "field belongs to the member variant"
		}
		if patch.Degree != nil {
			fieldErrors["degree"] = "field belongs to the member variant"
		}
	}
	if owning != VariantStaff {
		if patch.Department != nil {
			fieldErrors["department"] = "field belongs to the staff variant"
		}
		if patch.Designation != nil {
			fieldErrors["designation"] = "field belongs to the staff variant"
		}
	}
	return fieldErrors
}
