package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Resolver classifies opaque account identifiers against the two disjoint
// account collections. It is stateless and read-only.
type Resolver struct {
	store AccountStore
}

// NewResolver wires a Resolver.
func NewResolver(store AccountStore) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidResolver)
	}
	return &Resolver{store: store}, nil
}

// Resolve probes the member collection first, then staff. The ordering is a
// fixed tie-break; the collections are disjoint in practice (unique email
// across the union) but the resolver does not assume it and returns the
// first match. A malformed identifier is a miss, never a crash.
func (resolver *Resolver) Resolve(ctx context.Context, accountID string) (Descriptor, error) {
	trimmed := strings.TrimSpace(accountID)
	if trimmed == "" {
		return Descriptor{}, fmt.Errorf("%w: blank account id", ErrAccountNotFound)
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		return Descriptor{}, fmt.Errorf("%w: malformed account id", ErrAccountNotFound)
	}
	member, err := resolver.store.GetMemberByID(ctx, trimmed)
	if err == nil {
		return Descriptor{Variant: VariantMember, Account: member}, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Descriptor{}, err
	}
	staff, err := resolver.store.GetStaffByID(ctx, trimmed)
	if err == nil {
		return Descriptor{Variant: VariantStaff, Account: staff}, nil
	}
	return Descriptor{}, err
}

// ResolveEmail probes the email union the same way Resolve probes ids. The
// resolver is authoritative about which variant, if any, owns an email.
func (resolver *Resolver) ResolveEmail(ctx context.Context, email string) (Descriptor, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return Descriptor{}, fmt.Errorf("%w: blank email", ErrAccountNotFound)
	}
	member, err := resolver.store.GetMemberByEmail(ctx, normalized)
	if err == nil {
		return Descriptor{Variant: VariantMember, Account: member}, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Descriptor{}, err
	}
	staff, err := resolver.store.GetStaffByEmail(ctx, normalized)
	if err == nil {
		return Descriptor{Variant: VariantStaff, Account: staff}, nil
	}
	return Descriptor{}, err
}

// ResolveByFields forward-classifies an update payload by its discriminator
// fields. Payloads carrying discriminators of both variants are ambiguous;
// payloads carrying none return ErrNoDiscriminator so the caller can fall
// back to resolving by id.
func (resolver *Resolver) ResolveByFields(patch ProfilePatch) (Variant, error) {
	memberFields := patch.ClassYear != nil || patch.Degree != nil
	staffFields := patch.Department != nil || patch.Designation != nil
	switch {
	case memberFields && staffFields:
		return "", ErrAmbiguousVariant
	case memberFields:
		return VariantMember, nil
	case staffFields:
		return VariantStaff, nil
	}
	return "", ErrNoDiscriminator
}

// NormalizeEmail lowercases and trims an email for union-wide comparison.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
