package payments

import (
	"context"
	"fmt"
)

// SignatureChecker is the gateway's shared-secret signature scheme. The
// verifier never reimplements the algorithm; it acts on the boolean result.
type SignatureChecker interface {
	VerifySignature(orderRef string, paymentRef string, signature string) (bool, error)
}

// Verifier is a policy layer around the ledger's state transition. It owns
// no storage of its own.
type Verifier struct {
	ledger  *Service
	checker SignatureChecker
}

// NewVerifier wires a Verifier.
func NewVerifier(ledger *Service, checker SignatureChecker) (*Verifier, error) {
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidService)
	}
	if checker == nil {
		return nil, fmt.Errorf("%w: signature checker dependency is nil", ErrInvalidService)
	}
	return &Verifier{ledger: ledger, checker: checker}, nil
}

// Verify validates an inbound gateway callback against the pending entry and
// transitions its status. A checker failure (timeout, transport error) leaves
// the entry in created so a later retry can still resolve it; timing out is
// never itself a transition to failed.
func (verifier *Verifier) Verify(ctx context.Context, orderRef OrderRef, paymentRef PaymentRef, signature string) (Entry, error) {
	valid, err := verifier.checker.VerifySignature(orderRef.String(), paymentRef.String(), signature)
	if err != nil {
		return Entry{}, WrapError(operationVerify, "gateway", "check", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err))
	}
	outcome := EntryStatusFailed
	if valid {
		outcome = EntryStatusSuccess
	}
	return verifier.ledger.MarkOutcome(ctx, orderRef, paymentRef, signature, outcome)
}
