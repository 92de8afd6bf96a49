package access

import (
	"context"
	"errors"
)

var (
	// ErrConditionNotSatisfied indicates the caller's identity does not
	// currently satisfy the condition attached to a kit. This is a normal,
	// retryable outcome, not a fault.
	ErrConditionNotSatisfied = errors.New("access: condition not satisfied")
	// ErrMalformedKit indicates a kit that cannot be parsed or verified.
	ErrMalformedKit = errors.New("access: malformed message kit")
	// ErrNoIdentity indicates an identity context without an address.
	ErrNoIdentity = errors.New("access: identity context has no address")
)

// IdentityContext is the connected account plus the chain state used to
// evaluate conditions.
type IdentityContext struct {
	// Address is the stable sender identity (wallet-address-shaped).
	Address string
	// Chain resolves balance and ownership queries. May be nil, in which
	// case every chain-dependent condition fails as not satisfied.
	Chain ChainReader
}

// Codec gates plaintext behind access conditions. Encrypt binds a condition
// to the produced kit; Decrypt releases the plaintext only to an identity
// currently satisfying that condition.
type Codec interface {
	Encrypt(ctx context.Context, plaintext []byte, condition Condition, identity IdentityContext) ([]byte, error)
	Decrypt(ctx context.Context, kit []byte, identity IdentityContext) ([]byte, error)
}
