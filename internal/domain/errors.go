package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("operation not allowed in the current state")
	ErrForbidden    = errors.New("admin role required")

	ErrInvalidDecision = errors.New("decision must be approve or reject")

	ErrAlreadyExists    = errors.New("task already started")
	ErrExpired          = errors.New("task has expired")
	ErrEvidenceRequired = errors.New("evidence is required for this task")

	ErrInvalidCode   = errors.New("referral code not found")
	ErrSelfReferral  = errors.New("cannot use your own referral code")
	ErrAlreadyLinked = errors.New("a referral code was already applied to this account")

	ErrNotActive           = errors.New("no longer available")
	ErrOutOfStock          = errors.New("reward is out of stock")
	ErrInsufficientBalance = errors.New("not enough points for this reward")
	ErrRewardChanged       = errors.New("reward changed since it was read, try again")

	// Ledger executor errors.
	ErrInsufficientFunds   = errors.New("mutation would make the balance negative")
	ErrDuplicateMutation   = errors.New("mutation already applied")
	ErrIdempotencyConflict = errors.New("idempotency key already used for a different mutation")

	ErrVerificationUnavailable = errors.New("verification provider unavailable")
)
