package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPolicyViolation is the parent of every submission rejection. Nothing
	// is persisted when a submission fails with one of these.
	ErrPolicyViolation  = errors.New("policy violation")
	ErrInvalidPlan      = fmt.Errorf("%w: invalid plan", ErrPolicyViolation)
	ErrDurationExceeded = fmt.Errorf("%w: duration exceeds plan limit", ErrPolicyViolation)
	ErrQuotaExceeded    = fmt.Errorf("%w: daily quota exceeded", ErrPolicyViolation)

	ErrProviderFailure    = errors.New("provider failure")
	ErrPostProcessFailure = errors.New("post-process failure")
	ErrStorageFailure     = errors.New("storage failure")
)
