package services

import (
	"errors"
	"fmt"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

// ValidationErrors is re-exported so handlers can match it without
// importing the validator package directly.
type ValidationErrors = validator.ValidationErrors

// Sentinel errors for absent entities.
var (
	ErrExamNotFound         = errors.New("exam not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrResultNotFound       = errors.New("exam result not found")
	ErrWatchSessionNotFound = errors.New("watch session not found")

	// ErrExamHasNoQuestions is returned when an attempt is requested
	// against an exam whose question set is empty.
	ErrExamHasNoQuestions = errors.New("exam has no questions")
)

// PreconditionError blocks an exam status transition whose requirements
// are not met.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

func NewPreconditionError(reason string) *PreconditionError {
	return &PreconditionError{Reason: reason}
}

// AlreadyAttemptedError enforces the one-attempt-per-exam rule and
// carries the prior score for the caller.
type AlreadyAttemptedError struct {
	ResultID uint
	Score    float64
}

func (e *AlreadyAttemptedError) Error() string {
	return fmt.Sprintf("exam already attempted (score %.2f)", e.Score)
}

// PermissionError marks a role or ownership mismatch.
type PermissionError struct {
	UserID   string
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

func NewPermissionError(userID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:   userID,
		Resource: resource,
		Action:   action,
		Reason:   reason,
	}
}

// UpstreamError wraps failures of the external generation provider,
// distinguishing provider-returned errors from transport failures.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
	Timeout  bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("upstream %s timed out", e.Provider)
	}
	return fmt.Sprintf("upstream %s failed (status %d): %s", e.Provider, e.Status, e.Message)
}
