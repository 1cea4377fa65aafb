package repository

import "errors"

// Sentinel errors surfaced by transactional repository operations. Services
// translate these into the API error taxonomy.
var (
	ErrInsufficientBalance = errors.New("insufficient lesson balance")
	ErrAlreadyConfirmed    = errors.New("payment already confirmed")
	ErrAlreadyDebited      = errors.New("lesson already debited")
	ErrAlreadyCancelled    = errors.New("lesson already cancelled")
	ErrAlreadyResponded    = errors.New("client request already responded")
	ErrTrialLesson         = errors.New("trial lesson is exempt from the balance")
	ErrFeedbackRequired    = errors.New("feedback is required to complete a lesson")
	ErrReasonRequired      = errors.New("cancellation reason is required")
	ErrDuplicateOrder      = errors.New("order already used within parent")
)
