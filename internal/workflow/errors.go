package workflow

import "errors"

var (
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrForbidden             = errors.New("forbidden")
	ErrEmptyContent          = errors.New("content is empty")
	ErrMissingRevisionReason = errors.New("revision reason is required")
	ErrSignaturesIncomplete  = errors.New("required signatures are incomplete")
	ErrContentUnchanged      = errors.New("content not modified since revision request")
	ErrCommentsDisabled      = errors.New("comments are disabled")
	ErrAlreadyResolved       = errors.New("comment already resolved")
	ErrAlreadySigned         = errors.New("already signed")
	ErrInvalidComment        = errors.New("invalid comment")
	ErrInvalidSignature      = errors.New("invalid signature request")
)
