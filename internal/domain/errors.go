package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidMode       = errors.New("invalid mode")
	ErrInvalidUpload     = errors.New("invalid upload")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrNotCancellable    = errors.New("job can no longer be cancelled")
	ErrNotCompleted      = errors.New("job is not completed")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrNoResults         = errors.New("no images were generated")
)
