package errors

import "errors"

var (
	ErrInvalid              = errors.New("invalid")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session expired")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrSessionFull          = errors.New("session chunk limit reached")
	ErrDimensionMismatch    = errors.New("embedding dimension mismatch")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrTooMany              = errors.New("too many requests")
	ErrInternal             = errors.New("internal")
)

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
