package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrInvalid
	ErrTooMany
	ErrInternal
	ErrSessionNotFound
	ErrSessionExpired
	ErrQuotaExceeded
	ErrSessionFull
	ErrDimensionMismatch
	ErrEmbeddingUnavailable
	ErrExportFailed
)
