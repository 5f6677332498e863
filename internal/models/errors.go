package models

import "errors"

// Sentinel errors for the failure kinds the service distinguishes.
// Callers wrap these with fmt.Errorf("...: %w", ...) and branch with
// errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrFetch            = errors.New("fetch error")
	ErrEmptyContent     = errors.New("No content after cleaning")
	ErrNoChunks         = errors.New("No chunks created")
	ErrEmbedding        = errors.New("embedding error")
	ErrStore            = errors.New("store error")
	ErrIndex            = errors.New("index error")
	ErrProvider         = errors.New("provider error")
	ErrAdmissionDenied  = errors.New("admission denied: too many active jobs")
	ErrRateLimited      = errors.New("rate limited")
	ErrTimeout          = errors.New("timeout")
	ErrStoreUnavailable = errors.New("store unavailable: circuit open")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
)
