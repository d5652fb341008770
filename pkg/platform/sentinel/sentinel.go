package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: write collides with an existing row
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrCheckViolation: storage-level enum/range CHECK rejected the write
// - ErrForeignKey: referenced parent row does not exist
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidState   = errors.New("invalid state")
	ErrCheckViolation = errors.New("check constraint violation")
	ErrForeignKey     = errors.New("foreign key violation")
	ErrUnavailable    = errors.New("unavailable")
)
