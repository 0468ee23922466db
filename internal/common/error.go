// Package common defines shared sentinel errors used across FinSync
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Sync lifecycle errors.
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrNoPendingConflict = errors.New("no pending conflict")
	ErrNoActiveSession   = errors.New("no active session")
)
