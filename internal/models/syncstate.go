package models

import "time"

type SyncStatus string

const (
	StatusIdle    SyncStatus = "idle"
	StatusSyncing SyncStatus = "syncing"
	StatusSynced  SyncStatus = "synced"
	StatusError   SyncStatus = "error"
)

// ErrorKind classifies a failed sync operation for the UI layer.
type ErrorKind string

const (
	ErrKindNone       ErrorKind = ""
	ErrKindNetwork    ErrorKind = "network"
	ErrKindPermission ErrorKind = "permission"
	ErrKindQuota      ErrorKind = "quota"
	ErrKindUnknown    ErrorKind = "unknown"
)

// SyncState is the observable session state. It is never persisted except
// for LastBackup, which the document store keeps per identity.
type SyncState struct {
	Identity   string
	Connected  bool
	LastBackup time.Time // zero when the identity was never backed up
	Status     SyncStatus
	Progress   int // 0..100, non-decreasing within one operation
	Err        string
	ErrKind    ErrorKind
}
