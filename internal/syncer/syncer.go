// Package syncer drives backup and restore of the local document against the
// remote store and owns the observable synchronization state. Conflict
// detection is timestamp-based: a restore that finds the local document newer
// than the remote snapshot parks as a pending conflict until the user picks a
// side. A background scheduler (same package) debounces mutation bursts into
// automatic uploads.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finsync-app/finsync/internal/common"
	"github.com/finsync-app/finsync/internal/docstore"
	"github.com/finsync-app/finsync/internal/logging"
	"github.com/finsync-app/finsync/internal/models"
	"github.com/finsync-app/finsync/internal/remote"
)

const pingTimeout = 3 * time.Second

// Observer receives a snapshot of the synchronization state after every
// transition. Callbacks run outside the syncer's lock; a detached observer
// may still receive a late callback that was already in flight.
type Observer interface {
	OnStateChange(state models.SyncState)
}

// RestoreResult reports what a foreground restore did.
type RestoreResult int

const (
	// RestoredNothing means no remote snapshot exists for the identity.
	RestoredNothing RestoreResult = iota
	// RestoredApplied means the remote snapshot was applied locally.
	RestoredApplied
	// RestoredConflict means the local document is newer than the remote
	// snapshot; the operation is parked until ResolveConflict is called.
	RestoredConflict
)

// Conflict holds both sides of a pending restore conflict.
type Conflict struct {
	Local  *models.Document
	Remote *models.Document
}

// Config controls how long the transient "synced" and "error" states stay
// visible before decaying back to idle.
type Config struct {
	BackupDecayWindow  time.Duration
	RestoreDecayWindow time.Duration
}

type Syncer struct {
	store  *docstore.Store
	remote remote.Store
	cfg    Config
	log    logging.Logger

	mu        sync.Mutex
	state     models.SyncState
	gen       uint64
	observer  Observer
	inFlight  map[string]bool
	conflicts map[string]*Conflict

	// test seam
	nowFn func() time.Time
}

func NewSyncer(store *docstore.Store, rs remote.Store, cfg Config, log logging.Logger) *Syncer {
	if cfg.BackupDecayWindow <= 0 {
		cfg.BackupDecayWindow = 3 * time.Second
	}
	if cfg.RestoreDecayWindow <= 0 {
		cfg.RestoreDecayWindow = 2 * time.Second
	}
	return &Syncer{
		store:     store,
		remote:    rs,
		cfg:       cfg,
		log:       log.With("component", "syncer"),
		state:     models.SyncState{Status: models.StatusIdle},
		inFlight:  make(map[string]bool),
		conflicts: make(map[string]*Conflict),
		nowFn:     time.Now,
	}
}

// SetObserver registers the single state observer. Pass nil to detach.
func (s *Syncer) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// State returns a snapshot of the current synchronization state.
func (s *Syncer) State() models.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Backup uploads the local document for the identity. At most one operation
// runs per identity; a concurrent call returns common.ErrSyncInProgress
// without touching the remote store.
func (s *Syncer) Backup(ctx context.Context, identity string) error {
	return s.backup(ctx, identity, false)
}

// backup is the shared upload path. In background mode a failure resets the
// state to idle instead of surfacing an error; the caller decides what to log.
func (s *Syncer) backup(ctx context.Context, identity string, background bool) error {
	if err := s.acquire(identity); err != nil {
		return err
	}
	s.startOp(identity)

	doc, err := s.store.Load(ctx, identity)
	if err == nil {
		err = s.remote.Upload(ctx, identity, doc, s.progressFn(identity))
	}
	if err != nil {
		s.release(identity)
		if background {
			s.toIdle()
		} else {
			s.fail(ctx, err, s.cfg.BackupDecayWindow)
		}
		return err
	}

	now := s.nowFn()
	if err := s.store.SetLastBackup(ctx, identity, now); err != nil {
		s.log.Warn(ctx, "failed to record backup time", "identity", identity, "error", err.Error())
	}
	s.release(identity)
	s.succeed(now, s.cfg.BackupDecayWindow)
	s.log.Info(ctx, "backup complete", "identity", identity, "timestamp", doc.Timestamp)
	return nil
}

// Restore downloads the remote snapshot for the identity and reconciles it
// with the local document. The remote snapshot is applied when it is at least
// as new as the local document; a strictly newer local document parks the
// operation as a pending conflict.
func (s *Syncer) Restore(ctx context.Context, identity string) (RestoreResult, error) {
	if err := s.acquire(identity); err != nil {
		return RestoredNothing, err
	}
	s.startOp(identity)

	remoteDoc, err := s.remote.Download(ctx, identity, s.progressFn(identity))
	if err != nil {
		s.release(identity)
		s.fail(ctx, err, s.cfg.RestoreDecayWindow)
		return RestoredNothing, err
	}
	if remoteDoc == nil {
		s.release(identity)
		s.toIdle()
		s.log.Info(ctx, "nothing to restore", "identity", identity)
		return RestoredNothing, nil
	}

	local, err := s.store.Load(ctx, identity)
	if err != nil {
		s.release(identity)
		s.fail(ctx, err, s.cfg.RestoreDecayWindow)
		return RestoredNothing, err
	}

	if local.Timestamp > remoteDoc.Timestamp {
		// local is newer: park both sides and hold the in-flight slot so no
		// other operation can race the user's decision
		s.mu.Lock()
		s.conflicts[identity] = &Conflict{Local: local, Remote: remoteDoc}
		s.mu.Unlock()
		s.toIdle()
		s.log.Info(ctx, "restore conflict",
			"identity", identity, "local", local.Timestamp, "remote", remoteDoc.Timestamp)
		return RestoredConflict, nil
	}

	if err := s.store.Replace(ctx, identity, remoteDoc); err != nil {
		s.release(identity)
		s.fail(ctx, err, s.cfg.RestoreDecayWindow)
		return RestoredNothing, err
	}
	s.release(identity)
	s.succeed(time.Time{}, s.cfg.RestoreDecayWindow)
	s.log.Info(ctx, "restore applied", "identity", identity, "timestamp", remoteDoc.Timestamp)
	return RestoredApplied, nil
}

// PendingConflict returns the parked conflict for the identity, or nil.
func (s *Syncer) PendingConflict(identity string) *Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflicts[identity]
}

// ResolveConflict settles a pending conflict. Keeping the local document is a
// pure state change; choosing the remote snapshot overwrites the local
// document and counts as a completed sync.
func (s *Syncer) ResolveConflict(ctx context.Context, identity string, useRemote bool) error {
	s.mu.Lock()
	c, ok := s.conflicts[identity]
	if !ok {
		s.mu.Unlock()
		return common.ErrNoPendingConflict
	}
	delete(s.conflicts, identity)
	s.mu.Unlock()

	if !useRemote {
		s.release(identity)
		s.toIdle()
		s.log.Info(ctx, "conflict resolved, local kept", "identity", identity)
		return nil
	}

	if err := s.store.Replace(ctx, identity, c.Remote); err != nil {
		s.release(identity)
		s.fail(ctx, err, s.cfg.RestoreDecayWindow)
		return err
	}
	now := s.nowFn()
	if err := s.store.SetLastBackup(ctx, identity, now); err != nil {
		s.log.Warn(ctx, "failed to record backup time", "identity", identity, "error", err.Error())
	}
	s.release(identity)
	s.succeed(now, s.cfg.RestoreDecayWindow)
	s.log.Info(ctx, "conflict resolved, remote applied", "identity", identity)
	return nil
}

// restoreIfNewer silently applies the remote snapshot when it is strictly
// newer than the local document, or when no local document exists yet for
// the identity. Used at session start; never prompts and never publishes
// state transitions.
func (s *Syncer) restoreIfNewer(ctx context.Context, identity string) error {
	if err := s.acquire(identity); err != nil {
		return err
	}
	defer s.release(identity)

	exists, err := s.store.Has(ctx, identity)
	if err != nil {
		return err
	}

	remoteDoc, err := s.remote.Download(ctx, identity, nil)
	if err != nil || remoteDoc == nil {
		return err
	}
	if exists {
		local, err := s.store.Load(ctx, identity)
		if err != nil {
			return err
		}
		if remoteDoc.Timestamp <= local.Timestamp {
			return nil
		}
	}
	if err := s.store.Replace(ctx, identity, remoteDoc); err != nil {
		return err
	}
	s.log.Info(ctx, "newer remote snapshot applied at session start",
		"identity", identity, "timestamp", remoteDoc.Timestamp)
	return nil
}

// StartConnectivityWatcher probes the remote store periodically and publishes
// connectivity flips through the observer. Stops when ctx is cancelled.
func (s *Syncer) StartConnectivityWatcher(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.checkOnline(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Syncer) checkOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	online := s.remote.Ping(pingCtx) == nil

	s.mu.Lock()
	if s.state.Connected == online {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.transition(func(st *models.SyncState) { st.Connected = online })
}

// beginSession points the published state at the identity and loads its last
// backup time. Called by the scheduler on session start.
func (s *Syncer) beginSession(ctx context.Context, identity string) {
	last, err := s.store.LastBackup(ctx, identity)
	if err != nil {
		s.log.Warn(ctx, "failed to load last backup time", "identity", identity, "error", err.Error())
	}
	s.transition(func(st *models.SyncState) {
		st.Identity = identity
		st.LastBackup = last
		st.Status = models.StatusIdle
		st.Progress = 0
		st.Err = ""
		st.ErrKind = models.ErrKindNone
	})
}

func (s *Syncer) endSession() {
	s.transition(func(st *models.SyncState) {
		*st = models.SyncState{Status: models.StatusIdle, Connected: st.Connected}
	})
}

func (s *Syncer) acquire(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[identity] {
		return common.ErrSyncInProgress
	}
	s.inFlight[identity] = true
	return nil
}

func (s *Syncer) release(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, identity)
}

// transition applies mut to the state under the lock, bumps the generation
// counter and notifies the observer with a snapshot outside the lock.
func (s *Syncer) transition(mut func(*models.SyncState)) uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	mut(&s.state)
	st := s.state
	obs := s.observer
	s.mu.Unlock()

	if obs != nil {
		obs.OnStateChange(st)
	}
	return gen
}

func (s *Syncer) startOp(identity string) {
	s.transition(func(st *models.SyncState) {
		st.Identity = identity
		st.Status = models.StatusSyncing
		st.Progress = 0
		st.Err = ""
		st.ErrKind = models.ErrKindNone
	})
}

func (s *Syncer) toIdle() {
	s.transition(func(st *models.SyncState) {
		st.Status = models.StatusIdle
		st.Progress = 0
		st.Err = ""
		st.ErrKind = models.ErrKindNone
	})
}

func (s *Syncer) succeed(lastBackup time.Time, window time.Duration) {
	gen := s.transition(func(st *models.SyncState) {
		st.Status = models.StatusSynced
		st.Progress = 100
		if !lastBackup.IsZero() {
			st.LastBackup = lastBackup
		}
	})
	s.decayAfter(gen, window)
}

func (s *Syncer) fail(ctx context.Context, err error, window time.Duration) {
	kind := kindOf(err)
	s.log.Error(ctx, "sync failed", "kind", string(kind), "error", err.Error())
	gen := s.transition(func(st *models.SyncState) {
		st.Status = models.StatusError
		st.Progress = 0
		st.Err = err.Error()
		st.ErrKind = kind
	})
	s.decayAfter(gen, window)
}

// decayAfter returns the state to idle once the window elapses, unless a
// newer transition superseded gen in the meantime.
func (s *Syncer) decayAfter(gen uint64, window time.Duration) {
	time.AfterFunc(window, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.gen++
		s.state.Status = models.StatusIdle
		s.state.Progress = 0
		s.state.Err = ""
		s.state.ErrKind = models.ErrKindNone
		st := s.state
		obs := s.observer
		s.mu.Unlock()

		if obs != nil {
			obs.OnStateChange(st)
		}
	})
}

// progressFn publishes transfer progress for identity while its operation is
// the one syncing. Progress never decreases within an operation.
func (s *Syncer) progressFn(identity string) remote.ProgressFunc {
	return func(p int) {
		s.mu.Lock()
		if s.state.Status != models.StatusSyncing || s.state.Identity != identity || p <= s.state.Progress {
			s.mu.Unlock()
			return
		}
		s.gen++
		s.state.Progress = p
		st := s.state
		obs := s.observer
		s.mu.Unlock()

		if obs != nil {
			obs.OnStateChange(st)
		}
	}
}

func kindOf(err error) models.ErrorKind {
	var se *remote.SyncError
	if errors.As(err, &se) {
		switch se.Kind {
		case remote.KindNetwork:
			return models.ErrKindNetwork
		case remote.KindPermission:
			return models.ErrKindPermission
		case remote.KindQuota:
			return models.ErrKindQuota
		}
	}
	return models.ErrKindUnknown
}
