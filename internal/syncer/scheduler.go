package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finsync-app/finsync/internal/common"
	"github.com/finsync-app/finsync/internal/docstore"
	"github.com/finsync-app/finsync/internal/logging"
)

// Scheduler turns local mutations into automatic background uploads. Every
// mutation restarts a quiescence timer, so only the last mutation of a burst
// triggers an upload. Background failures are logged and swallowed; the
// foreground state never shows them as errors.
type Scheduler struct {
	syncer     *Syncer
	store      *docstore.Store
	quiescence time.Duration
	log        logging.Logger

	mu       sync.Mutex
	identity string
	timer    *time.Timer
}

func NewScheduler(sy *Syncer, store *docstore.Store, quiescence time.Duration, log logging.Logger) *Scheduler {
	if quiescence <= 0 {
		quiescence = 5 * time.Second
	}
	return &Scheduler{
		syncer:     sy,
		store:      store,
		quiescence: quiescence,
		log:        log.With("component", "scheduler"),
	}
}

// SessionStart activates scheduling for the identity, records it as the
// active identity and opportunistically applies the remote snapshot when it
// is strictly newer than the local document. The restore is best effort: any
// failure is logged and the session starts anyway.
func (s *Scheduler) SessionStart(ctx context.Context, identity string) error {
	if err := s.store.SetActiveIdentity(ctx, identity); err != nil {
		return err
	}

	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()

	s.syncer.beginSession(ctx, identity)

	if err := s.syncer.restoreIfNewer(ctx, identity); err != nil {
		s.log.Warn(ctx, "opportunistic restore failed", "identity", identity, "error", err.Error())
	}
	return nil
}

// SessionEnd deactivates scheduling and drops any armed timer. The active
// identity stays recorded so the next launch can offer the same account.
func (s *Scheduler) SessionEnd() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.identity = ""
	s.mu.Unlock()

	s.syncer.endSession()
}

// NotifyMutation (re)arms the quiescence timer for the identity. Intended to
// be wired as the document store's mutation hook.
func (s *Scheduler) NotifyMutation(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == "" || identity != s.identity {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.quiescence, func() { s.flush(identity) })
}

// flush runs when the quiescence window elapses without further mutations.
// It uploads only when the session is still active, the user has auto sync
// enabled and the remote store is reachable. A sync already in flight simply
// coalesces with this one.
func (s *Scheduler) flush(identity string) {
	ctx := context.Background()

	s.mu.Lock()
	active := s.identity == identity
	s.mu.Unlock()
	if !active {
		return
	}

	doc, err := s.store.Load(ctx, identity)
	if err != nil {
		s.log.Warn(ctx, "background backup skipped, cannot load document",
			"identity", identity, "error", err.Error())
		return
	}
	if !doc.Settings.AutoSync {
		s.log.Debug(ctx, "auto sync disabled, skipping", "identity", identity)
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err = s.syncer.remote.Ping(pingCtx)
	cancel()
	if err != nil {
		s.log.Debug(ctx, "remote unreachable, skipping background backup",
			"identity", identity, "error", err.Error())
		return
	}

	err = s.syncer.backup(ctx, identity, true)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrSyncInProgress):
		s.log.Debug(ctx, "sync already in flight, coalescing", "identity", identity)
	default:
		s.log.Warn(ctx, "background backup failed", "identity", identity, "error", err.Error())
	}
}
