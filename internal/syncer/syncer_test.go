package syncer

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsync-app/finsync/internal/common"
	"github.com/finsync-app/finsync/internal/docstore"
	"github.com/finsync-app/finsync/internal/logging"
	"github.com/finsync-app/finsync/internal/models"
	"github.com/finsync-app/finsync/internal/remote"

	_ "modernc.org/sqlite"
)

const identity = "alex.j@example.com"

func setupDocStore(t *testing.T) *docstore.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE documents (
  identity  TEXT PRIMARY KEY,
  doc       BLOB NOT NULL,
  timestamp INTEGER NOT NULL
);
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return docstore.NewStore(db)
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestSyncer(t *testing.T, mem remote.Store) (*Syncer, *docstore.Store) {
	t.Helper()
	store := setupDocStore(t)
	sy := NewSyncer(store, mem, Config{
		BackupDecayWindow:  20 * time.Millisecond,
		RestoreDecayWindow: 20 * time.Millisecond,
	}, testLogger())
	return sy, store
}

type stateRecorder struct {
	mu     sync.Mutex
	states []models.SyncState
}

func (r *stateRecorder) OnStateChange(st models.SyncState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *stateRecorder) all() []models.SyncState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SyncState, len(r.states))
	copy(out, r.states)
	return out
}

type netError struct{}

func (netError) Error() string   { return "connection reset" }
func (netError) Timeout() bool   { return true }
func (netError) Temporary() bool { return true }

func docWithTimestamp(ts int64) *models.Document {
	doc := models.DefaultDocument(identity, time.Now())
	doc.Timestamp = ts
	return doc
}

func TestBackup_PersistsSnapshotAndState(t *testing.T) {
	mem := remote.NewMemStore()
	sy, store := newTestSyncer(t, mem)
	ctx := context.Background()

	local, err := store.Load(ctx, identity)
	require.NoError(t, err)

	require.NoError(t, sy.Backup(ctx, identity))

	st := sy.State()
	assert.Equal(t, models.StatusSynced, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.False(t, st.LastBackup.IsZero())

	assert.Equal(t, local, mem.Snapshot(identity))

	recorded, err := store.LastBackup(ctx, identity)
	require.NoError(t, err)
	assert.False(t, recorded.IsZero())
}

func TestBackup_FailureResetsProgressAndRetryStartsFresh(t *testing.T) {
	mem := remote.NewMemStore()
	mem.UploadErr = netError{}
	mem.UploadFailAt = 40
	sy, _ := newTestSyncer(t, mem)
	ctx := context.Background()

	rec := &stateRecorder{}
	sy.SetObserver(rec)

	err := sy.Backup(ctx, identity)
	require.Error(t, err)

	st := sy.State()
	assert.Equal(t, models.StatusError, st.Status)
	assert.Equal(t, models.ErrKindNetwork, st.ErrKind)
	assert.Equal(t, 0, st.Progress)
	assert.NotEmpty(t, st.Err)

	// retry after clearing the fault: progress climbs from scratch to 100
	mem.UploadErr = nil
	before := len(rec.all())
	require.NoError(t, sy.Backup(ctx, identity))

	var progress []int
	for _, s := range rec.all()[before:] {
		if s.Status == models.StatusSyncing {
			progress = append(progress, s.Progress)
		}
	}
	require.NotEmpty(t, progress)
	assert.Equal(t, 0, progress[0])
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
	assert.Equal(t, models.StatusSynced, sy.State().Status)
	assert.Equal(t, 100, sy.State().Progress)
}

type blockingStore struct {
	remote.Store
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Upload(ctx context.Context, identity string, doc *models.Document, f remote.ProgressFunc) error {
	b.entered <- struct{}{}
	<-b.release
	return b.Store.Upload(ctx, identity, doc, f)
}

func TestBackup_SecondCallWhileRunningIsRejected(t *testing.T) {
	blocking := &blockingStore{
		Store:   remote.NewMemStore(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sy, _ := newTestSyncer(t, blocking)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- sy.Backup(ctx, identity) }()
	<-blocking.entered

	err := sy.Backup(ctx, identity)
	assert.ErrorIs(t, err, common.ErrSyncInProgress)

	close(blocking.release)
	require.NoError(t, <-done)
}

func TestRestore_NothingToRestore(t *testing.T) {
	sy, _ := newTestSyncer(t, remote.NewMemStore())

	res, err := sy.Restore(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, RestoredNothing, res)
	assert.Equal(t, models.StatusIdle, sy.State().Status)
}

func TestRestore_AppliesNewerRemote(t *testing.T) {
	mem := remote.NewMemStore()
	sy, store := newTestSyncer(t, mem)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, identity, docWithTimestamp(100)))
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	res, err := sy.Restore(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, RestoredApplied, res)

	local, err := store.Load(ctx, identity)
	require.NoError(t, err)
	assert.EqualValues(t, 200, local.Timestamp)
	assert.Equal(t, models.StatusSynced, sy.State().Status)
}

func TestRestore_EqualTimestampsApply(t *testing.T) {
	mem := remote.NewMemStore()
	sy, store := newTestSyncer(t, mem)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, identity, docWithTimestamp(200)))
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	res, err := sy.Restore(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, RestoredApplied, res)
	assert.Nil(t, sy.PendingConflict(identity))
}

func TestRestore_ConflictWhenLocalNewer(t *testing.T) {
	mem := remote.NewMemStore()
	sy, store := newTestSyncer(t, mem)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, identity, docWithTimestamp(300)))
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	res, err := sy.Restore(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, RestoredConflict, res)

	c := sy.PendingConflict(identity)
	require.NotNil(t, c)
	assert.EqualValues(t, 300, c.Local.Timestamp)
	assert.EqualValues(t, 200, c.Remote.Timestamp)

	// nothing applied yet
	local, err := store.Load(ctx, identity)
	require.NoError(t, err)
	assert.EqualValues(t, 300, local.Timestamp)
}

func TestResolveConflict_KeepLocal(t *testing.T) {
	mem := remote.NewMemStore()
	sy, store := newTestSyncer(t, mem)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, identity, docWithTimestamp(300)))
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	res, err := sy.Restore(ctx, identity)
	require.NoError(t, err)
	require.Equal(t, RestoredConflict, res)

	require.NoError(t, sy.ResolveConflict(ctx, identity, false))

	local, err := store.Load(ctx, identity)
	require.NoError(t, err)
	assert.EqualValues(t, 300, local.Timestamp)
	assert.EqualValues(t, 200, mem.Snapshot(identity).Timestamp)
	assert.Equal(t, models.StatusIdle, sy.State().Status)
	assert.Nil(t, sy.PendingConflict(identity))
}

func TestResolveConflict_UseRemote(t *testing.T) {
	mem := remote.NewMemStore()
	sy, store := newTestSyncer(t, mem)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, identity, docWithTimestamp(300)))
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	res, err := sy.Restore(ctx, identity)
	require.NoError(t, err)
	require.Equal(t, RestoredConflict, res)

	require.NoError(t, sy.ResolveConflict(ctx, identity, true))

	local, err := store.Load(ctx, identity)
	require.NoError(t, err)
	assert.EqualValues(t, 200, local.Timestamp)
	assert.Equal(t, models.StatusSynced, sy.State().Status)
	assert.False(t, sy.State().LastBackup.IsZero())
}

func TestResolveConflict_NoPending(t *testing.T) {
	sy, _ := newTestSyncer(t, remote.NewMemStore())

	err := sy.ResolveConflict(context.Background(), identity, true)
	assert.ErrorIs(t, err, common.ErrNoPendingConflict)
}

func TestPendingConflict_BlocksOtherOperations(t *testing.T) {
	mem := remote.NewMemStore()
	sy, store := newTestSyncer(t, mem)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, identity, docWithTimestamp(300)))
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	res, err := sy.Restore(ctx, identity)
	require.NoError(t, err)
	require.Equal(t, RestoredConflict, res)

	assert.ErrorIs(t, sy.Backup(ctx, identity), common.ErrSyncInProgress)
	_, err = sy.Restore(ctx, identity)
	assert.ErrorIs(t, err, common.ErrSyncInProgress)

	require.NoError(t, sy.ResolveConflict(ctx, identity, false))
	assert.NoError(t, sy.Backup(ctx, identity))
}

func TestTransientStatesDecayToIdle(t *testing.T) {
	mem := remote.NewMemStore()
	sy, _ := newTestSyncer(t, mem)
	ctx := context.Background()

	require.NoError(t, sy.Backup(ctx, identity))
	require.Equal(t, models.StatusSynced, sy.State().Status)
	require.Eventually(t, func() bool {
		return sy.State().Status == models.StatusIdle
	}, time.Second, 5*time.Millisecond)

	mem.UploadErr = netError{}
	require.Error(t, sy.Backup(ctx, identity))
	require.Equal(t, models.StatusError, sy.State().Status)
	require.Eventually(t, func() bool {
		st := sy.State()
		return st.Status == models.StatusIdle && st.Err == "" && st.ErrKind == models.ErrKindNone
	}, time.Second, 5*time.Millisecond)
}

func TestDecayDoesNotClobberNewOperation(t *testing.T) {
	mem := remote.NewMemStore()
	sy, _ := newTestSyncer(t, mem)
	ctx := context.Background()

	require.NoError(t, sy.Backup(ctx, identity))
	// a second sync right away supersedes the pending decay of the first
	require.NoError(t, sy.Backup(ctx, identity))
	require.Equal(t, models.StatusSynced, sy.State().Status)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, models.StatusIdle, sy.State().Status)
}

func TestObserverDetachIsSafe(t *testing.T) {
	mem := remote.NewMemStore()
	sy, _ := newTestSyncer(t, mem)
	ctx := context.Background()

	rec := &stateRecorder{}
	sy.SetObserver(rec)
	require.NoError(t, sy.Backup(ctx, identity))

	sy.SetObserver(nil)
	require.NoError(t, sy.Backup(ctx, identity))
	assert.NotEmpty(t, rec.all())
}
