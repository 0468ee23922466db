package syncer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsync-app/finsync/internal/docstore"
	"github.com/finsync-app/finsync/internal/models"
	"github.com/finsync-app/finsync/internal/remote"
)

type countingStore struct {
	remote.Store
	uploads atomic.Int32
}

func (c *countingStore) Upload(ctx context.Context, identity string, doc *models.Document, f remote.ProgressFunc) error {
	c.uploads.Add(1)
	return c.Store.Upload(ctx, identity, doc, f)
}

func newTestScheduler(t *testing.T, rs remote.Store, quiescence time.Duration) (*Scheduler, *Syncer, *docstore.Store) {
	t.Helper()
	sy, store := newTestSyncer(t, rs)
	sched := NewScheduler(sy, store, quiescence, testLogger())
	return sched, sy, store
}

func TestNotifyMutation_DebouncesBurst(t *testing.T) {
	counting := &countingStore{Store: remote.NewMemStore()}
	sched, _, _ := newTestScheduler(t, counting, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, sched.SessionStart(ctx, identity))

	for i := 0; i < 5; i++ {
		sched.NotifyMutation(identity)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return counting.uploads.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// no further timer is armed
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 1, counting.uploads.Load())
}

func TestFlush_RespectsAutoSyncOff(t *testing.T) {
	counting := &countingStore{Store: remote.NewMemStore()}
	sched, _, store := newTestScheduler(t, counting, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, sched.SessionStart(ctx, identity))

	doc, err := store.Load(ctx, identity)
	require.NoError(t, err)
	settings := doc.Settings
	settings.AutoSync = false
	_, err = store.Update(ctx, identity, models.Patch{Settings: &settings})
	require.NoError(t, err)

	sched.NotifyMutation(identity)
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 0, counting.uploads.Load())
}

func TestFlush_SkipsWhenOffline(t *testing.T) {
	mem := remote.NewMemStore()
	mem.ConnectErr = netError{}
	counting := &countingStore{Store: mem}
	sched, sy, _ := newTestScheduler(t, counting, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, sched.SessionStart(ctx, identity))
	sched.NotifyMutation(identity)

	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 0, counting.uploads.Load())
	assert.Equal(t, models.StatusIdle, sy.State().Status)
}

func TestFlush_SwallowsBackupFailure(t *testing.T) {
	mem := remote.NewMemStore()
	mem.UploadErr = netError{}
	counting := &countingStore{Store: mem}
	sched, sy, _ := newTestScheduler(t, counting, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, sched.SessionStart(ctx, identity))
	sched.NotifyMutation(identity)

	require.Eventually(t, func() bool {
		return counting.uploads.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// background failures never surface as foreground errors
	require.Eventually(t, func() bool {
		st := sy.State()
		return st.Status == models.StatusIdle && st.ErrKind == models.ErrKindNone
	}, time.Second, 5*time.Millisecond)
}

func TestFlush_CoalescesWithForegroundSync(t *testing.T) {
	blocking := &blockingStore{
		Store:   remote.NewMemStore(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	counting := &countingStore{Store: blocking}
	sched, sy, _ := newTestScheduler(t, counting, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, sched.SessionStart(ctx, identity))

	done := make(chan error, 1)
	go func() { done <- sy.Backup(ctx, identity) }()
	<-blocking.entered

	sched.NotifyMutation(identity)
	time.Sleep(60 * time.Millisecond)

	close(blocking.release)
	require.NoError(t, <-done)

	// the background flush coalesced instead of queuing a second upload
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, counting.uploads.Load())
}

func TestSessionStart_AppliesStrictlyNewerRemote(t *testing.T) {
	mem := remote.NewMemStore()
	sched, _, store := newTestScheduler(t, mem, time.Second)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, identity, docWithTimestamp(100)))
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	require.NoError(t, sched.SessionStart(ctx, identity))

	local, err := store.Load(ctx, identity)
	require.NoError(t, err)
	assert.EqualValues(t, 200, local.Timestamp)

	active, err := store.ActiveIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, identity, active)
}

func TestSessionStart_AppliesBackupToFreshIdentity(t *testing.T) {
	mem := remote.NewMemStore()
	sched, _, store := newTestScheduler(t, mem, time.Second)
	ctx := context.Background()

	// backup from an earlier install; no local document exists yet, so even
	// an old snapshot wins over the would-be default scaffolding
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	require.NoError(t, sched.SessionStart(ctx, identity))

	local, err := store.Load(ctx, identity)
	require.NoError(t, err)
	assert.EqualValues(t, 200, local.Timestamp)
}

func TestSessionStart_KeepsLocalWhenRemoteNotNewer(t *testing.T) {
	mem := remote.NewMemStore()
	sched, sy, store := newTestScheduler(t, mem, time.Second)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, identity, docWithTimestamp(300)))
	require.NoError(t, mem.Upload(ctx, identity, docWithTimestamp(200), nil))

	require.NoError(t, sched.SessionStart(ctx, identity))

	local, err := store.Load(ctx, identity)
	require.NoError(t, err)
	assert.EqualValues(t, 300, local.Timestamp)

	// an older remote never prompts at session start
	assert.Nil(t, sy.PendingConflict(identity))
	assert.Equal(t, models.StatusIdle, sy.State().Status)
}

func TestSessionEnd_StopsScheduling(t *testing.T) {
	counting := &countingStore{Store: remote.NewMemStore()}
	sched, sy, _ := newTestScheduler(t, counting, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, sched.SessionStart(ctx, identity))
	sched.NotifyMutation(identity)
	sched.SessionEnd()

	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 0, counting.uploads.Load())
	assert.Empty(t, sy.State().Identity)
}

func TestNotifyMutation_IgnoresForeignIdentity(t *testing.T) {
	counting := &countingStore{Store: remote.NewMemStore()}
	sched, _, _ := newTestScheduler(t, counting, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, sched.SessionStart(ctx, identity))
	sched.NotifyMutation("someone.else@example.com")

	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 0, counting.uploads.Load())
}
