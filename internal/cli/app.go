// Package cli implements the interactive FinSync shell: login with the
// master password, everyday finance commands (transactions, notes, monthly
// summary) and the sync surface (backup, restore with conflict prompt,
// autosync toggle, status).
package cli

import (
	"bufio"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/finsync-app/finsync/internal/config"
	"github.com/finsync-app/finsync/internal/docstore"
	"github.com/finsync-app/finsync/internal/logging"
	"github.com/finsync-app/finsync/internal/models"
	"github.com/finsync-app/finsync/internal/remote"
	"github.com/finsync-app/finsync/internal/syncer"

	_ "modernc.org/sqlite"
)

// newRemoteStore is a test seam; tests swap in an in-memory store.
var newRemoteStore = func(ctx context.Context, cfg *config.Config, masterKey []byte, log logging.Logger) (remote.Store, error) {
	return remote.NewS3Store(ctx, remote.S3Config{
		Bucket:               cfg.S3Bucket,
		Region:               cfg.S3Region,
		BaseEndpoint:         cfg.S3BaseEndpoint,
		AccessKey:            cfg.S3AccessKey,
		SecretKey:            cfg.S3SecretKey,
		ConnectRetryInterval: cfg.ConnectRetryInterval,
		ConnectRetryAttempts: cfg.ConnectRetryAttempts,
	}, masterKey, log)
}

type App struct {
	cfg   *config.Config
	store *docstore.Store
	log   logging.Logger

	reader *bufio.Reader
	out    io.Writer

	// session, set on login and cleared on logout
	identity    string
	syncer      *syncer.Syncer
	scheduler   *syncer.Scheduler
	stopWatcher context.CancelFunc

	mu         sync.Mutex
	lastStatus models.SyncStatus
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	store, err := docstore.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	return &App{
		cfg:    cfg,
		store:  store,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	fmt.Fprintln(a.out, "FinSync CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.statusLine, scanner)
}

func (a *App) Close() {
	if a.isLoggedIn() {
		_ = a.Logout(context.Background())
	}
	_ = a.store.Close()
}

func (a *App) isLoggedIn() bool {
	return a.identity != ""
}

// statusLine renders the REPL prompt suffix: identity plus sync state.
func (a *App) statusLine() string {
	if !a.isLoggedIn() {
		return "not logged in"
	}
	st := a.syncer.State()
	line := a.identity
	if !st.Connected {
		line += " [offline]"
	}
	switch st.Status {
	case models.StatusSyncing:
		line += fmt.Sprintf(" [syncing %d%%]", st.Progress)
	case models.StatusSynced:
		line += " [synced]"
	case models.StatusError:
		line += fmt.Sprintf(" [sync error: %s]", st.ErrKind)
	}
	return line
}

// OnStateChange implements syncer.Observer. Only status flips are announced;
// progress ticks stay out of the prompt's way.
func (a *App) OnStateChange(st models.SyncState) {
	a.mu.Lock()
	changed := st.Status != a.lastStatus
	a.lastStatus = st.Status
	a.mu.Unlock()

	if !changed {
		return
	}
	switch st.Status {
	case models.StatusSynced:
		printlnFn("Sync complete")
	case models.StatusError:
		printlnFn(fmt.Sprintf("Sync failed (%s): %s", st.ErrKind, st.Err))
	}
}

// saltFor derives a per-identity key salt. Deterministic so the same
// email+password pair always yields the same master key on any device.
func saltFor(identity string) []byte {
	sum := sha256.Sum256([]byte("finsync/" + identity))
	return sum[:16]
}
