package cli

import (
	"context"
	"fmt"

	"github.com/finsync-app/finsync/internal/cryptox"
	"github.com/finsync-app/finsync/internal/shared"
	"github.com/finsync-app/finsync/internal/syncer"
)

// Login derives the master key from email and password, wires up the remote
// store and the sync machinery, and starts the session. An unreachable remote
// is not fatal: the session starts offline and the connectivity watcher picks
// the remote up once it answers.
func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if email == "" {
		printlnFn("Email must not be empty")
		return nil
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	masterKey := cryptox.DeriveKey(password, saltFor(email))

	rs, err := newRemoteStore(ctx, a.cfg, masterKey, a.log)
	if err != nil {
		printlnFn("Cannot initialize remote store:", err.Error())
		return err
	}
	if err := rs.Connect(ctx); err != nil {
		printlnFn("Remote store unavailable, starting offline:", err.Error())
	}

	a.syncer = syncer.NewSyncer(a.store, rs, syncer.Config{
		BackupDecayWindow:  a.cfg.BackupDecayWindow,
		RestoreDecayWindow: a.cfg.RestoreDecayWindow,
	}, a.log)
	a.scheduler = syncer.NewScheduler(a.syncer, a.store, a.cfg.QuiescencePeriod, a.log)
	a.store.SetMutationHook(a.scheduler.NotifyMutation)
	a.syncer.SetObserver(a)

	watchCtx, cancel := context.WithCancel(context.Background())
	a.stopWatcher = cancel
	a.syncer.StartConnectivityWatcher(watchCtx, a.cfg.OnlineCheckInterval)

	if err := a.scheduler.SessionStart(ctx, email); err != nil {
		cancel()
		a.stopWatcher = nil
		a.syncer = nil
		a.scheduler = nil
		printlnFn("Login failed:", err.Error())
		return err
	}
	a.identity = email

	printlnFn(fmt.Sprintf("Logged in as %s", email))
	return nil
}

// Logout ends the session and detaches the sync machinery.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Not logged in")
		return nil
	}

	a.scheduler.SessionEnd()
	a.syncer.SetObserver(nil)
	a.store.SetMutationHook(nil)
	if a.stopWatcher != nil {
		a.stopWatcher()
		a.stopWatcher = nil
	}

	a.identity = ""
	a.syncer = nil
	a.scheduler = nil

	printlnFn("Logged out")
	return nil
}
