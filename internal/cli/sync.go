package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/finsync-app/finsync/internal/models"
	"github.com/finsync-app/finsync/internal/syncer"
)

// Backup uploads the encrypted snapshot immediately.
func (a *App) Backup(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	if err := a.syncer.Backup(ctx, a.identity); err != nil {
		printlnFn("Backup failed:", err.Error())
		return err
	}
	printlnFn("Backup uploaded")
	return nil
}

// Restore downloads the remote snapshot. When the local document is newer
// than the snapshot the user picks a side; there is no merge.
func (a *App) Restore(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	res, err := a.syncer.Restore(ctx, a.identity)
	if err != nil {
		printlnFn("Restore failed:", err.Error())
		return err
	}

	switch res {
	case syncer.RestoredNothing:
		printlnFn("No backup found for this account")
	case syncer.RestoredApplied:
		printlnFn("Backup restored")
	case syncer.RestoredConflict:
		return a.resolveConflictPrompt(ctx)
	}
	return nil
}

func (a *App) resolveConflictPrompt(ctx context.Context) error {
	c := a.syncer.PendingConflict(a.identity)
	if c == nil {
		return nil
	}

	printlnFn("Your local data is newer than the backup:")
	printlnFn(fmt.Sprintf("  local:  %s", formatTimestamp(c.Local.Timestamp)))
	printlnFn(fmt.Sprintf("  backup: %s", formatTimestamp(c.Remote.Timestamp)))

	for {
		answer, err := GetSimpleText(a.reader, "Keep (l)ocal data or use (r)emote backup?", a.out)
		if err != nil {
			return err
		}
		switch answer {
		case "l", "local":
			if err := a.syncer.ResolveConflict(ctx, a.identity, false); err != nil {
				printlnFn("Error:", err.Error())
				return err
			}
			printlnFn("Kept local data")
			return nil
		case "r", "remote":
			if err := a.syncer.ResolveConflict(ctx, a.identity, true); err != nil {
				printlnFn("Error:", err.Error())
				return err
			}
			printlnFn("Backup restored")
			return nil
		default:
			printlnFn("Please answer 'l' or 'r'")
		}
	}
}

// AutoSync toggles automatic background backup for the account.
func (a *App) AutoSync(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	doc, err := a.store.Load(ctx, a.identity)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	settings := doc.Settings
	settings.AutoSync = !settings.AutoSync

	if _, err := a.store.Update(ctx, a.identity, models.Patch{Settings: &settings}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	if settings.AutoSync {
		printlnFn("Auto sync enabled")
	} else {
		printlnFn("Auto sync disabled")
	}
	return nil
}

// Status prints connectivity and the current sync state.
func (a *App) Status(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	st := a.syncer.State()
	connected := "offline"
	if st.Connected {
		connected = "online"
	}
	lastBackup := "never"
	if !st.LastBackup.IsZero() {
		lastBackup = st.LastBackup.Format(time.RFC1123)
	}

	printlnFn(fmt.Sprintf("Account:     %s", st.Identity))
	printlnFn(fmt.Sprintf("Remote:      %s", connected))
	printlnFn(fmt.Sprintf("Status:      %s", st.Status))
	printlnFn(fmt.Sprintf("Last backup: %s", lastBackup))
	if st.Err != "" {
		printlnFn(fmt.Sprintf("Last error:  %s (%s)", st.Err, st.ErrKind))
	}
	return nil
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC1123)
}
