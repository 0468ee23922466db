// Package remote persists encrypted document snapshots in an object store,
// one object per logical document field, addressed by user identity. It
// classifies failures for the sync orchestrator and reports transfer
// progress, but never touches the local document store.
package remote

import (
	"context"
	"fmt"

	"github.com/finsync-app/finsync/internal/cryptox"
	"github.com/finsync-app/finsync/internal/models"
)

// documentFields are the per-field object names of a split snapshot.
// The document timestamp is never stored as a field; it rides along as
// object metadata and is reconstructed at assembly time.
var documentFields = []string{
	"transactions",
	"notes",
	"categories",
	"budgets",
	"savingsGoals",
	"settings",
	"profile",
}

// ProgressFunc receives transfer progress in percent. Values are
// monotonically non-decreasing within one operation. May be nil.
type ProgressFunc func(percent int)

// Store is the remote store adapter.
type Store interface {
	// Connect establishes availability of the backing store. Idempotent;
	// retried internally with constant backoff on transient failures.
	Connect(ctx context.Context) error

	// Ping is a single cheap availability probe without retries.
	Ping(ctx context.Context) error

	// Upload writes the current document snapshot for the identity,
	// overwriting any previous snapshot. Failures are classified
	// *SyncError values.
	Upload(ctx context.Context, identity string, doc *models.Document, onProgress ProgressFunc) error

	// Download retrieves and reassembles the snapshot for the identity.
	// Returns (nil, nil) when no snapshot exists. Individual missing
	// fields are not errors. A blob that fails authentication returns an
	// error matching cryptox.ErrDecryption.
	Download(ctx context.Context, identity string, onProgress ProgressFunc) (*models.Document, error)
}

// progressReporter wraps fn so that nil callbacks are safe and progress can
// never decrease or exceed 100 within one operation.
func progressReporter(fn ProgressFunc) func(int) {
	last := -1
	return func(p int) {
		if fn == nil {
			return
		}
		if p > 100 {
			p = 100
		}
		if p <= last {
			return
		}
		last = p
		fn(p)
	}
}

func encryptField(doc *models.Document, field string, key []byte) ([]byte, error) {
	v, err := fieldValue(doc, field)
	if err != nil {
		return nil, err
	}
	return cryptox.EncryptJSON(v, key)
}

func fieldValue(doc *models.Document, field string) (any, error) {
	switch field {
	case "transactions":
		return doc.Transactions, nil
	case "notes":
		return doc.Notes, nil
	case "categories":
		return doc.Categories, nil
	case "budgets":
		return doc.Budgets, nil
	case "savingsGoals":
		return doc.SavingsGoals, nil
	case "settings":
		return doc.Settings, nil
	case "profile":
		return doc.Profile, nil
	default:
		return nil, fmt.Errorf("unknown document field %q", field)
	}
}

func decryptField(doc *models.Document, field string, blob, key []byte) error {
	switch field {
	case "transactions":
		return cryptox.DecryptJSON(blob, key, &doc.Transactions)
	case "notes":
		return cryptox.DecryptJSON(blob, key, &doc.Notes)
	case "categories":
		return cryptox.DecryptJSON(blob, key, &doc.Categories)
	case "budgets":
		return cryptox.DecryptJSON(blob, key, &doc.Budgets)
	case "savingsGoals":
		return cryptox.DecryptJSON(blob, key, &doc.SavingsGoals)
	case "settings":
		return cryptox.DecryptJSON(blob, key, &doc.Settings)
	case "profile":
		return cryptox.DecryptJSON(blob, key, &doc.Profile)
	default:
		return fmt.Errorf("unknown document field %q", field)
	}
}
