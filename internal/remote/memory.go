package remote

import (
	"context"
	"sync"

	"github.com/finsync-app/finsync/internal/models"
)

// MemStore is an in-memory Store used by tests and offline development.
// The exported error fields inject failures; UploadFailAt sets the progress
// percentage at which UploadErr fires, so partial-transfer failures can be
// simulated.
type MemStore struct {
	mu   sync.Mutex
	docs map[string]*models.Document

	ConnectErr   error
	UploadErr    error
	UploadFailAt int
	DownloadErr  error
}

func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]*models.Document)}
}

func (m *MemStore) Connect(ctx context.Context) error {
	return m.ConnectErr
}

func (m *MemStore) Ping(ctx context.Context) error {
	return m.ConnectErr
}

func (m *MemStore) Upload(ctx context.Context, identity string, doc *models.Document, onProgress ProgressFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := progressReporter(onProgress)
	report(10)

	// mirror the per-field pacing of the S3 adapter
	for i := range documentFields {
		p := 10 + (i+1)*90/len(documentFields)
		if m.UploadErr != nil && p >= m.UploadFailAt {
			return Classify(m.UploadErr)
		}
		report(p)
	}

	m.docs[identity] = doc.Clone()
	return nil
}

func (m *MemStore) Download(ctx context.Context, identity string, onProgress ProgressFunc) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DownloadErr != nil {
		return nil, Classify(m.DownloadErr)
	}

	doc, ok := m.docs[identity]
	if !ok {
		return nil, nil
	}

	report := progressReporter(onProgress)
	report(10)
	for i := range documentFields {
		report(10 + (i+1)*90/len(documentFields))
	}

	return doc.Clone(), nil
}

// Snapshot returns the stored document for an identity, or nil. Test helper.
func (m *MemStore) Snapshot(identity string) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[identity].Clone()
}
