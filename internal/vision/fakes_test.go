package vision

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "shot-*.png")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return filepath.Clean(f.Name())
}

type fakeLocalizer struct {
	mu     sync.Mutex
	calls  int
	result *Localization
	err    error
	closed bool
}

func (f *fakeLocalizer) Localize(ctx context.Context, imagePath string) (*Localization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *fakeLocalizer) Close() error {
	f.closed = true
	return nil
}

type fakeReasoner struct {
	mu       sync.Mutex
	response string
	err      error
	paths    []string
	prompts  []string
	// onReason runs while the image file still exists.
	onReason func(imagePath string)
}

func (f *fakeReasoner) Reason(ctx context.Context, imagePath, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, imagePath)
	f.prompts = append(f.prompts, prompt)
	if f.onReason != nil {
		f.onReason(imagePath)
	}
	return f.response, f.err
}

func (f *fakeReasoner) Close() error { return nil }

type memoryStore struct {
	data     map[string]*Localization
	getErr   error
	setCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]*Localization)}
}

func (m *memoryStore) GetLocalization(ctx context.Context, digest string) (*Localization, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[digest], nil
}

func (m *memoryStore) SetLocalization(ctx context.Context, digest string, loc *Localization) error {
	m.setCalls++
	m.data[digest] = loc
	return nil
}

type recorded struct {
	service, status string
}

type fakeRecorder struct {
	calls []recorded
	hits  int
	miss  int
}

func (r *fakeRecorder) RecordVision(service, status string, _ time.Duration) {
	r.calls = append(r.calls, recorded{service, status})
}

func (r *fakeRecorder) RecordCache(hit bool) {
	if hit {
		r.hits++
		return
	}
	r.miss++
}
