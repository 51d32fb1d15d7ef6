package detection

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
	"github.com/testforge/uidetect/internal/vision"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nfake screenshot")

func staticPage(t *testing.T, doc string) *page.StaticPage {
	t.Helper()
	p, err := page.NewStaticPageFromString(doc)
	require.NoError(t, err)
	return p.WithScreenshot(fakePNG)
}

type fakeLocalizer struct {
	mu      sync.Mutex
	result  *vision.Localization
	err     error
	calls   int
	paths   []string
	existed []bool
	closed  int
}

func (f *fakeLocalizer) Localize(ctx context.Context, imagePath string) (*vision.Localization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.paths = append(f.paths, imagePath)
	_, statErr := os.Stat(imagePath)
	f.existed = append(f.existed, statErr == nil)
	return f.result, f.err
}

func (f *fakeLocalizer) Close() error {
	f.closed++
	return nil
}

type fakeMapper struct {
	mu       sync.Mutex
	respond  func(prompt string) (string, error)
	prompts  []string
	paths    []string
	closed   int
	closeErr error
}

func replyWith(text string) *fakeMapper {
	return &fakeMapper{respond: func(string) (string, error) { return text, nil }}
}

func (f *fakeMapper) Reason(ctx context.Context, imagePath, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.paths = append(f.paths, imagePath)
	return f.respond(prompt)
}

func (f *fakeMapper) Close() error {
	f.closed++
	return f.closeErr
}

type strategyCall struct {
	strategy string
	resolved int
	err      error
}

type fakeRecorder struct {
	mu         sync.Mutex
	strategies []strategyCall
	detections int
	resolved   int
	cleanup    int
	archived   int
}

func (r *fakeRecorder) RecordDetection(_ string, _, resolved int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detections++
	r.resolved += resolved
}

func (r *fakeRecorder) RecordStrategy(strategy string, resolved int, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, strategyCall{strategy, resolved, err})
}

func (r *fakeRecorder) RecordTempCleanupFailure() { r.cleanup++ }
func (r *fakeRecorder) RecordArchive() { r.archived++ }

type fakeArchive struct {
	requestID string
	context   string
	png       []byte
	missing   []string
}

func (a *fakeArchive) ArchiveScreenshot(ctx context.Context, requestID, detectionContext string, png []byte, missing []string) (string, error) {
	a.requestID = requestID
	a.context = detectionContext
	a.png = png
	a.missing = missing
	return "s3://uidetect/unresolved/" + requestID + ".png", nil
}

// fixedStrategy resolves the listed fields at a fixed confidence.
type fixedStrategy struct {
	name       domain.DetectionStrategy
	confidence map[string]float64
}

func (s fixedStrategy) Name() domain.DetectionStrategy { return s.name }

func (s fixedStrategy) Attempt(ctx context.Context, _ *session, fields []Field, _ Context) (Results, error) {
	found := make(Results)
	for _, f := range fields {
		if c, ok := s.confidence[f.Name]; ok {
			found[f.Name] = domain.NewPointResult(f.ElementType, s.name, 1, 1, c)
		}
	}
	return found, nil
}

type failingStrategy struct {
	name domain.DetectionStrategy
	err  error
}

func (s failingStrategy) Name() domain.DetectionStrategy { return s.name }

func (s failingStrategy) Attempt(context.Context, *session, []Field, Context) (Results, error) {
	return nil, s.err
}

type panickingStrategy struct{}

func (panickingStrategy) Name() domain.DetectionStrategy { return domain.StrategyStackedAI }

func (panickingStrategy) Attempt(context.Context, *session, []Field, Context) (Results, error) {
	panic("nil element list")
}

var errBoom = errors.New("boom")
