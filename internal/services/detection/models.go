package detection

import (
	"context"
	"time"

	"github.com/testforge/uidetect/internal/domain"
)

// Context selects the prompt and selector library a detection call uses.
type Context string

const (
	ContextLogin   Context = "login"
	ContextSearch  Context = "search"
	ContextLinks   Context = "links"
	ContextGeneric Context = "generic"
)

// ParseContext maps a free-form tag onto a Context. Unknown tags are generic.
func ParseContext(tag string) Context {
	switch Context(tag) {
	case ContextLogin, ContextSearch, ContextLinks:
		return Context(tag)
	}
	return ContextGeneric
}

// Results maps each resolved field name to its detection. Unresolved fields are absent.
type Results map[string]domain.DetectionResult

// Missing returns the names in fields that have no result.
func (r Results) Missing(fields []string) []string {
	var missing []string
	for _, name := range fields {
		if _, ok := r[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// SelectorTiers are tried in order. The first selector of a tier with a visible,
// boundable element wins.
type SelectorTiers struct {
	CSS   []string
	XPath []string
	Text  []string
}

func (t SelectorTiers) Empty() bool {
	return len(t.CSS) == 0 && len(t.XPath) == 0 && len(t.Text) == 0
}

// Field is one requested logical UI role.
type Field struct {
	Name        string
	Description string
	ElementType domain.ElementType
	Keywords    []string
	Selectors   SelectorTiers
	// Inferred is set for names outside the vocabulary; DOM strategies then classify
	// matches by tag instead of trusting ElementType.
	Inferred bool
}

// Config tunes a Detector.
type Config struct {
	// FieldConcurrency bounds per-field fan-out inside the DOM strategies.
	FieldConcurrency int
	// MaxCandidates is how many matches of one selector are checked for visibility.
	MaxCandidates int
	// TempDir holds screenshots while an AI call reads them. Empty means os.TempDir.
	TempDir string
	// ArchiveUnresolved uploads the screenshot of calls that leave fields missing.
	ArchiveUnresolved bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FieldConcurrency: 4,
		MaxCandidates:    10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FieldConcurrency <= 0 {
		c.FieldConcurrency = def.FieldConcurrency
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = def.MaxCandidates
	}
	return c
}

// Recorder receives detection metrics. observability.Metrics satisfies it.
type Recorder interface {
	RecordDetection(context string, requested, resolved int, duration time.Duration)
	RecordStrategy(strategy string, resolved int, err error, duration time.Duration)
	RecordTempCleanupFailure()
	RecordArchive()
}

// ScreenshotArchive keeps the screenshot of a detection that left fields unresolved.
type ScreenshotArchive interface {
	ArchiveScreenshot(ctx context.Context, requestID, detectionContext string, png []byte, missing []string) (string, error)
}

type nopRecorder struct{}

func (nopRecorder) RecordDetection(string, int, int, time.Duration) {}
func (nopRecorder) RecordStrategy(string, int, error, time.Duration) {}
func (nopRecorder) RecordTempCleanupFailure() {}
func (nopRecorder) RecordArchive() {}
