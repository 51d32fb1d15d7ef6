package detection

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
	"github.com/testforge/uidetect/internal/vision"
)

// session is the per-call state shared by the strategies of one detection. It is used
// from the orchestrating goroutine only.
type session struct {
	requestID string
	page      page.Page
	localizer vision.Localizer
	mapper    vision.Reasoner
	cfg       Config
	logger    *zap.Logger
	recorder  Recorder

	screenshot   []byte
	localization *vision.Localization
}

// capture returns the page screenshot, taking it on first use.
func (s *session) capture(ctx context.Context) ([]byte, error) {
	if s.screenshot != nil {
		return s.screenshot, nil
	}
	png, err := s.page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}
	if len(png) == 0 {
		return nil, domain.ErrNoScreenshot
	}
	s.screenshot = png
	return png, nil
}

// localize returns the localizer's element list for the page. Only usable answers are
// memoized, so a later strategy retries after a failure.
func (s *session) localize(ctx context.Context) (*vision.Localization, error) {
	if s.localization != nil {
		return s.localization, nil
	}
	if s.localizer == nil {
		return nil, domain.ErrAIUnavailable
	}

	var loc *vision.Localization
	err := s.withImage(ctx, func(path string) error {
		var err error
		loc, err = s.localizer.Localize(ctx, path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("localizing elements: %w", err)
	}
	if !loc.Usable() {
		return nil, errors.New("localizer returned no elements")
	}

	s.localization = loc
	return loc, nil
}

// reason sends prompt with the page screenshot to the semantic mapper.
func (s *session) reason(ctx context.Context, prompt string) (string, error) {
	if s.mapper == nil {
		return "", domain.ErrAIUnavailable
	}
	var text string
	err := s.withImage(ctx, func(path string) error {
		var err error
		text, err = s.mapper.Reason(ctx, path, prompt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("semantic mapping: %w", err)
	}
	return text, nil
}

// withImage writes the screenshot to a temp file for the duration of fn. The file is
// removed on every exit path; removal failures are logged and swallowed.
func (s *session) withImage(ctx context.Context, fn func(path string) error) error {
	png, err := s.capture(ctx)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(s.cfg.TempDir, "uidetect-*.png")
	if err != nil {
		return fmt.Errorf("creating temp screenshot: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.recorder.RecordTempCleanupFailure()
			s.logger.Warn("failed to remove temp screenshot",
				zap.String("request_id", s.requestID),
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}()

	if _, err := f.Write(png); err != nil {
		f.Close()
		return fmt.Errorf("writing temp screenshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp screenshot: %w", err)
	}

	return fn(path)
}
