package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/domain"
)

const localizePrompt = `You are a UI element localizer. The attached screenshot is %dx%d pixels.
List every visible UI element (inputs, buttons, links, checkboxes, dropdowns, images, text labels).

Return ONLY a JSON object of the form:
{"ui_elements": [{"type": "input|button|link|checkbox|radio|dropdown|textarea|image|text|icon", "content": "visible text, placeholder or label", "center": [x, y], "confidence": 0.0-1.0, "interactable": true|false}]}

Coordinates are pixel centers in the attached image. List elements top to bottom, left to right.`

// ReasonerLocalizer produces a Localization by prompting a general vision model. Screenshots
// wider than MaxWidth are downscaled first and centers are mapped back to page pixels.
type ReasonerLocalizer struct {
	reasoner Reasoner
	maxWidth uint
	tempDir  string
	logger   *zap.Logger
}

// NewReasonerLocalizer wraps reasoner. A zero maxWidth disables downscaling.
func NewReasonerLocalizer(reasoner Reasoner, maxWidth int, tempDir string, logger *zap.Logger) *ReasonerLocalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWidth < 0 {
		maxWidth = 0
	}
	return &ReasonerLocalizer{reasoner: reasoner, maxWidth: uint(maxWidth), tempDir: tempDir, logger: logger}
}

func (l *ReasonerLocalizer) Localize(ctx context.Context, imagePath string) (*Localization, error) {
	path, width, height, scale, cleanup, err := l.prepare(imagePath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	text, err := l.reasoner.Reason(ctx, path, fmt.Sprintf(localizePrompt, width, height))
	if err != nil {
		return nil, err
	}

	raw, ok := FirstJSONObject(text)
	if !ok {
		return nil, domain.ErrMalformedAIOutput("localizer", fmt.Errorf("no JSON object in response"))
	}
	loc, err := ParseLocalization([]byte(raw))
	if err != nil {
		return nil, domain.ErrMalformedAIOutput("localizer", err)
	}

	if scale != 1 {
		for i := range loc.Elements {
			loc.Elements[i].Center[0] *= scale
			loc.Elements[i].Center[1] *= scale
		}
	}
	return loc, nil
}

func (l *ReasonerLocalizer) Close() error {
	return l.reasoner.Close()
}

// prepare returns the image to send, its dimensions, the factor mapping its pixels back to
// the original, and a cleanup func for any temp file it created.
func (l *ReasonerLocalizer) prepare(imagePath string) (string, int, int, float64, func(), error) {
	noop := func() {}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", 0, 0, 0, noop, fmt.Errorf("reading image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, 0, noop, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if l.maxWidth == 0 || uint(width) <= l.maxWidth {
		return imagePath, width, height, 1, noop, nil
	}

	resized := resize.Thumbnail(l.maxWidth, uint(height), img, resize.Lanczos3)

	f, err := os.CreateTemp(l.tempDir, "uidetect-scaled-*.png")
	if err != nil {
		return "", 0, 0, 0, noop, fmt.Errorf("creating temp image: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			l.logger.Warn("failed to remove scaled screenshot", zap.String("path", f.Name()), zap.Error(err))
		}
	}
	if err := png.Encode(f, resized); err != nil {
		f.Close()
		cleanup()
		return "", 0, 0, 0, noop, fmt.Errorf("encoding scaled image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", 0, 0, 0, noop, fmt.Errorf("writing scaled image: %w", err)
	}

	rb := resized.Bounds()
	return f.Name(), rb.Dx(), rb.Dy(), float64(width) / float64(rb.Dx()), cleanup, nil
}
