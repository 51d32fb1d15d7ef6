package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// LocalizationStore persists localizer responses by image digest.
type LocalizationStore interface {
	GetLocalization(ctx context.Context, digest string) (*Localization, error)
	SetLocalization(ctx context.Context, digest string, loc *Localization) error
}

// CacheRecorder observes cache lookups.
type CacheRecorder interface {
	RecordCache(hit bool)
}

// CachedLocalizer serves repeated screenshots of an unchanged page from a store. Store
// errors degrade to a direct localizer call.
type CachedLocalizer struct {
	next     Localizer
	store    LocalizationStore
	recorder CacheRecorder
	logger   *zap.Logger
}

// NewCachedLocalizer wraps next. recorder may be nil.
func NewCachedLocalizer(next Localizer, store LocalizationStore, recorder CacheRecorder, logger *zap.Logger) *CachedLocalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLocalizer{next: next, store: store, recorder: recorder, logger: logger}
}

func (c *CachedLocalizer) Localize(ctx context.Context, imagePath string) (*Localization, error) {
	digest, err := fileDigest(imagePath)
	if err != nil {
		return nil, err
	}

	cached, err := c.store.GetLocalization(ctx, digest)
	if err != nil {
		c.logger.Warn("localization cache read failed", zap.Error(err))
	}
	if cached != nil {
		c.record(true)
		return cached, nil
	}
	c.record(false)

	loc, err := c.next.Localize(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	// Only usable answers are worth replaying.
	if loc.Usable() {
		if err := c.store.SetLocalization(ctx, digest, loc); err != nil {
			c.logger.Warn("localization cache write failed", zap.Error(err))
		}
	}
	return loc, nil
}

func (c *CachedLocalizer) Close() error {
	return c.next.Close()
}

func (c *CachedLocalizer) record(hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCache(hit)
	}
}

func fileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
