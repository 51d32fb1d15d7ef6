package detection

import (
	"context"
	"strings"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
)

// candidate is a visible, rendered element.
type candidate struct {
	loc page.Locator
	box domain.Rect
}

// firstVisible returns the first of at most limit matches of loc that is visible and has
// a non-empty bounding box.
func firstVisible(ctx context.Context, loc page.Locator, limit int) (candidate, bool, error) {
	var found candidate
	ok, err := eachVisible(ctx, loc, limit, func(c candidate) (bool, error) {
		found = c
		return true, nil
	})
	return found, ok, err
}

// eachVisible calls fn for every visible, boundable match of loc until fn returns true.
func eachVisible(ctx context.Context, loc page.Locator, limit int, fn func(candidate) (bool, error)) (bool, error) {
	n, err := loc.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		el := loc.Nth(i)
		visible, err := el.IsVisible(ctx)
		if err != nil || !visible {
			continue
		}
		box, err := el.BoundingBox(ctx)
		if err != nil || box == nil || box.Empty() {
			continue
		}
		done, err := fn(candidate{loc: el, box: *box})
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
	}
	return false, nil
}

// domResult builds a box result for a DOM candidate. Link results carry the anchor's
// text and href.
func domResult(ctx context.Context, f Field, c candidate, strategy domain.DetectionStrategy, confidence float64) domain.DetectionResult {
	elementType := f.ElementType
	if f.Inferred {
		elementType = classify(ctx, c.loc)
	}

	r := domain.NewBoxResult(elementType, strategy, c.box, confidence)
	r.Description = f.Description

	if elementType == domain.ElementLink {
		text, _ := c.loc.TextContent(ctx)
		href, _ := c.loc.GetAttribute(ctx, "href")
		r = r.WithMeta(domain.MetaText, strings.Join(strings.Fields(text), " ")).
			WithMeta(domain.MetaHref, href)
	}
	return r
}

func classify(ctx context.Context, loc page.Locator) domain.ElementType {
	tag, err := loc.TagName(ctx)
	if err != nil {
		return domain.ElementButtonGeneric
	}
	if role, _ := loc.GetAttribute(ctx, "role"); role == "link" {
		return domain.ElementLink
	}
	typeAttr, _ := loc.GetAttribute(ctx, "type")
	return domain.ElementTypeFromTag(strings.ToLower(tag), strings.ToLower(typeAttr))
}
