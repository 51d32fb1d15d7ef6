package page

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/testforge/uidetect/internal/domain"
)

// Synthetic layout used when an element carries no data-bbox attribute: elements are
// stacked vertically in document order.
const (
	staticLeft      = 16.0
	staticTop       = 16.0
	staticRowHeight = 40.0
	staticWidth     = 240.0
	staticHeight    = 32.0
)

// StaticPage is a Page over a parsed HTML document. It has no layout engine, so boxes come
// from a data-bbox="x,y,w,h" attribute or from a deterministic row layout.
type StaticPage struct {
	root       *html.Node
	doc        *goquery.Document
	order      map[*html.Node]int
	screenshot []byte
}

// NewStaticPage parses an HTML document.
func NewStaticPage(r io.Reader) (*StaticPage, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	p := &StaticPage{
		root:  root,
		doc:   goquery.NewDocumentFromNode(root),
		order: make(map[*html.Node]int),
	}

	i := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.order[n] = i
			i++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return p, nil
}

// NewStaticPageFromString parses an HTML string.
func NewStaticPageFromString(doc string) (*StaticPage, error) {
	return NewStaticPage(strings.NewReader(doc))
}

// WithScreenshot attaches image bytes returned by Screenshot.
func (p *StaticPage) WithScreenshot(png []byte) *StaticPage {
	p.screenshot = png
	return p
}

func (p *StaticPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.screenshot) == 0 {
		return nil, domain.ErrNoScreenshot
	}
	return p.screenshot, nil
}

func (p *StaticPage) Locator(selector string) Locator {
	return &staticLocator{page: p, sel: ParseSelector(selector), index: -1}
}

func (p *StaticPage) query(sel Selector) ([]*html.Node, error) {
	var nodes []*html.Node

	if sel.XPath {
		found, err := htmlquery.QueryAll(p.root, sel.Query)
		if err != nil {
			return nil, fmt.Errorf("xpath %q: %w", sel.Query, err)
		}
		for _, n := range found {
			if n.Type == html.ElementNode {
				nodes = append(nodes, n)
			}
		}
	} else {
		nodes = p.doc.Find(sel.Query).Nodes
	}

	if sel.HasText == "" {
		return nodes, nil
	}

	filtered := nodes[:0:0]
	for _, n := range nodes {
		if sel.MatchesText(htmlquery.InnerText(n)) {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}

type staticLocator struct {
	page  *StaticPage
	sel   Selector
	index int
}

func (l *staticLocator) nodes(ctx context.Context) ([]*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := l.page.query(l.sel)
	if err != nil {
		return nil, err
	}
	if l.index < 0 {
		return nodes, nil
	}
	if l.index >= len(nodes) {
		return nil, nil
	}
	return nodes[l.index : l.index+1], nil
}

func (l *staticLocator) node(ctx context.Context) (*html.Node, error) {
	nodes, err := l.nodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no element matches %q", l.sel.Raw)
	}
	return nodes[0], nil
}

func (l *staticLocator) Count(ctx context.Context) (int, error) {
	nodes, err := l.nodes(ctx)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (l *staticLocator) Nth(i int) Locator {
	return &staticLocator{page: l.page, sel: l.sel, index: i}
}

func (l *staticLocator) BoundingBox(ctx context.Context) (*domain.Rect, error) {
	n, err := l.node(ctx)
	if err != nil {
		return nil, err
	}
	if !visible(n) {
		return nil, nil
	}
	if box, ok := parseBBox(htmlquery.SelectAttr(n, "data-bbox")); ok {
		return &box, nil
	}
	row := float64(l.page.order[n])
	return &domain.Rect{
		X:      staticLeft,
		Y:      staticTop + row*staticRowHeight,
		Width:  staticWidth,
		Height: staticHeight,
	}, nil
}

func (l *staticLocator) TextContent(ctx context.Context) (string, error) {
	n, err := l.node(ctx)
	if err != nil {
		return "", err
	}
	return htmlquery.InnerText(n), nil
}

func (l *staticLocator) GetAttribute(ctx context.Context, name string) (string, error) {
	n, err := l.node(ctx)
	if err != nil {
		return "", err
	}
	return htmlquery.SelectAttr(n, name), nil
}

func (l *staticLocator) IsVisible(ctx context.Context) (bool, error) {
	n, err := l.node(ctx)
	if err != nil {
		return false, err
	}
	return visible(n), nil
}

func (l *staticLocator) TagName(ctx context.Context) (string, error) {
	n, err := l.node(ctx)
	if err != nil {
		return "", err
	}
	return strings.ToLower(n.Data), nil
}

// visible walks up the tree looking for anything that would keep the element from rendering.
func visible(n *html.Node) bool {
	if n.Data == "input" && strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden") {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		switch cur.Data {
		case "head", "script", "style", "template", "noscript":
			return false
		}
		for _, attr := range cur.Attr {
			if attr.Key == "hidden" {
				return false
			}
			if attr.Key == "style" {
				style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false
				}
			}
		}
	}
	return true
}

func parseBBox(raw string) (domain.Rect, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return domain.Rect{}, false
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Rect{}, false
		}
		vals[i] = v
	}
	return domain.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, true
}
