package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/services/detection"
)

type fieldReport struct {
	Context string                            `json:"context"`
	Results map[string]domain.DetectionResult `json:"results"`
	Missing []string                          `json:"missing,omitempty"`
}

func printResults(w io.Writer, dctx detection.Context, fields []string, results detection.Results) error {
	if results == nil {
		results = detection.Results{}
	}
	missing := results.Missing(fields)

	if flags.jsonOut {
		return writeJSON(w, fieldReport{Context: string(dctx), Results: results, Missing: missing})
	}

	cyan.Fprintf(w, "%s detection: %d/%d resolved\n", dctx, len(results), len(fields))

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printResult(w, name, results[name])
	}
	for _, name := range missing {
		red.Fprintf(w, "  ✗ %s\n", name)
	}
	return nil
}

func printElements(w io.Writer, descriptions []string, elements []domain.DetectionResult) error {
	if flags.jsonOut {
		return writeJSON(w, elements)
	}

	cyan.Fprintf(w, "generic detection: %d/%d matched\n", len(elements), len(descriptions))
	for _, el := range elements {
		printResult(w, el.Description, el)
	}
	return nil
}

func printResult(w io.Writer, name string, r domain.DetectionResult) {
	mark := green
	if r.Confidence < r.Strategy.MinConfidence()+0.1 {
		mark = yellow
	}
	mark.Fprintf(w, "  ✓ %-16s", name)
	fmt.Fprintf(w, " (%.0f, %.0f) %-12s %.2f", r.X, r.Y, r.Strategy, r.Confidence)
	switch {
	case r.Selector != "":
		dim.Fprintf(w, "  %s", r.Selector)
	case r.Metadata[domain.MetaKeyword] != nil:
		dim.Fprintf(w, "  keyword %v", r.Metadata[domain.MetaKeyword])
	}
	if href, ok := r.Metadata[domain.MetaHref]; ok {
		dim.Fprintf(w, "  → %v", href)
	}
	fmt.Fprintln(w)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
