package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/testforge/uidetect/internal/app"
	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
	"github.com/testforge/uidetect/internal/services/detection"
)

// batchRecord is one JSON line of batch output.
type batchRecord struct {
	URL        string                            `json:"url"`
	Context    string                            `json:"context"`
	Results    map[string]domain.DetectionResult `json:"results,omitempty"`
	Missing    []string                          `json:"missing,omitempty"`
	Error      string                            `json:"error,omitempty"`
	DurationMS int64                             `json:"duration_ms"`
}

// pageOpener is the part of browser.Opener a batch needs.
type pageOpener interface {
	Open(ctx context.Context, rawURL string) (page.Page, func(), error)
}

type batchOptions struct {
	urlsFile string
	outFile  string
	tag      string
	parallel int
}

func newBatchCmd() *cobra.Command {
	var opts batchOptions
	cmd := &cobra.Command{
		Use:   "batch --urls file [field...]",
		Short: "Detect the same fields on every URL in a file, one JSON line per URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.urlsFile, "urls", "", "file with one URL per line (# starts a comment)")
	cmd.Flags().StringVarP(&opts.outFile, "out", "o", "", "write JSON lines here instead of stdout")
	cmd.Flags().StringVar(&opts.tag, "context", string(detection.ContextLogin), "context tag: login, search, links or free-form")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 2, "pages processed at once")
	cmd.MarkFlagRequired("urls")
	return cmd
}

func runBatch(cmd *cobra.Command, opts batchOptions, fields []string) error {
	f, err := os.Open(opts.urlsFile)
	if err != nil {
		return fmt.Errorf("opening url list: %w", err)
	}
	urls, err := readURLs(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs in %s", opts.urlsFile)
	}

	dctx := detection.ParseContext(opts.tag)
	if len(requestedFields(dctx, fields)) == 0 {
		return fmt.Errorf("fields are required for the %s context", dctx)
	}

	out := cmd.OutOrStdout()
	if opts.outFile != "" {
		file, err := os.Create(opts.outFile)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer file.Close()
		out = file
	}

	bar := progressbar.NewOptions(len(urls),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Detecting..."),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var summary batchSummary
	err = withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
		return processBatch(ctx, a.Detector, a.Opener, urls, dctx, fields, opts.parallel, out, func(rec batchRecord) {
			summary.add(rec, len(requestedFields(dctx, fields)))
			bar.Add(1)
		})
	})
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	summary.print(os.Stderr)
	return nil
}

// processBatch detects on each URL with at most parallel pages open. Failures are recorded
// per URL and do not stop the batch.
func processBatch(ctx context.Context, d *detection.Detector, opener pageOpener, urls []string, dctx detection.Context, fields []string, parallel int, out io.Writer, done func(batchRecord)) error {
	if parallel < 1 {
		parallel = 1
	}

	var mu sync.Mutex
	enc := json.NewEncoder(out)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, u := range urls {
		g.Go(func() error {
			rec := detectURL(ctx, d, opener, u, dctx, fields)

			mu.Lock()
			defer mu.Unlock()
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("writing result: %w", err)
			}
			done(rec)
			return nil
		})
	}
	return g.Wait()
}

func detectURL(ctx context.Context, d *detection.Detector, opener pageOpener, u string, dctx detection.Context, fields []string) batchRecord {
	start := time.Now()
	rec := batchRecord{URL: u, Context: string(dctx)}

	p, release, err := opener.Open(ctx, u)
	if err != nil {
		rec.Error = err.Error()
		rec.DurationMS = time.Since(start).Milliseconds()
		return rec
	}
	defer release()

	results, err := detectFields(ctx, d, p, dctx, fields)
	rec.Results = results
	rec.Missing = results.Missing(requestedFields(dctx, fields))
	if err != nil {
		rec.Error = err.Error()
	}
	rec.DurationMS = time.Since(start).Milliseconds()
	return rec
}

// readURLs returns the non-blank, non-comment lines of r.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading url list: %w", err)
	}
	return urls, nil
}

type batchSummary struct {
	pages    int
	failed   int
	complete int
	resolved int
	missing  int
}

func (s *batchSummary) add(rec batchRecord, requested int) {
	s.pages++
	if rec.Error != "" && rec.Results == nil {
		s.failed++
		return
	}
	s.resolved += len(rec.Results)
	s.missing += len(rec.Missing)
	if len(rec.Missing) == 0 && requested > 0 {
		s.complete++
	}
}

func (s *batchSummary) print(w io.Writer) {
	cyan.Fprintf(w, "%d pages: ", s.pages)
	green.Fprintf(w, "%d complete", s.complete)
	fmt.Fprint(w, ", ")
	if s.failed > 0 {
		red.Fprintf(w, "%d failed", s.failed)
	} else {
		fmt.Fprint(w, "0 failed")
	}
	fmt.Fprintf(w, ", %d fields resolved, %d missing\n", s.resolved, s.missing)
}
