package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/testforge/uidetect/internal/app"
	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
	"github.com/testforge/uidetect/internal/services/detection"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [field...]",
		Short: "Find the username, password and submit elements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(cmd, detection.ContextLogin, args)
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [field...]",
		Short: "Find the search input and button",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(cmd, detection.ContextSearch, args)
		},
	}
}

func newLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links [name...]",
		Short: "Find links such as product_links or pricing",
		Long:  "Find links by name. With no names, product_links, nav_links and action_links are detected.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(cmd, detection.ContextLinks, args)
		},
	}
}

func newDetectCmd() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "detect field...",
		Short: "Run the full waterfall for arbitrary field names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(cmd, detection.ParseContext(tag), args)
		},
	}
	cmd.Flags().StringVar(&tag, "context", "generic", "context tag: login, search, links or free-form")
	return cmd
}

func newGenericCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `generic "description"...`,
		Short: "Find elements matching natural-language descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPage(cmd, func(ctx context.Context, a *app.App, p page.Page) error {
				elements, err := a.Detector.DetectGenericElements(ctx, p, args)
				if err != nil {
					return err
				}
				return printElements(cmd.OutOrStdout(), args, elements)
			})
		},
	}
}

func runFields(cmd *cobra.Command, dctx detection.Context, fields []string) error {
	return withPage(cmd, func(ctx context.Context, a *app.App, p page.Page) error {
		results, err := detectFields(ctx, a.Detector, p, dctx, fields)
		if results != nil {
			// Partial results are still worth printing after a timeout.
			if printErr := printResults(cmd.OutOrStdout(), dctx, requestedFields(dctx, fields), results); printErr != nil {
				return printErr
			}
		}
		return err
	})
}

func detectFields(ctx context.Context, d *detection.Detector, p page.Page, dctx detection.Context, fields []string) (detection.Results, error) {
	switch dctx {
	case detection.ContextLogin:
		return d.DetectLoginElements(ctx, p, fields...)
	case detection.ContextSearch:
		return d.DetectSearchElements(ctx, p, fields...)
	case detection.ContextLinks:
		return d.DetectLinkElements(ctx, p, fields)
	default:
		return d.Detect(ctx, p, fields, dctx)
	}
}

// requestedFields mirrors the defaults the detector applies.
func requestedFields(dctx detection.Context, fields []string) []string {
	if len(fields) > 0 {
		return fields
	}
	switch dctx {
	case detection.ContextLogin:
		return detection.DefaultLoginFields
	case detection.ContextSearch:
		return detection.DefaultSearchFields
	case detection.ContextLinks:
		return detection.DefaultLinkFields
	}
	return nil
}

// withPage resolves --html or --url into a page and runs fn against it.
func withPage(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, p page.Page) error) error {
	if (flags.htmlFile == "") == (flags.url == "") {
		return errors.New("exactly one of --html or --url is required")
	}

	if flags.htmlFile != "" {
		p, err := loadStaticPage(cmd.InOrStdin(), flags.htmlFile, flags.screenshot)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
			return fn(ctx, a, p)
		})
	}

	return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
		p, release, err := a.Opener.Open(ctx, flags.url)
		if err != nil {
			return err
		}
		defer release()
		return fn(ctx, a, p)
	})
}

// loadStaticPage parses an HTML file, or stdin for "-", and attaches an optional screenshot.
func loadStaticPage(stdin io.Reader, htmlPath, screenshotPath string) (page.Page, error) {
	var r io.Reader = stdin
	if htmlPath != "-" {
		f, err := os.Open(htmlPath)
		if err != nil {
			return nil, fmt.Errorf("opening html: %w", err)
		}
		defer f.Close()
		r = f
	}

	p, err := page.NewStaticPage(r)
	if err != nil {
		return nil, err
	}
	if screenshotPath == "" {
		return p, nil
	}

	png, err := os.ReadFile(screenshotPath)
	if err != nil {
		return nil, fmt.Errorf("reading screenshot: %w", err)
	}
	if !strings.HasPrefix(string(png), "\x89PNG") {
		return nil, domain.ErrValidationField("screenshot", "screenshot must be a PNG file")
	}
	return p.WithScreenshot(png), nil
}
