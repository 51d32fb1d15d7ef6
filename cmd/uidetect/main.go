// Command uidetect finds login, search, link and free-form UI elements on a page.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/app"
	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/observability"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	dim    = color.New(color.Faint)
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	htmlFile   string
	url        string
	screenshot string
	jsonOut    bool
	noAI       bool
	engine     string
	verbose    bool
	timeout    time.Duration
}

var flags globalFlags

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "uidetect",
		Short:         "Locate UI elements with AI, selectors and text patterns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.jsonOut {
				color.NoColor = true
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.htmlFile, "html", "", "HTML file to detect on (- reads stdin)")
	pf.StringVar(&flags.url, "url", "", "URL to open in a browser")
	pf.StringVar(&flags.screenshot, "screenshot", "", "PNG screenshot accompanying --html")
	pf.BoolVar(&flags.jsonOut, "json", false, "print results as JSON")
	pf.BoolVar(&flags.noAI, "no-ai", false, "disable the AI localizer and mapper")
	pf.StringVar(&flags.engine, "engine", "", "browser engine for --url: playwright or rod")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log detection progress")
	pf.DurationVar(&flags.timeout, "timeout", 2*time.Minute, "overall timeout")

	root.AddCommand(
		newLoginCmd(),
		newSearchCmd(),
		newLinksCmd(),
		newGenericCmd(),
		newDetectCmd(),
		newBatchCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		red.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment, switching AI off first when --no-ai is set.
func loadConfig() (*config.Config, error) {
	if flags.noAI {
		os.Setenv("LOCALIZER_MODE", "off")
		os.Setenv("MAPPER_PROVIDER", "off")
	}
	if flags.engine != "" {
		os.Setenv("BROWSER_ENGINE", flags.engine)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%w (use --no-ai to run without AI services)", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	if !flags.verbose {
		return zap.NewNop()
	}
	return observability.NewLogger(string(cfg.Env), cfg.GetLogLevel())
}

// withApp builds the detector for one command and releases it afterwards.
func withApp(ctx context.Context, needBrowser bool, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger, app.Options{Browser: needBrowser, Redis: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to release resources", zap.Error(err))
		}
	}()

	if needBrowser && a.Opener == nil {
		return fmt.Errorf("browser is not available; install it or pass --html")
	}
	return fn(ctx, a)
}
