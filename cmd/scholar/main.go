// Package main is the entry point for the scholar command line client. It
// runs the same registry and aggregator as the HTTP server, in process.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/scholar-aggregator/internal/app"
	"github.com/helixir/scholar-aggregator/internal/config"
	"github.com/helixir/scholar-aggregator/internal/observability"
)

// version is set at build time via ldflags.
var version = "dev"

// cli carries the global flags and the lazily built services shared by
// every subcommand.
type cli struct {
	configFile string
	output     string
	verbose    bool

	stdout io.Writer
	stderr io.Writer

	cfg      *config.Config
	logger   zerolog.Logger
	services *app.App
}

// newRootCmd builds the command tree writing results to stdout and logs to
// stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "scholar",
		Short: "Search and analyze papers across PubMed, arXiv, bioRxiv, medRxiv, Semantic Scholar and Sci-Hub",
		Long: `scholar queries several academic paper sources through one interface.
A search addressed to "all" fans out to every enabled source and merges the
results, keeping the first record seen for each paper in source order.

Results are printed as JSON or YAML; logs go to stderr.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.validateOutput()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/scholar-aggregator/config.yaml)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", formatJSON, "output format: json or yaml")
	root.PersistentFlags().BoolVar(&c.verbose, "verbose", false, "log at debug level")

	root.AddCommand(
		c.newSearchCmd(),
		c.newAdvancedCmd(),
		c.newSourcesCmd(),
		c.newMetadataCmd(),
		c.newDownloadCmd(),
		c.newPromptCmd(),
		c.newSummaryCmd(),
		c.newAnalyzeCmd(),
		c.newWorkflowCmd(),
	)
	return root
}

// load reads the configuration and builds the services once.
func (c *cli) load() (*app.App, error) {
	if c.services != nil {
		return c.services, nil
	}

	cfg, err := config.LoadFile(c.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	logCfg := observability.LoggingConfig{
		Level:      "warn",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: cfg.Logging.TimeFormat,
	}
	if c.verbose {
		logCfg.Level = "debug"
	}
	c.logger = observability.NewLogger(logCfg).With().Str("component", "cli").Logger()

	services, err := app.New(cfg, c.logger, nil)
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	c.services = services
	return services, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
