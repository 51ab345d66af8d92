// Package cli implements the parcelgrid command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/parcelgrid/pkg/buildinfo"
	"github.com/matzehuels/parcelgrid/pkg/pipeline"
	"github.com/matzehuels/parcelgrid/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display and file names.
	appName = "parcelgrid"

	// defaultDocument is the document the editor reads and writes.
	defaultDocument = "plotsData.json"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag; empty means parcelgrid.toml when present.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Parcelgrid redraws land parcels as uniform rows of lots",
		Long: `Parcelgrid normalizes a JSON document of land parcels. Residential lots are
clustered into rows and redrawn as equal rectangles; parks, administrative
buildings and other special parcels are left untouched.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./"+defaultConfigFile+" if present)")

	root.AddCommand(c.alignCommand())
	root.AddCommand(c.rowsCommand())
	root.AddCommand(c.classifyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Shared Helpers
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner() *pipeline.Runner {
	return pipeline.NewRunner(c.Logger)
}

// documentURI picks the document from the positional argument, the config
// file, or the default, in that order.
func documentURI(args []string, cfg Config) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if cfg.Document != "" {
		return cfg.Document
	}
	return defaultDocument
}

// openStore opens uri and logs where the document lives.
func (c *CLI) openStore(ctx context.Context, uri string) (store.Store, error) {
	st, err := store.Open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	c.Logger.Debug("opened document store", "backend", store.Backend(st), "location", st.Location())
	return st, nil
}

// closeStore closes st, logging instead of failing the command.
func (c *CLI) closeStore(st store.Store) {
	if err := st.Close(); err != nil {
		c.Logger.Warn("close document store", "location", st.Location(), "err", err)
	}
}
