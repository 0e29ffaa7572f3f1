// Package cli provides the searchsync command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/pkg/utils"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

type rootFlags struct {
	configPath string
	debug      bool
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "searchsync",
		Short: "Keep a search index in sync with site content",
		Long: `searchsync indexes published site content into a search collection,
keeps it current as content is saved, trashed and deleted, and answers
searches with ordered ids, facets and highlights.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("searchsync version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", DefaultConfigPath, "config file path")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newBuildCmd(flags))
	cmd.AddCommand(newSearchCmd(flags))
	cmd.AddCommand(newStatusCmd(flags))
	cmd.AddCommand(newCollectionCmd(flags))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// open loads the config, builds the logger and wires the app. The caller closes the app
// and syncs the logger.
func (f *rootFlags) open() (*App, error) {
	cfg, path, err := loadConfig(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || f.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debug))
	app, err := NewApp(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

func closeApp(app *App) {
	_ = app.Close()
	_ = app.Logger.Sync()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "searchsync version %s\n", Version)
			return err
		},
	}
}
