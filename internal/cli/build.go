package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/searchsync/internal/indexer"
	"github.com/hyperjump/searchsync/internal/models"
)

func newBuildCmd(flags *rootFlags) *cobra.Command {
	var settings, clearIndex bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the index from all published content",
		Long: `Index every published item of every indexable content type.

  --settings     send the collection schema before indexing
  --clearindex   delete every document of this site before indexing`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.open()
			if err != nil {
				return err
			}
			defer closeApp(app)
			return runBuild(cmd, app, indexer.RebuildOptions{Provision: settings, Clear: clearIndex})
		},
	}
	cmd.Flags().BoolVar(&settings, "settings", false, "provision the collection before indexing")
	cmd.Flags().BoolVar(&clearIndex, "clearindex", false, "clear the collection before indexing")
	return cmd
}

// runBuild fails only when no indexable content can be enumerated. Every other problem
// is reported and the command exits normally.
func runBuild(cmd *cobra.Command, app *App, opts indexer.RebuildOptions) error {
	out := cmd.OutOrStdout()
	if !app.Options.IsConfigured() {
		fmt.Fprintln(out, "Search must be configured before indexing, terminating...")
		return nil
	}
	if opts.Provision {
		fmt.Fprintln(out, "Sending settings...")
	}
	if opts.Clear {
		fmt.Fprintln(out, "Clearing index...")
	}
	fmt.Fprintf(out, "Starting index build for site %s\n", app.Config.Site.BaseURL)

	opts.Progress = func(item *models.ContentItem, _ indexer.Outcome) {
		fmt.Fprintf(out, "Indexing '%s' of type %s\n", item.Title, item.Type)
	}
	report, err := app.Rebuilder.Run(cmd.Context(), opts)
	switch {
	case errors.Is(err, indexer.ErrNoIndexableTypes):
		return fmt.Errorf("could not find any indexable content types, this happens when no content is public")
	case errors.Is(err, indexer.ErrEnumerate):
		return err
	case err != nil:
		fmt.Fprintf(out, "Error: %v\n", err)
		return nil
	}

	if report.Failed() > 0 {
		fmt.Fprintf(out, "Build finished with %d of %d items failed in %s\n", report.Failed(), report.Total, report.Duration)
		return nil
	}
	fmt.Fprintf(out, "Success: Build done! %d items processed in %s\n", report.Total, report.Duration)
	return nil
}
