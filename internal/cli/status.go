package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hyperjump/searchsync/internal/indexer"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show collection status and document counts per type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.open()
			if err != nil {
				return err
			}
			defer closeApp(app)
			st := app.Indexer.CollectionStatus(cmd.Context())
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			writeStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func writeStatus(w io.Writer, st indexer.CollectionStatus) {
	switch st.Status {
	case indexer.StatusDisabled:
		fmt.Fprintln(w, "Search is not configured.")
		return
	case indexer.StatusNotFound:
		fmt.Fprintf(w, "Collection %s does not exist. Run 'searchsync collection create'.\n", st.Name)
		return
	case indexer.StatusUnauthorized:
		fmt.Fprintf(w, "Not authorized to read collection %s. Check the API key.\n", st.Name)
		return
	case indexer.StatusError:
		fmt.Fprintf(w, "Could not reach collection %s: %s\n", st.Name, st.Error)
		return
	}
	fmt.Fprintf(w, "Collection: %s\n", st.Name)
	fmt.Fprintf(w, "Documents:  %d\n", st.NumDocuments)
	labels := make([]string, 0, len(st.TypeCounts))
	for l := range st.TypeCounts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(w, "  %-24s %d\n", l, st.TypeCounts[l])
	}
}

func newCollectionCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage the search collection",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the collection with the document schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.open()
			if err != nil {
				return err
			}
			defer closeApp(app)
			if app.Indexer.Collection() == "" {
				return indexer.ErrNotConfigured
			}
			if !app.Indexer.ProvisionCollection(cmd.Context()) {
				return fmt.Errorf("could not create collection %s", app.Indexer.Collection())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collection %s is ready.\n", app.Indexer.Collection())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "empty",
		Short: "Delete every document of this site from the collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.open()
			if err != nil {
				return err
			}
			defer closeApp(app)
			if app.Indexer.Collection() == "" {
				return indexer.ErrNotConfigured
			}
			if !app.Indexer.EmptyCollection(cmd.Context()) {
				return fmt.Errorf("could not empty collection %s", app.Indexer.Collection())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collection %s emptied.\n", app.Indexer.Collection())
			return nil
		},
	})
	return cmd
}
