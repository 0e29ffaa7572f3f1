package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/searchsync/internal/models"
	"github.com/hyperjump/searchsync/internal/search"
)

type searchFlags struct {
	typ       string
	page      int
	perPage   int
	output    string
	serverURL string
}

func newSearchCmd(flags *rootFlags) *cobra.Command {
	sf := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search [flags] <query>",
		Short: "Search the index",
		Long: `Search the index the way the site search does.

The query is all remaining arguments joined by spaces. Use --server to query a
running "searchsync serve" instead of opening the index directly.`,
		Example: `  searchsync search parking
  searchsync search --type event "summer fair"
  searchsync search --server http://localhost:8080 --output json parking`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseOutputFormat(sf.output)
			if err != nil {
				return err
			}
			req := &models.SearchRequest{
				Query:   buildSearchQuery(args),
				Type:    sf.typ,
				Page:    sf.page,
				PerPage: sf.perPage,
			}
			if req.Query == "" {
				return errors.New("query cannot be empty")
			}

			var res *models.SearchResult
			if sf.serverURL != "" {
				res, err = searchViaHTTP(cmd.Context(), sf.serverURL, req)
			} else {
				res, err = searchDirect(cmd.Context(), flags, req)
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return WriteSearchResults(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().StringVar(&sf.typ, "type", "", "only return items of this content type")
	cmd.Flags().IntVar(&sf.page, "page", 1, "result page")
	cmd.Flags().IntVar(&sf.perPage, "per-page", 0, "results per page (0 = configured default)")
	cmd.Flags().StringVar(&sf.output, "output", string(OutputText), "output format: text, compact or json")
	cmd.Flags().StringVar(&sf.serverURL, "server", "", "URL of a running searchsync server")
	return cmd
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func searchDirect(ctx context.Context, flags *rootFlags, req *models.SearchRequest) (*models.SearchResult, error) {
	app, err := flags.open()
	if err != nil {
		return nil, err
	}
	defer closeApp(app)
	return app.Engine.Search(search.WithSession(ctx, search.NewSession()), req)
}

// searchURL returns the search endpoint URL for req on the server at base.
func searchURL(base string, req *models.SearchRequest) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/api/v1/search")
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	q := url.Values{}
	q.Set("q", req.Query)
	if req.Type != "" {
		q.Set("type", req.Type)
	}
	if req.Page > 0 {
		q.Set("page", strconv.Itoa(req.Page))
	}
	if req.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(req.PerPage))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func searchViaHTTP(ctx context.Context, base string, req *models.SearchRequest) (*models.SearchResult, error) {
	target, err := searchURL(base, req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, body.Error)
	}
	var res models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("invalid server response: %w", err)
	}
	return &res, nil
}
