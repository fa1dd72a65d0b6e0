package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"conduit-facade/internal/client"
	"conduit-facade/internal/domain"
	"conduit-facade/internal/feed"
	"conduit-facade/internal/view"
)

type feedOutput struct {
	Feed     string           `json:"feed"`
	Page     int              `json:"page"`
	URI      string           `json:"uri"`
	Total    int              `json:"articlesCount"`
	Pages    int              `json:"pageCount"`
	Articles []domain.Article `json:"articles"`
}

// newFeedCmd runs one feed load against the API and prints the page as JSON.
func newFeedCmd(opts *rootOptions) *cobra.Command {
	var (
		page  int
		token string
	)

	cmd := &cobra.Command{
		Use:   "feed <feed|global|tag>",
		Short: "Fetch one feed page from the Conduit API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := domain.ParseSelector(args[0])
			if err != nil {
				return err
			}

			cfg := opts.cfg
			conduit := client.NewConduitClient(cfg.ConduitAPIURL, client.Options{
				RequestTimeout: cfg.RequestTimeout,
				RateLimit:      rate.Limit(cfg.APIRateLimit),
				RateBurst:      cfg.APIRateBurst,
				Logger:         opts.logger,
			})
			loader := feed.NewLoader(conduit, feed.WithLogger(opts.logger), feed.WithFetchTimeout(cfg.FetchTimeout))

			result, err := loader.Load(cmd.Context(), selector, page, token)
			if err != nil {
				return err
			}

			out := feedOutput{
				Feed:     selector.String(),
				Page:     page,
				URI:      feed.RequestURI(domain.FeedKey{Selector: selector, Page: page}),
				Total:    result.Total,
				Pages:    view.PageCount(result.Total),
				Articles: result.Articles,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page number")
	cmd.Flags().StringVar(&token, "token", "", "Conduit API token for the personal feed")
	return cmd
}
