package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// sourceResult reports one source of a search.
type sourceResult struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// searchResult is the printed form of a search outcome.
type searchResult struct {
	Papers  []domain.Paper `json:"papers"`
	Total   int            `json:"total"`
	Sources []sourceResult `json:"sources"`
}

func newSearchResult(o *papersources.Outcome) searchResult {
	res := searchResult{
		Papers:  o.Papers,
		Total:   len(o.Papers),
		Sources: make([]sourceResult, 0, len(o.Sources)),
	}
	if res.Papers == nil {
		res.Papers = []domain.Paper{}
	}
	for _, s := range o.Sources {
		sr := sourceResult{Source: string(s.Source), Count: s.Count}
		if s.Err != nil {
			sr.Error = s.Err.Error()
		}
		res.Sources = append(res.Sources, sr)
	}
	return res
}

func (c *cli) newSearchCmd() *cobra.Command {
	var (
		source     string
		numResults int
	)
	cmd := &cobra.Command{
		Use:   "search <keywords...>",
		Short: "Search papers by keywords",
		Long: `Search runs a keyword query against one source, or against every enabled
source when --source is "all". Sources that fail are listed with their
error; their failure does not affect the other sources.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.load()
			if err != nil {
				return err
			}
			keywords := strings.Join(args, " ")
			outcome, err := services.Aggregator.SearchByKeywords(cmd.Context(), source, keywords, numResults)
			if err != nil {
				return err
			}
			return c.print(newSearchResult(outcome))
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", domain.SelectorAll, "source name or \"all\"")
	cmd.Flags().IntVarP(&numResults, "num-results", "n", domain.DefaultNumResults, "maximum number of results per source")
	return cmd
}

func (c *cli) newAdvancedCmd() *cobra.Command {
	var source string
	req := domain.NewSearchRequest()

	cmd := &cobra.Command{
		Use:   "advanced",
		Short: "Search papers by title, author, journal, date range and term",
		Long: `Advanced combines the given criteria. Only the criteria that are set are
sent to the sources. Dates use the YYYY-MM-DD format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateDates(req); err != nil {
				return err
			}
			services, err := c.load()
			if err != nil {
				return err
			}
			outcome, err := services.Aggregator.SearchAdvanced(cmd.Context(), source, req)
			if err != nil {
				return err
			}
			return c.print(newSearchResult(outcome))
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", domain.SelectorAll, "source name or \"all\"")
	cmd.Flags().StringVar(&req.Title, "title", "", "words in the title")
	cmd.Flags().StringVar(&req.Author, "author", "", "author name")
	cmd.Flags().StringVar(&req.Journal, "journal", "", "journal or venue")
	cmd.Flags().StringVar(&req.StartDate, "start-date", "", "earliest publication date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.EndDate, "end-date", "", "latest publication date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.Term, "term", "", "free-text term")
	cmd.Flags().IntVarP(&req.NumResults, "num-results", "n", domain.DefaultNumResults, "maximum number of results per source")
	return cmd
}

// validateDates rejects malformed dates before any source is queried.
func validateDates(req domain.SearchRequest) error {
	dates := []struct{ flag, value string }{
		{"start-date", req.StartDate},
		{"end-date", req.EndDate},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		if _, err := domain.ParseDate(d.value); err != nil {
			return domain.NewValidationError(d.flag, fmt.Sprintf("%q is not a YYYY-MM-DD date", d.value))
		}
	}
	return nil
}

func (c *cli) newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the enabled sources",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			services, err := c.load()
			if err != nil {
				return err
			}
			return c.print(map[string][]string{"sources": services.Registry.Selectors()})
		},
	}
}
