package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	domtender "github.com/kailas-cloud/tenderdex/internal/domain/tender"
	"github.com/kailas-cloud/tenderdex/internal/usecase/intent"
	searchuc "github.com/kailas-cloud/tenderdex/internal/usecase/search"
)

var (
	searchLimit              int
	searchIncludeCorrigendum bool
	searchJSON               bool
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search indexed tenders",
	Long: `Analyze the query for domain and procurement type filters, run a filtered
KNN search and print hits with calibrated 0-100 scores. Corrigenda are hidden
unless --include-corrigendum is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 = search.default_limit)")
	searchCmd.Flags().BoolVar(&searchIncludeCorrigendum, "include-corrigendum", false, "keep corrigendum notices")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchHit struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Score    float64           `json:"score"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata"`
}

type searchOutput struct {
	Intent    intent.Intent `json:"intent"`
	Count     int           `json:"count"`
	LatencyMS int64         `json:"latency_ms"`
	Results   []searchHit   `json:"results"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	return withApp(cmd.Context(), func(a *app) error {
		engine, err := a.searchEngine()
		if err != nil {
			return err
		}

		resp, err := engine.Search(cmd.Context(), searchuc.Request{
			Query:              query,
			Limit:              searchLimit,
			IncludeCorrigendum: searchIncludeCorrigendum,
		})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		out := searchOutput{
			Intent:    resp.Intent,
			Count:     resp.Count,
			LatencyMS: resp.Latency.Milliseconds(),
			Results:   make([]searchHit, 0, len(resp.Results)),
		}
		for i := range resp.Results {
			r := &resp.Results[i]
			out.Results = append(out.Results, searchHit{
				ID:       r.ID(),
				Title:    r.Field(domtender.FieldOriginalTitle),
				Score:    r.Score(),
				Distance: r.Distance(),
				Metadata: r.Metadata(),
			})
		}

		if searchJSON {
			return printJSON(cmd, out)
		}
		printSearchTable(cmd, out)
		return nil
	})
}

func printSearchTable(cmd *cobra.Command, out searchOutput) {
	if !out.Intent.IsEmpty() {
		cmd.Printf("Intent: domains=%v types=%v", out.Intent.Domains, out.Intent.ProcurementTypes)
		if out.Intent.RefinedQuery != "" {
			cmd.Printf(" refined=%q", out.Intent.RefinedQuery)
		}
		cmd.Println()
	}

	if len(out.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Printf("%d results in %dms\n\n", out.Count, out.LatencyMS)
	for i, h := range out.Results {
		title := h.Title
		if title == "" {
			title = h.ID
		}
		cmd.Printf("  [%d] %s (%.1f)\n", i+1, title, h.Score)
		if v := h.Metadata[domtender.FieldCoreDomain]; v != "" {
			cmd.Printf("      %s / %s\n", v, h.Metadata[domtender.FieldProcurementType])
		}
		if v := h.Metadata[domtender.FieldAuthorityName]; v != "" {
			cmd.Printf("      %s\n", v)
		}
		if v := h.Metadata[domtender.FieldURL]; v != "" {
			cmd.Printf("      %s\n", v)
		}
		cmd.Println()
	}
}
