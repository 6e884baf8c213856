package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/tenderdex/internal/usecase/ingest"
)

var (
	ingestStartOffset int
	ingestTotal       int
	ingestChunkSize   int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Enrich and index the input table chunk by chunk",
	Long: `Run the resumable ingestion pipeline over input.path. Each chunk is
normalized, classified, written to a JSONL artifact and indexed. Failed chunks
go to the dead-letter ledger (see "ingest replay"). Interrupting stops at the
next chunk boundary; rerun with --start-offset to resume.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if ingestStartOffset < 0 || ingestTotal < 0 || ingestChunkSize < 0 {
			return fmt.Errorf("--start-offset, --total and --chunk-size must not be negative")
		}
		return withApp(cmd.Context(), func(a *app) error {
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			summary, err := orch.Run(cmd.Context(), ingest.Params{
				StartOffset: ingestStartOffset,
				Total:       ingestTotal,
				ChunkSize:   ingestChunkSize,
			}, ingest.NewProgress())
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		})
	},
}

var ingestReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Retry chunks recorded in the dead-letter ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			summary, err := orch.Replay(cmd.Context(), ingest.NewProgress())
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		})
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestStartOffset, "start-offset", 0, "first data row to process")
	ingestCmd.Flags().IntVar(&ingestTotal, "total", 0, "stop before this row (0 = row count of the table)")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "rows per chunk (0 = ingest.chunk_size)")

	ingestCmd.AddCommand(ingestReplayCmd)
	rootCmd.AddCommand(ingestCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
