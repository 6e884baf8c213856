// Package enrichment drives a window of source rows through normalization, deduplication
// and concurrent classification into a JSONL chunk artifact.
package enrichment

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
	"github.com/kailas-cloud/tenderdex/internal/metrics"
	"github.com/kailas-cloud/tenderdex/internal/normalize"
)

// Default sizing.
const (
	DefaultSubBatchSize = 50
	DefaultConcurrency  = 10
)

// Window selects source rows [Offset, Offset+Limit).
type Window struct {
	Offset int
	Limit  int
}

// Stats counts what happened to a window.
type Stats struct {
	Read       int `json:"read"`
	Duplicates int `json:"duplicates"`
	Enriched   int `json:"enriched"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Written    int `json:"written"`
}

// Options configures the driver.
type Options struct {
	Columns      tender.Columns
	SubBatchSize int
	Concurrency  int
}

// Driver runs enrichment windows.
type Driver struct {
	table    TableReader
	enricher Enricher
	opts     Options
	logger   *zap.Logger
}

// New creates an enrichment driver.
func New(table TableReader, enricher Enricher, opts Options, logger *zap.Logger) *Driver {
	if opts.SubBatchSize <= 0 {
		opts.SubBatchSize = DefaultSubBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	opts.Columns = opts.Columns.WithDefaults()
	return &Driver{table: table, enricher: enricher, opts: opts, logger: logger}
}

// Run enriches one window and appends the results to outPath, one sub-batch at a time.
// An empty window writes nothing and creates no file.
func (d *Driver) Run(ctx context.Context, w Window, outPath string) (Stats, error) {
	var stats Stats

	raws, err := d.table.ReadWindow(w.Offset, w.Limit)
	if err != nil {
		return stats, fmt.Errorf("read window [%d,%d): %w", w.Offset, w.Offset+w.Limit, err)
	}
	stats.Read = len(raws)
	if len(raws) == 0 {
		return stats, nil
	}

	records, dups := normalize.Dedup(normalize.Records(raws, d.opts.Columns))
	stats.Duplicates = dups
	metrics.IngestRecordsTotal.WithLabelValues("dedup", "duplicate").Add(float64(dups))

	d.logger.Info("Enriching window",
		zap.Int("offset", w.Offset),
		zap.Int("limit", w.Limit),
		zap.Int("read", stats.Read),
		zap.Int("duplicates", dups),
	)

	for start := 0; start < len(records); start += d.opts.SubBatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := min(start+d.opts.SubBatchSize, len(records))
		enriched := d.enrichBatch(ctx, records[start:end], &stats)

		if err := appendJSONL(outPath, enriched); err != nil {
			return stats, fmt.Errorf("write sub-batch [%d,%d): %w", start, end, err)
		}
		stats.Written += len(enriched)

		d.logger.Debug("Sub-batch written",
			zap.Int("offset", w.Offset+start),
			zap.Int("size", len(enriched)),
			zap.String("path", outPath),
		)
	}

	return stats, nil
}

// enrichBatch classifies a sub-batch concurrently. Output order follows input order.
func (d *Driver) enrichBatch(ctx context.Context, batch []tender.NormalizedRecord, stats *Stats) []tender.EnrichedRecord {
	results := make([]tender.Enrichment, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for i := range batch {
		g.Go(func() error {
			results[i] = d.enricher.Enrich(gctx, batch[i].Title, batch[i].Description)
			return nil
		})
	}
	_ = g.Wait() // Enrich never fails

	out := make([]tender.EnrichedRecord, len(batch))
	for i, rec := range batch {
		enr := results[i]
		switch {
		case enr.Error != "":
			stats.Failed++
			metrics.IngestRecordsTotal.WithLabelValues("enrich", "failed").Inc()
		case enr.Note != "":
			stats.Skipped++
			metrics.IngestRecordsTotal.WithLabelValues("enrich", "skipped").Inc()
		default:
			stats.Enriched++
			metrics.IngestRecordsTotal.WithLabelValues("enrich", "ok").Inc()
		}
		out[i] = tender.EnrichedRecord{NormalizedRecord: rec, Enrichment: enr}
	}
	return out
}

// appendJSONL appends one line per record and fsyncs before returning.
func appendJSONL(path string, records []tender.EnrichedRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	w := bufio.NewWriter(f)
	for i := range records {
		line, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("encode record %s: %w", records[i].ReferenceID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	return nil
}
