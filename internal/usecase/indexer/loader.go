// Package indexer loads enriched chunk artifacts into the vector store.
package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
	"github.com/kailas-cloud/tenderdex/internal/metrics"
)

// DefaultBatchSize is the number of documents embedded and upserted together.
const DefaultBatchSize = 50

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 8 << 20

// Stats counts what happened to an artifact.
type Stats struct {
	Lines          int `json:"lines"`
	BadLines       int `json:"bad_lines"`
	Skipped        int `json:"skipped"`
	Indexed        int `json:"indexed"`
	SkippedBatches int `json:"skipped_batches"`
}

// Options configures the loader.
type Options struct {
	BatchSize int
	Columns   tender.Columns
}

// Loader embeds enriched records and upserts them.
type Loader struct {
	embedder domain.Embedder
	store    Store
	opts     Options
	logger   *zap.Logger
}

// New creates a loader. embedder should apply the document instruction.
func New(embedder domain.Embedder, store Store, opts Options, logger *zap.Logger) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	opts.Columns = opts.Columns.WithDefaults()
	return &Loader{embedder: embedder, store: store, opts: opts, logger: logger}
}

// Load streams the JSONL artifact at path into the store. Undecodable lines and records
// without a usable summary are skipped; a batch whose embedding fails is skipped whole.
// Upsert failures abort the load.
func (l *Loader) Load(ctx context.Context, path string) (Stats, error) {
	var stats Stats

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return stats, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	batch := make([]tender.Document, 0, l.opts.BatchSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		var rec tender.EnrichedRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.BadLines++
			l.logger.Warn("Skipping undecodable line",
				zap.String("path", path), zap.Int("line", stats.Lines), zap.Error(err))
			continue
		}

		if !rec.Indexable() {
			stats.Skipped++
			metrics.IngestRecordsTotal.WithLabelValues("index", "skipped").Inc()
			l.logger.Debug("Skipping record",
				zap.String("reference_id", rec.ReferenceID),
				zap.String("error", rec.Error),
			)
			continue
		}

		text := DocumentText(&rec)
		batch = append(batch, tender.Document{
			ID:       DocumentID(&rec, text),
			Text:     text,
			Metadata: BuildMetadata(&rec, l.opts.Columns),
		})

		if len(batch) == l.opts.BatchSize {
			if err := l.flush(ctx, batch, &stats); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("scan artifact: %w", err)
	}

	if err := l.flush(ctx, batch, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (l *Loader) flush(ctx context.Context, batch []tender.Document, stats *Stats) error {
	docs := dedupByID(batch)
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Text
	}

	res, err := domain.EmbedBatch(ctx, l.embedder, texts)
	if err == nil && len(res.Embeddings) != len(docs) {
		err = fmt.Errorf("got %d embeddings for %d documents", len(res.Embeddings), len(docs))
	}
	if err != nil {
		stats.SkippedBatches++
		metrics.IngestRecordsTotal.WithLabelValues("index", "embed_failed").Add(float64(len(docs)))
		l.logger.Error("Skipping batch, embedding failed",
			zap.Int("size", len(docs)),
			zap.String("first_id", docs[0].ID),
			zap.Error(err),
		)
		return nil
	}

	for i := range docs {
		docs[i].Vector = res.Embeddings[i]
	}

	if err := l.store.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("upsert %d documents: %w", len(docs), err)
	}

	stats.Indexed += len(docs)
	metrics.IngestRecordsTotal.WithLabelValues("index", "ok").Add(float64(len(docs)))
	return nil
}

// dedupByID keeps the last document for each id, at the position of that last occurrence.
func dedupByID(batch []tender.Document) []tender.Document {
	last := make(map[string]int, len(batch))
	for i := range batch {
		last[batch[i].ID] = i
	}
	out := make([]tender.Document, 0, len(last))
	for i := range batch {
		if last[batch[i].ID] == i {
			out = append(out, batch[i])
		}
	}
	return out
}
