// Package ingest runs the resumable chunked ingestion: enrich a window of the source
// table into an artifact, index the artifact, move on.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/metrics"
	"github.com/kailas-cloud/tenderdex/internal/usecase/enrichment"
)

// DefaultChunkSize is the number of source rows per chunk.
const DefaultChunkSize = 500

// ErrBatchesSkipped marks a chunk whose artifact was only partly indexed because some
// embedding batches failed.
var ErrBatchesSkipped = errors.New("embedding batches skipped")

// FailurePolicy decides what happens to a chunk that failed.
type FailurePolicy string

// Failure policies.
const (
	// FailureDrop only counts the failed chunk.
	FailureDrop FailurePolicy = "drop"
	// FailureDeadLetter records the chunk in the dead-letter ledger for Replay.
	FailureDeadLetter FailurePolicy = "dead_letter"
)

// Params selects the rows to ingest. Total 0 means the table's row count.
type Params struct {
	StartOffset int `json:"start_offset"`
	Total       int `json:"total"`
	ChunkSize   int `json:"chunk_size"`
}

// Summary reports a finished run.
type Summary struct {
	ChunksAttempted int   `json:"chunks_attempted"`
	ChunksDone      int   `json:"chunks_done"`
	ChunksFailed    int   `json:"chunks_failed"`
	FailedOffsets   []int `json:"failed_offsets"`
	RecordsEnriched int   `json:"records_enriched"`
	DocsIndexed     int   `json:"docs_indexed"`
	StoppedEarly    bool  `json:"stopped_early"`
	Cancelled       bool  `json:"cancelled"`
}

// Options configures the orchestrator.
type Options struct {
	WorkDir        string
	ChunkSize      int
	OnChunkFailure FailurePolicy
}

// Orchestrator runs chunks sequentially.
type Orchestrator struct {
	enricher Enricher
	indexer  Indexer
	rows     RowCounter
	ledger   DeadLetters
	opts     Options
	logger   *zap.Logger
}

// New creates an orchestrator. ledger may be nil with the drop policy.
func New(
	enricher Enricher, idx Indexer, rows RowCounter, ledger DeadLetters,
	opts Options, logger *zap.Logger,
) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.OnChunkFailure == "" {
		opts.OnChunkFailure = FailureDeadLetter
	}
	return &Orchestrator{
		enricher: enricher,
		indexer:  idx,
		rows:     rows,
		ledger:   ledger,
		opts:     opts,
		logger:   logger,
	}
}

// ArtifactPath is the chunk artifact for rows [offset, offset+limit).
func ArtifactPath(workDir string, offset, limit int) string {
	return filepath.Join(workDir, fmt.Sprintf("batch_%d_%d.jsonl", offset, offset+limit))
}

// Run processes chunks from p.StartOffset until p.Total, the source is exhausted, or ctx
// is cancelled. Cancellation is checked between chunks only; a started chunk completes.
// Chunk failures do not stop the run.
func (o *Orchestrator) Run(ctx context.Context, p Params, progress *Progress) (Summary, error) {
	if progress == nil {
		progress = NewProgress()
	}
	sum := Summary{FailedOffsets: []int{}}

	chunkSize := p.ChunkSize
	if chunkSize <= 0 {
		chunkSize = o.opts.ChunkSize
	}

	total := p.Total
	if total <= 0 {
		n, err := o.rows.Count()
		if err != nil {
			progress.update(func(s *Snapshot) {
				s.Status = StatusFailed
				s.LastMessage = err.Error()
			})
			return sum, fmt.Errorf("count source rows: %w", err)
		}
		total = n
	}

	if p.StartOffset >= total {
		progress.update(func(s *Snapshot) {
			s.Status = StatusCompleted
			s.CurrentOffset = p.StartOffset
			s.Total = total
			s.LastMessage = "nothing to do"
		})
		o.logger.Info("Nothing to ingest", zap.Int("start_offset", p.StartOffset), zap.Int("total", total))
		return sum, nil
	}

	progress.update(func(s *Snapshot) {
		s.Status = StatusRunning
		s.CurrentOffset = p.StartOffset
		s.Total = total
		s.LastMessage = "started"
	})
	o.logger.Info("Ingestion started",
		zap.Int("start_offset", p.StartOffset),
		zap.Int("total", total),
		zap.Int("chunk_size", chunkSize),
		zap.String("on_chunk_failure", string(o.opts.OnChunkFailure)),
	)

	// Chunk work must not be torn down halfway by the caller's cancellation.
	workCtx := context.WithoutCancel(ctx)

	for offset := p.StartOffset; offset < total; offset += chunkSize {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}

		limit := min(chunkSize, total-offset)
		sum.ChunksAttempted++

		res := o.runChunk(workCtx, offset, limit, progress)
		if res.err != nil {
			sum.DocsIndexed += res.indexed
			o.handleFailure(workCtx, offset, limit, res.err, &sum, progress)
			continue
		}
		if res.exhausted {
			sum.StoppedEarly = true
			progress.update(func(s *Snapshot) { s.LastMessage = fmt.Sprintf("source exhausted at offset %d", offset) })
			o.logger.Info("Source exhausted", zap.Int("offset", offset))
			break
		}

		sum.ChunksDone++
		sum.RecordsEnriched += res.enriched
		sum.DocsIndexed += res.indexed
		progress.update(func(s *Snapshot) { s.ChunksDone++ })
	}

	status := StatusCompleted
	if sum.Cancelled {
		status = StatusCancelled
	}
	progress.update(func(s *Snapshot) {
		s.Status = status
		s.LastMessage = fmt.Sprintf("%s: %d done, %d failed", status, sum.ChunksDone, sum.ChunksFailed)
	})
	o.logger.Info("Ingestion finished",
		zap.String("status", string(status)),
		zap.Int("chunks_done", sum.ChunksDone),
		zap.Int("chunks_failed", sum.ChunksFailed),
		zap.Int("docs_indexed", sum.DocsIndexed),
		zap.Bool("stopped_early", sum.StoppedEarly),
	)
	return sum, nil
}

// Replay re-runs every dead-lettered chunk and removes the entries that succeed.
func (o *Orchestrator) Replay(ctx context.Context, progress *Progress) (Summary, error) {
	if o.ledger == nil {
		return Summary{}, errors.New("dead-letter ledger is not configured")
	}
	if progress == nil {
		progress = NewProgress()
	}
	sum := Summary{FailedOffsets: []int{}}

	entries, err := o.ledger.List(ctx)
	if err != nil {
		return sum, fmt.Errorf("list dead letters: %w", err)
	}

	progress.update(func(s *Snapshot) {
		s.Status = StatusRunning
		s.Total = len(entries)
		s.LastMessage = fmt.Sprintf("replaying %d chunks", len(entries))
	})

	workCtx := context.WithoutCancel(ctx)
	for _, e := range entries {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}
		sum.ChunksAttempted++

		res := o.runChunk(workCtx, e.Offset, e.Limit, progress)
		if res.err != nil {
			sum.DocsIndexed += res.indexed
			o.handleFailure(workCtx, e.Offset, e.Limit, res.err, &sum, progress)
			continue
		}

		if err := o.ledger.Remove(workCtx, e.Offset, e.Limit); err != nil {
			o.logger.Error("Failed to remove replayed dead letter",
				zap.Int("offset", e.Offset), zap.Int("limit", e.Limit), zap.Error(err))
		}
		sum.ChunksDone++
		sum.RecordsEnriched += res.enriched
		sum.DocsIndexed += res.indexed
		progress.update(func(s *Snapshot) { s.ChunksDone++ })
	}

	status := StatusCompleted
	if sum.Cancelled {
		status = StatusCancelled
	}
	progress.update(func(s *Snapshot) { s.Status = status })
	o.logger.Info("Replay finished",
		zap.Int("chunks_done", sum.ChunksDone),
		zap.Int("chunks_failed", sum.ChunksFailed),
	)
	return sum, nil
}

type chunkResult struct {
	enriched  int
	indexed   int
	exhausted bool
	err       error
}

func (o *Orchestrator) runChunk(ctx context.Context, offset, limit int, progress *Progress) chunkResult {
	log := o.logger.With(zap.Int("offset", offset), zap.Int("limit", limit))
	path := ArtifactPath(o.opts.WorkDir, offset, limit)

	o.transition(log, progress, offset, ChunkPending)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return chunkResult{err: fmt.Errorf("remove stale artifact: %w", err)}
	}

	o.transition(log, progress, offset, ChunkEnriching)
	est, err := o.enricher.Run(ctx, enrichment.Window{Offset: offset, Limit: limit}, path)
	if err != nil {
		return chunkResult{err: fmt.Errorf("enrich: %w", err)}
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		_ = os.Remove(path)
		return chunkResult{exhausted: true}
	}
	if err != nil {
		return chunkResult{err: fmt.Errorf("stat artifact: %w", err)}
	}

	o.transition(log, progress, offset, ChunkIndexing)
	ist, err := o.indexer.Load(ctx, path)
	if err != nil {
		return chunkResult{err: fmt.Errorf("index: %w", err)}
	}
	// The artifact is kept so a replay of the chunk re-indexes the missing documents.
	if ist.SkippedBatches > 0 {
		log.Warn("Chunk indexed partially",
			zap.Int("indexed", ist.Indexed), zap.Int("skipped_batches", ist.SkippedBatches))
		return chunkResult{
			enriched: est.Enriched,
			indexed:  ist.Indexed,
			err:      fmt.Errorf("index: %w: %d", ErrBatchesSkipped, ist.SkippedBatches),
		}
	}

	if err := os.Remove(path); err != nil {
		log.Warn("Failed to remove artifact", zap.String("path", path), zap.Error(err))
	}

	o.transition(log, progress, offset, ChunkDone)
	log.Info("Chunk done",
		zap.Int("read", est.Read),
		zap.Int("duplicates", est.Duplicates),
		zap.Int("enriched", est.Enriched),
		zap.Int("skipped", est.Skipped),
		zap.Int("failed", est.Failed),
		zap.Int("indexed", ist.Indexed),
		zap.Int("skipped_batches", ist.SkippedBatches),
	)
	return chunkResult{enriched: est.Enriched, indexed: ist.Indexed}
}

func (o *Orchestrator) handleFailure(
	ctx context.Context, offset, limit int, cause error, sum *Summary, progress *Progress,
) {
	sum.ChunksFailed++
	sum.FailedOffsets = append(sum.FailedOffsets, offset)
	metrics.IngestChunksTotal.WithLabelValues(string(ChunkFailed)).Inc()
	progress.update(func(s *Snapshot) {
		s.ChunksFailed++
		s.LastMessage = fmt.Sprintf("chunk %d failed: %v", offset, cause)
	})
	o.logger.Error("Chunk failed",
		zap.Int("offset", offset),
		zap.Int("limit", limit),
		zap.String("state", string(ChunkFailed)),
		zap.String("on_chunk_failure", string(o.opts.OnChunkFailure)),
		zap.Error(cause),
	)

	if o.opts.OnChunkFailure != FailureDeadLetter || o.ledger == nil {
		return
	}
	if err := o.ledger.Record(ctx, offset, limit, cause.Error()); err != nil {
		o.logger.Error("Failed to dead-letter chunk",
			zap.Int("offset", offset), zap.Int("limit", limit), zap.Error(err))
	}
}

func (o *Orchestrator) transition(log *zap.Logger, progress *Progress, offset int, state ChunkState) {
	metrics.IngestChunksTotal.WithLabelValues(string(state)).Inc()
	if state == ChunkEnriching {
		metrics.IngestCurrentOffset.Set(float64(offset))
	}
	progress.update(func(s *Snapshot) {
		s.CurrentOffset = offset
		s.LastMessage = fmt.Sprintf("chunk %d %s", offset, state)
	})
	log.Debug("Chunk transition", zap.String("state", string(state)))
}
