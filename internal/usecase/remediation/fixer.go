// Package remediation repairs stored procurement types in place, without re-embedding.
package remediation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	domtender "github.com/kailas-cloud/tenderdex/internal/domain/tender"
	"github.com/kailas-cloud/tenderdex/internal/taxonomy"
)

// DefaultBatchSize is the page and write batch size.
const DefaultBatchSize = 500

// Store pages through indexed documents and writes them back whole.
type Store interface {
	Page(ctx context.Context, offset, limit int) ([]domtender.Document, int, error)
	Upsert(ctx context.Context, docs []domtender.Document) error
}

// TaxonomySource yields the taxonomy in effect.
type TaxonomySource interface {
	Get() *taxonomy.Taxonomy
}

// AuditEntry is one line of the audit log.
type AuditEntry struct {
	ID      string `json:"id"`
	OldType string `json:"old_type"`
	NewType string `json:"new_type"`
	Title   string `json:"title"`
}

// Report summarizes a pass. Transitions counts "Old->New" pairs.
type Report struct {
	Scanned     int            `json:"scanned"`
	Changed     int            `json:"changed"`
	Applied     int            `json:"applied"`
	Transitions map[string]int `json:"transitions"`
	DryRun      bool           `json:"dry_run"`
}

// Options configures a pass.
type Options struct {
	BatchSize int
	DryRun    bool
	AuditPath string // empty disables the audit log
}

// ProcurementTypeFixer recomputes procurement_type from taxonomy aliases and title rules.
type ProcurementTypeFixer struct {
	store    Store
	taxonomy TaxonomySource
	logger   *zap.Logger
}

// NewProcurementTypeFixer creates a fixer.
func NewProcurementTypeFixer(store Store, tax TaxonomySource, logger *zap.Logger) *ProcurementTypeFixer {
	return &ProcurementTypeFixer{store: store, taxonomy: tax, logger: logger}
}

// Run scans every document first and writes changes afterwards, so rewritten documents
// cannot shift the pages still being read.
func (f *ProcurementTypeFixer) Run(ctx context.Context, opts Options) (Report, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	rep := Report{Transitions: make(map[string]int), DryRun: opts.DryRun}

	audit, closeAudit, err := openAudit(opts.AuditPath)
	if err != nil {
		return rep, err
	}
	defer func() { _ = closeAudit() }()

	tax := f.taxonomy.Get()
	var changed []domtender.Document

	for offset := 0; ; offset += opts.BatchSize {
		docs, total, err := f.store.Page(ctx, offset, opts.BatchSize)
		if err != nil {
			return rep, fmt.Errorf("page at %d: %w", offset, err)
		}

		for _, d := range docs {
			rep.Scanned++
			current := d.Metadata[domtender.FieldProcurementType]
			if current == "" {
				current = domtender.TypeUnknown
			}
			next, ok := tax.ResolveType(current, d.Metadata[domtender.FieldOriginalTitle])
			if !ok || next == current {
				continue
			}

			rep.Changed++
			rep.Transitions[current+"->"+next]++
			if err := audit(AuditEntry{
				ID:      d.ID,
				OldType: current,
				NewType: next,
				Title:   d.Metadata[domtender.FieldOriginalTitle],
			}); err != nil {
				return rep, err
			}

			meta := make(domtender.Metadata, len(d.Metadata))
			for k, v := range d.Metadata {
				meta[k] = v
			}
			meta[domtender.FieldProcurementType] = next
			d.Metadata = meta
			changed = append(changed, d)
		}

		if len(docs) == 0 || offset+opts.BatchSize >= total {
			break
		}
	}

	f.logger.Info("Procurement type scan finished",
		zap.Int("scanned", rep.Scanned),
		zap.Int("changed", rep.Changed),
		zap.Any("transitions", rep.Transitions),
		zap.Bool("dry_run", opts.DryRun),
	)
	// The audit must be on disk before any document is rewritten.
	if err := closeAudit(); err != nil {
		return rep, err
	}
	if opts.DryRun {
		return rep, nil
	}

	for start := 0; start < len(changed); start += opts.BatchSize {
		batch := changed[start:min(start+opts.BatchSize, len(changed))]
		if err := f.store.Upsert(ctx, batch); err != nil {
			return rep, fmt.Errorf("apply batch at %d: %w", start, err)
		}
		rep.Applied += len(batch)
		f.logger.Info("Applied procurement type batch", zap.Int("from", start), zap.Int("size", len(batch)))
	}
	return rep, nil
}

// openAudit returns an appending JSONL writer, or a no-op when path is empty.
// The close func flushes and closes once; later calls return nil.
func openAudit(path string) (func(AuditEntry) error, func() error, error) {
	if path == "" {
		return func(AuditEntry) error { return nil }, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("create audit dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)

	write := func(e AuditEntry) error {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("write audit entry: %w", err)
		}
		return nil
	}

	closed := false
	closeFn := func() error {
		if closed {
			return nil
		}
		closed = true
		flushErr := w.Flush()
		closeErr := file.Close()
		if flushErr != nil {
			return fmt.Errorf("flush audit log: %w", flushErr)
		}
		if closeErr != nil {
			return fmt.Errorf("close audit log: %w", closeErr)
		}
		return nil
	}
	return write, closeFn, nil
}
