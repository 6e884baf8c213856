// Package tender stores enriched tenders as HASH documents under a single FT vector index.
package tender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/tenderdex/internal/db"
	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/filter"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/result"
	domtender "github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// store is the consumer interface for tender documents (ISP).
//
//nolint:interfacebloat // repo owns the index lifecycle, documents and the model lock
type store interface {
	ReplaceHashMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config describes the index and the embedding model it is locked to.
type Config struct {
	KeyPrefix  string
	IndexName  string
	Model      string
	Dimensions int
	HNSW       HNSWConfig
}

// Repo implements the vector store capability for tenders.
type Repo struct {
	store store
	cfg   Config
}

// New creates a tender repository.
func New(s store, cfg Config) *Repo {
	if cfg.HNSW.M <= 0 {
		cfg.HNSW.M = 16
	}
	if cfg.HNSW.EFConstruct <= 0 {
		cfg.HNSW.EFConstruct = 200
	}
	return &Repo{store: s, cfg: cfg}
}

// modelLock is persisted next to the index so a later run with another model fails fast.
type modelLock struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// EnsureIndex creates the index on first use and verifies the embedding model lock.
// An index without a lock (created by hand) adopts the configured model.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName(), err)
	}

	if exists {
		return r.checkLock(ctx)
	}

	def, err := buildIndex(r.indexName(), r.docPrefix(), r.cfg.Dimensions, r.cfg.HNSW)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return r.writeLock(ctx)
}

func (r *Repo) checkLock(ctx context.Context) error {
	raw, err := r.store.Get(ctx, r.lockKey())
	if errors.Is(err, db.ErrKeyNotFound) {
		return r.writeLock(ctx)
	}
	if err != nil {
		return fmt.Errorf("read model lock: %w", err)
	}

	var lock modelLock
	if err := json.Unmarshal(raw, &lock); err != nil {
		return fmt.Errorf("decode model lock: %w", err)
	}
	if lock.Model != r.cfg.Model || lock.Dimensions != r.cfg.Dimensions {
		return &domain.ModelMismatchError{
			IndexModel:      lock.Model,
			IndexDimensions: lock.Dimensions,
			Model:           r.cfg.Model,
			Dimensions:      r.cfg.Dimensions,
		}
	}
	return nil
}

func (r *Repo) writeLock(ctx context.Context) error {
	data, err := json.Marshal(modelLock{Model: r.cfg.Model, Dimensions: r.cfg.Dimensions})
	if err != nil {
		return fmt.Errorf("encode model lock: %w", err)
	}
	if err := r.store.Set(ctx, r.lockKey(), data); err != nil {
		return fmt.Errorf("write model lock: %w", err)
	}
	return nil
}

// Upsert writes documents as whole hashes, replacing any previous version.
func (r *Repo) Upsert(ctx context.Context, docs []domtender.Document) error {
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		if d.ID == "" {
			return fmt.Errorf("document %d: %w: empty id", i, domain.ErrInvalidMetadata)
		}
		if err := d.Metadata.Validate(); err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
		if r.cfg.Dimensions > 0 && len(d.Vector) != r.cfg.Dimensions {
			return fmt.Errorf("document %s: %w: got %d, expected %d",
				d.ID, domain.ErrVectorDimMismatch, len(d.Vector), r.cfg.Dimensions)
		}
		items = append(items, db.HashSetItem{Key: r.docKey(d.ID), Fields: buildHashFields(d)})
	}

	if err := r.store.ReplaceHashMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d documents: %w", len(items), err)
	}
	return nil
}

// Get fetches documents by id. Missing ids are omitted; order follows ids.
func (r *Repo) Get(ctx context.Context, ids []string) ([]domtender.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch %d documents: %w", len(ids), err)
	}

	docs := make([]domtender.Document, 0, len(ids))
	for i, m := range hashes {
		if len(m) == 0 {
			continue
		}
		docs = append(docs, parseHashFields(ids[i], m))
	}
	return docs, nil
}

// SearchKNN returns up to topK hits matching filters, ordered by raw cosine distance,
// closest first.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, filters filter.Expression, topK int,
) ([]result.Result, error) {
	fields := make([]string, 0, len(domtender.MetadataFields)+1)
	fields = append(fields, domtender.MetadataFields...)
	fields = append(fields, db.TextField)

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: fields,
		RawScores:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	out := make([]result.Result, 0, len(res.Entries))
	for _, e := range res.Entries {
		text := e.Fields[db.TextField]
		delete(e.Fields, db.TextField)
		out = append(out, result.New(r.extractID(e.Key), e.Score, text, e.Fields))
	}
	return out, nil
}

// Count returns the number of indexed documents. A missing index counts as empty.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), filter.Expression{})
	if errors.Is(err, db.ErrIndexNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Page returns one page of full documents (vectors included) and the total count.
func (r *Repo) Page(ctx context.Context, offset, limit int) ([]domtender.Document, int, error) {
	res, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName: r.indexName(),
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list documents at %d: %w", offset, err)
	}

	docs := make([]domtender.Document, 0, len(res.Entries))
	for _, e := range res.Entries {
		docs = append(docs, parseHashFields(r.extractID(e.Key), e.Fields))
	}
	return docs, res.Total, nil
}

func (r *Repo) indexName() string {
	return r.cfg.KeyPrefix + r.cfg.IndexName + ":idx"
}

func (r *Repo) docPrefix() string {
	return r.cfg.KeyPrefix + r.cfg.IndexName + ":doc:"
}

func (r *Repo) docKey(id string) string {
	return r.docPrefix() + id
}

func (r *Repo) lockKey() string {
	return r.cfg.KeyPrefix + r.cfg.IndexName + ":model"
}

func (r *Repo) extractID(key string) string {
	return strings.TrimPrefix(key, r.docPrefix())
}
