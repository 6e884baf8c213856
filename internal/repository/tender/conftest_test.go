package tender

import (
	"context"
	"testing"

	"github.com/kailas-cloud/tenderdex/internal/db"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/filter"
	domtender "github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// mockStore keeps hashes and KV values in memory; func fields override behavior.
type mockStore struct {
	hashes map[string]map[string]string
	kv     map[string][]byte

	indexExists   bool
	createdIndex  *db.IndexDefinition
	replaceFn     func(ctx context.Context, items []db.HashSetItem) error
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn  func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index string, filters filter.Expression) (int, error)
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}, kv: map[string][]byte{}}
}

func (m *mockStore) ReplaceHashMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, items)
	}
	for _, it := range items {
		fields := make(map[string]string, len(it.Fields))
		for k, v := range it.Fields {
			fields[k] = v
		}
		m.hashes[it.Key] = fields
	}
	return nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.hashes[k]
		if out[i] == nil {
			out[i] = map[string]string{}
		}
	}
	return out, nil
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Set(_ context.Context, key string, value []byte) error {
	m.kv[key] = value
	return nil
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.createdIndex = def
	m.indexExists = true
	return nil
}

func (m *mockStore) IndexExists(context.Context, string) (bool, error) {
	return m.indexExists, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, filters)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	repo := New(ms, Config{
		KeyPrefix:  "test:",
		IndexName:  "tenders",
		Model:      "text-embedding-3-small",
		Dimensions: 4,
	})
	return repo, ms
}

func testDocument(id string) domtender.Document {
	return domtender.Document{
		ID:   id,
		Text: "Supply of MRI machines. Tags: Diagnostics. Keywords: mri, radiology",
		Metadata: domtender.Metadata{
			domtender.FieldCoreDomain:      "Healthcare",
			domtender.FieldProjectTags:     "Diagnostics",
			domtender.FieldProcurementType: "Supply",
			domtender.FieldIsCorrigendum:   "false",
			domtender.FieldOriginalTitle:   "Supply of MRI machines",
		},
		Vector: []float32{0.1, 0.2, 0.3, 0.4},
	}
}
