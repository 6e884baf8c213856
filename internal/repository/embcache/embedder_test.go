package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/db"
	"github.com/kailas-cloud/tenderdex/internal/domain"
)

func TestEmbed_CacheMissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "road works")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10 on miss, got %d", first.TotalTokens)
	}
	if len(ms.data) != 1 {
		t.Fatalf("expected 1 cached entry, got %d", len(ms.data))
	}
	if ms.ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ms.ttl)
	}

	second, err := ce.Embed(ctx, "road works")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on hit, got %d", second.TotalTokens)
	}
	if second.Embedding[2] != 0.3 {
		t.Errorf("unexpected cached vector: %v", second.Embedding)
	}
	if inner.batchCalls != 1 {
		t.Errorf("inner called %d times, want 1", inner.batchCalls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ms.data) != 0 {
		t.Error("nothing should be cached on error")
	}
}

func TestBatchEmbed_MixedHitsMisses(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 1}, TotalTokens: 3}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("b")] = vectorToCacheBytes([]float32{2, 2})

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(inner.lastBatch, ",") != "a,c" {
		t.Errorf("inner batch = %v, want [a c]", inner.lastBatch)
	}
	if res.Embeddings[0][0] != 1 || res.Embeddings[1][0] != 2 || res.Embeddings[2][0] != 1 {
		t.Errorf("embeddings out of order: %v", res.Embeddings)
	}
	if res.TotalTokens != 6 {
		t.Errorf("TotalTokens = %d, want 6", res.TotalTokens)
	}
}

func TestBatchEmbed_StoreErrorsDegradeToMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ms := &mockKVStore{
		getFn: func(context.Context, []string) ([][]byte, error) {
			return nil, errors.New("connection refused")
		},
		setFn: func(context.Context, []db.KVItem, time.Duration) error {
			return errors.New("connection refused")
		},
	}
	ce := New(inner, ms, Options{}, nil, zap.NewNop())

	res, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("cache failure must not fail the call: %v", err)
	}
	if len(res.Embeddings) != 1 {
		t.Fatalf("got %d embeddings", len(res.Embeddings))
	}
}

func TestBatchEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{5}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("a")] = []byte{1, 2, 3}

	res, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings[0][0] != 5 {
		t.Errorf("expected fresh embedding, got %v", res.Embeddings[0])
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 || inner.batchCalls != 0 {
		t.Errorf("empty input should not reach inner embedder")
	}
}

func TestCacheKey_IncludesModel(t *testing.T) {
	a := New(nil, nil, Options{KeyPrefix: "p:", Model: "m1"}, nil, zap.NewNop())
	b := New(nil, nil, Options{KeyPrefix: "p:", Model: "m2"}, nil, zap.NewNop())

	if a.cacheKey("q") == b.cacheKey("q") {
		t.Error("keys for different models must differ")
	}
	if !strings.HasPrefix(a.cacheKey("q"), "p:emb_cache:") {
		t.Errorf("unexpected key layout: %s", a.cacheKey("q"))
	}
}
