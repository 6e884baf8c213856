package enrichment

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

type mockTable struct {
	rows []tender.RawRecord
	err  error
}

func (m *mockTable) ReadWindow(offset, limit int) ([]tender.RawRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if offset >= len(m.rows) {
		return nil, nil
	}
	return m.rows[offset:min(offset+limit, len(m.rows))], nil
}

type mockEnricher struct {
	fn func(ctx context.Context, title, description string) tender.Enrichment
}

func (m *mockEnricher) Enrich(ctx context.Context, title, description string) tender.Enrichment {
	return m.fn(ctx, title, description)
}

func okEnricher() *mockEnricher {
	return &mockEnricher{fn: func(_ context.Context, title, _ string) tender.Enrichment {
		switch title {
		case "Pump":
			return tender.Skipped(title, "skipped: sparse input")
		case "Broken":
			return tender.Degraded(title, errors.New("provider down"))
		}
		return tender.Enrichment{
			CoreDomain:      "Healthcare",
			ProjectTags:     []string{"Medical Equipment"},
			ProcurementType: "Supply",
			SearchKeywords:  []string{"clinic"},
			SignalSummary:   "Supply of " + title,
		}
	}}
}

func row(title, country, ref string) tender.RawRecord {
	return tender.RawRecord{"Title": title, "Country": country, "RefNo": ref, "core_domain": "raw-value"}
}

func readLines(t *testing.T, path string) []tender.EnrichedRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()

	var out []tender.EnrichedRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec tender.EnrichedRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestRun_EnrichesDedupsAndWrites(t *testing.T) {
	table := &mockTable{rows: []tender.RawRecord{
		row("MRI machine", "India", "R1"),
		row("mri machine ", "INDIA", "R2"), // duplicate fingerprint
		row("Pump", "India", "R3"),
		row("Broken", "India", "R4"),
		row("CT scanner", "India", "R5"),
	}}
	d := New(table, okEnricher(), Options{SubBatchSize: 2, Concurrency: 2}, zap.NewNop())
	out := filepath.Join(t.TempDir(), "work", "batch_0_5.jsonl")

	stats, err := d.Run(context.Background(), Window{Offset: 0, Limit: 5}, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Stats{Read: 5, Duplicates: 1, Enriched: 2, Skipped: 1, Failed: 1, Written: 4}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	lines := readLines(t, out)
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}
	gotRefs := []string{lines[0].ReferenceID, lines[1].ReferenceID, lines[2].ReferenceID, lines[3].ReferenceID}
	wantRefs := []string{"R1", "R3", "R4", "R5"}
	for i := range wantRefs {
		if gotRefs[i] != wantRefs[i] {
			t.Errorf("line %d ref = %q, want %q", i, gotRefs[i], wantRefs[i])
		}
	}
	// Enrichment keys win over raw columns of the same name.
	if lines[0].CoreDomain != "Healthcare" {
		t.Errorf("core_domain = %q, want enrichment value", lines[0].CoreDomain)
	}
	if lines[0].Raw["Title"] != "MRI machine" {
		t.Errorf("raw column lost: %v", lines[0].Raw)
	}
	if lines[2].Error == "" {
		t.Error("degraded record must carry its error marker")
	}
}

func TestRun_EmptyWindowCreatesNoFile(t *testing.T) {
	d := New(&mockTable{}, okEnricher(), Options{}, zap.NewNop())
	out := filepath.Join(t.TempDir(), "batch_100_200.jsonl")

	stats, err := d.Run(context.Background(), Window{Offset: 100, Limit: 100}, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("artifact must not exist, stat err = %v", err)
	}
}

func TestRun_ReadError(t *testing.T) {
	d := New(&mockTable{err: errors.New("bad csv")}, okEnricher(), Options{}, zap.NewNop())

	if _, err := d.Run(context.Background(), Window{Limit: 10}, filepath.Join(t.TempDir(), "x.jsonl")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestRun_AppendsToExistingFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")
	table := &mockTable{rows: []tender.RawRecord{row("MRI machine", "India", "R1")}}
	d := New(table, okEnricher(), Options{}, zap.NewNop())

	for range 2 {
		if _, err := d.Run(context.Background(), Window{Limit: 1}, out); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if n := len(readLines(t, out)); n != 2 {
		t.Errorf("lines = %d, want 2", n)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	enricher := &mockEnricher{fn: func(_ context.Context, title, _ string) tender.Enrichment {
		n := inFlight.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return tender.Enrichment{CoreDomain: "Other", SignalSummary: title}
	}}

	rows := make([]tender.RawRecord, 20)
	for i := range rows {
		rows[i] = row("Tender number "+string(rune('A'+i)), "India", "")
	}
	d := New(&mockTable{rows: rows}, enricher, Options{SubBatchSize: 20, Concurrency: 3}, zap.NewNop())

	if _, err := d.Run(context.Background(), Window{Limit: 20}, filepath.Join(t.TempDir(), "o.jsonl")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := peak.Load(); p > 3 || p == 0 {
		t.Errorf("peak concurrency = %d, want 1..3", p)
	}
}

func TestRun_CancelledBeforeSubBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	table := &mockTable{rows: []tender.RawRecord{row("MRI machine", "India", "R1")}}
	d := New(table, okEnricher(), Options{}, zap.NewNop())

	if _, err := d.Run(ctx, Window{Limit: 1}, filepath.Join(t.TempDir(), "o.jsonl")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
