package ingest

import (
	"sync"
	"time"
)

// Status is the lifecycle of an ingestion run.
type Status string

// Run statuses.
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// ChunkState is the lifecycle of one chunk.
type ChunkState string

// Chunk states.
const (
	ChunkPending   ChunkState = "pending"
	ChunkEnriching ChunkState = "enriching"
	ChunkIndexing  ChunkState = "indexing"
	ChunkDone      ChunkState = "done"
	ChunkFailed    ChunkState = "failed"
)

// Snapshot is a point-in-time copy of the progress.
type Snapshot struct {
	Status        Status    `json:"status"`
	CurrentOffset int       `json:"current_offset"`
	Total         int       `json:"total"`
	LastMessage   string    `json:"last_message"`
	ChunksDone    int       `json:"chunks_done"`
	ChunksFailed  int       `json:"chunks_failed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Progress is the live state of a run, written by the orchestrator and read concurrently.
type Progress struct {
	mu sync.RWMutex
	s  Snapshot
}

// NewProgress creates an idle progress.
func NewProgress() *Progress {
	return &Progress{s: Snapshot{Status: StatusIdle, UpdatedAt: time.Now()}}
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.s
}

func (p *Progress) update(fn func(s *Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.s)
	p.s.UpdatedAt = time.Now()
}
