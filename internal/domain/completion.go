package domain

import (
	"context"
	"time"
)

// Completer is the shared chat completion contract used by the classifier and intent analyzer.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// ContextCacher is an optional Completer capability: store a static system context once and
// reference it by handle on later calls.
type ContextCacher interface {
	CacheContext(ctx context.Context, content string, ttl time.Duration) (string, error)
}

// CompletionRequest is one structured-output completion call.
// Exactly one of System and CachedContext is expected to be set.
type CompletionRequest struct {
	System        string
	CachedContext string
	User          string
	Temperature   float32
	JSON          bool
}

// CompletionResult carries the raw response text and token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
