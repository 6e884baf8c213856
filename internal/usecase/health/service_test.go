package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockProvider struct {
	err error
}

func (m *mockProvider) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name       string
		store      error
		embedding  ProviderChecker
		classifier ProviderChecker
		want       Status
		wantChecks map[string]CheckResult
	}{
		{
			name:       "all healthy",
			embedding:  &mockProvider{},
			classifier: &mockProvider{},
			want:       Healthy,
			wantChecks: map[string]CheckResult{
				ComponentStore: CheckOK, ComponentEmbedding: CheckOK, ComponentClassifier: CheckOK,
			},
		},
		{
			name:       "store down",
			store:      down,
			embedding:  &mockProvider{},
			want:       Unhealthy,
			wantChecks: map[string]CheckResult{ComponentStore: CheckError, ComponentEmbedding: CheckOK},
		},
		{
			name:       "embedding down",
			embedding:  &mockProvider{err: down},
			want:       Degraded,
			wantChecks: map[string]CheckResult{ComponentStore: CheckOK, ComponentEmbedding: CheckError},
		},
		{
			name:       "classifier down",
			embedding:  &mockProvider{},
			classifier: &mockProvider{err: down},
			want:       Degraded,
			wantChecks: map[string]CheckResult{
				ComponentStore: CheckOK, ComponentEmbedding: CheckOK, ComponentClassifier: CheckError,
			},
		},
		{
			name:       "everything down",
			store:      down,
			embedding:  &mockProvider{err: down},
			classifier: &mockProvider{err: down},
			want:       Unhealthy,
			wantChecks: map[string]CheckResult{
				ComponentStore: CheckError, ComponentEmbedding: CheckError, ComponentClassifier: CheckError,
			},
		},
		{
			name:       "store only",
			want:       Healthy,
			wantChecks: map[string]CheckResult{ComponentStore: CheckOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&mockPinger{err: tt.store}, tt.embedding, tt.classifier).Check(context.Background())

			if r.Status != tt.want {
				t.Errorf("status = %q, want %q", r.Status, tt.want)
			}
			if len(r.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %v, want %v", r.Checks, tt.wantChecks)
			}
			for k, v := range tt.wantChecks {
				if r.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, r.Checks[k], v)
				}
			}
		})
	}
}
