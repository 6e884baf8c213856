package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a provider is failing; stored data is still reachable.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentStore      = "store"
	ComponentEmbedding  = "embedding"
	ComponentClassifier = "classifier"
)

const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	store      StorePinger
	embedding  ProviderChecker
	classifier ProviderChecker
}

// New creates a Service. embedding and classifier can be nil.
func New(store StorePinger, embedding, classifier ProviderChecker) *Service {
	return &Service{store: store, embedding: embedding, classifier: classifier}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 3)

	checks[ComponentStore] = run(ctx, s.store.Ping)
	if s.embedding != nil {
		checks[ComponentEmbedding] = run(ctx, s.embedding.HealthCheck)
	}
	if s.classifier != nil {
		checks[ComponentClassifier] = run(ctx, s.classifier.HealthCheck)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentStore] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func run(ctx context.Context, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := check(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
