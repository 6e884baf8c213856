package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers all tenderdex collectors with the default registry.
// Called once from the composition root and from TestMain; later calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		var cs []prometheus.Collector
		cs = append(cs, embeddingCollectors()...)
		cs = append(cs, pipelineCollectors()...)
		cs = append(cs, httpCollectors()...)
		prometheus.MustRegister(cs...)
	})
}
