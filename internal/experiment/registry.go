package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/cosim/internal/metrics"
	"github.com/san-kum/cosim/internal/sim"
)

// Registry names the metrics a run can report.
type Registry struct {
	metrics map[string]func() sim.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		metrics: make(map[string]func() sim.Metric),
	}

	r.metrics["kinetic"] = func() sim.Metric { return metrics.NewKinetic() }
	r.metrics["peak_speed"] = func() sim.Metric { return metrics.NewPeakSpeed() }
	r.metrics["stability"] = func() sim.Metric { return metrics.NewStability(StabilitySpeed) }
	r.metrics["centroid_z"] = func() sim.Metric { return metrics.NewCentroidHeight() }
	r.metrics["absorbed_per_frame"] = func() sim.Metric { return metrics.NewAbsorbed() }

	return r
}

// StabilitySpeed is the particle speed above which a frame counts as
// unstable.
const StabilitySpeed = 20.0

func (r *Registry) GetMetric(name string) (sim.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(), nil
}

// GetMetrics resolves names in order, failing on the first unknown one.
func (r *Registry) GetMetrics(names []string) ([]sim.Metric, error) {
	out := make([]sim.Metric, 0, len(names))
	for _, n := range names {
		m, err := r.GetMetric(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics() []sim.Metric {
	return []sim.Metric{
		metrics.NewCentroidHeight(),
		metrics.NewPeakSpeed(),
		metrics.NewStability(StabilitySpeed),
		metrics.NewAbsorbed(),
	}
}
