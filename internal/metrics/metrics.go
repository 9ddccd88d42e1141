// Package metrics exposes the process-internal meter registry: counts
// of reads, cycles by type, splits, and lost sink writes per second.
package metrics

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// Registry wraps a go-metrics registry with the handful of named meters
// this poller marks during normal operation.
type Registry struct {
	reg gometrics.Registry
}

func New() *Registry {
	return &Registry{reg: gometrics.NewRegistry()}
}

func (r *Registry) mark(name string, n int64) {
	gometrics.GetOrRegisterMeter(name, r.reg).Mark(n)
}

// ReadOK marks one successful Transport Adapter block-read.
func (r *Registry) ReadOK() { r.mark(`/reads/ok.per.second`, 1) }

// ReadFailed marks one failed Transport Adapter block-read.
func (r *Registry) ReadFailed() { r.mark(`/reads/failed.per.second`, 1) }

// Cycle marks one finalized cycle of the given cycle_type.
func (r *Registry) Cycle(cycleType string) {
	r.mark(`/cycles/`+cycleType+`.per.second`, 1)
}

// Split marks one sub-cycle produced by the multi-peak splitter.
func (r *Registry) Split() { r.mark(`/cycles/split.per.second`, 1) }

// SinkLost marks one cycle that failed to persist to the relational
// sink and was logged as lost.
func (r *Registry) SinkLost() { r.mark(`/sink/lost.per.second`, 1) }

// Snapshot returns the current rates, keyed by meter name, for ad-hoc
// diagnostics (e.g. a future status endpoint).
func (r *Registry) Snapshot() map[string]float64 {
	out := map[string]float64{}
	r.reg.Each(func(name string, i interface{}) {
		if m, ok := i.(gometrics.Meter); ok {
			out[name] = m.Rate1()
		}
	})
	return out
}
