// Package metrics provides Prometheus collectors for the collaboration core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the metrics emitted by the formation, negotiation, and
// context engines. A nil *Collector is safe to use and records nothing, so
// engines accept it optionally.
type Collector struct {
	formationsTotal   *prometheus.CounterVec
	formationSeconds  prometheus.Histogram
	teamSwapsTotal    prometheus.Counter
	resolutionsTotal  *prometheus.CounterVec
	resolutionSeconds prometheus.Histogram
	contextWrites     prometheus.Counter
	contextMerges     prometheus.Counter
	subtasksTotal     *prometheus.CounterVec
}

// NewCollector creates and registers the collectors on reg. Pass
// prometheus.DefaultRegisterer for the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		formationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamflow",
			Name:      "formations_total",
			Help:      "Team formations by completion result.",
		}, []string{"result"}),
		formationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "teamflow",
			Name:      "formation_duration_seconds",
			Help:      "Wall time of team formation calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		teamSwapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamflow",
			Name:      "team_swaps_total",
			Help:      "Member swaps performed by team optimization.",
		}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamflow",
			Name:      "negotiation_resolutions_total",
			Help:      "Negotiation resolutions by strategy and outcome.",
		}, []string{"strategy", "status"}),
		resolutionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "teamflow",
			Name:      "negotiation_resolution_duration_seconds",
			Help:      "Wall time of negotiation resolution calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		contextWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamflow",
			Name:      "context_version_writes_total",
			Help:      "Shared-context versions created.",
		}),
		contextMerges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamflow",
			Name:      "context_merges_total",
			Help:      "Shared-context merges performed.",
		}),
		subtasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamflow",
			Name:      "coordinator_subtasks_total",
			Help:      "Coordinator subtask executions by outcome.",
		}, []string{"status"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.formationsTotal,
			c.formationSeconds,
			c.teamSwapsTotal,
			c.resolutionsTotal,
			c.resolutionSeconds,
			c.contextWrites,
			c.contextMerges,
			c.subtasksTotal,
		)
	}
	return c
}

// ObserveFormation records one formation call.
func (c *Collector) ObserveFormation(result string, seconds float64) {
	if c == nil {
		return
	}
	c.formationsTotal.WithLabelValues(result).Inc()
	c.formationSeconds.Observe(seconds)
}

// IncTeamSwap records one optimization swap.
func (c *Collector) IncTeamSwap() {
	if c == nil {
		return
	}
	c.teamSwapsTotal.Inc()
}

// ObserveResolution records one negotiation resolution.
func (c *Collector) ObserveResolution(strategy, status string, seconds float64) {
	if c == nil {
		return
	}
	c.resolutionsTotal.WithLabelValues(strategy, status).Inc()
	c.resolutionSeconds.Observe(seconds)
}

// IncContextWrite records one version creation.
func (c *Collector) IncContextWrite() {
	if c == nil {
		return
	}
	c.contextWrites.Inc()
}

// IncContextMerge records one merge.
func (c *Collector) IncContextMerge() {
	if c == nil {
		return
	}
	c.contextMerges.Inc()
}

// IncSubtask records one coordinator subtask outcome.
func (c *Collector) IncSubtask(status string) {
	if c == nil {
		return
	}
	c.subtasksTotal.WithLabelValues(status).Inc()
}
