// Package metrics exposes Prometheus counters for resolutions.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_resolver_resolutions_total",
		Help: "Completed resolutions by identifier kind, delivery strategy and outcome",
	}, []string{"kind", "strategy", "outcome"})

	tokenNegotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_resolver_token_negotiations_total",
		Help: "Playback token negotiations by outcome",
	}, []string{"outcome"})

	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_resolver_cdn_probes_total",
		Help: "Alternate CDN health probes by result",
	}, []string{"result"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stream_resolver_stage_duration_seconds",
		Help:    "Duration of each resolution stage",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"stage"})
)

// RecordResolution counts one finished resolution. variants excludes the auto entry.
func RecordResolution(kind, strategy string, variants int) {
	outcome := "variants"
	if variants == 0 {
		outcome = "auto_only"
	}
	resolutionsTotal.WithLabelValues(normalizeKind(kind), normalizeStrategy(strategy), outcome).Inc()
}

// RecordTokenOutcome counts one token negotiation.
func RecordTokenOutcome(outcome string) {
	tokenNegotiationsTotal.WithLabelValues(normalizeTokenOutcome(outcome)).Inc()
}

// RecordProbe counts one probe decision.
func RecordProbe(result string) {
	probesTotal.WithLabelValues(normalizeProbeResult(result)).Inc()
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(normalizeStage(stage)).Observe(d.Seconds())
}

func normalizeKind(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case "live", "vod":
		return k
	default:
		return "unknown"
	}
}

func normalizeStrategy(strategy string) string {
	switch s := strings.ToLower(strings.TrimSpace(strategy)); s {
	case "alternate", "default":
		return s
	default:
		return "unknown"
	}
}

func normalizeTokenOutcome(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case "ok", "transport_error", "bad_json", "missing_token", "cancelled":
		return o
	default:
		return "unknown"
	}
}

func normalizeProbeResult(result string) string {
	switch r := strings.ToLower(strings.TrimSpace(result)); r {
	case "ok", "non_200", "transport_error", "disabled", "cancelled":
		return r
	default:
		return "unknown"
	}
}

func normalizeStage(stage string) string {
	switch s := strings.ToLower(strings.TrimSpace(stage)); s {
	case "token", "probe", "manifest", "total":
		return s
	default:
		return "unknown"
	}
}
