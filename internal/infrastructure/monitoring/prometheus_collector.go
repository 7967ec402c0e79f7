package monitoring

import (
	"streamlayout/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.LayoutMetrics.
type PrometheusCollector struct {
	sessionsActive prometheus.Gauge

	reconciliations  *prometheus.CounterVec
	pinSuggestions   prometheus.Counter
	modeSwitches     *prometheus.CounterVec
	fullscreenEvents *prometheus.CounterVec

	layoutItems prometheus.Histogram

	sessionPinned   *prometheus.GaugeVec
	sessionOverflow *prometheus.GaugeVec
}

// NewPrometheusCollector registers the layout metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamlayout_sessions_active",
			Help: "Number of open layout sessions",
		}),

		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamlayout_reconciliations_total",
			Help: "Layout changes emitted, by active mode",
		}, []string{"mode"}),

		pinSuggestions: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamlayout_pin_suggestions_total",
			Help: "Screen share pin prompts sent to clients",
		}),

		modeSwitches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamlayout_mode_switches_total",
			Help: "Layout mode transitions, by target mode",
		}, []string{"mode"}),

		fullscreenEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamlayout_fullscreen_toggles_total",
			Help: "Fullscreen notifications, by state",
		}, []string{"state"}),

		layoutItems: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamlayout_layout_items",
			Help:    "Number of items in emitted layouts",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
		}),

		sessionPinned: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamlayout_session_pinned_streams",
			Help: "Pinned streams per session",
		}, []string{"session_id"}),

		sessionOverflow: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamlayout_session_overflow_size",
			Help: "Streams collapsed into the overflow tile per session",
		}, []string{"session_id"}),
	}
}

// RecordReconcile counts an emitted layout and updates the session gauges.
func (p *PrometheusCollector) RecordReconcile(sessionID domain.SessionID, snapshot domain.LayoutSnapshot) {
	p.reconciliations.WithLabelValues(string(snapshot.Mode)).Inc()
	p.layoutItems.Observe(float64(len(snapshot.Items)))
	p.sessionPinned.WithLabelValues(string(sessionID)).Set(float64(len(snapshot.PinnedIDs)))
	p.sessionOverflow.WithLabelValues(string(sessionID)).Set(float64(snapshot.OverflowSize()))
}

func (p *PrometheusCollector) RecordPinSuggestion(sessionID domain.SessionID) {
	p.pinSuggestions.Inc()
}

// RecordModeSwitch counts a change of the active layout mode.
func (p *PrometheusCollector) RecordModeSwitch(sessionID domain.SessionID, mode domain.LayoutMode) {
	p.modeSwitches.WithLabelValues(string(mode)).Inc()
}

// RecordFullscreen counts fullscreen being entered or left.
func (p *PrometheusCollector) RecordFullscreen(sessionID domain.SessionID, enabled bool) {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	p.fullscreenEvents.WithLabelValues(state).Inc()
}

func (p *PrometheusCollector) RecordSessionOpened(sessionID domain.SessionID) {
	p.sessionsActive.Inc()
}

// RecordSessionClosed drops the session's gauges.
func (p *PrometheusCollector) RecordSessionClosed(sessionID domain.SessionID) {
	p.sessionsActive.Dec()

	// Per-session series would otherwise live forever.
	p.sessionPinned.DeleteLabelValues(string(sessionID))
	p.sessionOverflow.DeleteLabelValues(string(sessionID))
}
