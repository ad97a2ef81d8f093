package gossip

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the gossip service's Prometheus collectors, registered on
// an isolated registry so they never collide with a host application's
// default registry. A nil *Metrics is safe to use everywhere below; every
// method is a no-op in that case, so instrumentation stays optional.
type Metrics struct {
	Registry *prometheus.Registry
	node     string

	ViewSize *prometheus.GaugeVec

	SamplingSentTotal    *prometheus.CounterVec
	SamplingFailureTotal *prometheus.CounterVec

	HeadersSentTotal     *prometheus.CounterVec
	ContentRequestsTotal *prometheus.CounterVec
	DigestMismatchTotal  prometheus.Counter

	ActiveUpdates  prometheus.Gauge
	RemovedUpdates prometheus.Gauge

	SubmitTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all collectors registered on a
// fresh registry, labeled with the node's address.
func NewMetrics(address string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ViewSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "gossip_view_size", Help: "Number of peers currently in the local view."},
			[]string{"node"},
		),
		SamplingSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gossip_sampling_sent_total", Help: "Sampling messages sent."},
			[]string{"node"},
		),
		SamplingFailureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gossip_sampling_failure_total", Help: "Sampling sends that failed."},
			[]string{"node"},
		),
		HeadersSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gossip_headers_sent_total", Help: "Header advertisement messages sent."},
			[]string{"node"},
		),
		ContentRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gossip_content_requests_total", Help: "Content requests sent."},
			[]string{"node"},
		),
		DigestMismatchTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "gossip_digest_mismatch_total", Help: "Content responses dropped for digest mismatch."},
		),
		ActiveUpdates: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "gossip_active_updates", Help: "Updates currently active."},
		),
		RemovedUpdates: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "gossip_removed_updates", Help: "Digests currently held as tombstones."},
		),
		SubmitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "gossip_submit_total", Help: "Submit outcomes."},
			[]string{"node", "result"},
		),
	}

	reg.MustRegister(
		m.ViewSize, m.SamplingSentTotal, m.SamplingFailureTotal, m.HeadersSentTotal,
		m.ContentRequestsTotal, m.DigestMismatchTotal, m.ActiveUpdates, m.RemovedUpdates,
		m.SubmitTotal,
	)

	m.node = address
	return m
}

// setViewSize records the view size under this node's label; m.node caches
// the label value so call sites don't have to thread the address through
// every metrics call.
func (m *Metrics) setViewSize(n int) {
	if m == nil {
		return
	}
	m.ViewSize.WithLabelValues(m.node).Set(float64(n))
}

func (m *Metrics) incSamplingSent() {
	if m == nil {
		return
	}
	m.SamplingSentTotal.WithLabelValues(m.node).Inc()
}

func (m *Metrics) incSamplingFailure() {
	if m == nil {
		return
	}
	m.SamplingFailureTotal.WithLabelValues(m.node).Inc()
}

func (m *Metrics) incHeadersSent() {
	if m == nil {
		return
	}
	m.HeadersSentTotal.WithLabelValues(m.node).Inc()
}

func (m *Metrics) incContentRequests() {
	if m == nil {
		return
	}
	m.ContentRequestsTotal.WithLabelValues(m.node).Inc()
}

func (m *Metrics) incDigestMismatch() {
	if m == nil {
		return
	}
	m.DigestMismatchTotal.Inc()
}

func (m *Metrics) setActiveUpdates(n int) {
	if m == nil {
		return
	}
	m.ActiveUpdates.Set(float64(n))
}

func (m *Metrics) setRemovedUpdates(n int) {
	if m == nil {
		return
	}
	m.RemovedUpdates.Set(float64(n))
}

func (m *Metrics) incSubmit(result string) {
	if m == nil {
		return
	}
	m.SubmitTotal.WithLabelValues(m.node, result).Inc()
}
