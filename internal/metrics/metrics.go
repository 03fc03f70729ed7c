// Package metrics exposes crmon's Prometheus instruments. The vars are
// always safe to use; Register only makes them visible on the default
// registry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crmon"

var (
	once sync.Once

	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "frames_total",
		Help:      "Decoded frames by stream kind and frame type",
	}, []string{"kind", "type"})

	MalformedFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "malformed_frames_total",
		Help:      "Frames dropped because they could not be applied",
	}, []string{"kind"})

	PollRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "restarts_total",
		Help:      "Remote command restarts after the channel ended",
	}, []string{"kind"})

	HostOnline = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "host_online",
		Help:      "1 while a host's poll loop is receiving frames",
	}, []string{"cluster", "host", "kind"})

	DCChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dc_changes_total",
		Help:      "Times the selected DC host changed",
	}, []string{"cluster"})

	IDsAllocated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "ids_allocated_total",
		Help:      "Resource ids handed out by the allocator",
	}, []string{"name"})

	ApplyDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "apply_duration_seconds",
		Help:      "Time spent reconciling one frame into the model",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"type"})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(FramesTotal)
		prometheus.MustRegister(MalformedFrames)
		prometheus.MustRegister(PollRestarts)
		prometheus.MustRegister(HostOnline)
		prometheus.MustRegister(DCChanges)
		prometheus.MustRegister(IDsAllocated)
		prometheus.MustRegister(ApplyDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// SetOnline records a host's online state for one stream kind.
func SetOnline(cluster, host, kind string, online bool) {
	v := 0.0
	if online {
		v = 1
	}
	HostOnline.WithLabelValues(cluster, host, kind).Set(v)
}
