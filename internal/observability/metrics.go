package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "palctl"

var (
	registerOnce sync.Once

	framesEncoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "encoded_total",
			Help:      "Wire frames produced by the encoder.",
		},
		[]string{"kind", "outcome"},
	)
	framesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "decoded_total",
			Help:      "Decoder results per inbound chunk step.",
		},
		[]string{"outcome"},
	)
	transportBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bytes_total",
			Help:      "Bytes moved over the connection.",
		},
		[]string{"direction"},
	)
	dispatchPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "packets_total",
			Help:      "Inbound packets by command and pipeline outcome.",
		},
		[]string{"command", "outcome"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time spent running the inbound pipeline for one packet.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	handlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "handler_errors_total",
			Help:      "Handler and plugin failures caught by the pipeline.",
		},
		[]string{"stage", "command"},
	)
	watchesPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "pending",
			Help:      "Watches waiting for a packet.",
		},
	)
	watchResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "resolutions_total",
			Help:      "Watch outcomes by kind.",
		},
		[]string{"kind", "outcome"},
	)
	statusRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "http_requests_total",
			Help:      "Requests served by the status endpoint.",
		},
		[]string{"method", "path", "status"},
	)
	statusDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "http_request_duration_seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesEncoded,
			framesDecoded,
			transportBytes,
			dispatchPackets,
			dispatchDuration,
			handlerErrors,
			watchesPending,
			watchResolutions,
			statusRequests,
			statusDuration,
		)
	})
}

func RecordFrameEncoded(kind, outcome string) {
	RegisterMetrics()
	framesEncoded.WithLabelValues(kind, outcome).Inc()
}

func RecordFrameDecoded(outcome string) {
	RegisterMetrics()
	framesDecoded.WithLabelValues(outcome).Inc()
}

func RecordTransportBytes(direction string, n int) {
	RegisterMetrics()
	transportBytes.WithLabelValues(direction).Add(float64(n))
}

func RecordDispatch(command, outcome string, duration time.Duration) {
	RegisterMetrics()
	dispatchPackets.WithLabelValues(command, outcome).Inc()
	dispatchDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func RecordHandlerError(stage, command string) {
	RegisterMetrics()
	handlerErrors.WithLabelValues(stage, command).Inc()
}

func SetWatchesPending(n int) {
	RegisterMetrics()
	watchesPending.Set(float64(n))
}

func RecordWatchResolution(kind, outcome string) {
	RegisterMetrics()
	watchResolutions.WithLabelValues(kind, outcome).Inc()
}

func RecordStatusRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	statusDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
