package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "session",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	Torrents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "torrents",
		Help:      "Number of registered torrents by status.",
	}, []string{"status"})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "peers_connected",
		Help:      "Total number of peers reported across all torrents.",
	})

	AdmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "admissions_total",
		Help:      "Torrent admission attempts by source and result.",
	}, []string{"source", "result"})

	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "events_total",
		Help:      "Events delivered by the dispatcher, by kind.",
	}, []string{"kind"})

	EventQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "event_queue_depth",
		Help:      "Events published but not yet taken by the dispatcher.",
	})

	SinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session",
		Name:      "sink_errors_total",
		Help:      "Event sink failures by sink name.",
	}, []string{"sink"})

	ReporterTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "session",
		Name:      "reporter_tick_duration_seconds",
		Help:      "Duration of one progress reporter pass.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session",
		Name:      "ws_clients",
		Help:      "Connected websocket event feed clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		Torrents,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		PeersConnected,
		AdmissionsTotal,
		EventsTotal,
		EventQueueDepth,
		SinkErrorsTotal,
		ReporterTickDuration,
		WSClients,
	)
}
