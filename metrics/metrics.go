package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Clients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voiceroom_clients",
		Help: "Currently registered clients.",
	})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceroom_broadcasts_total",
		Help: "Fan-out calls by payload kind.",
	}, []string{"kind"})

	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceroom_evictions_total",
		Help: "Clients removed by the liveness sweep.",
	})

	Dropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceroom_messages_dropped_total",
		Help: "Inbound messages dropped as malformed or unknown.",
	})
)

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
