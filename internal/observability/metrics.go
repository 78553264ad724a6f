package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	adsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ads_submitted_total",
			Help: "Total number of advertisements submitted for moderation",
		},
	)

	moderationDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_decisions_total",
			Help: "Total number of applied moderation decisions",
		},
		[]string{"decision"},
	)

	deliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_failures_total",
			Help: "Total number of failed deliveries to external destinations",
		},
		[]string{"kind"},
	)
)

// Init registers the metrics and, when addr is non-empty, serves /metrics on
// it in the background.
func Init(addr string) {
	prometheus.MustRegister(adsSubmittedTotal)
	prometheus.MustRegister(moderationDecisionsTotal)
	prometheus.MustRegister(deliveryFailuresTotal)

	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()
}

func RecordSubmission() {
	adsSubmittedTotal.Inc()
}

func RecordDecision(decision string) {
	moderationDecisionsTotal.WithLabelValues(decision).Inc()
}

func RecordDeliveryFailure(kind string) {
	deliveryFailuresTotal.WithLabelValues(kind).Inc()
}
