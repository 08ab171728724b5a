package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayHealthyGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sonicframe_gateway_healthy",
		Help: "Whether a gateway is currently considered healthy (1) or not (0).",
	}, []string{"gateway"})

	gatewayLatencyGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sonicframe_gateway_latency_ms",
		Help: "Smoothed observed latency per gateway in milliseconds.",
	}, []string{"gateway"})

	resolveAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonicframe_resolve_attempts_total",
		Help: "Gateway resolution attempts by outcome.",
	}, []string{"gateway", "outcome"})

	resolveExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonicframe_resolve_exhausted_total",
		Help: "Resolutions that failed across every configured gateway.",
	})

	storeRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonicframe_store_retries_total",
		Help: "Transient document store failures that triggered a retry.",
	}, []string{"op"})
)
