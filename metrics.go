/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "lineup"

type Metrics struct {
	registry *prometheus.Registry

	moves       *prometheus.CounterVec
	exports     *prometheus.CounterVec
	connections prometheus.Gauge
	lineups     prometheus.Gauge
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "moves_total",
			Help:      "Lineup changes by kind (assign, clear, release, reset) and result.",
		}, []string{"kind", "result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "exports_total",
			Help:      "Image exports by result.",
		}, []string{"result"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "websocket_connections",
			Help:      "Currently connected websocket clients.",
		}),
		lineups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "lineups_loaded",
			Help:      "Lineups currently held in memory.",
		}),
	}

	m.registry.MustRegister(
		m.moves,
		m.exports,
		m.connections,
		m.lineups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) move(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.moves.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) export(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.exports.WithLabelValues(result).Inc()
}

func registerMetrics(cfg *Config, m *Metrics, mux *httprouter.Router) {
	mux.Handler("GET", cfg.prefix+"/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
