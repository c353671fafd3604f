// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes process-level Prometheus instrumentation for
// the engine's episode/batch throughput and the registries' hash-keyed
// record counts. Grounded on the package pack's
// prometheus/client_golang exposition idiom (global counters/gauges
// registered at init, a dedicated promhttp endpoint), not on any
// domain-specific behavior named by the specification — these metrics
// are purely observational.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EpisodesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsiemene_episodes_started_total",
		Help: "Total dataloader episodes started across all source nodes.",
	})
	EpisodesTerminated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsiemene_episodes_terminated_total",
		Help: "Total dataloader episodes terminated (emitted a terminal meta and cleared state).",
	})
	BatchesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsiemene_batches_emitted_total",
		Help: "Total packed batch tensors emitted on @payload by source nodes.",
	})
	EngineSteps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsiemene_engine_steps_total",
		Help: "Total node.step invocations across all contract runs.",
	})
	WikimyeiLoss = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tsiemene_wikimyei_loss",
		Help:    "Distribution of scalar losses emitted on @loss by learner adapters in train mode.",
		Buckets: prometheus.DefBuckets,
	})

	ContractRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tsiemene_registry_contract_records",
		Help: "Number of distinct hash-keyed records currently held in the contract registry.",
	})
	WaveRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tsiemene_registry_wave_records",
		Help: "Number of distinct hash-keyed records currently held in the wave registry.",
	})
	BoardRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tsiemene_registry_board_records",
		Help: "Number of distinct hash-keyed records currently held in the board registry.",
	})

	SweeperFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsiemene_sweeper_intact_check_failures_total",
		Help: "Total times the periodic registry-integrity sweep observed a violation before terminating the process.",
	})
)

func init() {
	prometheus.MustRegister(
		EpisodesStarted, EpisodesTerminated, BatchesEmitted, EngineSteps, WikimyeiLoss,
		ContractRecords, WaveRecords, BoardRecords, SweeperFailures,
	)
}

// Serve starts a dedicated /metrics HTTP endpoint on addr in the
// background. The error from ListenAndServe is discarded, so a listener
// that cannot bind addr (for example on a second call with the same
// addr) ends silently.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
