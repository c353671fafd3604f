// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package engine implements spec.md §4.6: the graph execution loop
// that drives a validated contract's nodes from a seed event through
// hop fanout and runtime-continuation re-scheduling to quiescence.
package engine

import (
	"fmt"
	"time"

	"github.com/cuwacunu/tsiemene-runtime/internal/graph"
	"github.com/cuwacunu/tsiemene-runtime/internal/metatrace"
	"github.com/cuwacunu/tsiemene-runtime/internal/metrics"
	"github.com/cuwacunu/tsiemene-runtime/internal/obslog"
)

// event is one pending (node, ingress) pair in the execution queue.
type event struct {
	node    *graph.Node
	ingress graph.Ingress
}

// Engine drives one contract's execution loop (spec's "core is
// multi-threaded with coarse-grained locks [but] execution of a
// contract is single-threaded cooperative within one calling thread").
type Engine struct {
	log *obslog.Sink
}

// New builds an Engine that logs node @meta emissions and step counts
// through log.
func New(log *obslog.Sink) *Engine {
	return &Engine{log: log}
}

// Stats summarizes one Run invocation for the caller.
type Stats struct {
	Steps uint64
}

// Run drives contract from seedIngress over contract.Epochs epochs
// (spec §4.6's "advance_wave_cursor_when_episode_boundary_crossed"):
// for each epoch it resets wave.Batch to 0, sets wave.Episode to the
// epoch index, and re-seeds the root node, following spec's
// event-queue pseudocode verbatim within that epoch: FIFO fanout,
// depth-first runtime-continuation (pushed to the FRONT of the
// queue), and @meta routed to ctx.OnMeta (or, absent a caller hook,
// encoded as a line-protocol trace and logged). contract.Epochs == 0
// runs exactly one epoch.
func (e *Engine) Run(contract *graph.Contract, wave *graph.WaveCursor, seedIngress graph.Ingress, ctx *graph.ExecContext) (Stats, error) {
	if contract.Root() == nil {
		return Stats{}, fmt.Errorf("engine: contract %q has no validated root; call topology.Build first", contract.Name)
	}
	if ctx == nil {
		ctx = &graph.ExecContext{}
	}

	epochs := contract.Epochs
	if epochs == 0 {
		epochs = 1
	}

	var stats Stats
	for epoch := uint64(0); epoch < epochs; epoch++ {
		if wave != nil {
			wave.Episode = epoch
			wave.Batch = 0
		}
		epochStats, err := e.runEpisode(contract, wave, seedIngress, ctx)
		stats.Steps += epochStats.Steps
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// runEpisode drains one epoch's event queue to quiescence.
func (e *Engine) runEpisode(contract *graph.Contract, wave *graph.WaveCursor, seedIngress graph.Ingress, ctx *graph.ExecContext) (Stats, error) {
	events := []event{{node: contract.Root(), ingress: seedIngress}}
	var stats Stats

	for len(events) > 0 {
		ev := events[0]
		events = events[1:]

		emitter := &graph.Emitter{}
		if err := ev.node.Step(wave, ev.ingress, ctx, emitter); err != nil {
			return stats, fmt.Errorf("engine: node %s step failed: %w", ev.node.InstanceName, err)
		}
		stats.Steps++
		metrics.EngineSteps.Inc()

		for _, emission := range emitter.Emissions() {
			if emission.Directive == "meta" {
				e.traceMeta(ctx, ev.node.InstanceName, emission.Signal.Text)
			}
			for _, hop := range hopsFrom(contract, ev.node, emission.Directive) {
				events = append(events, event{
					node:    hop.Downstream,
					ingress: graph.Ingress{DirectiveID: hop.InDirective, Signal: emission.Signal},
				})
			}
		}

		if ev.node.RequestsRuntimeContinuation != nil && ev.node.RequestsRuntimeContinuation() {
			continuation := event{node: ev.node}
			if ev.node.RuntimeContinuationIngress != nil {
				continuation.ingress = ev.node.RuntimeContinuationIngress()
			}
			// depth-first: re-schedule ahead of this step's fanout.
			events = append([]event{continuation}, events...)
		}
	}

	return stats, nil
}

// traceMeta delivers a @meta emission to ctx.OnMeta when the caller
// supplied one; otherwise it encodes the emission as a line-protocol
// trace line and logs it, so meta strings are never silently dropped.
func (e *Engine) traceMeta(ctx *graph.ExecContext, node, text string) {
	if ctx.OnMeta != nil {
		ctx.OnMeta(node, text)
		return
	}
	if e.log == nil {
		return
	}
	line, err := metatrace.Encode(node, map[string]string{"text": text}, time.Now())
	if err != nil {
		e.log.Warnf("engine: meta trace encode failed for %s: %s", node, err.Error())
		return
	}
	e.log.Infof("%s", line)
}

// hopsFrom returns node's outgoing hops whose OutDirective matches
// directive, in contract declaration order (spec's "across peer hops,
// delivery follows the hop declaration order").
func hopsFrom(contract *graph.Contract, node *graph.Node, directive string) []*graph.Hop {
	var hops []*graph.Hop
	for _, h := range contract.Hops {
		if h.Upstream == node && h.OutDirective == directive {
			hops = append(hops, h)
		}
	}
	return hops
}
