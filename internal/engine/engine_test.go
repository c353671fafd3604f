// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene-runtime/internal/dsl/contractdsl"
	"github.com/cuwacunu/tsiemene-runtime/internal/graph"
	"github.com/cuwacunu/tsiemene-runtime/internal/obslog"
)

// countingSourceFactory builds a source that emits `emits` times across
// successive steps (via RequestsRuntimeContinuation) before going quiet,
// and a passthrough sink that just records what it received.
func countingSourceFactory(emits int, received *[]string) graph.NodeFactory {
	calls := 0
	return func(decl contractdsl.NodeDecl) (*graph.Node, error) {
		switch decl.Domain {
		case contractdsl.DomainSource:
			n := &graph.Node{
				Directives: []graph.Directive{{Name: "payload", Direction: graph.Out, Kind: graph.KindString}},
			}
			n.Step = func(_ *graph.WaveCursor, _ graph.Ingress, _ *graph.ExecContext, emit *graph.Emitter) error {
				calls++
				emit.Emit("payload", graph.Signal{Kind: graph.SignalString, Text: "tick"})
				return nil
			}
			n.RequestsRuntimeContinuation = func() bool { return calls < emits }
			n.RuntimeContinuationIngress = func() graph.Ingress { return graph.Ingress{} }
			return n, nil
		default:
			n := &graph.Node{
				Directives: []graph.Directive{{Name: "payload", Direction: graph.In, Kind: graph.KindString}},
			}
			n.Step = func(_ *graph.WaveCursor, ingress graph.Ingress, _ *graph.ExecContext, emit *graph.Emitter) error {
				*received = append(*received, ingress.Signal.Text)
				emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: "received"})
				return nil
			}
			return n, nil
		}
	}
}

func TestEngineRunDrivesRuntimeContinuationDepthFirst(t *testing.T) {
	var received []string
	circuit := contractdsl.Circuit{
		Name:       "loop",
		InvokeName: "run",
		Nodes: []contractdsl.NodeDecl{
			{InstanceName: "src", TypeName: "t", Domain: contractdsl.DomainSource, Determinism: contractdsl.Deterministic},
			{InstanceName: "snk", TypeName: "t", Domain: contractdsl.DomainSink, Determinism: contractdsl.Deterministic},
		},
		Hops: []contractdsl.HopDecl{
			{From: contractdsl.HopEndpoint{Node: "src", Directive: "payload"}, To: contractdsl.HopEndpoint{Node: "snk", Directive: "payload"}},
		},
	}

	contract, err := graph.Build(circuit, countingSourceFactory(3, &received))
	require.NoError(t, err)

	var metas []string
	ctx := &graph.ExecContext{OnMeta: func(_, text string) { metas = append(metas, text) }}

	e := New(obslog.Default())
	stats, err := e.Run(contract, &graph.WaveCursor{ID: "w"}, graph.Ingress{}, ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"tick", "tick", "tick"}, received)
	assert.Equal(t, []string{"received", "received", "received"}, metas)
	assert.EqualValues(t, 6, stats.Steps) // 3 source steps + 3 sink steps
}

func TestEngineRunRejectsUnbuiltContract(t *testing.T) {
	e := New(obslog.Default())
	_, err := e.Run(&graph.Contract{Name: "empty"}, nil, graph.Ingress{}, nil)
	assert.Error(t, err)
}

// epochCappedSourceFactory builds a source that self-limits to
// maxPerEpoch emissions within a wave.Episode, recording the
// (episode, batch) cursor it observed on entry to each step — the
// same cadence a TsiSourceDataloader drives via MaxBatchesPerEpoch.
func epochCappedSourceFactory(maxPerEpoch int, cursors *[][2]uint64) graph.NodeFactory {
	var emittedThisEpoch int
	var lastEpoch uint64
	seenEpoch := false

	return func(decl contractdsl.NodeDecl) (*graph.Node, error) {
		switch decl.Domain {
		case contractdsl.DomainSource:
			n := &graph.Node{
				Directives: []graph.Directive{{Name: "payload", Direction: graph.Out, Kind: graph.KindString}},
			}
			n.Step = func(wave *graph.WaveCursor, _ graph.Ingress, _ *graph.ExecContext, emit *graph.Emitter) error {
				if !seenEpoch || wave.Episode != lastEpoch {
					seenEpoch = true
					lastEpoch = wave.Episode
					emittedThisEpoch = 0
				}
				*cursors = append(*cursors, [2]uint64{wave.Episode, wave.Batch})
				emittedThisEpoch++
				wave.Batch++
				wave.I++
				emit.Emit("payload", graph.Signal{Kind: graph.SignalString, Text: "tick"})
				return nil
			}
			n.RequestsRuntimeContinuation = func() bool { return emittedThisEpoch < maxPerEpoch }
			n.RuntimeContinuationIngress = func() graph.Ingress { return graph.Ingress{} }
			return n, nil
		default:
			n := &graph.Node{
				Directives: []graph.Directive{{Name: "payload", Direction: graph.In, Kind: graph.KindString}},
			}
			n.Step = func(_ *graph.WaveCursor, _ graph.Ingress, _ *graph.ExecContext, emit *graph.Emitter) error {
				emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: "received"})
				return nil
			}
			return n, nil
		}
	}
}

// TestEngineRunDrivesEpochsAndBatches matches spec's S3 scenario:
// epochs=2, max_batches_per_epoch=3 yields cursor.episode =
// [0,0,0,1,1,1], cursor.batch = [0,1,2,0,1,2], and 2*2*3=12 total
// engine steps (P6).
func TestEngineRunDrivesEpochsAndBatches(t *testing.T) {
	var cursors [][2]uint64
	circuit := contractdsl.Circuit{
		Name:       "epoched",
		InvokeName: "run",
		Epochs:     2,
		Nodes: []contractdsl.NodeDecl{
			{InstanceName: "src", TypeName: "t", Domain: contractdsl.DomainSource, Determinism: contractdsl.Deterministic},
			{InstanceName: "snk", TypeName: "t", Domain: contractdsl.DomainSink, Determinism: contractdsl.Deterministic},
		},
		Hops: []contractdsl.HopDecl{
			{From: contractdsl.HopEndpoint{Node: "src", Directive: "payload"}, To: contractdsl.HopEndpoint{Node: "snk", Directive: "payload"}},
		},
	}

	contract, err := graph.Build(circuit, epochCappedSourceFactory(3, &cursors))
	require.NoError(t, err)

	e := New(obslog.Default())
	wave := &graph.WaveCursor{ID: "w", MaxBatchesPerEpoch: 3}
	stats, err := e.Run(contract, wave, graph.Ingress{}, nil)
	require.NoError(t, err)

	episodes := make([]uint64, len(cursors))
	batches := make([]uint64, len(cursors))
	for i, c := range cursors {
		episodes[i], batches[i] = c[0], c[1]
	}
	assert.Equal(t, []uint64{0, 0, 0, 1, 1, 1}, episodes)
	assert.Equal(t, []uint64{0, 1, 2, 0, 1, 2}, batches)
	assert.EqualValues(t, 12, stats.Steps)
}
