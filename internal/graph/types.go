// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package graph implements spec.md §3/§4.6: the typed dataflow graph
// (nodes, directive-typed hops, contracts, wave cursors) and the
// execution engine's topology validator.
package graph

import "github.com/cuwacunu/tsiemene-runtime/internal/dsl/contractdsl"

// Direction is a directive's flow direction on a node.
type Direction int

const (
	In Direction = iota
	Out
)

// PayloadKind is a directive's carried signal shape.
type PayloadKind int

const (
	KindTensor PayloadKind = iota
	KindString
)

// Directive is one named port on a node, e.g. `@payload`, `@future`,
// `@loss`, `@meta`, `@step`.
type Directive struct {
	Name      string
	Direction Direction
	Kind      PayloadKind
}

// Step invokes the node's behavior for one scheduling event. ctx
// carries the active wave cursor; emitter collects this step's
// emissions in production order (spec's "emissions are delivered in
// the order the node produced them").
type Step func(wave *WaveCursor, ingress Ingress, ctx *ExecContext, emit *Emitter) error

// Node is a typed dataflow participant: a Source, Wikimyei (learner),
// or Sink, as declared by a contract's NODE block.
type Node struct {
	ID           uint64
	TypeName     string
	InstanceName string
	Domain       contractdsl.Domain
	Determinism  contractdsl.Determinism
	Directives   []Directive

	// Step is the node's behavior; nil for a node that has not been
	// bound to an implementation yet.
	Step Step

	// RequestsRuntimeContinuation, when non-nil, is polled by the
	// engine after every step call (spec's
	// "node.requests_runtime_continuation()").
	RequestsRuntimeContinuation func() bool
	// RuntimeContinuationIngress supplies the ingress for a
	// self-requested continuation step.
	RuntimeContinuationIngress func() Ingress
}

func (n *Node) directive(name string, dir Direction) (Directive, bool) {
	for _, d := range n.Directives {
		if d.Name == name && d.Direction == dir {
			return d, true
		}
	}
	return Directive{}, false
}

// AllowsHopTo reports whether n (as upstream) permits a hop to
// downstream with the given out/in directions, per spec's
// "upstream.allows_hop_to(downstream, out_dir, in_dir)". Sinks never
// permit outgoing hops; everything else is domain-agnostic at this
// layer — incompatibility is caught by directive/kind matching.
func (n *Node) AllowsHopTo(downstream *Node, outDir, inDir Direction) bool {
	if n.Domain == contractdsl.DomainSink {
		return false
	}
	return outDir == Out && inDir == In
}

// AllowsHopFrom reports whether n (as downstream) permits a hop from
// upstream, per spec's "downstream.allows_hop_from(upstream, out_dir,
// in_dir)". Sources never accept incoming hops.
func (n *Node) AllowsHopFrom(upstream *Node, outDir, inDir Direction) bool {
	if n.Domain == contractdsl.DomainSource {
		return false
	}
	return outDir == Out && inDir == In
}

// Hop is a validated (out_port, in_port) edge between two nodes.
type Hop struct {
	Upstream      *Node
	Downstream    *Node
	OutDirective  string
	InDirective   string
}

// Contract (circuit) is a fully-resolved, topology-validated graph.
type Contract struct {
	Name          string
	InvokeName    string
	InvokePayload string
	SeedWave      string
	SeedIngress   string
	Epochs        uint64
	BatchSize     uint64

	Nodes []*Node
	Hops  []*Hop

	// CompiledBuildCount is incremented once by the Build call that
	// produced this Contract, so a freshly built contract reads 1. Build
	// keeps no cache: every call compiles a new Contract, and no compiled
	// plan or snapshot is reused across runs.
	CompiledBuildCount uint64
	root               *Node
}

// Root returns the contract's unique root node (a source with no
// incoming hops), set by a successful Build.
func (c *Contract) Root() *Node { return c.root }

// WaveCursor tracks the episode-scoped emission counters of spec's
// "Wave cursor" entity.
type WaveCursor struct {
	ID                 string
	I                  uint64 // monotonic emission index
	Episode            uint64
	Batch              uint64
	SpanBeginMs        int64
	SpanEndMs          int64
	HasTimeSpan        bool
	MaxBatchesPerEpoch uint64
}

// SignalKind tags the Signal union.
type SignalKind int

const (
	SignalString SignalKind = iota
	SignalTensor
)

// Signal is the tagged union `(String, text) | (Tensor, t)` carried on
// a hop.
type Signal struct {
	Kind   SignalKind
	Text   string
	Tensor *Tensor
}

// Ingress is the input delivered to a node's Step.
type Ingress struct {
	DirectiveID string
	Signal      Signal
}

// Emission is one signal a node produced on one of its Out directives
// during a Step call.
type Emission struct {
	Directive string
	Signal    Signal
}

// Emitter collects a node's emissions in production order.
type Emitter struct {
	emissions []Emission
}

// Emit records e in the order it was called, matching spec's emission
// ordering guarantee.
func (e *Emitter) Emit(directive string, s Signal) {
	e.emissions = append(e.emissions, Emission{Directive: directive, Signal: s})
}

// Emissions returns the emitter's collected emissions.
func (e *Emitter) Emissions() []Emission { return e.emissions }

// ExecContext carries engine-scoped dependencies available to a node's
// Step, e.g. the observability sink (set by the caller).
type ExecContext struct {
	OnMeta func(nodeInstanceName, text string)
}
