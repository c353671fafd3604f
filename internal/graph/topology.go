// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package graph

import (
	"github.com/cuwacunu/tsiemene-runtime/internal/dsl/contractdsl"
	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

// NodeFactory resolves a NODE declaration's TYPE_NAME to directive set
// and Step behavior. Concrete node kinds (dataloader source, learner
// adapter, sink) register themselves here; Build fails with
// TopologyError if no factory recognizes a type name.
type NodeFactory func(decl contractdsl.NodeDecl) (*Node, error)

// Build decodes a contractdsl.Circuit into a topology-validated
// Contract (spec §4.6 "Topology validation (before any run)").
func Build(c contractdsl.Circuit, resolve NodeFactory) (*Contract, error) {
	out := &Contract{
		Name:          c.Name,
		InvokeName:    c.InvokeName,
		InvokePayload: c.InvokePayload,
		SeedWave:      c.SeedWave,
		SeedIngress:   c.SeedIngress,
		Epochs:        c.Epochs,
		BatchSize:     c.BatchSize,
	}

	byName := map[string]*Node{}
	for i, decl := range c.Nodes {
		n, err := resolve(decl)
		if err != nil {
			return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: -1, Reason: "node '" + decl.InstanceName + "': " + err.Error()}
		}
		n.ID = uint64(i)
		n.InstanceName = decl.InstanceName
		n.TypeName = decl.TypeName
		n.Domain = decl.Domain
		n.Determinism = decl.Determinism
		byName[decl.InstanceName] = n
		out.Nodes = append(out.Nodes, n)
	}

	hasIncoming := map[string]bool{}
	for i, h := range c.Hops {
		up, ok := byName[h.From.Node]
		if !ok {
			return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: i, Reason: "unknown upstream node: " + h.From.Node}
		}
		down, ok := byName[h.To.Node]
		if !ok {
			return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: i, Reason: "unknown downstream node: " + h.To.Node}
		}

		outDir, ok := up.directive(h.From.Directive, Out)
		if !ok {
			return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: i, Reason: "upstream '" + h.From.Node + "' has no Out directive " + h.From.Directive}
		}
		inDir, ok := down.directive(h.To.Directive, In)
		if !ok {
			return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: i, Reason: "downstream '" + h.To.Node + "' has no In directive " + h.To.Directive}
		}
		if outDir.Kind != inDir.Kind {
			return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: i, Reason: "payload kind mismatch across hop"}
		}
		if !up.AllowsHopTo(down, Out, In) || !down.AllowsHopFrom(up, Out, In) {
			return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: i, Reason: "domain/kind incompatible hop"}
		}

		out.Hops = append(out.Hops, &Hop{Upstream: up, Downstream: down, OutDirective: h.From.Directive, InDirective: h.To.Directive})
		hasIncoming[down.InstanceName] = true
	}

	var roots []*Node
	for _, n := range out.Nodes {
		if !hasIncoming[n.InstanceName] {
			roots = append(roots, n)
		}
	}
	if len(roots) != 1 {
		return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: -1, Reason: "contract must have exactly one root (source with no incoming hops)"}
	}
	if roots[0].Domain != contractdsl.DomainSource {
		return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: -1, Reason: "root node must be a Source"}
	}
	for _, n := range out.Nodes {
		if len(outgoingHops(out.Hops, n)) == 0 && n.Domain != contractdsl.DomainSink {
			return nil, &rterr.TopologyError{ContractName: c.Name, HopIndex: -1, Reason: "terminal node '" + n.InstanceName + "' must be a Sink"}
		}
	}

	if err := assertAcyclic(out); err != nil {
		return nil, err
	}

	out.root = roots[0]
	out.CompiledBuildCount++
	return out, nil
}

func outgoingHops(hops []*Hop, n *Node) []*Hop {
	var out []*Hop
	for _, h := range hops {
		if h.Upstream == n {
			out = append(out, h)
		}
	}
	return out
}

// assertAcyclic verifies the hop graph is topologically sortable via
// Kahn's algorithm (spec's "The hop graph must be acyclic").
func assertAcyclic(c *Contract) error {
	indeg := map[*Node]int{}
	adj := map[*Node][]*Node{}
	for _, n := range c.Nodes {
		indeg[n] = 0
	}
	for _, h := range c.Hops {
		adj[h.Upstream] = append(adj[h.Upstream], h.Downstream)
		indeg[h.Downstream]++
	}

	var queue []*Node
	for _, n := range c.Nodes {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[n] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(c.Nodes) {
		return &rterr.TopologyError{ContractName: c.Name, HopIndex: -1, Reason: "hop graph contains a cycle"}
	}
	return nil
}
