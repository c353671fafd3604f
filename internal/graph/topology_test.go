// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene-runtime/internal/dsl/contractdsl"
)

func sourceFactory(decl contractdsl.NodeDecl) (*Node, error) {
	switch decl.Domain {
	case contractdsl.DomainSource:
		return &Node{Directives: []Directive{{Name: "payload", Direction: Out, Kind: KindTensor}}}, nil
	case contractdsl.DomainSink:
		return &Node{Directives: []Directive{{Name: "payload", Direction: In, Kind: KindTensor}}}, nil
	default:
		return &Node{Directives: []Directive{
			{Name: "payload", Direction: In, Kind: KindTensor},
			{Name: "payload", Direction: Out, Kind: KindTensor},
		}}, nil
	}
}

func trivialCircuit() contractdsl.Circuit {
	return contractdsl.Circuit{
		Name:       "main",
		InvokeName: "run",
		Nodes: []contractdsl.NodeDecl{
			{InstanceName: "src", TypeName: "t", Domain: contractdsl.DomainSource, Determinism: contractdsl.Deterministic},
			{InstanceName: "snk", TypeName: "t", Domain: contractdsl.DomainSink, Determinism: contractdsl.Deterministic},
		},
		Hops: []contractdsl.HopDecl{
			{From: contractdsl.HopEndpoint{Node: "src", Directive: "payload"}, To: contractdsl.HopEndpoint{Node: "snk", Directive: "payload"}},
		},
	}
}

func TestBuildValidatesTrivialCircuit(t *testing.T) {
	c, err := Build(trivialCircuit(), sourceFactory)
	require.NoError(t, err)
	assert.Equal(t, "src", c.Root().InstanceName)
	assert.Len(t, c.Hops, 1)
	assert.EqualValues(t, 1, c.CompiledBuildCount)
}

func TestBuildRejectsCycle(t *testing.T) {
	circuit := contractdsl.Circuit{
		Name:       "cyclic",
		InvokeName: "run",
		Nodes: []contractdsl.NodeDecl{
			{InstanceName: "a", TypeName: "t", Domain: contractdsl.DomainWikimyei, Determinism: contractdsl.Deterministic},
			{InstanceName: "b", TypeName: "t", Domain: contractdsl.DomainWikimyei, Determinism: contractdsl.Deterministic},
		},
		Hops: []contractdsl.HopDecl{
			{From: contractdsl.HopEndpoint{Node: "a", Directive: "payload"}, To: contractdsl.HopEndpoint{Node: "b", Directive: "payload"}},
			{From: contractdsl.HopEndpoint{Node: "b", Directive: "payload"}, To: contractdsl.HopEndpoint{Node: "a", Directive: "payload"}},
		},
	}
	_, err := Build(circuit, sourceFactory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must have exactly one root")
}

func TestBuildRejectsSinkWithOutgoingHop(t *testing.T) {
	circuit := trivialCircuit()
	circuit.Hops = append(circuit.Hops, contractdsl.HopDecl{
		From: contractdsl.HopEndpoint{Node: "snk", Directive: "payload"},
		To:   contractdsl.HopEndpoint{Node: "src", Directive: "payload"},
	})
	_, err := Build(circuit, sourceFactory)
	require.Error(t, err)
}

func TestBuildRejectsUnknownDirective(t *testing.T) {
	circuit := trivialCircuit()
	circuit.Hops[0].From.Directive = "nope"
	_, err := Build(circuit, sourceFactory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no Out directive")
}
