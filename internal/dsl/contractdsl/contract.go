// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package contractdsl decodes the contract (circuit) DSL grammar: a
// sequence of CIRCUIT, OBSERVATION_CHANNEL and JKIMYEI blocks (spec.md
// §3's "contract record ... contains decoded circuit,
// observation-sources, observation-channels, jkimyei-specs").
package contractdsl

import (
	"strings"

	"github.com/cuwacunu/tsiemene-runtime/internal/dsl"
)

// Domain is a node's dataflow role.
type Domain int

const (
	DomainSource Domain = iota
	DomainWikimyei
	DomainSink
)

func parseDomain(v string) (Domain, bool) {
	switch strings.ToLower(v) {
	case "source":
		return DomainSource, true
	case "wikimyei":
		return DomainWikimyei, true
	case "sink":
		return DomainSink, true
	default:
		return 0, false
	}
}

func (d Domain) String() string {
	switch d {
	case DomainSource:
		return "Source"
	case DomainWikimyei:
		return "Wikimyei"
	case DomainSink:
		return "Sink"
	default:
		return "Unknown"
	}
}

// Determinism is a node's reproducibility class.
type Determinism int

const (
	Deterministic Determinism = iota
	SeededStochastic
)

func parseDeterminism(v string) (Determinism, bool) {
	switch strings.ToLower(v) {
	case "deterministic":
		return Deterministic, true
	case "seededstochastic":
		return SeededStochastic, true
	default:
		return 0, false
	}
}

// NodeDecl is one NODE <instance_name> { ... }; declaration.
type NodeDecl struct {
	InstanceName string
	TypeName     string
	Domain       Domain
	Determinism  Determinism
}

// HopEndpoint names a (node, directive) pair.
type HopEndpoint struct {
	Node      string
	Directive string
}

// HopDecl is one HOP { ... }; declaration.
type HopDecl struct {
	From HopEndpoint
	To   HopEndpoint
}

// Circuit is a decoded CIRCUIT block (spec's "Contract (circuit)").
type Circuit struct {
	Name          string
	InvokeName    string
	InvokePayload string
	SeedWave      string
	SeedIngress   string
	Epochs        uint64
	BatchSize     uint64
	Nodes         []NodeDecl
	Hops          []HopDecl
}

// ObservationChannel is a decoded OBSERVATION_CHANNEL block.
type ObservationChannel struct {
	Name        string
	FeatureDims uint64
	NormWindow  uint64
}

// JkimyeiSpec is a decoded JKIMYEI (trainable component) spec block.
type JkimyeiSpec struct {
	ProfileID string
	Encoder   string
	Rank      uint64
}

// Set is the decoded contract record payload.
type Set struct {
	Circuits []Circuit
	Channels []ObservationChannel
	Jkimyeis []JkimyeiSpec
}

// Decode parses and validates contract DSL text.
func Decode(file, src string) (Set, error) {
	p := dsl.NewParser(file, src)

	out := Set{}
	seenCircuitNames := map[string]bool{}
	seenChannelNames := map[string]bool{}
	seenJkimyeiIDs := map[string]bool{}

	for !p.PeekIsEnd() {
		kw, err := p.ExpectIdentifierAny()
		if err != nil {
			return Set{}, err
		}
		switch kw.Text {
		case "CIRCUIT":
			c, err := parseCircuit(p)
			if err != nil {
				return Set{}, err
			}
			if seenCircuitNames[c.Name] {
				return Set{}, p.Fail("duplicate CIRCUIT name: " + c.Name)
			}
			seenCircuitNames[c.Name] = true
			out.Circuits = append(out.Circuits, c)
		case "OBSERVATION_CHANNEL":
			ch, err := parseChannel(p)
			if err != nil {
				return Set{}, err
			}
			if seenChannelNames[ch.Name] {
				return Set{}, p.Fail("duplicate OBSERVATION_CHANNEL name: " + ch.Name)
			}
			seenChannelNames[ch.Name] = true
			out.Channels = append(out.Channels, ch)
		case "JKIMYEI":
			j, err := parseJkimyei(p)
			if err != nil {
				return Set{}, err
			}
			if seenJkimyeiIDs[j.ProfileID] {
				return Set{}, p.Fail("duplicate JKIMYEI profile id: " + j.ProfileID)
			}
			seenJkimyeiIDs[j.ProfileID] = true
			out.Jkimyeis = append(out.Jkimyeis, j)
		default:
			return Set{}, p.Fail("unknown contract keyword: " + kw.Text)
		}
	}

	if len(out.Circuits) == 0 {
		return Set{}, p.Fail("contract has no CIRCUIT blocks")
	}
	return out, nil
}

func parseCircuit(p *dsl.Parser) (Circuit, error) {
	nameTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return Circuit{}, err
	}
	out := Circuit{Name: nameTok.Text}
	if err := p.ExpectSymbol('{'); err != nil {
		return Circuit{}, err
	}

	seenInstanceNames := map[string]bool{}
	for !p.PeekIsSymbol('}') {
		peek, err := p.Peek()
		if err != nil {
			return Circuit{}, err
		}
		switch peek.Text {
		case "INVOKE_NAME":
			v, err := p.ParseAssignmentValue("INVOKE_NAME")
			if err != nil {
				return Circuit{}, err
			}
			out.InvokeName = v
		case "INVOKE_PAYLOAD":
			v, err := p.ParseAssignmentValue("INVOKE_PAYLOAD")
			if err != nil {
				return Circuit{}, err
			}
			out.InvokePayload = v
		case "SEED_WAVE":
			v, err := p.ParseAssignmentValue("SEED_WAVE")
			if err != nil {
				return Circuit{}, err
			}
			out.SeedWave = v
		case "SEED_INGRESS":
			v, err := p.ParseAssignmentValue("SEED_INGRESS")
			if err != nil {
				return Circuit{}, err
			}
			out.SeedIngress = v
		case "EPOCHS":
			v, err := p.ParseAssignmentValue("EPOCHS")
			if err != nil {
				return Circuit{}, err
			}
			n, ok := dsl.ParseUint64(v)
			if !ok || n == 0 {
				return Circuit{}, p.Fail("invalid CIRCUIT EPOCHS value: " + v)
			}
			out.Epochs = n
		case "BATCH_SIZE":
			v, err := p.ParseAssignmentValue("BATCH_SIZE")
			if err != nil {
				return Circuit{}, err
			}
			n, ok := dsl.ParseUint64(v)
			if !ok || n == 0 {
				return Circuit{}, p.Fail("invalid CIRCUIT BATCH_SIZE value: " + v)
			}
			out.BatchSize = n
		case "NODE":
			n, err := parseNode(p)
			if err != nil {
				return Circuit{}, err
			}
			if seenInstanceNames[n.InstanceName] {
				return Circuit{}, p.Fail("duplicate NODE instance name: " + n.InstanceName)
			}
			seenInstanceNames[n.InstanceName] = true
			out.Nodes = append(out.Nodes, n)
		case "HOP":
			h, err := parseHop(p)
			if err != nil {
				return Circuit{}, err
			}
			out.Hops = append(out.Hops, h)
		default:
			return Circuit{}, p.Fail("unknown CIRCUIT key: " + peek.Text)
		}
	}
	if err := p.ExpectSymbol('}'); err != nil {
		return Circuit{}, err
	}
	if p.PeekIsSymbol(';') {
		_, _ = p.Next()
	}

	if out.InvokeName == "" {
		return Circuit{}, p.Fail("CIRCUIT '" + out.Name + "' missing required INVOKE_NAME assignment")
	}
	if len(out.Nodes) == 0 {
		return Circuit{}, p.Fail("CIRCUIT '" + out.Name + "' has no NODE declarations")
	}
	return out, nil
}

func parseNode(p *dsl.Parser) (NodeDecl, error) {
	if err := p.ExpectIdentifier("NODE"); err != nil {
		return NodeDecl{}, err
	}
	nameTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return NodeDecl{}, err
	}
	out := NodeDecl{InstanceName: nameTok.Text}
	if err := p.ExpectSymbol('{'); err != nil {
		return NodeDecl{}, err
	}

	var hasDomain, hasDeterminism bool
	for !p.PeekIsSymbol('}') {
		key, err := p.ExpectIdentifierAny()
		if err != nil {
			return NodeDecl{}, err
		}
		if err := p.ExpectSymbol('='); err != nil {
			return NodeDecl{}, err
		}
		v, err := p.ParseScalarValue()
		if err != nil {
			return NodeDecl{}, err
		}
		if err := p.ExpectSymbol(';'); err != nil {
			return NodeDecl{}, err
		}
		switch key.Text {
		case "TYPE_NAME":
			out.TypeName = v
		case "DOMAIN":
			d, ok := parseDomain(v)
			if !ok {
				return NodeDecl{}, p.Fail("invalid NODE DOMAIN value: " + v)
			}
			out.Domain = d
			hasDomain = true
		case "DETERMINISM":
			d, ok := parseDeterminism(v)
			if !ok {
				return NodeDecl{}, p.Fail("invalid NODE DETERMINISM value: " + v)
			}
			out.Determinism = d
			hasDeterminism = true
		default:
			return NodeDecl{}, p.Fail("unknown NODE key for '" + out.InstanceName + "': " + key.Text)
		}
	}
	if err := p.ExpectSymbol('}'); err != nil {
		return NodeDecl{}, err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return NodeDecl{}, err
	}

	if out.TypeName == "" {
		return NodeDecl{}, p.Fail("NODE '" + out.InstanceName + "' missing required TYPE_NAME assignment")
	}
	if !hasDomain {
		return NodeDecl{}, p.Fail("NODE '" + out.InstanceName + "' missing required DOMAIN assignment")
	}
	if !hasDeterminism {
		return NodeDecl{}, p.Fail("NODE '" + out.InstanceName + "' missing required DETERMINISM assignment")
	}
	return out, nil
}

func splitEndpoint(p *dsl.Parser, v string) (HopEndpoint, error) {
	idx := strings.LastIndexByte(v, '.')
	if idx < 0 {
		return HopEndpoint{}, p.Fail("invalid hop endpoint, expected <node>.<directive>: " + v)
	}
	return HopEndpoint{Node: v[:idx], Directive: v[idx+1:]}, nil
}

func parseHop(p *dsl.Parser) (HopDecl, error) {
	if err := p.ExpectIdentifier("HOP"); err != nil {
		return HopDecl{}, err
	}
	if err := p.ExpectSymbol('{'); err != nil {
		return HopDecl{}, err
	}

	var fromVal, toVal string
	for !p.PeekIsSymbol('}') {
		key, err := p.ExpectIdentifierAny()
		if err != nil {
			return HopDecl{}, err
		}
		if err := p.ExpectSymbol('='); err != nil {
			return HopDecl{}, err
		}
		v, err := p.ParseScalarValue()
		if err != nil {
			return HopDecl{}, err
		}
		if err := p.ExpectSymbol(';'); err != nil {
			return HopDecl{}, err
		}
		switch key.Text {
		case "FROM":
			fromVal = v
		case "TO":
			toVal = v
		default:
			return HopDecl{}, p.Fail("unknown HOP key: " + key.Text)
		}
	}
	if err := p.ExpectSymbol('}'); err != nil {
		return HopDecl{}, err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return HopDecl{}, err
	}

	if fromVal == "" || toVal == "" {
		return HopDecl{}, p.Fail("HOP requires both FROM and TO")
	}
	from, err := splitEndpoint(p, fromVal)
	if err != nil {
		return HopDecl{}, err
	}
	to, err := splitEndpoint(p, toVal)
	if err != nil {
		return HopDecl{}, err
	}
	return HopDecl{From: from, To: to}, nil
}

func parseChannel(p *dsl.Parser) (ObservationChannel, error) {
	nameTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return ObservationChannel{}, err
	}
	out := ObservationChannel{Name: nameTok.Text}
	if err := p.ExpectSymbol('{'); err != nil {
		return ObservationChannel{}, err
	}

	for !p.PeekIsSymbol('}') {
		key, err := p.ExpectIdentifierAny()
		if err != nil {
			return ObservationChannel{}, err
		}
		if err := p.ExpectSymbol('='); err != nil {
			return ObservationChannel{}, err
		}
		v, err := p.ParseScalarValue()
		if err != nil {
			return ObservationChannel{}, err
		}
		if err := p.ExpectSymbol(';'); err != nil {
			return ObservationChannel{}, err
		}
		switch key.Text {
		case "FEATURE_DIMS":
			n, ok := dsl.ParseUint64(v)
			if !ok || n == 0 {
				return ObservationChannel{}, p.Fail("invalid FEATURE_DIMS value: " + v)
			}
			out.FeatureDims = n
		case "NORM_WINDOW":
			n, ok := dsl.ParseUint64(v)
			if !ok {
				return ObservationChannel{}, p.Fail("invalid NORM_WINDOW value: " + v)
			}
			out.NormWindow = n
		default:
			return ObservationChannel{}, p.Fail("unknown OBSERVATION_CHANNEL key: " + key.Text)
		}
	}
	if err := p.ExpectSymbol('}'); err != nil {
		return ObservationChannel{}, err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return ObservationChannel{}, err
	}
	if out.FeatureDims == 0 {
		return ObservationChannel{}, p.Fail("OBSERVATION_CHANNEL '" + out.Name + "' missing required FEATURE_DIMS assignment")
	}
	return out, nil
}

func parseJkimyei(p *dsl.Parser) (JkimyeiSpec, error) {
	idTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return JkimyeiSpec{}, err
	}
	out := JkimyeiSpec{ProfileID: idTok.Text}
	if err := p.ExpectSymbol('{'); err != nil {
		return JkimyeiSpec{}, err
	}

	for !p.PeekIsSymbol('}') {
		key, err := p.ExpectIdentifierAny()
		if err != nil {
			return JkimyeiSpec{}, err
		}
		if err := p.ExpectSymbol('='); err != nil {
			return JkimyeiSpec{}, err
		}
		v, err := p.ParseScalarValue()
		if err != nil {
			return JkimyeiSpec{}, err
		}
		if err := p.ExpectSymbol(';'); err != nil {
			return JkimyeiSpec{}, err
		}
		switch key.Text {
		case "ENCODER":
			out.Encoder = v
		case "RANK":
			n, ok := dsl.ParseUint64(v)
			if !ok {
				return JkimyeiSpec{}, p.Fail("invalid RANK value: " + v)
			}
			out.Rank = n
		default:
			return JkimyeiSpec{}, p.Fail("unknown JKIMYEI key for '" + out.ProfileID + "': " + key.Text)
		}
	}
	if err := p.ExpectSymbol('}'); err != nil {
		return JkimyeiSpec{}, err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return JkimyeiSpec{}, err
	}
	if out.Encoder == "" {
		return JkimyeiSpec{}, p.Fail("JKIMYEI '" + out.ProfileID + "' missing required ENCODER assignment")
	}
	return out, nil
}
