// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package boarddsl decodes the board DSL grammar of spec.md §4.1/§6: a
// flat sequence of CONTRACT/WAVE/BIND declarations naming the contract
// and wave files a board draws from and the binding ids that couple
// them.
package boarddsl

import (
	"github.com/cuwacunu/tsiemene-runtime/internal/dsl"
)

// Bind couples one contract id with one wave id under an opaque binding id.
type Bind struct {
	BindingID  string
	ContractID string
	WaveID     string
}

// Instruction is the decoded board instruction: the contracts and waves
// a board names, plus its binds.
type Instruction struct {
	Contracts map[string]string // contract id -> path
	Waves     map[string]string // wave id -> path
	Binds     []Bind
}

// Decode parses board DSL text of the form:
//
//	CONTRACT <id> <path>;
//	WAVE <id> <path>;
//	BIND <binding_id> <contract_id> <wave_id>;
//
// Duplicate contract/wave ids, a bind referencing an undeclared
// contract/wave id, or a duplicate binding id are rejected.
func Decode(file, src string) (Instruction, error) {
	p := dsl.NewParser(file, src)

	out := Instruction{Contracts: map[string]string{}, Waves: map[string]string{}}
	seenBindingIDs := map[string]bool{}

	for !p.PeekIsEnd() {
		kw, err := p.ExpectIdentifierAny()
		if err != nil {
			return Instruction{}, err
		}
		switch kw.Text {
		case "CONTRACT":
			id, path, err := parseIDPath(p)
			if err != nil {
				return Instruction{}, err
			}
			if _, exists := out.Contracts[id]; exists {
				return Instruction{}, p.Fail("duplicate CONTRACT id: " + id)
			}
			out.Contracts[id] = path
		case "WAVE":
			id, path, err := parseIDPath(p)
			if err != nil {
				return Instruction{}, err
			}
			if _, exists := out.Waves[id]; exists {
				return Instruction{}, p.Fail("duplicate WAVE id: " + id)
			}
			out.Waves[id] = path
		case "BIND":
			b, err := parseBind(p)
			if err != nil {
				return Instruction{}, err
			}
			if seenBindingIDs[b.BindingID] {
				return Instruction{}, p.Fail("duplicate BIND binding id: " + b.BindingID)
			}
			seenBindingIDs[b.BindingID] = true
			out.Binds = append(out.Binds, b)
		default:
			return Instruction{}, p.Fail("unknown board keyword: " + kw.Text)
		}
	}

	if len(out.Binds) == 0 {
		return Instruction{}, p.Fail("board has no BIND declarations")
	}
	for _, b := range out.Binds {
		if _, ok := out.Contracts[b.ContractID]; !ok {
			return Instruction{}, p.Fail("BIND '" + b.BindingID + "' references undeclared CONTRACT id: " + b.ContractID)
		}
		if _, ok := out.Waves[b.WaveID]; !ok {
			return Instruction{}, p.Fail("BIND '" + b.BindingID + "' references undeclared WAVE id: " + b.WaveID)
		}
	}
	return out, nil
}

func parseIDPath(p *dsl.Parser) (id, path string, err error) {
	idTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return "", "", err
	}
	pathVal, err := p.ParseScalarValue()
	if err != nil {
		return "", "", err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return "", "", err
	}
	return idTok.Text, pathVal, nil
}

func parseBind(p *dsl.Parser) (Bind, error) {
	bindingTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return Bind{}, err
	}
	contractTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return Bind{}, err
	}
	waveTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return Bind{}, err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return Bind{}, err
	}
	return Bind{BindingID: bindingTok.Text, ContractID: contractTok.Text, WaveID: waveTok.Text}, nil
}
