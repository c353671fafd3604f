// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wavedsl decodes the wave DSL grammar of spec.md §4.1/§4.4: a
// non-empty sequence of WAVE blocks, each a named episode plan with
// WIKIMYEI and SOURCE sub-blocks.
package wavedsl

import (
	"strings"

	"github.com/cuwacunu/tsiemene-runtime/internal/dsl"
	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

// Mode is the wave's episode mode.
type Mode int

const (
	ModeTrain Mode = iota
	ModeRun
)

// Wikimyei is one WIKIMYEI <path> { ... }; declaration inside a wave.
type Wikimyei struct {
	Path      string
	Train     bool
	ProfileID string
}

// Source is one SOURCE <path> { ... }; declaration inside a wave.
type Source struct {
	Path   string
	Symbol string
	From   string // dd.mm.yyyy
	To     string // dd.mm.yyyy
}

// Profile is one decoded WAVE block — spec calls the decoded plan a
// "wave profile".
type Profile struct {
	Name               string
	Mode               Mode
	Sampler            dsl.Sampler
	Epochs             uint64
	BatchSize          uint64
	MaxBatchesPerEpoch uint64 // 0 means unset/unbounded
	Wikimyeis          []Wikimyei
	Sources            []Source
}

// Set is the decoded form of a wave DSL file: one or more named profiles.
type Set struct {
	Profiles []Profile
}

// Decode parses and semantically validates wave DSL text, enforcing
// invariant I5/I6 and spec P5/S1/S2: duplicate WAVE names, duplicate
// SOURCE paths within a wave, missing required keys, a MODE=run wave
// with any TRAIN=true wikimyei, and MAX_BATCHES_PER_EPOCH=0 are all
// rejected.
func Decode(file, src string) (Set, error) {
	p := dsl.NewParser(file, src)

	var out Set
	seenNames := map[string]bool{}

	for {
		end := p.PeekIsEnd()
		if end {
			break
		}
		profile, err := parseWave(p)
		if err != nil {
			return Set{}, err
		}
		if seenNames[profile.Name] {
			return Set{}, p.Fail("duplicate WAVE name: " + profile.Name)
		}
		seenNames[profile.Name] = true
		out.Profiles = append(out.Profiles, profile)
	}

	if len(out.Profiles) == 0 {
		return Set{}, p.Fail("wave set has no WAVE blocks")
	}
	return out, nil
}

func parseWave(p *dsl.Parser) (Profile, error) {
	if err := p.ExpectIdentifier("WAVE"); err != nil {
		return Profile{}, err
	}
	name, err := p.ExpectIdentifierAny()
	if err != nil {
		return Profile{}, err
	}
	if err := p.ExpectSymbol('{'); err != nil {
		return Profile{}, err
	}

	out := Profile{Name: name.Text}
	var hasMode, hasSampler, hasEpochs, hasBatchSize bool
	seenSourcePaths := map[string]bool{}

	for !p.PeekIsSymbol('}') {
		peek, err := p.Peek()
		if err != nil {
			return Profile{}, err
		}

		switch peek.Text {
		case "MODE":
			v, err := p.ParseAssignmentValue("MODE")
			if err != nil {
				return Profile{}, err
			}
			switch strings.ToLower(v) {
			case "train":
				out.Mode = ModeTrain
			case "run":
				out.Mode = ModeRun
			default:
				return Profile{}, p.Fail("invalid MODE value: " + v)
			}
			hasMode = true
		case "SAMPLER":
			v, err := p.ParseAssignmentValue("SAMPLER")
			if err != nil {
				return Profile{}, err
			}
			sampler, ok := dsl.ParseSampler(v)
			if !ok {
				return Profile{}, p.Fail("invalid SAMPLER value: " + v)
			}
			out.Sampler = sampler
			hasSampler = true
		case "EPOCHS":
			v, err := p.ParseAssignmentValue("EPOCHS")
			if err != nil {
				return Profile{}, err
			}
			n, ok := dsl.ParseUint64(v)
			if !ok || n == 0 {
				return Profile{}, p.Fail("invalid EPOCHS value: " + v)
			}
			out.Epochs = n
			hasEpochs = true
		case "BATCH_SIZE":
			v, err := p.ParseAssignmentValue("BATCH_SIZE")
			if err != nil {
				return Profile{}, err
			}
			n, ok := dsl.ParseUint64(v)
			if !ok || n == 0 {
				return Profile{}, p.Fail("invalid BATCH_SIZE value: " + v)
			}
			out.BatchSize = n
			hasBatchSize = true
		case "MAX_BATCHES_PER_EPOCH":
			v, err := p.ParseAssignmentValue("MAX_BATCHES_PER_EPOCH")
			if err != nil {
				return Profile{}, err
			}
			n, ok := dsl.ParseUint64(v)
			if !ok || n == 0 {
				return Profile{}, p.Fail("invalid MAX_BATCHES_PER_EPOCH value: " + v)
			}
			out.MaxBatchesPerEpoch = n
		case "WIKIMYEI":
			w, err := parseWikimyei(p)
			if err != nil {
				return Profile{}, err
			}
			out.Wikimyeis = append(out.Wikimyeis, w)
		case "SOURCE":
			s, err := parseSource(p)
			if err != nil {
				return Profile{}, err
			}
			if seenSourcePaths[s.Path] {
				return Profile{}, p.Fail("duplicate SOURCE path within wave '" + out.Name + "': " + s.Path)
			}
			seenSourcePaths[s.Path] = true
			out.Sources = append(out.Sources, s)
		default:
			return Profile{}, p.Fail("unknown WAVE key: " + peek.Text)
		}
	}
	if err := p.ExpectSymbol('}'); err != nil {
		return Profile{}, err
	}
	// trailing ';' after a top-level WAVE block is tolerated but not required
	if p.PeekIsSymbol(';') {
		_, _ = p.Next()
	}

	if !hasMode {
		return Profile{}, p.Fail("WAVE '" + out.Name + "' missing required MODE assignment")
	}
	if !hasSampler {
		return Profile{}, p.Fail("WAVE '" + out.Name + "' missing required SAMPLER assignment")
	}
	if !hasEpochs {
		return Profile{}, p.Fail("WAVE '" + out.Name + "' missing required EPOCHS assignment")
	}
	if !hasBatchSize {
		return Profile{}, p.Fail("WAVE '" + out.Name + "' missing required BATCH_SIZE assignment")
	}

	if err := validateModeConstraints(p, out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// validateModeConstraints enforces invariants I5/I6: a run wave forbids
// TRAIN=true wikimyeis; a train wave requires at least one.
func validateModeConstraints(p *dsl.Parser, out Profile) error {
	anyTrain := false
	for _, w := range out.Wikimyeis {
		if w.Train {
			anyTrain = true
			break
		}
	}
	if out.Mode == ModeRun && anyTrain {
		return p.Fail("run forbids WIKIMYEI TRAIN=true")
	}
	if out.Mode == ModeTrain && !anyTrain {
		return p.Fail("train requires at least one WIKIMYEI TRAIN=true")
	}
	return nil
}

func parseWikimyei(p *dsl.Parser) (Wikimyei, error) {
	if err := p.ExpectIdentifier("WIKIMYEI"); err != nil {
		return Wikimyei{}, err
	}
	pathTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return Wikimyei{}, err
	}
	out := Wikimyei{Path: pathTok.Text}
	if err := p.ExpectSymbol('{'); err != nil {
		return Wikimyei{}, err
	}

	var hasTrain, hasProfileID bool
	for !p.PeekIsSymbol('}') {
		key, err := p.ExpectIdentifierAny()
		if err != nil {
			return Wikimyei{}, err
		}
		switch key.Text {
		case "PATH":
			if err := p.ExpectSymbol('='); err != nil {
				return Wikimyei{}, err
			}
			v, err := p.ParseScalarValue()
			if err != nil {
				return Wikimyei{}, err
			}
			if err := p.ExpectSymbol(';'); err != nil {
				return Wikimyei{}, err
			}
			out.Path = v
		case "TRAIN":
			if err := p.ExpectSymbol('='); err != nil {
				return Wikimyei{}, err
			}
			v, err := p.ParseScalarValue()
			if err != nil {
				return Wikimyei{}, err
			}
			if err := p.ExpectSymbol(';'); err != nil {
				return Wikimyei{}, err
			}
			b, ok := dsl.ParseBool(v)
			if !ok {
				return Wikimyei{}, p.Fail("invalid WIKIMYEI TRAIN value for PATH '" + out.Path + "': " + v)
			}
			out.Train = b
			hasTrain = true
		case "PROFILE_ID":
			if err := p.ExpectSymbol('='); err != nil {
				return Wikimyei{}, err
			}
			v, err := p.ParseScalarValue()
			if err != nil {
				return Wikimyei{}, err
			}
			if err := p.ExpectSymbol(';'); err != nil {
				return Wikimyei{}, err
			}
			out.ProfileID = v
			hasProfileID = true
		default:
			return Wikimyei{}, p.Fail("unknown WIKIMYEI key for PATH '" + out.Path + "': " + key.Text)
		}
	}
	if err := p.ExpectSymbol('}'); err != nil {
		return Wikimyei{}, err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return Wikimyei{}, err
	}

	if !hasTrain {
		return Wikimyei{}, p.Fail("WIKIMYEI '" + out.Path + "' missing required TRAIN assignment")
	}
	if out.Path == "" {
		return Wikimyei{}, p.Fail("WIKIMYEI missing required PATH assignment")
	}
	if !hasProfileID || out.ProfileID == "" {
		return Wikimyei{}, p.Fail("WIKIMYEI '" + out.Path + "' missing required PROFILE_ID assignment")
	}
	return out, nil
}

func parseSource(p *dsl.Parser) (Source, error) {
	if err := p.ExpectIdentifier("SOURCE"); err != nil {
		return Source{}, err
	}
	pathTok, err := p.ExpectIdentifierAny()
	if err != nil {
		return Source{}, err
	}
	out := Source{Path: pathTok.Text}
	if err := p.ExpectSymbol('{'); err != nil {
		return Source{}, err
	}

	for !p.PeekIsSymbol('}') {
		key, err := p.ExpectIdentifierAny()
		if err != nil {
			return Source{}, err
		}
		if err := p.ExpectSymbol('='); err != nil {
			return Source{}, err
		}
		v, err := p.ParseScalarValue()
		if err != nil {
			return Source{}, err
		}
		if err := p.ExpectSymbol(';'); err != nil {
			return Source{}, err
		}
		switch key.Text {
		case "PATH":
			out.Path = v
		case "SYMBOL":
			out.Symbol = v
		case "FROM":
			out.From = v
		case "TO":
			out.To = v
		default:
			return Source{}, p.Fail("unknown SOURCE key for PATH '" + out.Path + "': " + key.Text)
		}
	}
	if err := p.ExpectSymbol('}'); err != nil {
		return Source{}, err
	}
	if err := p.ExpectSymbol(';'); err != nil {
		return Source{}, err
	}

	if out.Symbol == "" {
		return Source{}, p.Fail("SOURCE '" + out.Path + "' missing required SYMBOL assignment")
	}
	if out.From == "" {
		return Source{}, p.Fail("SOURCE '" + out.Path + "' missing required FROM assignment")
	}
	if out.To == "" {
		return Source{}, p.Fail("SOURCE '" + out.Path + "' missing required TO assignment")
	}
	return out, nil
}

// AsInvalidDsl is a convenience assertion helper for callers that need
// to distinguish a decode failure kind.
func AsInvalidDsl(err error) (*rterr.InvalidDsl, bool) {
	e, ok := err.(*rterr.InvalidDsl)
	return e, ok
}
