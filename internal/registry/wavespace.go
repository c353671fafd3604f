// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package registry

import (
	"github.com/cuwacunu/tsiemene-runtime/internal/dsl/wavedsl"
	"github.com/cuwacunu/tsiemene-runtime/internal/metrics"
)

// WaveSpace is the `wave_space_t` singleton: a hash-keyed registry of
// decoded wave-profile files.
type WaveSpace struct {
	s *space
}

// NewWaveSpace constructs an empty wave registry.
func NewWaveSpace() *WaveSpace {
	return &WaveSpace{s: newSpace("wave")}
}

// RegisterFile decodes and registers path, returning its content hash.
func (w *WaveSpace) RegisterFile(path string) (hash string, err error) {
	hash, _, err = w.s.registerFile(path, func(canonical string, data []byte) (any, error) {
		return wavedsl.Decode(canonical, string(data))
	})
	metrics.WaveRecords.Set(float64(w.s.len()))
	return hash, err
}

// Decoded returns the decoded wavedsl.Set for hash.
func (w *WaveSpace) Decoded(hash string) (wavedsl.Set, error) {
	rec, err := w.s.lookup(hash)
	if err != nil {
		return wavedsl.Set{}, err
	}
	payload, err := rec.decode(func() (any, error) { return wavedsl.Set{}, nil })
	if err != nil {
		return wavedsl.Set{}, err
	}
	return payload.(wavedsl.Set), nil
}

// CanonicalPath returns the canonical path a record was registered from.
func (w *WaveSpace) CanonicalPath(hash string) (string, error) {
	rec, err := w.s.lookup(hash)
	if err != nil {
		return "", err
	}
	return rec.CanonicalPath, nil
}

// AssertIntact re-verifies a single record's manifest against disk.
func (w *WaveSpace) AssertIntact(hash string) error { return w.s.assertIntact(hash) }

// AssertRegistryIntact re-verifies every registered record.
func (w *WaveSpace) AssertRegistryIntact() error { return w.s.assertRegistryIntact() }
