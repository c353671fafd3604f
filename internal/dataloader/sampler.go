// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dataloader

import (
	"math/rand"

	"github.com/cuwacunu/tsiemene-runtime/internal/dsl"
)

// Iterator yields dataset indices one at a time; Exhausted reports
// whether a full pass has completed. Restarting only happens when the
// loader's cursor is fully exhausted, per spec §4.7's "restarting the
// iterator only when it is fully exhausted".
type Iterator interface {
	Next() (idx int, ok bool)
	Exhausted() bool
	Reset()
}

// sequentialIterator walks [0, n) in order — spec's "deterministic
// when Sampler_t = SequentialSampler".
type sequentialIterator struct {
	n   int
	pos int
}

func (s *sequentialIterator) Next() (int, bool) {
	if s.pos >= s.n {
		return 0, false
	}
	idx := s.pos
	s.pos++
	return idx, true
}
func (s *sequentialIterator) Exhausted() bool { return s.pos >= s.n }
func (s *sequentialIterator) Reset()          { s.pos = 0 }

// randomIterator yields a fresh permutation of [0, n) each pass —
// spec's "seeded-stochastic otherwise".
type randomIterator struct {
	n     int
	pos   int
	order []int
	rng   *rand.Rand
}

func newRandomIterator(n int, seed int64) *randomIterator {
	r := &randomIterator{n: n, rng: rand.New(rand.NewSource(seed))}
	r.shuffle()
	return r
}

func (r *randomIterator) shuffle() {
	r.order = r.rng.Perm(r.n)
	r.pos = 0
}

func (r *randomIterator) Next() (int, bool) {
	if r.pos >= len(r.order) {
		return 0, false
	}
	idx := r.order[r.pos]
	r.pos++
	return idx, true
}
func (r *randomIterator) Exhausted() bool { return r.pos >= len(r.order) }
func (r *randomIterator) Reset()          { r.shuffle() }

// NewIterator builds the Iterator matching a wave profile's SAMPLER.
func NewIterator(sampler dsl.Sampler, n int, seed int64) Iterator {
	if sampler == dsl.Random {
		return newRandomIterator(n, seed)
	}
	return &sequentialIterator{n: n}
}
