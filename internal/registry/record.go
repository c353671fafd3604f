// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry implements spec.md §4.3/§4.4: the three hash-keyed
// immutable registries (contract, wave, board) and the board runtime
// lock, with the "build outside the lock, insert inside the lock"
// concurrency discipline and fingerprint-backed tamper detection.
package registry

import (
	"os"
	"sync"

	"github.com/cuwacunu/tsiemene-runtime/internal/fingerprint"
	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

// record is the shape shared by the three registry kinds (spec's
// "Record (per registry)"): a path->hash entry plus the file's own
// manifest and a lazily-decoded DSL payload.
type record struct {
	Hash          string
	CanonicalPath string
	Manifest      fingerprint.Manifest

	decodeOnce sync.Once
	decodeErr  error
	payload    any
}

// decode lazily materializes payload by calling build exactly once,
// per spec's "decoded DSL is materialized once under a once-flag and
// then freely shared".
func (r *record) decode(build func() (any, error)) (any, error) {
	r.decodeOnce.Do(func() {
		r.payload, r.decodeErr = build()
	})
	return r.payload, r.decodeErr
}

// space is the generic hash-keyed registry body embedded by each of
// the three concrete registries. It owns path->hash and hash->record
// maps under one mutex (spec §4.3 "Hash-keyed registries").
type space struct {
	name string
	mu   sync.Mutex

	byPath map[string]string
	byHash map[string]*record
}

func newSpace(name string) *space {
	return &space{
		name:   name,
		byPath: map[string]string{},
		byHash: map[string]*record{},
	}
}

// buildFile reads file contents off disk and fingerprints it, without
// holding any registry mutex (spec's "build outside the lock").
func buildFile(path string) (canonical string, data []byte, m fingerprint.Manifest, err error) {
	canonical, err = fingerprint.Canonicalize(path)
	if err != nil {
		return "", nil, fingerprint.Manifest{}, &rterr.ManifestMismatch{CanonicalPath: path, Reason: err.Error()}
	}
	data, err = os.ReadFile(canonical)
	if err != nil {
		return "", nil, fingerprint.Manifest{}, &rterr.ManifestMismatch{CanonicalPath: canonical, Reason: "read failed: " + err.Error()}
	}
	m, err = fingerprint.BuildManifest([]string{canonical})
	if err != nil {
		return "", nil, fingerprint.Manifest{}, err
	}
	return canonical, data, m, nil
}

// registerFile implements spec's `register_*_file(path)`: canonicalize
// and fingerprint path outside the lock, then insert/lookup under the
// lock, enforcing invariant I2 (no rebind) and I3 (corruption check).
// buildRecord decodes the file's DSL payload; it runs outside the lock
// too, on a fresh record, and is re-run only on first registration of a
// given hash.
func (s *space) registerFile(path string, buildRecord func(canonical string, data []byte) (any, error)) (hash string, rec *record, err error) {
	canonical, data, manifest, err := buildFile(path)
	if err != nil {
		return "", nil, err
	}
	hash = fingerprint.Sha256HexOfBytes(data)

	var payload any
	s.mu.Lock()
	_, pathKnown := s.byPath[canonical]
	_, hashKnown := s.byHash[hash]
	s.mu.Unlock()
	if buildRecord != nil && !pathKnown && !hashKnown {
		if payload, err = buildRecord(canonical, data); err != nil {
			return "", nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingHash, ok := s.byPath[canonical]; ok {
		if existingHash != hash {
			return "", nil, &rterr.ImmutableLockViolation{
				Subject: canonical,
				Reason:  "path rebinds to a different hash (expected " + existingHash + ", got " + hash + ")",
			}
		}
		existingRec, ok := s.byHash[existingHash]
		if !ok {
			return "", nil, &rterr.RegistryCorruption{Registry: s.name, Reason: "path maps to hash " + existingHash + " but no record is stored"}
		}
		return existingHash, existingRec, nil
	}

	if existingRec, ok := s.byHash[hash]; ok {
		// same content reached via a different path alias
		s.byPath[canonical] = hash
		return hash, existingRec, nil
	}

	newRec := &record{Hash: hash, CanonicalPath: canonical, Manifest: manifest}
	if buildRecord != nil {
		newRec.payload = payload
		newRec.decodeOnce.Do(func() {}) // pre-decoded: freeze the once-flag
	}
	s.byPath[canonical] = hash
	s.byHash[hash] = newRec
	return hash, newRec, nil
}

// len returns the number of distinct hash-keyed records currently
// held, for metrics exposition.
func (s *space) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

// lookup returns the record for hash under the lock, detecting the
// path<->hash inconsistency spec calls "registry corruption".
func (s *space) lookup(hash string) (*record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byHash[hash]
	if !ok {
		return nil, &rterr.RegistryCorruption{Registry: s.name, Reason: "unknown hash: " + hash}
	}
	return rec, nil
}

// assertIntact re-verifies a single record's manifest against disk.
func (s *space) assertIntact(hash string) error {
	rec, err := s.lookup(hash)
	if err != nil {
		return err
	}
	return fingerprint.AssertIntact(rec.Manifest)
}

// assertRegistryIntact re-verifies every record currently held, per
// spec's `assert_registry_intact_or_fail_fast`.
func (s *space) assertRegistryIntact() error {
	s.mu.Lock()
	hashes := make([]string, 0, len(s.byHash))
	for h := range s.byHash {
		hashes = append(hashes, h)
	}
	s.mu.Unlock()

	for _, h := range hashes {
		if err := s.assertIntact(h); err != nil {
			return err
		}
	}
	return nil
}
