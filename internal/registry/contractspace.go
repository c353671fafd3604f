// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package registry

import (
	"github.com/cuwacunu/tsiemene-runtime/internal/dsl/contractdsl"
	"github.com/cuwacunu/tsiemene-runtime/internal/metrics"
)

// ContractSpace is the `contract_space_t` singleton: a hash-keyed
// registry of decoded contract (circuit) files.
type ContractSpace struct {
	s *space
}

// NewContractSpace constructs an empty contract registry. Call sites
// normally hold exactly one process-wide instance.
func NewContractSpace() *ContractSpace {
	return &ContractSpace{s: newSpace("contract")}
}

// RegisterFile decodes and registers path, returning its content hash.
// Per invariant I2, re-registering the same path always returns the
// same hash; a path that later resolves to different content is a
// fatal *rterr.ImmutableLockViolation.
func (c *ContractSpace) RegisterFile(path string) (hash string, err error) {
	hash, _, err = c.s.registerFile(path, func(canonical string, data []byte) (any, error) {
		return contractdsl.Decode(canonical, string(data))
	})
	metrics.ContractRecords.Set(float64(c.s.len()))
	return hash, err
}

// Decoded returns the decoded contractdsl.Set for hash.
func (c *ContractSpace) Decoded(hash string) (contractdsl.Set, error) {
	rec, err := c.s.lookup(hash)
	if err != nil {
		return contractdsl.Set{}, err
	}
	payload, err := rec.decode(func() (any, error) { return contractdsl.Set{}, nil })
	if err != nil {
		return contractdsl.Set{}, err
	}
	return payload.(contractdsl.Set), nil
}

// CanonicalPath returns the canonical path a record was registered from.
func (c *ContractSpace) CanonicalPath(hash string) (string, error) {
	rec, err := c.s.lookup(hash)
	if err != nil {
		return "", err
	}
	return rec.CanonicalPath, nil
}

// AssertIntact re-verifies a single record's manifest against disk.
func (c *ContractSpace) AssertIntact(hash string) error { return c.s.assertIntact(hash) }

// AssertRegistryIntact re-verifies every registered record.
func (c *ContractSpace) AssertRegistryIntact() error { return c.s.assertRegistryIntact() }
