// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package registry

import (
	"sync"

	"github.com/cuwacunu/tsiemene-runtime/internal/dsl/boarddsl"
	"github.com/cuwacunu/tsiemene-runtime/internal/metrics"
	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

// bindTarget is the memoized `binding_id -> (contract_hash, wave_hash)`
// mapping spec §4.4 requires for each BIND declaration in a board.
type bindTarget struct {
	ContractHash string
	WaveHash     string
}

// lockedTriple is the process-lifetime `{hash, canonical_path,
// binding_id}` the board runtime lock pins on its first init call.
type lockedTriple struct {
	Hash          string
	CanonicalPath string
	BindingID     string
}

// BoardSpace is the `board_space_t` singleton: the hash-keyed board
// registry plus the board runtime lock. The lock state (the locked
// triple and the memoized binds) is guarded by its own mutex, lockMu;
// it does not share the board registry's mutex.
type BoardSpace struct {
	s *space

	contracts *ContractSpace
	waves     *WaveSpace

	lockMu sync.Mutex
	locked *lockedTriple
	binds  map[string]bindTarget // binding_id -> targets, for the locked board only
}

// NewBoardSpace constructs an empty board registry wired to the
// contract and wave registries it resolves BIND declarations against.
func NewBoardSpace(contracts *ContractSpace, waves *WaveSpace) *BoardSpace {
	return &BoardSpace{
		s:         newSpace("board"),
		contracts: contracts,
		waves:     waves,
		binds:     map[string]bindTarget{},
	}
}

// registerBoardFile decodes and registers a board file. Its CONTRACT/WAVE
// path references are not resolved here; Init uses them as written in
// the DSL.
func (b *BoardSpace) registerBoardFile(path string) (hash string, instr boarddsl.Instruction, err error) {
	hash, rec, err := b.s.registerFile(path, func(canonical string, data []byte) (any, error) {
		return boarddsl.Decode(canonical, string(data))
	})
	if err != nil {
		return "", boarddsl.Instruction{}, err
	}
	payload, err := rec.decode(func() (any, error) { return boarddsl.Instruction{}, nil })
	if err != nil {
		return "", boarddsl.Instruction{}, err
	}
	metrics.BoardRecords.Set(float64(b.s.len()))
	return hash, payload.(boarddsl.Instruction), nil
}

// Init implements `board_space_t::init(path, binding_id)` (spec §4.4,
// invariant I4, property P4): the first call pins the locked triple and
// resolves every BIND in the board into the contract/wave registries;
// every subsequent call must match the locked triple exactly, and is a
// no-op once it does.
func (b *BoardSpace) Init(path, bindingID string) error {
	hash, instr, err := b.registerBoardFile(path)
	if err != nil {
		return err
	}
	canonical, err := b.s.lookup(hash)
	if err != nil {
		return err
	}

	b.lockMu.Lock()
	defer b.lockMu.Unlock()

	if b.locked != nil {
		if b.locked.Hash != hash || b.locked.CanonicalPath != canonical.CanonicalPath || b.locked.BindingID != bindingID {
			return &rterr.ImmutableLockViolation{
				Subject: "board_runtime_lock",
				Reason:  "init called with a triple differing from the locked board+binding",
			}
		}
		return nil // P4: init(P,B) on an already-locked matching triple is a no-op
	}

	var binding boarddsl.Bind
	var ok bool
	for _, bind := range instr.Binds {
		if bind.BindingID == bindingID {
			binding, ok = bind, true
			break
		}
	}
	if !ok {
		return &rterr.InvalidCommand{Command: bindingID, Reason: "binding id not declared by board"}
	}

	contractPath, hasContract := instr.Contracts[binding.ContractID]
	wavePath, hasWave := instr.Waves[binding.WaveID]
	if !hasContract || !hasWave {
		return &rterr.RegistryCorruption{Registry: "board", Reason: "bind references an id missing from its own declarations"}
	}

	contractHash, err := b.contracts.RegisterFile(contractPath)
	if err != nil {
		return err
	}
	waveHash, err := b.waves.RegisterFile(wavePath)
	if err != nil {
		return err
	}
	if err := b.contracts.AssertIntact(contractHash); err != nil {
		return err
	}
	if err := b.waves.AssertIntact(waveHash); err != nil {
		return err
	}

	for _, bind := range instr.Binds {
		cp, okc := instr.Contracts[bind.ContractID]
		wp, okw := instr.Waves[bind.WaveID]
		if !okc || !okw {
			continue
		}
		ch, err := b.contracts.RegisterFile(cp)
		if err != nil {
			return err
		}
		wh, err := b.waves.RegisterFile(wp)
		if err != nil {
			return err
		}
		b.binds[bind.BindingID] = bindTarget{ContractHash: ch, WaveHash: wh}
	}

	b.locked = &lockedTriple{Hash: hash, CanonicalPath: canonical.CanonicalPath, BindingID: bindingID}
	return nil
}

// Resolve returns the {contract_hash, wave_hash} memoized for the
// locked board's binding id.
func (b *BoardSpace) Resolve(bindingID string) (contractHash, waveHash string, err error) {
	b.lockMu.Lock()
	defer b.lockMu.Unlock()

	if b.locked == nil {
		return "", "", &rterr.ImmutableLockViolation{Subject: "board_runtime_lock", Reason: "not yet initialized"}
	}
	t, ok := b.binds[bindingID]
	if !ok {
		return "", "", &rterr.InvalidCommand{Command: bindingID, Reason: "binding id not resolved by the locked board"}
	}
	return t.ContractHash, t.WaveHash, nil
}

// LockedBindingID returns the binding id pinned by the process-lifetime
// lock, or an error if the board has not yet been initialized.
func (b *BoardSpace) LockedBindingID() (string, error) {
	b.lockMu.Lock()
	defer b.lockMu.Unlock()
	if b.locked == nil {
		return "", &rterr.ImmutableLockViolation{Subject: "board_runtime_lock", Reason: "not yet initialized"}
	}
	return b.locked.BindingID, nil
}

// AssertLockedRuntimeIntact implements
// `assert_locked_runtime_intact_or_fail_fast`: re-verify the board
// itself, the locked bind's contract and wave, then every registry
// globally.
func (b *BoardSpace) AssertLockedRuntimeIntact() error {
	b.lockMu.Lock()
	locked := b.locked
	b.lockMu.Unlock()

	if locked == nil {
		return &rterr.ImmutableLockViolation{Subject: "board_runtime_lock", Reason: "not yet initialized"}
	}
	binding := locked.BindingID
	if err := b.s.assertIntact(locked.Hash); err != nil {
		return err
	}

	contractHash, waveHash, err := b.Resolve(binding)
	if err != nil {
		return err
	}
	if err := b.contracts.AssertIntact(contractHash); err != nil {
		return err
	}
	if err := b.waves.AssertIntact(waveHash); err != nil {
		return err
	}

	if err := b.s.assertRegistryIntact(); err != nil {
		return err
	}
	if err := b.contracts.AssertRegistryIntact(); err != nil {
		return err
	}
	return b.waves.AssertRegistryIntact()
}
