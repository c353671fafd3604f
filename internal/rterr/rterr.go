// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rterr defines the error kinds of the tsiemene contract runtime
// (spec §7). Fatal kinds are meant to be logged and to terminate the
// process; non-fatal kinds are returned to callers or folded into a
// @meta trace.
package rterr

import "fmt"

// InvalidDsl is raised by the lexer/parser/decode-validators on
// syntactically or semantically ill-formed DSL text. Fatal.
type InvalidDsl struct {
	File   string
	Line   int
	Column int
	Reason string
}

func (e *InvalidDsl) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid dsl: %s:%d:%d: %s", e.File, e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("invalid dsl: %s: %s", e.File, e.Reason)
}

// ManifestMismatch is raised when a dependency file is missing, not a
// regular file, or its content hash changed mid-run. Fatal.
type ManifestMismatch struct {
	CanonicalPath string
	Reason        string
}

func (e *ManifestMismatch) Error() string {
	return fmt.Sprintf("manifest mismatch: %s: %s", e.CanonicalPath, e.Reason)
}

// ImmutableLockViolation is raised when a path rebinds to a different
// hash, or a board re-init disagrees with the locked triple. Fatal.
type ImmutableLockViolation struct {
	Subject string
	Reason  string
}

func (e *ImmutableLockViolation) Error() string {
	return fmt.Sprintf("immutable lock violation: %s: %s", e.Subject, e.Reason)
}

// RegistryCorruption is raised on internal path<->hash map inconsistency.
// Fatal.
type RegistryCorruption struct {
	Registry string
	Reason   string
}

func (e *RegistryCorruption) Error() string {
	return fmt.Sprintf("registry corruption in %s: %s", e.Registry, e.Reason)
}

// InvalidCommand is raised on a malformed dataloader @step payload.
// Non-fatal: reported as @meta and the episode deactivates.
type InvalidCommand struct {
	Command string
	Reason  string
}

func (e *InvalidCommand) Error() string {
	return fmt.Sprintf("invalid command %q: %s", e.Command, e.Reason)
}

// TopologyError is raised by contract validation: hop domain/kind
// mismatch, cycles, missing/multiple roots. Surfaced to the caller of
// validate, never fatal on its own.
type TopologyError struct {
	ContractName string
	HopIndex     int
	Reason       string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology error in contract %q (hop %d): %s", e.ContractName, e.HopIndex, e.Reason)
}

// DataUnavailable is raised when a dataloader range selects zero
// samples. Non-fatal.
type DataUnavailable struct {
	Reason string
}

func (e *DataUnavailable) Error() string {
	return fmt.Sprintf("data unavailable: %s", e.Reason)
}

// ConfigError is raised on missing/invalid global config entries. Fatal.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Fatal reports whether an error kind is fatal per spec §7's propagation
// policy. TopologyError, InvalidCommand and DataUnavailable are not.
func Fatal(err error) bool {
	switch err.(type) {
	case *InvalidDsl, *ManifestMismatch, *ImmutableLockViolation, *RegistryCorruption, *ConfigError:
		return true
	default:
		return false
	}
}
