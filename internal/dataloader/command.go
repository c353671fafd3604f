// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dataloader

import (
	"strconv"
	"strings"

	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

// CommandKind classifies a parsed `@step` command (spec §4.7 "Command
// grammar").
type CommandKind int

const (
	// CmdContinue resumes the active episode; no new range/batch count.
	CmdContinue CommandKind = iota
	// CmdBatches emits up to N batches from the shared loader cursor.
	CmdBatches
	// CmdRange restricts emission to samples whose key falls in an
	// inclusive millisecond range, optionally instrument-qualified.
	CmdRange
)

// Command is the decoded form of a dataloader `@step` payload string.
type Command struct {
	Kind CommandKind

	BatchLimit uint64 // valid when Kind == CmdBatches, or as a bound with CmdRange

	Symbol   string // instrument qualifier, valid when Kind == CmdRange
	FromMs   int64
	ToMs     int64
}

// ParseCommand decodes one `@step` command string per spec's grammar:
//
//	""                              -> CmdContinue
//	"batches=N"                     -> CmdBatches
//	"SYMBOL[dd.mm.yyyy,dd.mm.yyyy]" -> CmdRange
//	"batches=N;SYMBOL[...]"         -> CmdRange bounded by N
func ParseCommand(raw string) (Command, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Command{Kind: CmdContinue}, nil
	}

	var batchLimit uint64
	hasBatchLimit := false
	rangePart := s

	if idx := strings.IndexByte(s, ';'); idx >= 0 {
		prefix, rest := s[:idx], s[idx+1:]
		n, err := parseBatchesAssignment(prefix)
		if err != nil {
			return Command{}, err
		}
		batchLimit = n
		hasBatchLimit = true
		rangePart = rest
	} else if n, ok := tryParseBatchesOnly(s); ok {
		return Command{Kind: CmdBatches, BatchLimit: n}, nil
	}

	cmd, err := parseRange(rangePart)
	if err != nil {
		return Command{}, err
	}
	if hasBatchLimit {
		cmd.BatchLimit = batchLimit
	}
	return cmd, nil
}

func tryParseBatchesOnly(s string) (uint64, bool) {
	const prefix = "batches="
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(s[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseBatchesAssignment(s string) (uint64, error) {
	const prefix = "batches="
	if !strings.HasPrefix(s, prefix) {
		return 0, &rterr.InvalidCommand{Command: s, Reason: "expected batches=N prefix before ';'"}
	}
	n, err := strconv.ParseUint(s[len(prefix):], 10, 64)
	if err != nil {
		return 0, &rterr.InvalidCommand{Command: s, Reason: "invalid batches=N value"}
	}
	return n, nil
}

// parseRange parses "SYMBOL[dd.mm.yyyy,dd.mm.yyyy]".
func parseRange(s string) (Command, error) {
	open := strings.IndexByte(s, '[')
	close := strings.IndexByte(s, ']')
	if open < 0 || close < 0 || close < open {
		return Command{}, &rterr.InvalidCommand{Command: s, Reason: "expected SYMBOL[dd.mm.yyyy,dd.mm.yyyy]"}
	}
	symbol := s[:open]
	inner := s[open+1 : close]

	dates := strings.Split(inner, ",")
	if len(dates) != 2 {
		return Command{}, &rterr.InvalidCommand{Command: s, Reason: "range requires exactly two comma-separated dates"}
	}

	fromMs, err := ParseDDMMYYYY(strings.TrimSpace(dates[0]), false)
	if err != nil {
		return Command{}, &rterr.InvalidCommand{Command: s, Reason: err.Error()}
	}
	toMs, err := ParseDDMMYYYY(strings.TrimSpace(dates[1]), true)
	if err != nil {
		return Command{}, &rterr.InvalidCommand{Command: s, Reason: err.Error()}
	}
	if toMs < fromMs {
		return Command{}, &rterr.InvalidCommand{Command: s, Reason: "range TO precedes FROM"}
	}

	return Command{Kind: CmdRange, Symbol: symbol, FromMs: fromMs, ToMs: toMs}, nil
}

// RangeFromWaveSpan builds a CmdRange command from a wave profile's
// time span, used when "presence of a wave-level time span implies
// range mode when no explicit range is given".
func RangeFromWaveSpan(symbol string, spanBeginMs, spanEndMs int64) Command {
	return Command{Kind: CmdRange, Symbol: symbol, FromMs: spanBeginMs, ToMs: spanEndMs}
}
