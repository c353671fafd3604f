// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metatrace renders a node's `@meta` emission as an InfluxDB
// line-protocol line, for the structured trace sinks (spec §4.6's
// "@meta strings emitted by nodes are logged but do not affect control
// flow"). Grounded on the teacher's own decoder usage of
// github.com/influxdata/line-protocol/v2/lineprotocol
// (internal/memorystore/lineprotocol.go), run here through the same
// package's Encoder rather than its Decoder.
package metatrace

import (
	"sort"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
)

// Encode renders one meta trace line: measurement "meta", a single
// "node" tag, and fields sorted by key for deterministic output.
func Encode(node string, fields map[string]string, at time.Time) (string, error) {
	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Millisecond)
	enc.StartLine("meta")
	enc.AddTag("node", node)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		// A line-protocol line requires at least one field.
		enc.AddField("text", lineprotocol.StringValue(""))
	}
	for _, k := range keys {
		enc.AddField(k, lineprotocol.StringValue(fields[k]))
	}
	enc.EndLine(at)

	if err := enc.Err(); err != nil {
		return "", err
	}
	return string(enc.Bytes()), nil
}
