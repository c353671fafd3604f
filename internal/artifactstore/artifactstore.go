// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package artifactstore persists and retrieves the learner adapter's
// model artifacts (spec §6: "Model artifacts: consumed/emitted by the
// learner adapter; the registry system is agnostic to their format").
// Grounded on the teacher's pkg/archive "kind": "file"/"s3" backend
// switch (archive.go's Init dispatch over a JSON `kind` field),
// generalized here from job archives to opaque model-artifact blobs.
package artifactstore

import (
	"encoding/json"
	"fmt"
)

// Store is the backend-agnostic artifact persistence contract. An
// artifact id is an opaque string (typically a profile id or a
// wikimyei instance name); the store never interprets artifact bytes.
type Store interface {
	Init(rawConfig json.RawMessage) error
	Exists(id string) bool
	Load(id string) ([]byte, error)
	Store(id string, data []byte) error
}

// Open dispatches rawConfig's "kind" field to a concrete Store,
// mirroring the teacher's archive.Init switch.
func Open(rawConfig json.RawMessage) (Store, error) {
	var cfg struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("artifactstore: malformed config: %w", err)
	}

	var store Store
	switch cfg.Kind {
	case "file":
		store = &FsStore{}
	case "s3":
		store = &S3Store{}
	default:
		return nil, fmt.Errorf("artifactstore: unknown backend kind %q", cfg.Kind)
	}

	if err := store.Init(rawConfig); err != nil {
		return nil, err
	}
	return store, nil
}
