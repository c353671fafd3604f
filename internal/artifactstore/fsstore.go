// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package artifactstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FsStoreConfig is the `{"kind":"file", ...}` artifactstore config.
type FsStoreConfig struct {
	Path string `json:"path"`
}

// FsStore persists artifacts as flat files under a root directory,
// grounded on the teacher's FsArchive (pkg/archive/fsBackend.go).
type FsStore struct {
	path string
}

func (fs *FsStore) Init(rawConfig json.RawMessage) error {
	var cfg FsStoreConfig
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return fmt.Errorf("artifactstore: fs: %w", err)
	}
	if cfg.Path == "" {
		return fmt.Errorf("artifactstore: fs: empty path")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return fmt.Errorf("artifactstore: fs: cannot create root %s: %w", cfg.Path, err)
	}
	fs.path = cfg.Path
	return nil
}

func (fs *FsStore) filePath(id string) string {
	return filepath.Join(fs.path, id+".artifact")
}

func (fs *FsStore) Exists(id string) bool {
	_, err := os.Stat(fs.filePath(id))
	return !errors.Is(err, os.ErrNotExist)
}

func (fs *FsStore) Load(id string) ([]byte, error) {
	data, err := os.ReadFile(fs.filePath(id))
	if err != nil {
		return nil, fmt.Errorf("artifactstore: fs: load %s: %w", id, err)
	}
	return data, nil
}

func (fs *FsStore) Store(id string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fs.filePath(id)), 0o755); err != nil {
		return fmt.Errorf("artifactstore: fs: store %s: %w", id, err)
	}
	if err := os.WriteFile(fs.filePath(id), data, 0o644); err != nil {
		return fmt.Errorf("artifactstore: fs: store %s: %w", id, err)
	}
	return nil
}
