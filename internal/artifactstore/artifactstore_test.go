// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package artifactstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFsStoreRoundTrips(t *testing.T) {
	cfg, err := json.Marshal(map[string]string{"kind": "file", "path": t.TempDir()})
	require.NoError(t, err)

	store, err := Open(cfg)
	require.NoError(t, err)

	assert.False(t, store.Exists("profile-a"))
	require.NoError(t, store.Store("profile-a", []byte("weights")))
	assert.True(t, store.Exists("profile-a"))

	data, err := store.Load("profile-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("weights"), data)
}

func TestOpenRejectsUnknownKind(t *testing.T) {
	cfg, err := json.Marshal(map[string]string{"kind": "carrier-pigeon"})
	require.NoError(t, err)
	_, err = Open(cfg)
	assert.Error(t, err)
}

func TestOpenRejectsMissingFsPath(t *testing.T) {
	cfg, err := json.Marshal(map[string]string{"kind": "file"})
	require.NoError(t, err)
	_, err = Open(cfg)
	assert.Error(t, err)
}
