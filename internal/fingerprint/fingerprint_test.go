// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFingerprintStability(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "a.wave", "WAVE x { }")

	f1, err := Fingerprint(p)
	require.NoError(t, err)
	f2, err := Fingerprint(p)
	require.NoError(t, err)
	assert.Equal(t, f1.Sha256Hex, f2.Sha256Hex)

	require.NoError(t, os.WriteFile(p, []byte("WAVE y { }"), 0o644))
	f3, err := Fingerprint(p)
	require.NoError(t, err)
	assert.NotEqual(t, f1.Sha256Hex, f3.Sha256Hex)
}

func TestManifestOrderIndependence(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.txt", "aaa")
	b := writeTemp(t, dir, "b.txt", "bbb")

	m1, err := BuildManifest([]string{a, b})
	require.NoError(t, err)
	m2, err := BuildManifest([]string{b, a})
	require.NoError(t, err)

	assert.Equal(t, m1.AggregateSha256Hex, m2.AggregateSha256Hex)
}

func TestAssertIntactDetectsTamper(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.txt", "aaa")

	m, err := BuildManifest([]string{a})
	require.NoError(t, err)
	require.NoError(t, AssertIntact(m))

	// mutate a byte, bump mtime so the recompute path is taken
	require.NoError(t, os.WriteFile(a, []byte("aab"), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(a, future, future))

	err = AssertIntact(m)
	assert.Error(t, err)
}

func TestCanonicalizeRejectsEmpty(t *testing.T) {
	_, err := Canonicalize("   ")
	assert.Error(t, err)
}
