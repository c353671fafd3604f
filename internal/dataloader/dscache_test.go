// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dataloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFixtureCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "BTCUSDT.csv")
	content := "0,1.0\n1000,2.0\n2000,3.0\n3000,4.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildBinaryCacheRoundTrips(t *testing.T) {
	csvPath := writeFixtureCSV(t)

	binPath, err := BuildBinaryCache(csvPath, 1, true)
	require.NoError(t, err)

	ds, err := OpenDataset(binPath, 1)
	require.NoError(t, err)
	defer ds.Close()

	require.Equal(t, 4, ds.Len())
	require.EqualValues(t, 0, ds.KeyAt(0))
	require.EqualValues(t, 3000, ds.KeyAt(3))

	feat := make([]float32, 1)
	ds.FeaturesAt(0, feat)
	require.EqualValues(t, 1.0, feat[0])
}

func TestBuildBinaryCacheSkipsRebuildWhenFresh(t *testing.T) {
	csvPath := writeFixtureCSV(t)

	binPath, err := BuildBinaryCache(csvPath, 1, true)
	require.NoError(t, err)

	info1, err := os.Stat(binPath)
	require.NoError(t, err)

	binPath2, err := BuildBinaryCache(csvPath, 1, false)
	require.NoError(t, err)
	require.Equal(t, binPath, binPath2)

	info2, err := os.Stat(binPath)
	require.NoError(t, err)
	require.Equal(t, info1.ModTime(), info2.ModTime())
}

func TestBuildNormalizedCacheProducesZScores(t *testing.T) {
	csvPath := writeFixtureCSV(t)

	binPath, err := BuildBinaryCache(csvPath, 1, true)
	require.NoError(t, err)

	normPath, err := BuildNormalizedCache(binPath, 1, 2, true)
	require.NoError(t, err)

	ds, err := OpenDataset(normPath, 1)
	require.NoError(t, err)
	defer ds.Close()

	require.Equal(t, 4, ds.Len())

	feat := make([]float32, 1)
	ds.FeaturesAt(0, feat)
	require.EqualValues(t, 0, feat[0]) // single-sample window: stddev 0 -> normalized to 0
}
