// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dataloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandEmptyIsContinue(t *testing.T) {
	cmd, err := ParseCommand("")
	require.NoError(t, err)
	assert.Equal(t, CmdContinue, cmd.Kind)
}

func TestParseCommandBatchesOnly(t *testing.T) {
	cmd, err := ParseCommand("batches=7")
	require.NoError(t, err)
	assert.Equal(t, CmdBatches, cmd.Kind)
	assert.EqualValues(t, 7, cmd.BatchLimit)
}

func TestParseCommandRange(t *testing.T) {
	cmd, err := ParseCommand("BTCUSDT[01.01.2020,31.01.2020]")
	require.NoError(t, err)
	assert.Equal(t, CmdRange, cmd.Kind)
	assert.Equal(t, "BTCUSDT", cmd.Symbol)
	assert.Less(t, cmd.FromMs, cmd.ToMs)
}

func TestParseCommandBoundedRange(t *testing.T) {
	cmd, err := ParseCommand("batches=3;BTCUSDT[01.01.2020,31.01.2020]")
	require.NoError(t, err)
	assert.Equal(t, CmdRange, cmd.Kind)
	assert.EqualValues(t, 3, cmd.BatchLimit)
}

func TestParseCommandRejectsMalformedRange(t *testing.T) {
	_, err := ParseCommand("BTCUSDT[01.01.2020]")
	require.Error(t, err)
}

func TestParseCommandRejectsInvertedRange(t *testing.T) {
	_, err := ParseCommand("BTCUSDT[31.01.2020,01.01.2020]")
	require.Error(t, err)
}
