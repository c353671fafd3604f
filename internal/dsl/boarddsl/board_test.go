// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package boarddsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBoard = `
CONTRACT c1 "/contracts/main.contract";
WAVE w1 "/waves/main.wave";
BIND live c1 w1;
`

func TestDecodeBoard(t *testing.T) {
	inst, err := Decode("board.dsl", sampleBoard)
	require.NoError(t, err)
	assert.Equal(t, "/contracts/main.contract", inst.Contracts["c1"])
	assert.Equal(t, "/waves/main.wave", inst.Waves["w1"])
	require.Len(t, inst.Binds, 1)
	assert.Equal(t, Bind{BindingID: "live", ContractID: "c1", WaveID: "w1"}, inst.Binds[0])
}

func TestDecodeBoardRejectsUndeclaredContractReference(t *testing.T) {
	src := `
WAVE w1 "/waves/main.wave";
BIND live missing w1;
`
	_, err := Decode("board.dsl", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared CONTRACT id")
}

func TestDecodeBoardRejectsDuplicateBindingID(t *testing.T) {
	src := `
CONTRACT c1 "/contracts/main.contract";
WAVE w1 "/waves/main.wave";
BIND live c1 w1;
BIND live c1 w1;
`
	_, err := Decode("board.dsl", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate BIND binding id")
}
