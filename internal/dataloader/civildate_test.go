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

func TestParseDDMMYYYYEpoch(t *testing.T) {
	ms, err := ParseDDMMYYYY("01.01.1970", false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, ms)
}

func TestParseDDMMYYYYEndOfDay(t *testing.T) {
	begin, err := ParseDDMMYYYY("02.01.1970", false)
	require.NoError(t, err)
	assert.EqualValues(t, msPerDay, begin)

	end, err := ParseDDMMYYYY("01.01.1970", true)
	require.NoError(t, err)
	assert.EqualValues(t, msPerDay-1, end)
}

func TestParseDDMMYYYYRejectsPre1970(t *testing.T) {
	_, err := ParseDDMMYYYY("01.01.1969", false)
	require.Error(t, err)
}

func TestParseDDMMYYYYRejectsImpossibleDate(t *testing.T) {
	_, err := ParseDDMMYYYY("30.02.2020", false)
	require.Error(t, err)

	_, err = ParseDDMMYYYY("29.02.2021", false)
	require.Error(t, err)
}

func TestParseDDMMYYYYLeapYear(t *testing.T) {
	_, err := ParseDDMMYYYY("29.02.2020", false)
	require.NoError(t, err)
}
