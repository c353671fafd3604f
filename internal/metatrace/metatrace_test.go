// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package metatrace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProducesLineProtocol(t *testing.T) {
	line, err := Encode("src", map[string]string{"emitted": "3", "episode": "0"}, time.Unix(0, 0))
	require.NoError(t, err)

	assert.Contains(t, line, "meta,node=src")
	assert.Contains(t, line, `emitted="3"`)
	assert.Contains(t, line, `episode="0"`)
}

func TestEncodeWithoutFields(t *testing.T) {
	line, err := Encode("snk", nil, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Contains(t, line, "meta,node=snk")
}
