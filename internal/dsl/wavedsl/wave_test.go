// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package wavedsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimumWaveTrain = `
WAVE p {
  MODE=train;
  SAMPLER=sequential;
  EPOCHS=2;
  BATCH_SIZE=4;
  MAX_BATCHES_PER_EPOCH=3;
  WIKIMYEI w {
    PATH="/data/w";
    TRAIN=true;
    PROFILE_ID=stable_pretrain;
  };
  SOURCE s {
    PATH="/data/s";
    SYMBOL=BTCUSDT;
    FROM=01.01.2009;
    TO=31.12.2009;
  };
}
`

func TestS1MinimumWaveTrain(t *testing.T) {
	set, err := Decode("wave.dsl", minimumWaveTrain)
	require.NoError(t, err)
	require.Len(t, set.Profiles, 1)

	p := set.Profiles[0]
	assert.Equal(t, ModeTrain, p.Mode)
	assert.Equal(t, uint64(2), p.Epochs)
	assert.Equal(t, uint64(4), p.BatchSize)
	assert.Equal(t, uint64(3), p.MaxBatchesPerEpoch)
	require.Len(t, p.Wikimyeis, 1)
	assert.True(t, p.Wikimyeis[0].Train)
	require.Len(t, p.Sources, 1)
	assert.Equal(t, "BTCUSDT", p.Sources[0].Symbol)
}

const runForbidsTraining = `
WAVE p {
  MODE=run;
  SAMPLER=sequential;
  EPOCHS=2;
  BATCH_SIZE=4;
  WIKIMYEI w {
    PATH="/data/w";
    TRAIN=true;
    PROFILE_ID=stable_pretrain;
  };
  SOURCE s {
    PATH="/data/s";
    SYMBOL=BTCUSDT;
    FROM=01.01.2009;
    TO=31.12.2009;
  };
}
`

func TestS2RunForbidsTraining(t *testing.T) {
	_, err := Decode("wave.dsl", runForbidsTraining)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run forbids WIKIMYEI TRAIN=true")
}

func TestP5TrainRequiresAtLeastOneTrainWikimyei(t *testing.T) {
	src := `
WAVE p {
  MODE=train;
  SAMPLER=sequential;
  EPOCHS=1;
  BATCH_SIZE=1;
  WIKIMYEI w {
    PATH="/data/w";
    TRAIN=false;
    PROFILE_ID=x;
  };
}
`
	_, err := Decode("wave.dsl", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "train requires at least one")
}

func TestP5MaxBatchesPerEpochZeroFails(t *testing.T) {
	src := `
WAVE p {
  MODE=train;
  SAMPLER=sequential;
  EPOCHS=1;
  BATCH_SIZE=1;
  MAX_BATCHES_PER_EPOCH=0;
  WIKIMYEI w {
    PATH="/data/w";
    TRAIN=true;
    PROFILE_ID=x;
  };
}
`
	_, err := Decode("wave.dsl", src)
	require.Error(t, err)
}

func TestDuplicateWaveNameRejected(t *testing.T) {
	src := minimumWaveTrain + minimumWaveTrain
	_, err := Decode("wave.dsl", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate WAVE name")
}

func TestDuplicateSourcePathWithinWaveRejected(t *testing.T) {
	src := `
WAVE p {
  MODE=run;
  SAMPLER=random;
  EPOCHS=1;
  BATCH_SIZE=1;
  SOURCE s {
    PATH="/data/s";
    SYMBOL=BTCUSDT;
    FROM=01.01.2009;
    TO=31.12.2009;
  };
  SOURCE s {
    PATH="/data/s";
    SYMBOL=ETHUSDT;
    FROM=01.01.2010;
    TO=31.12.2010;
  };
}
`
	_, err := Decode("wave.dsl", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate SOURCE path")
}
