// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package learner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene-runtime/internal/graph"
	"github.com/cuwacunu/tsiemene-runtime/internal/obslog"
)

type fakeEncoder struct {
	lastMask []bool
	loss     float32
}

func (f *fakeEncoder) Encode(features []float32, featShape []int, mask []bool, useSWA, detachToCPU bool) ([]float32, []int, *float32, error) {
	f.lastMask = mask
	rep := make([]float32, len(features))
	copy(rep, features)
	loss := f.loss
	return rep, featShape, &loss, nil
}

func packedTensor() *graph.Tensor {
	// [B=1,C=1,T=2,D+1=3]: feature dims {1,2}, mask 1 for t=0, 0 for t=1.
	return &graph.Tensor{
		Shape: []int{1, 1, 2, 3},
		Data:  []float32{1, 2, 1, 3, 4, 0},
	}
}

func TestWikimyeiTrainModeEmitsLossAndPayload(t *testing.T) {
	enc := &fakeEncoder{loss: 0.5}
	w := New("profile-a", enc, true, false, false, obslog.Default())
	node := w.AsNode("encoder")

	emitter := &graph.Emitter{}
	ingress := graph.Ingress{DirectiveID: "payload", Signal: graph.Signal{Kind: graph.SignalTensor, Tensor: packedTensor()}}
	require.NoError(t, node.Step(nil, ingress, &graph.ExecContext{}, emitter))

	assert.Equal(t, []bool{true, false}, enc.lastMask)

	var sawPayload, sawLoss bool
	for _, e := range emitter.Emissions() {
		switch e.Directive {
		case "payload":
			sawPayload = true
			assert.Equal(t, []int{1, 1, 2, 2}, e.Signal.Tensor.Shape)
		case "loss":
			sawLoss = true
			assert.EqualValues(t, 0.5, e.Signal.Tensor.Data[0])
		}
	}
	assert.True(t, sawPayload)
	assert.True(t, sawLoss)
}

func TestWikimyeiInferenceModeOmitsLoss(t *testing.T) {
	enc := &fakeEncoder{}
	w := New("profile-b", enc, false, false, false, obslog.Default())
	node := w.AsNode("encoder")

	emitter := &graph.Emitter{}
	ingress := graph.Ingress{DirectiveID: "payload", Signal: graph.Signal{Kind: graph.SignalTensor, Tensor: packedTensor()}}
	require.NoError(t, node.Step(nil, ingress, &graph.ExecContext{}, emitter))

	for _, e := range emitter.Emissions() {
		assert.NotEqual(t, "loss", e.Directive)
	}
}

func TestWikimyeiRejectsNonTensorIngress(t *testing.T) {
	w := New("profile-c", &fakeEncoder{}, false, false, false, obslog.Default())
	node := w.AsNode("encoder")

	emitter := &graph.Emitter{}
	ingress := graph.Ingress{DirectiveID: "payload", Signal: graph.Signal{Kind: graph.SignalString, Text: "oops"}}
	err := node.Step(nil, ingress, &graph.ExecContext{}, emitter)
	assert.Error(t, err)
}
