// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package learner

import (
	"fmt"

	"github.com/cuwacunu/tsiemene-runtime/internal/graph"
	"github.com/cuwacunu/tsiemene-runtime/internal/metrics"
	"github.com/cuwacunu/tsiemene-runtime/internal/obslog"
)

// Wikimyei is the learner adapter node of spec §4.8: a pure
// functional-style shim in front of an Encoder. It does not own
// optimizer state.
type Wikimyei struct {
	ProfileID   string
	Encoder     Encoder
	Train       bool
	UseSWA      bool
	DetachToCPU bool
	log         *obslog.Sink
}

// New builds a Wikimyei adapter bound to enc, matching a wave
// profile's wikimyei entry `{path, train, profile_id}`.
func New(profileID string, enc Encoder, train, useSWA, detachToCPU bool, log *obslog.Sink) *Wikimyei {
	return &Wikimyei{ProfileID: profileID, Encoder: enc, Train: train, UseSWA: useSWA, DetachToCPU: detachToCPU, log: log}
}

// AsNode wraps w as a graph.Node. Out @loss is only declared when the
// node runs in training mode, matching spec's "@loss (train mode
// only)".
func (w *Wikimyei) AsNode(instanceName string) *graph.Node {
	directives := []graph.Directive{
		{Name: "payload", Direction: graph.In, Kind: graph.KindTensor},
		{Name: "payload", Direction: graph.Out, Kind: graph.KindTensor},
		{Name: "meta", Direction: graph.Out, Kind: graph.KindString},
	}
	if w.Train {
		directives = append(directives, graph.Directive{Name: "loss", Direction: graph.Out, Kind: graph.KindTensor})
	}
	return &graph.Node{
		InstanceName: instanceName,
		TypeName:     "tsi.wikimyei",
		Directives:   directives,
		Step:         w.step,
	}
}

func (w *Wikimyei) step(_ *graph.WaveCursor, ingress graph.Ingress, _ *graph.ExecContext, emit *graph.Emitter) error {
	if ingress.Signal.Kind != graph.SignalTensor || ingress.Signal.Tensor == nil {
		return fmt.Errorf("learner: wikimyei %s expected a tensor payload, got %v", w.ProfileID, ingress.Signal.Kind)
	}
	packed := ingress.Signal.Tensor

	features, featShape, mask := unpack(packed)

	representation, repShape, loss, err := w.Encoder.Encode(features, featShape, mask, w.UseSWA, w.DetachToCPU)
	if err != nil {
		return err // spec: "Encoder exceptions propagate to the engine caller"
	}

	emit.Emit("payload", graph.Signal{Kind: graph.SignalTensor, Tensor: &graph.Tensor{Shape: repShape, Data: representation}})

	if w.Train {
		if loss == nil {
			return fmt.Errorf("learner: wikimyei %s is in train mode but encoder returned no loss", w.ProfileID)
		}
		emit.Emit("loss", graph.Signal{Kind: graph.SignalTensor, Tensor: &graph.Tensor{Shape: []int{1}, Data: []float32{*loss}}})
		metrics.WikimyeiLoss.Observe(float64(*loss))
		emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: fmt.Sprintf("wikimyei %s: train step loss=%f", w.ProfileID, *loss)})
	} else {
		emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: fmt.Sprintf("wikimyei %s: inference step", w.ProfileID)})
	}
	return nil
}

// unpack splits a [B,C,T,D+1] packed tensor into its [B,C,T,D] feature
// slice and a [B,C,T] mask, per spec's "unpack features ... as the
// first D slots of the last dim; take the mask as last_slot > 0.5".
func unpack(packed *graph.Tensor) (features []float32, featShape []int, mask []bool) {
	shape := packed.Shape
	if len(shape) != 4 {
		return nil, nil, nil
	}
	b, c, t, dPlus1 := shape[0], shape[1], shape[2], shape[3]
	d := dPlus1 - 1
	featShape = []int{b, c, t, d}
	features = make([]float32, b*c*t*d)
	mask = make([]bool, b*c*t)

	fi := 0
	mi := 0
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			for ti := 0; ti < t; ti++ {
				base := packed.At(bi, ci, ti, 0)
				copy(features[fi:fi+d], packed.Data[base:base+d])
				fi += d
				mask[mi] = packed.Data[base+d] > 0.5
				mi++
			}
		}
	}
	return features, featShape, mask
}
