// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package learner implements spec.md §4.8: the Wikimyei graph.Node, a
// thin adapter around an opaque representation-learning Encoder. The
// legacy TS2Vec/VICReg network internals are explicitly out of scope
// (spec's "treated as opaque encoders with a forward/encode
// contract") — this package only owns the directive wiring and the
// features/mask unpacking in front of that contract.
package learner

// Encoder is the opaque representation-learning model a Wikimyei node
// wraps. features is [B,C,T,D]; mask is [B,C,T] with true marking a
// real (non-padded) sample. useSWA selects a stochastic-weight-average
// snapshot of the model's weights when the implementation maintains
// one; detachToCPU requests the returned representation (and loss, if
// any) be moved off the training device before it crosses the adapter
// boundary.
//
// Encode returns the representation tensor, a scalar loss tensor
// (nil outside training mode), and an error. Encoder implementations
// are free to panic-recover internally; any error or panic that
// escapes Encode propagates to the engine caller unmodified (spec's
// "Encoder exceptions propagate to the engine caller").
type Encoder interface {
	Encode(features []float32, featShape []int, mask []bool, useSWA, detachToCPU bool) (representation []float32, repShape []int, loss *float32, err error)
}
