// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package graph

// Tensor is a dense float32 buffer plus its shape, standing in for the
// opaque device tensor type of spec §4.7/§4.8 ("[B,C,T,D+1] packed past
// tensors", "[B,C,T,D] feature slots"). The learner adapter and
// dataloader pass these across the `@payload`/`@future` directives;
// neither interprets bytes beyond shape bookkeeping, matching the
// spec's "the registry system is agnostic to their format" stance for
// everything downstream of packing.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NumElements returns the product of Shape, or 0 for an empty shape.
func (t *Tensor) NumElements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// At returns the flat index for an n-dimensional coordinate in
// row-major order, matching PyTorch's default contiguous layout.
func (t *Tensor) At(coords ...int) int {
	idx := 0
	stride := 1
	for i := len(t.Shape) - 1; i >= 0; i-- {
		idx += coords[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}
