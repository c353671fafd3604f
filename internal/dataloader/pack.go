// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dataloader

import "github.com/cuwacunu/tsiemene-runtime/internal/graph"

// PackBatch collates the samples at indices (length T each, drawn per
// channel C) into a [B,C,T,D+1] tensor where the last slot of D+1 is a
// 0/1 mask (spec §4.7 "Packing": "cast mask to float32 ... concatenate
// along the last dim so feature dimension D+1 is the mask").
//
// indices is [B][C][T]int: for each batch element and channel, the T
// dataset row indices that make up that element's window; a negative
// index marks a padded (out-of-range) position whose mask is 0.
func PackBatch(ds *Dataset, indices [][][]int) *graph.Tensor {
	if len(indices) == 0 {
		return &graph.Tensor{Shape: []int{0, 0, 0, 0}}
	}
	b := len(indices)
	c := len(indices[0])
	t := 0
	if c > 0 {
		t = len(indices[0][0])
	}
	d := ds.FeatureDims

	out := &graph.Tensor{
		Shape: []int{b, c, t, d + 1},
		Data:  make([]float32, b*c*t*(d+1)),
	}

	feat := make([]float32, d)
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			for ti := 0; ti < t; ti++ {
				idx := indices[bi][ci][ti]
				base := out.At(bi, ci, ti, 0)
				if idx < 0 || idx >= ds.Len() {
					for k := 0; k < d; k++ {
						out.Data[base+k] = 0
					}
					out.Data[base+d] = 0
					continue
				}
				ds.FeaturesAt(idx, feat)
				copy(out.Data[base:base+d], feat)
				out.Data[base+d] = 1
			}
		}
	}
	return out
}
