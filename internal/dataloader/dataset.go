// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dataloader

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"

	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

// recordHeaderBytes is the per-sample key prefix: an 8-byte
// little-endian millisecond timestamp, followed by FeatureDims
// little-endian float32 values (the `<stem>.bin` layout spec §6 names
// as the companion binary beside a channel's source CSV).
const recordHeaderBytes = 8

// Dataset is a memory-mapped, key-sorted sample file: rows of
// {key_ms int64, features[FeatureDims]float32}, accessed without a
// bulk read via edsrzf/mmap-go (spec L6's "memory-mapped dataset").
type Dataset struct {
	file        *os.File
	region      mmap.MMap
	FeatureDims int
	recordLen   int
	count       int
}

// OpenDataset maps path read-only and validates its size is an exact
// multiple of the per-record stride implied by featureDims.
func OpenDataset(path string, featureDims int) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &rterr.DataUnavailable{Reason: "cannot open dataset file " + path + ": " + err.Error()}
	}

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, &rterr.DataUnavailable{Reason: "cannot mmap dataset file " + path + ": " + err.Error()}
	}

	recordLen := recordHeaderBytes + featureDims*4
	if recordLen == 0 || len(region)%recordLen != 0 {
		region.Unmap()
		f.Close()
		return nil, &rterr.DataUnavailable{Reason: fmt.Sprintf("dataset file %s size %d is not a multiple of record length %d", path, len(region), recordLen)}
	}

	return &Dataset{
		file:        f,
		region:      region,
		FeatureDims: featureDims,
		recordLen:   recordLen,
		count:       len(region) / recordLen,
	}, nil
}

// Close unmaps the dataset and releases its file descriptor.
func (d *Dataset) Close() error {
	if err := d.region.Unmap(); err != nil {
		return err
	}
	return d.file.Close()
}

// Len returns the number of samples in the dataset.
func (d *Dataset) Len() int { return d.count }

// KeyAt returns the millisecond key of the sample at idx.
func (d *Dataset) KeyAt(idx int) int64 {
	off := idx * d.recordLen
	return int64(binary.LittleEndian.Uint32(d.region[off:off+4])) |
		int64(binary.LittleEndian.Uint32(d.region[off+4:off+8]))<<32
}

// FeaturesAt copies the FeatureDims float32 features at idx into dst,
// which must have length FeatureDims.
func (d *Dataset) FeaturesAt(idx int, dst []float32) {
	off := idx*d.recordLen + recordHeaderBytes
	for i := 0; i < d.FeatureDims; i++ {
		bits := binary.LittleEndian.Uint32(d.region[off+i*4 : off+i*4+4])
		dst[i] = math.Float32frombits(bits)
	}
}

// ComputeIndexRangeByKeys returns [begin, count) spanning every sample
// whose key falls in the inclusive range [fromMs, toMs], per spec's
// `dataset.compute_index_range_by_keys`. Samples are assumed
// key-sorted ascending; a range selecting zero samples returns
// count==0 without error (callers surface that as
// *rterr.DataUnavailable per the "no samples in range" rule).
func (d *Dataset) ComputeIndexRangeByKeys(fromMs, toMs int64) (begin, count int) {
	begin = sort.Search(d.count, func(i int) bool { return d.KeyAt(i) >= fromMs })
	end := sort.Search(d.count, func(i int) bool { return d.KeyAt(i) > toMs })
	if end < begin {
		end = begin
	}
	return begin, end - begin
}
