// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dataloader

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/cuwacunu/tsiemene-runtime/pkg/lrucache"
)

// csvRowSchema is the Avro schema for one staged CSV row: a millisecond
// key plus its feature vector. Grounded on the teacher's
// avroCheckpoint.go OCF writer idiom (goavro.NewCodec +
// goavro.NewOCFWriter), repurposed here as the CSV->binary bootstrap
// staging format named in spec §6 ("per-channel source CSV and its
// companion binaries").
const csvRowSchema = `{
  "type": "record",
  "name": "DatasetRow",
  "fields": [
    {"name": "key_ms", "type": "long"},
    {"name": "features", "type": {"type": "array", "items": "float"}}
  ]
}`

// decodedRowCache memoizes parsed CSV rows per source file during a
// single bootstrap pass, keyed by "<path>:<row index>", reusing the
// teacher's generic mutex+cond LRU (pkg/lrucache) for the same
// bounded-memory caching role it plays in the teacher's checkpoint
// path, repurposed here for dataset ingestion instead of metric
// checkpoints.
var decodedRowCache = lrucache.New(64 << 20) // 64MiB budget for in-flight CSV decode

// BuildBinaryCache converts a per-channel source CSV into the `<stem>.bin`
// raw binary companion Dataset reads (spec §6), skipping the rebuild
// when the binary is newer than the CSV unless forceRebuild is set
// (DATA_LOADER.dataloader_force_rebuild_cache).
func BuildBinaryCache(csvPath string, featureDims int, forceRebuild bool) (binPath string, err error) {
	binPath = csvPath[:len(csvPath)-len(filepathExt(csvPath))] + ".bin"

	if !forceRebuild {
		if fresh, err := isCacheFresh(csvPath, binPath); err == nil && fresh {
			return binPath, nil
		}
	}

	codec, err := goavro.NewCodec(csvRowSchema)
	if err != nil {
		return "", fmt.Errorf("dataloader: cannot build avro codec: %w", err)
	}

	rows, err := readCSVRows(csvPath, featureDims, codec)
	if err != nil {
		return "", err
	}

	if err := writeBinaryFile(binPath, rows, featureDims); err != nil {
		return "", err
	}
	return binPath, nil
}

// BuildNormalizedCache derives the `<stem>.normW<window>.bin` companion
// binary spec §6 names alongside the raw `<stem>.bin`: each channel
// column is z-score normalized using the mean/stddev computed over a
// trailing window of `window` samples ending at that row (the first
// window-1 rows use whatever shorter history is available, matching a
// causal/no-lookahead normalization pass). Skips the rebuild when the
// normalized binary is newer than the raw one, unless forceRebuild.
func BuildNormalizedCache(binPath string, featureDims, window int, forceRebuild bool) (normPath string, err error) {
	normPath = fmt.Sprintf("%s.normW%d.bin", binPath[:len(binPath)-len(filepathExt(binPath))], window)

	if !forceRebuild {
		if fresh, err := isCacheFresh(binPath, normPath); err == nil && fresh {
			return normPath, nil
		}
	}

	ds, err := OpenDataset(binPath, featureDims)
	if err != nil {
		return "", err
	}
	defer ds.Close()

	n := ds.Len()
	rows := make([]decodedRow, n)
	for i := 0; i < n; i++ {
		rows[i] = decodedRow{KeyMs: ds.KeyAt(i), Features: normalizeWindow(ds, i, window, featureDims)}
	}

	if err := writeBinaryFile(normPath, rows, featureDims); err != nil {
		return "", err
	}
	return normPath, nil
}

// normalizeWindow z-scores the features at row i of ds against the
// mean/stddev of the trailing [max(0,i-window+1), i] rows.
func normalizeWindow(ds *Dataset, i, window, featureDims int) []float32 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	n := i - lo + 1

	mean := make([]float64, featureDims)
	row := make([]float32, featureDims)
	for r := lo; r <= i; r++ {
		ds.FeaturesAt(r, row)
		for k := 0; k < featureDims; k++ {
			mean[k] += float64(row[k])
		}
	}
	for k := range mean {
		mean[k] /= float64(n)
	}

	variance := make([]float64, featureDims)
	for r := lo; r <= i; r++ {
		ds.FeaturesAt(r, row)
		for k := 0; k < featureDims; k++ {
			diff := float64(row[k]) - mean[k]
			variance[k] += diff * diff
		}
	}

	out := make([]float32, featureDims)
	ds.FeaturesAt(i, row)
	for k := 0; k < featureDims; k++ {
		stddev := math.Sqrt(variance[k] / float64(n))
		if stddev < 1e-8 {
			out[k] = 0
			continue
		}
		out[k] = float32((float64(row[k]) - mean[k]) / stddev)
	}
	return out
}

func filepathExt(p string) string {
	for i := len(p) - 1; i >= 0 && p[i] != '/'; i-- {
		if p[i] == '.' {
			return p[i:]
		}
	}
	return ""
}

func isCacheFresh(csvPath, binPath string) (bool, error) {
	csvInfo, err := os.Stat(csvPath)
	if err != nil {
		return false, err
	}
	binInfo, err := os.Stat(binPath)
	if err != nil {
		return false, nil // no cache yet
	}
	return binInfo.ModTime().After(csvInfo.ModTime()), nil
}

type decodedRow struct {
	KeyMs    int64
	Features []float32
}

// readCSVRows parses csvPath into decodedRow values, round-tripping
// each row through the Avro codec (binary-encode then decode) so the
// staged representation matches what would be durably checkpointed if
// the cache were persisted across processes, and memoizing the decode
// in decodedRowCache so a re-read of the same row during the same
// bootstrap pass (e.g. overlapping channel windows) is free.
func readCSVRows(csvPath string, featureDims int, codec *goavro.Codec) ([]decodedRow, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("dataloader: cannot open source csv %s: %w", csvPath, err)
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.FieldsPerRecord = -1

	var rows []decodedRow
	rowIdx := 0
	for {
		fields, err := reader.Read()
		if err != nil {
			break // EOF or trailing malformed line both end the scan
		}
		if len(fields) < featureDims+1 {
			rowIdx++
			continue
		}

		cacheKey := fmt.Sprintf("%s:%d", csvPath, rowIdx)
		value := decodedRowCache.Get(cacheKey, func() (any, time.Duration, int) {
			row, decodeErr := decodeCSVFields(fields, featureDims, codec)
			if decodeErr != nil {
				return decodeErr, time.Minute, 1
			}
			return row, time.Minute, 1
		})
		if decodeErr, ok := value.(error); ok {
			rowIdx++
			_ = decodeErr // malformed row: skip, matching CSV bootstrap tolerance for ragged trailing lines
			continue
		}
		rows = append(rows, value.(decodedRow))
		rowIdx++
	}
	return rows, nil
}

func decodeCSVFields(fields []string, featureDims int, codec *goavro.Codec) (decodedRow, error) {
	keyMs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return decodedRow{}, fmt.Errorf("dataloader: invalid key_ms %q: %w", fields[0], err)
	}
	features := make([]float64, featureDims)
	for i := 0; i < featureDims; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 32)
		if err != nil {
			return decodedRow{}, fmt.Errorf("dataloader: invalid feature %q: %w", fields[i+1], err)
		}
		features[i] = v
	}

	avroFeatures := make([]any, featureDims)
	for i, f := range features {
		avroFeatures[i] = float32(f)
	}
	native := map[string]any{"key_ms": keyMs, "features": avroFeatures}

	encoded, err := codec.BinaryFromNative(nil, native)
	if err != nil {
		return decodedRow{}, fmt.Errorf("dataloader: avro encode failed: %w", err)
	}
	decodedNative, _, err := codec.NativeFromBinary(encoded)
	if err != nil {
		return decodedRow{}, fmt.Errorf("dataloader: avro decode failed: %w", err)
	}
	decodedMap := decodedNative.(map[string]any)
	decodedFeatures := decodedMap["features"].([]any)

	out := decodedRow{KeyMs: decodedMap["key_ms"].(int64), Features: make([]float32, featureDims)}
	for i, f := range decodedFeatures {
		out.Features[i] = f.(float32)
	}
	return out, nil
}

// writeBinaryFile writes rows sorted by KeyMs into the flat
// {key_ms int64, features[featureDims]float32} layout Dataset expects.
func writeBinaryFile(path string, rows []decodedRow, featureDims int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataloader: cannot create binary cache %s: %w", path, err)
	}
	defer f.Close()

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].KeyMs < rows[j].KeyMs })

	w := bufio.NewWriter(f)
	defer w.Flush()

	for _, r := range rows {
		var hdr [8]byte
		binary.LittleEndian.PutUint64(hdr[:], uint64(r.KeyMs))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		for i := 0; i < featureDims; i++ {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(r.Features[i]))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
	}
	return nil
}
