// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fingerprint implements spec.md §4.2: canonical paths,
// per-file SHA-256 fingerprints, and the sorted-row manifest digest
// used to detect mid-run tampering of any registry's dependency set.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

// File is a single dependency's fingerprint: {canonical_path, size,
// mtime_ticks, sha256_hex} per spec §3.
type File struct {
	CanonicalPath string
	SizeBytes     int64
	MtimeTicks    int64 // signed nanosecond-ticks since the Unix epoch
	Sha256Hex     string
}

// Manifest is an ordered sequence of File fingerprints plus the
// aggregate digest computed over their sorted rows.
type Manifest struct {
	Files              []File
	AggregateSha256Hex string
}

// Canonicalize absolutizes and weakly-canonicalizes path; on failure it
// falls back to the lexically-normalized absolute path, per spec's
// "Canonicalization rule". Empty/whitespace-only paths are rejected.
//
// Go's filepath.Abs never touches the filesystem (no symlink
// resolution failure mode distinct from normal I/O errors), so the
// "weak canonicalize, else lexical normalize" fallback chain from the
// original source is modeled as: try filepath.EvalSymlinks on the
// absolutized path; if that fails (file does not exist yet, permission
// denied, etc.) fall back to filepath.Clean on the absolutized path.
func Canonicalize(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("fingerprint: empty or whitespace-only path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint: cannot absolutize %q: %w", path, err)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}

func sha256HexOfFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sha256HexOfBytes hashes an in-memory byte slice, used for DSL blob
// text that has already been read off disk as part of building a
// record.
func Sha256HexOfBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint computes the fingerprint of a single dependency file.
func Fingerprint(path string) (File, error) {
	canonical, err := Canonicalize(path)
	if err != nil {
		return File{}, err
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return File{}, &rterr.ManifestMismatch{CanonicalPath: canonical, Reason: "stat failed: " + err.Error()}
	}
	if !info.Mode().IsRegular() {
		return File{}, &rterr.ManifestMismatch{CanonicalPath: canonical, Reason: "not a regular file"}
	}

	digest, err := sha256HexOfFile(canonical)
	if err != nil {
		return File{}, &rterr.ManifestMismatch{CanonicalPath: canonical, Reason: "read failed: " + err.Error()}
	}

	return File{
		CanonicalPath: canonical,
		SizeBytes:     info.Size(),
		MtimeTicks:    info.ModTime().UnixNano(),
		Sha256Hex:     digest,
	}, nil
}

// BuildManifest fingerprints every path and computes the aggregate
// digest. Order of the input paths does not affect AggregateSha256Hex
// (spec P2: "Manifest order-independence").
func BuildManifest(paths []string) (Manifest, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		fp, err := Fingerprint(p)
		if err != nil {
			return Manifest{}, err
		}
		files = append(files, fp)
	}
	return Manifest{Files: files, AggregateSha256Hex: aggregateDigest(files)}, nil
}

// aggregateDigest builds "<canonical_path>|<sha256_hex>\n" rows, sorts
// them lexicographically, concatenates, and hashes the result.
func aggregateDigest(files []File) string {
	rows := make([]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, f.CanonicalPath+"|"+f.Sha256Hex+"\n")
	}
	sort.Strings(rows)

	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(r)
	}
	return Sha256HexOfBytes([]byte(sb.String()))
}

// AssertIntact re-verifies every file in m against disk (spec
// "assert_intact_or_fail_fast"): each must still exist and be regular;
// if size or mtime changed, content is rehashed and compared. The
// aggregate digest is always recomputed and compared last. Any
// deviation returns a *rterr.ManifestMismatch.
func AssertIntact(m Manifest) error {
	recomputed := make([]File, len(m.Files))
	for i, expected := range m.Files {
		info, err := os.Stat(expected.CanonicalPath)
		if err != nil {
			return &rterr.ManifestMismatch{CanonicalPath: expected.CanonicalPath, Reason: "no longer exists: " + err.Error()}
		}
		if !info.Mode().IsRegular() {
			return &rterr.ManifestMismatch{CanonicalPath: expected.CanonicalPath, Reason: "no longer a regular file"}
		}

		actual := expected
		actual.SizeBytes = info.Size()
		actual.MtimeTicks = info.ModTime().UnixNano()

		if actual.SizeBytes != expected.SizeBytes || actual.MtimeTicks != expected.MtimeTicks {
			digest, err := sha256HexOfFile(expected.CanonicalPath)
			if err != nil {
				return &rterr.ManifestMismatch{CanonicalPath: expected.CanonicalPath, Reason: "rehash failed: " + err.Error()}
			}
			actual.Sha256Hex = digest
			if actual.Sha256Hex != expected.Sha256Hex {
				return &rterr.ManifestMismatch{CanonicalPath: expected.CanonicalPath, Reason: "content changed"}
			}
		}
		recomputed[i] = actual
	}

	if got := aggregateDigest(recomputed); got != m.AggregateSha256Hex {
		return &rterr.ManifestMismatch{CanonicalPath: "<manifest>", Reason: "aggregate digest mismatch"}
	}
	return nil
}
