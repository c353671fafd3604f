// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dataloader

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuwacunu/tsiemene-runtime/internal/dsl"
	"github.com/cuwacunu/tsiemene-runtime/internal/graph"
	"github.com/cuwacunu/tsiemene-runtime/internal/metatrace"
	"github.com/cuwacunu/tsiemene-runtime/internal/metrics"
	"github.com/cuwacunu/tsiemene-runtime/internal/obslog"
)

// defaultRangeWarnBatches is the built-in fallback for
// DATA_LOADER.dataloader_range_warn_batches when the caller does not
// override RangeWarnBatches explicitly.
const defaultRangeWarnBatches = 256

// episodeState mirrors spec §4.7's "Episode state" block.
type episodeState struct {
	active         bool
	cmd            Command
	batchRemaining uint64

	rangeBegin  int
	rangeCount  int
	rangeCursor int

	episodeEmitted     uint64
	maxBatchesPerEpoch uint64

	waveID        string
	waveI0        uint64
	nextI         uint64
	episode       uint64
	batchI0       uint64
	nextBatch     uint64
	hasTimeSpan   bool
	spanBeginMs   int64
	spanEndMs     int64
}

// TsiSourceDataloader is the dataloader source node of spec §4.7: it
// parameterizes over a record type via Dataset/FeatureDims/Channels, a
// Sampler (shared loader cursor that persists across episodes), a
// target device (opaque at this layer), and an observation spec
// (T past window, Tf future window, B batch hint).
type TsiSourceDataloader struct {
	Symbol      string
	Dataset     *Dataset
	Channels    int
	PastWindow  int
	FutureWindow int
	BatchHint   int

	iterator Iterator // shared loader cursor; persists across episodes
	limiter  *rate.Limiter
	log      *obslog.Sink

	mu    sync.Mutex
	state episodeState

	RangeWarnBatches uint64
}

// NewTsiSourceDataloader builds a dataloader node bound to ds, with a
// worker-prefetch rate limiter derived from the configured worker
// count (spec §5 "dataloader worker threads that prefetch batches
// (count from config)"; grounded on golang.org/x/time/rate for the
// throttle itself).
func NewTsiSourceDataloader(symbol string, ds *Dataset, channels, pastWindow, futureWindow, batchHint, workers int, sampler dsl.Sampler, seed int64, log *obslog.Sink) *TsiSourceDataloader {
	limit := rate.Limit(workers)
	if workers <= 0 {
		limit = rate.Inf
	}
	return &TsiSourceDataloader{
		Symbol:           symbol,
		Dataset:          ds,
		Channels:         channels,
		PastWindow:       pastWindow,
		FutureWindow:     futureWindow,
		BatchHint:        batchHint,
		iterator:         NewIterator(sampler, ds.Len(), seed),
		limiter:          rate.NewLimiter(limit, max(1, workers)),
		log:              log,
		RangeWarnBatches: defaultRangeWarnBatches,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AsNode wraps d as a graph.Node bound to d.step, matching spec's
// source directives: In @step :str, Out @payload :tensor, Out @future
// :tensor (conditional), Out @meta :str.
func (d *TsiSourceDataloader) AsNode(instanceName string) *graph.Node {
	return &graph.Node{
		InstanceName: instanceName,
		TypeName:     "tsi.source.dataloader",
		Directives: []graph.Directive{
			{Name: "step", Direction: graph.In, Kind: graph.KindString},
			{Name: "payload", Direction: graph.Out, Kind: graph.KindTensor},
			{Name: "future", Direction: graph.Out, Kind: graph.KindTensor},
			{Name: "meta", Direction: graph.Out, Kind: graph.KindString},
		},
		Step: d.step,
		RequestsRuntimeContinuation: d.continueRequested,
		RuntimeContinuationIngress:  func() graph.Ingress { return graph.Ingress{DirectiveID: "step", Signal: graph.Signal{Kind: graph.SignalString, Text: ""}} },
	}
}

func (d *TsiSourceDataloader) continueRequested() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.active
}

// hasRemaining reports whether the episode has any more batches to
// emit: the epoch's MaxBatchesPerEpoch cap (spec §4.6
// "advance_wave_cursor_when_episode_boundary_crossed") is checked
// first, ahead of the command-specific exhaustion check.
func (d *TsiSourceDataloader) hasRemaining() bool {
	s := &d.state
	if s.maxBatchesPerEpoch > 0 && s.episodeEmitted >= s.maxBatchesPerEpoch {
		return false
	}
	switch s.cmd.Kind {
	case CmdRange:
		return s.rangeCursor < s.rangeCount
	default:
		return s.batchRemaining > 0
	}
}

// step implements spec's "On start_episode" / "On next_episode_batch" /
// terminal-meta state machine for one scheduling event.
func (d *TsiSourceDataloader) step(wave *graph.WaveCursor, ingress graph.Ingress, ctx *graph.ExecContext, emit *graph.Emitter) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.active {
		return d.startEpisode(wave, ingress.Signal.Text, emit)
	}
	return d.nextEpisodeBatch(wave, emit)
}

func (d *TsiSourceDataloader) startEpisode(wave *graph.WaveCursor, raw string, emit *graph.Emitter) error {
	cmd, err := ParseCommand(raw)
	if err != nil {
		emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: "invalid command: " + err.Error()})
		return nil // non-fatal per rterr.InvalidCommand: episode stays inactive
	}
	if cmd.Kind == CmdContinue && wave != nil && wave.HasTimeSpan {
		cmd = RangeFromWaveSpan(d.Symbol, wave.SpanBeginMs, wave.SpanEndMs)
	}

	s := &d.state
	s.cmd = cmd
	s.episodeEmitted = 0

	switch cmd.Kind {
	case CmdRange:
		begin, count := d.Dataset.ComputeIndexRangeByKeys(cmd.FromMs, cmd.ToMs)
		s.rangeBegin, s.rangeCount, s.rangeCursor = begin, count, 0
		if cmd.BatchLimit > 0 {
			maxSamples := int(cmd.BatchLimit) * d.BatchHint
			if count > maxSamples {
				s.rangeCount = maxSamples
			}
		} else if uint64(count/max(1, d.BatchHint)) > d.RangeWarnBatches {
			d.log.Warnf("dataloader %s: large unbounded range (%d samples)", d.Symbol, count)
		}
		if s.rangeCount == 0 {
			emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: "mode=range source=command key_ms=[" +
				strconv.FormatInt(cmd.FromMs, 10) + "," + strconv.FormatInt(cmd.ToMs, 10) + "] symbol=" + cmd.Symbol +
				" batch_limit=" + batchLimitText(cmd) + ": no samples in range"})
			s.active = false
			return nil
		}
		emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: "mode=range source=command key_ms=[" +
			strconv.FormatInt(cmd.FromMs, 10) + "," + strconv.FormatInt(cmd.ToMs, 10) + "] symbol=" + cmd.Symbol +
			" batch_limit=" + batchLimitText(cmd)})
	case CmdBatches:
		s.batchRemaining = cmd.BatchLimit
		emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: "mode=batches source=command batch_limit=" + strconv.FormatUint(cmd.BatchLimit, 10)})
	default:
		emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: "continue mode: no active episode to resume"})
		return nil
	}

	s.active = true
	metrics.EpisodesStarted.Inc()
	if wave != nil {
		s.waveID, s.waveI0, s.episode, s.batchI0 = wave.ID, wave.I, wave.Episode, wave.Batch
		s.hasTimeSpan, s.spanBeginMs, s.spanEndMs = wave.HasTimeSpan, wave.SpanBeginMs, wave.SpanEndMs
		s.maxBatchesPerEpoch = wave.MaxBatchesPerEpoch
	}
	return d.emitOneBatch(wave, emit)
}

func (d *TsiSourceDataloader) nextEpisodeBatch(wave *graph.WaveCursor, emit *graph.Emitter) error {
	if !d.hasRemaining() {
		return d.terminateEpisode(emit)
	}
	return d.emitOneBatch(wave, emit)
}

func (d *TsiSourceDataloader) emitOneBatch(wave *graph.WaveCursor, emit *graph.Emitter) error {
	_ = d.limiter.Allow() // takes a limiter token; the result is not acted on, so emission is never delayed or skipped

	s := &d.state
	var indices, futureIndices [][][]int

	switch s.cmd.Kind {
	case CmdRange:
		// BATCH_SIZE is the payload's B dimension, not a cursor stride
		// (spec's P7/S5): pack up to d.BatchHint independent samples,
		// one per b, and advance rangeCursor by exactly that many.
		n := min(d.BatchHint, s.rangeCount-s.rangeCursor)
		indices = make([][][]int, n)
		for b := 0; b < n; b++ {
			indices[b] = make([][]int, d.Channels)
			for c := 0; c < d.Channels; c++ {
				row := make([]int, d.PastWindow)
				for t := 0; t < d.PastWindow; t++ {
					pos := s.rangeBegin + s.rangeCursor + b + t
					if pos >= s.rangeBegin+s.rangeCount {
						row[t] = -1
					} else {
						row[t] = pos
					}
				}
				indices[b][c] = row
			}
		}
		// Future window only makes sense against the time-ordered
		// positions a range episode walks; the random/sequential
		// iterator path below has no such ordering guarantee, so it
		// never emits @future (spec §4.7 "if the dataset produces
		// future features").
		if d.FutureWindow > 0 {
			futureIndices = make([][][]int, n)
			for b := 0; b < n; b++ {
				futureIndices[b] = make([][]int, d.Channels)
				for c := 0; c < d.Channels; c++ {
					row := make([]int, d.FutureWindow)
					for t := 0; t < d.FutureWindow; t++ {
						pos := s.rangeBegin + s.rangeCursor + b + d.PastWindow + t
						if pos >= s.rangeBegin+s.rangeCount {
							row[t] = -1
						} else {
							row[t] = pos
						}
					}
					futureIndices[b][c] = row
				}
			}
		}
		s.rangeCursor += n
	default:
		indices = make([][][]int, 1)
		indices[0] = make([][]int, d.Channels)
		for c := 0; c < d.Channels; c++ {
			row := make([]int, d.PastWindow)
			for t := 0; t < d.PastWindow; t++ {
				idx, ok := d.iterator.Next()
				if !ok {
					d.iterator.Reset()
					idx, _ = d.iterator.Next()
				}
				row[t] = idx
			}
			indices[0][c] = row
		}
		if s.batchRemaining > 0 {
			s.batchRemaining--
		}
	}

	tensor := PackBatch(d.Dataset, indices)
	emit.Emit("payload", graph.Signal{Kind: graph.SignalTensor, Tensor: tensor})
	metrics.BatchesEmitted.Inc()

	if futureIndices != nil {
		future := PackBatch(d.Dataset, futureIndices)
		emit.Emit("future", graph.Signal{Kind: graph.SignalTensor, Tensor: future})
	}

	s.episodeEmitted++
	s.nextI++
	s.nextBatch++
	if wave != nil {
		wave.I++
		wave.Batch++
	}

	if !d.hasRemaining() {
		return d.terminateEpisode(emit)
	}
	return nil
}

// batchLimitText renders a command's batch limit the way spec's
// scenarios print it: the literal token "unbounded" when unset.
func batchLimitText(cmd Command) string {
	if cmd.BatchLimit == 0 {
		return "unbounded"
	}
	return strconv.FormatUint(cmd.BatchLimit, 10)
}

func (d *TsiSourceDataloader) terminateEpisode(emit *graph.Emitter) error {
	s := &d.state
	metrics.EpisodesTerminated.Inc()
	line, err := metatrace.Encode(d.Symbol, map[string]string{
		"emitted":  strconv.FormatUint(s.episodeEmitted, 10),
		"i0":       strconv.FormatUint(s.waveI0, 10),
		"next_i":   strconv.FormatUint(s.nextI, 10),
		"batch_i0": strconv.FormatUint(s.batchI0, 10),
		"next_batch": strconv.FormatUint(s.nextBatch, 10),
		"episode":  strconv.FormatUint(s.episode, 10),
	}, time.Now())
	if err != nil {
		d.log.Warnf("dataloader %s: meta trace encode failed: %s", d.Symbol, err.Error())
		line = "episode terminated"
	}
	emit.Emit("meta", graph.Signal{Kind: graph.SignalString, Text: line})
	*s = episodeState{}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// AssertHasFutureWindow reports whether this dataloader is configured
// to additionally emit a @future tensor (spec's "If the dataset
// produces future features ... emit a second packed tensor").
func (d *TsiSourceDataloader) AssertHasFutureWindow() bool { return d.FutureWindow > 0 }
