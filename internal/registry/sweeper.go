// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package registry

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/cuwacunu/tsiemene-runtime/internal/metrics"
	"github.com/cuwacunu/tsiemene-runtime/internal/obslog"
)

// Sweeper periodically re-verifies the locked runtime's fingerprint
// integrity in the background, giving spec's "strict fingerprint
// integrity checks across the entire lifetime of the process" a
// standing heartbeat rather than only checking at use sites. Grounded
// on the teacher's scheduler wiring (go-co-op/gocron/v2).
type Sweeper struct {
	scheduler gocron.Scheduler
	board     *BoardSpace
	log       *obslog.Sink
}

// NewSweeper builds a Sweeper that calls board.AssertLockedRuntimeIntact
// every interval, logging and then terminating the process on the first
// fatal mismatch (spec's "Failure propagation under locks").
func NewSweeper(board *BoardSpace, log *obslog.Sink, interval time.Duration) (*Sweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sw := &Sweeper{scheduler: sched, board: board, log: log}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sw.runOnce),
	)
	if err != nil {
		return nil, err
	}
	return sw, nil
}

func (sw *Sweeper) runOnce() {
	if err := sw.board.AssertLockedRuntimeIntact(); err != nil {
		metrics.SweeperFailures.Inc()
		sw.log.Fatalf("integrity sweep failed: %s", err.Error())
	}
}

// Start begins the periodic sweep. It returns immediately; the sweeper
// runs on gocron's own goroutine until ctx is done or Stop is called.
func (sw *Sweeper) Start(ctx context.Context) {
	sw.scheduler.Start()
	go func() {
		<-ctx.Done()
		_ = sw.scheduler.Shutdown()
	}()
}

// Stop shuts the scheduler down synchronously.
func (sw *Sweeper) Stop() error {
	return sw.scheduler.Shutdown()
}
