// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"

	"github.com/cuwacunu/tsiemene-runtime/internal/globalconfig"
	"github.com/cuwacunu/tsiemene-runtime/internal/metrics"
	"github.com/cuwacunu/tsiemene-runtime/internal/obslog"
	"github.com/cuwacunu/tsiemene-runtime/internal/registry"
)

func main() {
	var flagFolder, flagConfigFile, flagBoardConfigKey, flagBoardBindingKey, flagMetricsAddr string
	var flagGops bool
	flag.StringVar(&flagFolder, "folder", ".", "Directory containing the `.config` file and referenced DSL artifacts")
	flag.StringVar(&flagConfigFile, "config-file", globalconfig.DefaultConfigFileName, "Name of the global config file within -folder")
	flag.StringVar(&flagBoardConfigKey, "board-config-key", "tsiemene_board_config_filename", "GENERAL key naming the board file path")
	flag.StringVar(&flagBoardBindingKey, "board-binding-key", "tsiemene_board_binding_id", "GENERAL key naming the board binding id")
	flag.StringVar(&flagMetricsAddr, "metrics-addr", ":9090", "Address the Prometheus /metrics endpoint listens on; empty disables it")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	// See https://github.com/google/gops (runtime overhead is almost zero).
	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			obslog.Default().Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	_ = godotenv.Load(".env")

	keys, err := globalconfig.Load(flagFolder, flagConfigFile, flagBoardConfigKey, flagBoardBindingKey)
	if err != nil {
		obslog.Default().Fatalf("loading global config failed: %s", err.Error())
	}

	obslog.Reconfigure(keys.LogsBufferCapacity)
	log := obslog.Default()

	if flagMetricsAddr != "" {
		metrics.Serve(flagMetricsAddr)
	}

	contracts := registry.NewContractSpace()
	waves := registry.NewWaveSpace()
	board := registry.NewBoardSpace(contracts, waves)

	if err := board.Init(keys.BoardConfigPath, keys.BoardBindingID); err != nil {
		log.Fatalf("board runtime lock init failed: %s", err.Error())
	}

	sweeper, err := registry.NewSweeper(board, log, 30*time.Second)
	if err != nil {
		log.Fatalf("starting integrity sweeper failed: %s", err.Error())
	}
	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Infof("shutting down")
	cancel()
	_ = sweeper.Stop()
}
