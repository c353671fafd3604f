// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package globalconfig

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cuwacunu/tsiemene-runtime/internal/rterr"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchemaAsset(s string) (interface{ Read([]byte) (int, error) }, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

var schemaLoaderOnce sync.Once

func registerSchemaLoader() {
	schemaLoaderOnce.Do(func() {
		jsonschema.Loaders["embedFS"] = func(s string) (interface {
			Read([]byte) (int, error)
		}, error) {
			return loadSchemaAsset(s)
		}
	})
}

// removedKeys maps a removed/renamed config key to the migration
// message explaining its replacement (spec §4.5's "Removed/renamed
// keys are rejected with a named migration error").
var removedKeys = map[string]string{
	"DATA_LOADER.dataloader_batch_size":          "removed: batch size now comes from the active wave's BATCH_SIZE",
	"DATA_LOADER.dataloader_force_binarization":  "renamed to DATA_LOADER.dataloader_force_rebuild_cache",
	"GENERAL.train_wave_dsl_filename":            "removed: train/run wave DSL filenames were merged into a single wave DSL filename",
	"GENERAL.run_wave_dsl_filename":              "removed: train/run wave DSL filenames were merged into a single wave DSL filename",
}

// Keys holds the validated, typed projection of the global config.
type Keys struct {
	Folder string
	Doc    Document

	ExchangeType       string // TEST or REAL
	BoardConfigPath    string
	BoardBindingID     string
	LogsBufferCapacity int

	DataLoaderWorkers            int
	DataLoaderForceRebuildCache  bool
	DataLoaderRangeWarnBatches   int // default 256
	DataLoaderCSVBootstrapDeltas int
	ToleranceA                   float64
	ToleranceB                   float64
}

const defaultRangeWarnBatches = 256

// DefaultConfigFileName is the default top-level config file name,
// resolved under the configured folder unless overridden.
const DefaultConfigFileName = ".config"

// Load reads and validates `<folder>/<fileName>` (fileName defaults to
// DefaultConfigFileName when empty), the board/binding keys named by
// boardConfigKey/boardBindingKey.
func Load(folder, fileName, boardConfigKey, boardBindingKey string) (*Keys, error) {
	registerSchemaLoader()

	if fileName == "" {
		fileName = DefaultConfigFileName
	}
	path := filepath.Join(folder, fileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &rterr.ConfigError{Key: "", Reason: "cannot read config file " + path + ": " + err.Error()}
	}

	doc, err := ParseIni(string(raw))
	if err != nil {
		return nil, &rterr.ConfigError{Key: "", Reason: "cannot parse config file: " + err.Error()}
	}

	for removed, migration := range removedKeys {
		parts := strings.SplitN(removed, ".", 2)
		if _, ok := doc.Get(parts[0], parts[1]); ok {
			return nil, &rterr.ConfigError{Key: removed, Reason: migration}
		}
	}

	keys := &Keys{Folder: folder, Doc: doc}
	if err := keys.populateAndValidate(boardConfigKey, boardBindingKey); err != nil {
		return nil, err
	}
	return keys, nil
}

func requireString(doc Document, section, key string) (string, error) {
	v, ok := doc.Get(section, key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", &rterr.ConfigError{Key: section + "." + key, Reason: "required key missing"}
	}
	return v, nil
}

func requireInt(doc Document, section, key string, min int) (int, error) {
	s, err := requireString(doc, section, key)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(s)
	if convErr != nil || n < min {
		return 0, &rterr.ConfigError{Key: section + "." + key, Reason: fmt.Sprintf("must be an integer >= %d", min)}
	}
	return n, nil
}

func optionalInt(doc Document, section, key string, def int, min int) (int, error) {
	s, ok := doc.Get(section, key)
	if !ok || strings.TrimSpace(s) == "" {
		return def, nil
	}
	n, convErr := strconv.Atoi(s)
	if convErr != nil || n < min {
		return 0, &rterr.ConfigError{Key: section + "." + key, Reason: fmt.Sprintf("must be an integer >= %d", min)}
	}
	return n, nil
}

func requireBool(doc Document, section, key string) (bool, error) {
	s, err := requireString(doc, section, key)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, &rterr.ConfigError{Key: section + "." + key, Reason: "must be a boolean"}
	}
}

func optionalFloat(doc Document, section, key string, def float64) (float64, error) {
	s, ok := doc.Get(section, key)
	if !ok || strings.TrimSpace(s) == "" {
		return def, nil
	}
	f, convErr := strconv.ParseFloat(s, 64)
	if convErr != nil || f < 0 {
		return 0, &rterr.ConfigError{Key: section + "." + key, Reason: "must be a non-negative float"}
	}
	return f, nil
}

func (k *Keys) populateAndValidate(boardConfigKey, boardBindingKey string) error {
	exchangeType, err := requireString(k.Doc, "GENERAL", "exchange_type")
	if err != nil {
		return err
	}
	if exchangeType != "TEST" && exchangeType != "REAL" {
		return &rterr.ConfigError{Key: "GENERAL.exchange_type", Reason: "must be TEST or REAL"}
	}
	k.ExchangeType = exchangeType

	boardPath, err := requireString(k.Doc, "GENERAL", boardConfigKey)
	if err != nil {
		return err
	}
	k.BoardConfigPath = boardPath

	bindingID, err := requireString(k.Doc, "GENERAL", boardBindingKey)
	if err != nil {
		return err
	}
	k.BoardBindingID = bindingID

	capacity, err := requireInt(k.Doc, "GENERAL", "iinuji_logs_buffer_capacity", 1)
	if err != nil {
		return err
	}
	k.LogsBufferCapacity = capacity

	workers, err := requireInt(k.Doc, "DATA_LOADER", "dataloader_workers", 0)
	if err != nil {
		return err
	}
	k.DataLoaderWorkers = workers

	forceRebuild, err := requireBool(k.Doc, "DATA_LOADER", "dataloader_force_rebuild_cache")
	if err != nil {
		return err
	}
	k.DataLoaderForceRebuildCache = forceRebuild

	warnBatches, err := optionalInt(k.Doc, "DATA_LOADER", "dataloader_range_warn_batches", defaultRangeWarnBatches, 1)
	if err != nil {
		return err
	}
	k.DataLoaderRangeWarnBatches = warnBatches

	bootstrapDeltas, err := optionalInt(k.Doc, "DATA_LOADER", "dataloader_csv_bootstrap_deltas", 2, 2)
	if err != nil {
		return err
	}
	k.DataLoaderCSVBootstrapDeltas = bootstrapDeltas

	tolA, err := optionalFloat(k.Doc, "DATA_LOADER", "price_tolerance", 0)
	if err != nil {
		return err
	}
	k.ToleranceA = tolA
	tolB, err := optionalFloat(k.Doc, "DATA_LOADER", "volume_tolerance", 0)
	if err != nil {
		return err
	}
	k.ToleranceB = tolB

	return k.validateSchema()
}

// validateSchema projects the validated fields to a JSON document and
// validates it against the embedded config schema, mirroring the
// teacher's schema.Validate(schema.Config, ...) idiom.
func (k *Keys) validateSchema() error {
	projection := map[string]any{
		"GENERAL": map[string]any{
			"exchange_type":                k.ExchangeType,
			"iinuji_logs_buffer_capacity": k.LogsBufferCapacity,
		},
		"DATA_LOADER": map[string]any{
			"dataloader_workers":              k.DataLoaderWorkers,
			"dataloader_force_rebuild_cache":  k.DataLoaderForceRebuildCache,
			"dataloader_range_warn_batches":   k.DataLoaderRangeWarnBatches,
			"dataloader_csv_bootstrap_deltas": k.DataLoaderCSVBootstrapDeltas,
		},
	}

	raw, err := json.Marshal(projection)
	if err != nil {
		return &rterr.ConfigError{Reason: "cannot marshal config for validation: " + err.Error()}
	}

	sch, err := jsonschema.Compile("embedFS://schemas/config.schema.json")
	if err != nil {
		return &rterr.ConfigError{Reason: "cannot compile config schema: " + err.Error()}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return &rterr.ConfigError{Reason: "cannot unmarshal config projection: " + err.Error()}
	}
	if err := sch.Validate(v); err != nil {
		return &rterr.ConfigError{Reason: "schema validation failed: " + err.Error()}
	}
	return nil
}

// AssertNoExchangeTypeChange enforces "Mid-run changes to exchange_type
// are forbidden" by comparing against the value captured at Load time.
func (k *Keys) AssertNoExchangeTypeChange(reloaded *Keys) error {
	if k.ExchangeType != reloaded.ExchangeType {
		return &rterr.ConfigError{Key: "GENERAL.exchange_type", Reason: "mid-run change forbidden"}
	}
	return nil
}
