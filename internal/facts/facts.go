// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package facts

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	iu "github.com/choria-io/fetch-resources/internal/util"
	"github.com/choria-io/fetch-resources/metrics"
	"github.com/choria-io/fetch-resources/model"
)

// ConfigDirectories are searched in order for facts.json and facts.yaml, later files override earlier ones
var ConfigDirectories = []string{
	"/etc/choria/fetch-resources",
	filepath.Join(xdg.ConfigHome, "choria", "fetch-resources"),
}

// StandardFacts gathers host facts and merges in facts from files found in ConfigDirectories
func StandardFacts(ctx context.Context, log model.Logger) map[string]any {
	timer := prometheus.NewTimer(metrics.FactGatherTime.WithLabelValues())
	defer timer.ObserveDuration()

	sf := standardFacts(ctx)

	for _, dir := range ConfigDirectories {
		for _, file := range []string{filepath.Join(dir, "facts.json"), filepath.Join(dir, "facts.yaml")} {
			if !iu.FileExists(file) {
				continue
			}

			log.Debug("Reading facts", "file", file)
			f, err := readFactsFile(file)
			if err != nil {
				log.Error("Failed to read facts file", "file", file, "error", err)
				continue
			}

			sf = iu.DeepMergeMap(sf, f)
		}
	}

	return sf
}

func readFactsFile(file string) (map[string]any, error) {
	fb, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var f map[string]any
	if filepath.Ext(file) == ".json" {
		err = json.Unmarshal(fb, &f)
	} else {
		err = yaml.Unmarshal(fb, &f)
	}
	if err != nil {
		return nil, err
	}

	return f, nil
}

// round trips through JSON so templates see the same keys as lookup()
func asMap(v any) any {
	j, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}

	var res any
	err = json.Unmarshal(j, &res)
	if err != nil {
		return map[string]any{}
	}

	return res
}

func standardFacts(ctx context.Context) map[string]any {
	hostFacts := map[string]any{
		"info": map[string]any{},
	}
	cpuFacts := map[string]any{
		"count": 0,
	}
	memoryFacts := map[string]any{
		"virtual": map[string]any{},
	}

	hostInfo, err := host.InfoWithContext(ctx)
	if err == nil {
		hostFacts["info"] = asMap(hostInfo)
	}

	count, err := cpu.CountsWithContext(ctx, true)
	if err == nil {
		cpuFacts["count"] = count
	}

	virtual, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		memoryFacts["virtual"] = asMap(virtual)
	}

	return map[string]any{
		"host":   hostFacts,
		"cpu":    cpuFacts,
		"memory": memoryFacts,
	}
}

// FreeSpace reports the bytes available on the file system holding dir, dir does not need to exist yet
func FreeSpace(ctx context.Context, dir string) (uint64, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}

	for {
		_, err = os.Stat(dir)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return 0, err
		}
		dir = parent
	}

	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return 0, err
	}

	return usage.Free, nil
}
