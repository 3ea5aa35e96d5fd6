// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/choria-io/fisk"
	"github.com/dustin/go-humanize"

	"github.com/choria-io/fetch-resources/extractor"
	"github.com/choria-io/fetch-resources/fetcher"
	"github.com/choria-io/fetch-resources/internal/facts"
	"github.com/choria-io/fetch-resources/metrics"
	"github.com/choria-io/fetch-resources/model"
	"github.com/choria-io/fetch-resources/orchestrator"
)

type fetchCommand struct {
	cfg         string
	root        string
	user        string
	mirror      string
	metricsFile string
	minFree     string
	timeout     time.Duration
	readEnv     bool
	report      bool
}

func registerFetchCommand(app *fisk.Application) {
	cmd := &fetchCommand{}

	fetch := app.Command("fetch", "Download and unpack all resources").Default().Action(cmd.fetchAction)
	fetch.Flag("config", "Resources configuration file").Short('c').PlaceHolder("FILE").StringVar(&cmd.cfg)
	fetch.Flag("root", "Directory to store resources in").PlaceHolder("DIR").StringVar(&cmd.root)
	fetch.Flag("user", "Username for resources that require authentication").Short('u').Envar("FETCH_RESOURCES_USER").PlaceHolder("USER").StringVar(&cmd.user)
	fetch.Flag("mirror", "Base URL resources are downloaded from").PlaceHolder("URL").StringVar(&cmd.mirror)
	fetch.Flag("timeout", "Timeout for every download").PlaceHolder("DURATION").DurationVar(&cmd.timeout)
	fetch.Flag("metrics-file", "Write Prometheus metrics to this file after the run").PlaceHolder("FILE").StringVar(&cmd.metricsFile)
	fetch.Flag("min-free", "Minimum free space required below the root, like 500MiB").PlaceHolder("SIZE").StringVar(&cmd.minFree)
	fetch.Flag("dotenv", "Read a .env file for template environment data").UnNegatableBoolVar(&cmd.readEnv)
	fetch.Flag("report", "Show a per resource report").UnNegatableBoolVar(&cmd.report)
}

func (c *fetchCommand) fetchAction(_ *fisk.ParseContext) error {
	cfg, err := loadConfig(c.cfg, c.root, c.mirror)
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		cfg.SetTimeout(c.timeout)
	}
	if c.metricsFile != "" {
		cfg.MetricsFile = c.metricsFile
	}
	if c.user != "" {
		cfg.Username = c.user
	}
	if c.minFree != "" {
		size, err := humanize.ParseBytes(c.minFree)
		if err != nil {
			return fmt.Errorf("invalid minimum free space: %w", err)
		}
		cfg.SetMinFreeSpace(size)
	}

	log := newLogger(cfg.LogLevel)
	out := newOutputLogger()

	environ, err := dotEnvData(c.readEnv, log)
	if err != nil {
		return err
	}

	metrics.RegisterMetrics()

	root, resources, err := cfg.Resolve(environ, facts.StandardFacts(ctx, log))
	if err != nil {
		return err
	}

	err = checkFreeSpace(root, cfg.MinFreeSpaceBytes(), log)
	if err != nil {
		return err
	}

	var creds *model.Credentials
	if cfg.RequiresAuth() {
		creds, err = promptCredentials(cfg.Username, os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
	}

	var opts []fetcher.Option
	if cfg.TimeoutDuration() > 0 {
		opts = append(opts, fetcher.WithTimeout(cfg.TimeoutDuration()))
	}

	f, err := fetcher.New(root, log, opts...)
	if err != nil {
		return err
	}

	orch := orchestrator.New(f, extractor.New(log), creds, log, out)
	summary := orch.Run(ctx, resources)

	err = metrics.WriteTextfile(cfg.MetricsFile, log)
	if err != nil {
		log.Error("Could not write metrics", "file", cfg.MetricsFile, "error", err)
	}

	if c.report {
		printReport(summary)
	}

	if !summary.AllSucceeded {
		os.Exit(1)
	}

	return nil
}

func checkFreeSpace(root string, required uint64, log model.Logger) error {
	if required == 0 {
		return nil
	}

	free, err := facts.FreeSpace(ctx, root)
	if err != nil {
		return fmt.Errorf("could not determine free space in %s: %w", root, err)
	}

	log.Debug("Free space below resources root", "root", root, "free", humanize.IBytes(free))

	if free < required {
		return fmt.Errorf("%w: %s has %s free but %s is required", model.ErrIO, root, humanize.IBytes(free), humanize.IBytes(required))
	}

	return nil
}

func printReport(summary *model.Summary) {
	fmt.Println()
	fmt.Println("Resource Fetch Summary")
	fmt.Println()
	fmt.Printf("     Run ID: %s\n", summary.RunID)
	fmt.Printf("   Run Time: %v\n", summary.Duration.Round(time.Millisecond))
	fmt.Printf("  Resources: %d\n", len(summary.Results))
	fmt.Printf("     Failed: %d\n", summary.Failed())
	fmt.Println()

	for _, res := range summary.Results {
		if res.Success {
			fmt.Printf("  %-20s ok      %v\n", res.Descriptor.Name, res.Duration.Round(time.Millisecond))
		} else {
			fmt.Printf("  %-20s %-7s %s\n", res.Descriptor.Name, res.Kind, res.Error)
		}
	}
}
