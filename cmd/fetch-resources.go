// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/choria-io/fisk"
)

var (
	ctx     context.Context
	debug   bool
	info    bool
	Version = "development"
)

func main() {
	app := fisk.New("fetch-resources", "Downloads and unpacks the resources needed by the design toolset")
	app.Version(Version)
	app.Author("https://choria.io")

	app.Flag("debug", "Enable debug logging").UnNegatableBoolVar(&debug)
	app.Flag("info", "Enable info logging").UnNegatableBoolVar(&info)

	registerFetchCommand(app)
	registerEnvCommand(app)
	registerShowCommand(app)

	ctx, _ = signal.NotifyContext(context.Background(), os.Interrupt)

	app.MustParseWithUsage(os.Args[1:])
}
