// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/choria-io/fisk"

	"github.com/choria-io/fetch-resources/activate"
)

type envCommand struct {
	home     string
	lib      string
	scripts  string
	resolved bool
}

func registerEnvCommand(app *fisk.Application) {
	cmd := &envCommand{}

	env := app.Command("env", "Shell exports that activate the toolset, use with eval").Alias("activate").Action(cmd.envAction)
	env.Flag("home", "Toolset installation directory").Envar("ELFIN_HOME").PlaceHolder("DIR").StringVar(&cmd.home)
	env.Flag("lib", "Library directory added to PYTHONPATH").Default(activate.DefaultLibrary).PlaceHolder("DIR").StringVar(&cmd.lib)
	env.Flag("scripts", "Scripts directory added to PATH").Default(activate.DefaultScripts).PlaceHolder("DIR").StringVar(&cmd.scripts)
	env.Flag("resolved", "Resolve against the current environment rather than at evaluation time").UnNegatableBoolVar(&cmd.resolved)
}

func (c *envCommand) envAction(_ *fisk.ParseContext) error {
	paths, err := activate.NewPaths(c.home, c.lib, c.scripts)
	if err != nil {
		return err
	}

	log := newLogger("")
	for _, dir := range paths.Missing() {
		log.Warn("Directory does not exist", "directory", dir)
	}

	var lines []string
	if c.resolved {
		environ, err := dotEnvData(false, log)
		if err != nil {
			return err
		}
		lines = paths.ResolvedExports(environ)
	} else {
		lines = paths.Exports()
	}

	for _, line := range lines {
		fmt.Fprintln(os.Stdout, line)
	}

	return nil
}
