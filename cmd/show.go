// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/choria-io/fisk"
	"github.com/goccy/go-yaml"

	"github.com/choria-io/fetch-resources/internal/facts"
	"github.com/choria-io/fetch-resources/model"
)

type showCommand struct {
	cfg     string
	root    string
	mirror  string
	json    bool
	readEnv bool
}

type resolvedConfig struct {
	Root      string                     `json:"root" yaml:"root"`
	Resources []model.ResourceDescriptor `json:"resources" yaml:"resources"`
}

func registerShowCommand(app *fisk.Application) {
	cmd := &showCommand{}

	show := app.Command("show", "Show the resolved resources").Alias("render").Action(cmd.showAction)
	show.Flag("config", "Resources configuration file").Short('c').PlaceHolder("FILE").StringVar(&cmd.cfg)
	show.Flag("root", "Directory to store resources in").PlaceHolder("DIR").StringVar(&cmd.root)
	show.Flag("mirror", "Base URL resources are downloaded from").PlaceHolder("URL").StringVar(&cmd.mirror)
	show.Flag("json", "Output in JSON format").UnNegatableBoolVar(&cmd.json)
	show.Flag("dotenv", "Read a .env file for template environment data").UnNegatableBoolVar(&cmd.readEnv)
}

func (c *showCommand) showAction(_ *fisk.ParseContext) error {
	cfg, err := loadConfig(c.cfg, c.root, c.mirror)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	environ, err := dotEnvData(c.readEnv, log)
	if err != nil {
		return err
	}

	root, resources, err := cfg.Resolve(environ, facts.StandardFacts(ctx, log))
	if err != nil {
		return err
	}

	for _, r := range resources {
		err = r.Validate()
		if err != nil {
			return err
		}
	}

	res := resolvedConfig{Root: root, Resources: resources}

	var out []byte
	if c.json {
		out, err = json.MarshalIndent(res, "", "  ")
	} else {
		out, err = yaml.Marshal(res)
	}
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}
