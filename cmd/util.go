// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/choria-io/fetch-resources/config"
	"github.com/choria-io/fetch-resources/internal/logging"
	iu "github.com/choria-io/fetch-resources/internal/util"
	"github.com/choria-io/fetch-resources/model"
)

const passwordEnv = "FETCH_RESOURCES_PASSWORD"

// loadConfig loads the configuration and applies the overrides shared by all commands
func loadConfig(file string, root string, mirror string) (*config.Config, error) {
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}

	if root != "" {
		cfg.Root = root
	}

	if mirror != "" {
		cfg.Data["mirror"] = strings.TrimSuffix(mirror, "/")
	}

	switch {
	case debug:
		cfg.LogLevel = "debug"
	case info:
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// dotEnvData is the process environment, optionally extended by a .env file in the working directory
func dotEnvData(readEnv bool, log model.Logger) (map[string]string, error) {
	res := make(map[string]string)

	for _, line := range os.Environ() {
		k, v, ok := strings.Cut(line, "=")
		if ok {
			res[k] = v
		}
	}

	if !readEnv {
		return res, nil
	}

	file, err := filepath.Abs(".env")
	if err != nil {
		return nil, err
	}

	if !iu.FileExists(file) {
		return res, nil
	}

	log.With("file", file).Info("Reading environment variables from .env file")

	env, err := godotenv.Read(file)
	if err != nil {
		return nil, err
	}

	for k, v := range env {
		res[k] = v
	}

	return res, nil
}

// promptCredentials asks for the username, unless given, and the password unless set in the environment
func promptCredentials(username string, in io.Reader, out io.Writer) (*model.Credentials, error) {
	fd := -1
	if f, ok := in.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}

	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := readLine(in)
		if err != nil {
			return nil, fmt.Errorf("could not read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	password, ok := os.LookupEnv(passwordEnv)
	if ok {
		return &model.Credentials{Username: username, Password: password}, nil
	}

	fmt.Fprint(out, "Password: ")
	if fd >= 0 {
		pass, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return nil, fmt.Errorf("could not read password: %w", err)
		}
		password = string(pass)
	} else {
		line, err := readLine(in)
		if err != nil {
			return nil, fmt.Errorf("could not read password: %w", err)
		}
		password = strings.TrimRight(line, "\r")
	}

	return &model.Credentials{Username: username, Password: password}, nil
}

// readLine reads up to and excluding the next newline one byte at a time, leaving the rest of r for term.ReadPassword
func readLine(r io.Reader) (string, error) {
	var line []byte
	b := make([]byte, 1)

	for {
		n, err := r.Read(b)
		if n == 1 {
			if b[0] == '\n' {
				return string(line), nil
			}
			line = append(line, b[0])
		}

		if err == io.EOF {
			if len(line) == 0 {
				return "", io.ErrUnexpectedEOF
			}
			return string(line), nil
		}
		if err != nil {
			return "", err
		}
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func newOutputLogger() model.Logger {
	var level slog.Level

	switch {
	case debug:
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}

	return logging.NewOutputLogger(os.Stdout, level)
}

func newLogger(level string) model.Logger {
	switch {
	case debug:
		level = "debug"
	case info:
		level = "info"
	}

	return logging.NewTextLogger(os.Stderr, logLevel(level))
}
