// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package activate produces the shell environment that exposes the toolset library and scripts
package activate

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	// DefaultLibrary is the library directory relative to the toolset home
	DefaultLibrary = "elfinpy"
	// DefaultScripts is the scripts directory relative to the toolset home
	DefaultScripts = "scripts"
)

// Paths are the directories to prepend to the search paths
type Paths struct {
	Library string
	Scripts string
}

// Variable is a single search path variable and the directory prepended to it
type Variable struct {
	Name string
	Dir  string
}

// NewPaths resolves library and scripts relative to home, empty values select the defaults
func NewPaths(home string, library string, scripts string) (*Paths, error) {
	if home == "" {
		home = "."
	}

	if library == "" {
		library = DefaultLibrary
	}

	if scripts == "" {
		scripts = DefaultScripts
	}

	var err error
	p := &Paths{}

	p.Library, err = absUnder(home, library)
	if err != nil {
		return nil, err
	}

	p.Scripts, err = absUnder(home, scripts)
	if err != nil {
		return nil, err
	}

	return p, nil
}

func absUnder(home string, dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(home, dir)
	}

	return filepath.Abs(dir)
}

// Variables lists the variables to modify in the order they should be exported
func (p *Paths) Variables() []Variable {
	return []Variable{
		{Name: "PYTHONPATH", Dir: p.Library},
		{Name: "PATH", Dir: p.Scripts},
	}
}

// Missing lists configured directories that do not exist
func (p *Paths) Missing() []string {
	var missing []string

	for _, v := range p.Variables() {
		stat, err := os.Stat(v.Dir)
		if err != nil || !stat.IsDir() {
			missing = append(missing, v.Dir)
		}
	}

	return missing
}

// Exports produces shell export statements that prepend the directories to the values current at evaluation time
func (p *Paths) Exports() []string {
	var lines []string

	for _, v := range p.Variables() {
		lines = append(lines, fmt.Sprintf(`export %s=%s"${%s:+:$%s}"`, v.Name, shellquote.Join(v.Dir), v.Name, v.Name))
	}

	return lines
}

// Resolve computes the new values given the current environment, directories already present are moved to the front
func (p *Paths) Resolve(environ map[string]string) map[string]string {
	res := make(map[string]string)

	for _, v := range p.Variables() {
		res[v.Name] = Prepend(environ[v.Name], v.Dir)
	}

	return res
}

// ResolvedExports is like Exports but with the values resolved against environ
func (p *Paths) ResolvedExports(environ map[string]string) []string {
	resolved := p.Resolve(environ)

	var lines []string
	for _, v := range p.Variables() {
		lines = append(lines, fmt.Sprintf("export %s=%s", v.Name, shellquote.Join(resolved[v.Name])))
	}

	return lines
}

// Prepend puts dir at the front of the list separated search path current
func Prepend(current string, dir string) string {
	parts := []string{dir}

	for _, p := range filepath.SplitList(current) {
		if p == "" || p == dir || slices.Contains(parts, p) {
			continue
		}
		parts = append(parts, p)
	}

	return strings.Join(parts, string(os.PathListSeparator))
}
