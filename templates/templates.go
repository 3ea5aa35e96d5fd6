// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package templates

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/tidwall/gjson"
)

var placeholderRe = regexp.MustCompile(`{{\s*(.*?)\s*}}`)

// Env represents the template execution environment available to resource definitions
type Env struct {
	Root    string            `json:"root" yaml:"root"`
	Data    map[string]any    `json:"data" yaml:"data"`
	Environ map[string]string `json:"environ" yaml:"environ"`
	Facts   map[string]any    `json:"facts" yaml:"facts"`

	envJSON json.RawMessage
	mu      sync.Mutex
}

func (e *Env) lookup(params ...any) (any, error) {
	if len(params) == 0 || len(params) > 2 {
		return nil, fmt.Errorf("lookup requires 1 or 2 arguments")
	}

	key, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("lookup requires a string argument")
	}

	var defaultValue any = ""
	if len(params) == 2 {
		defaultValue = params[1]
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.envJSON == nil {
		j, err := json.Marshal(e)
		if err != nil {
			return "", err
		}
		e.envJSON = j
	}

	res := gjson.GetBytes(e.envJSON, key)
	if !res.Exists() {
		return defaultValue, nil
	}

	if res.Type == gjson.Number {
		if strings.Contains(res.Raw, ".") {
			return res.Float(), nil
		}

		return res.Int(), nil
	}

	return res.Value(), nil
}

// ResolveTemplateString resolves {{ expression }} placeholders in a template string and returns the result as a string
func ResolveTemplateString(template string, env *Env) (string, error) {
	if template == "" {
		return "", nil
	}

	matches := placeholderRe.FindAllStringSubmatchIndex(template, -1)
	if matches == nil {
		return template, nil
	}

	var result strings.Builder
	lastIndex := 0

	for _, loc := range matches {
		fullStart, fullEnd := loc[0], loc[1]
		innerStart, innerEnd := loc[2], loc[3]

		value, err := exprParse(template[innerStart:innerEnd], env)
		if err != nil {
			return "", err
		}

		result.WriteString(template[lastIndex:fullStart])
		if value != nil {
			result.WriteString(fmt.Sprint(value))
		}

		lastIndex = fullEnd
	}

	result.WriteString(template[lastIndex:])

	return result.String(), nil
}

func exprParse(query string, env *Env) (any, error) {
	program, err := expr.Compile(query, expr.Env(env), expr.Function("lookup", env.lookup))
	if err != nil {
		return "", fmt.Errorf("expr compile error for '%s': %w", query, err)
	}

	return expr.Run(program, env)
}
