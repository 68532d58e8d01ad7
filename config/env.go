// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"
)

// Env represents a Source where its underlying values
// are extracted from environment variables.
//
// Only variables starting with the prefix followed by an underscore
// are applied. The remainder of the name is lower cased and split
// on double underscores, so H3BRIDGE_HTTP__MAX_BODY with the prefix
// H3BRIDGE sets the key http.max_body.
type Env struct {
	prefix  string
	environ func() []string
}

// FromEnv returns a Source which will apply its config
// from the environment variables available to the
// current process.
func FromEnv(prefix string) Env {
	return Env{
		prefix:  prefix,
		environ: os.Environ,
	}
}

// Apply implements the [Source] interface.
func (src Env) Apply(store Store) error {
	for _, pair := range src.environ() {
		name, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		key, ok := src.key(name)
		if !ok {
			continue
		}

		err := store.Set(key, v)
		if err != nil {
			return err
		}
	}
	return nil
}

func (src Env) key(name string) ([]string, bool) {
	if src.prefix != "" {
		rest, ok := strings.CutPrefix(name, src.prefix+"_")
		if !ok {
			return nil, false
		}
		name = rest
	}
	if name == "" {
		return nil, false
	}
	return strings.Split(strings.ToLower(name), "__"), true
}
