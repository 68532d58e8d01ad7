// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"strings"
)

// ErrEmptyKey is returned when setting a value without a key.
var ErrEmptyKey = errors.New("config: empty key")

// Map is an ordinary map[string]any which implements both the
// [Source] and [Store] interfaces.
type Map map[string]any

// Apply implements the [Source] interface. It recursively walks the
// underlying map to find key value pairs to set on the given store.
func (m Map) Apply(store Store) error {
	return walkMap(m, store, nil)
}

func walkMap(m map[string]any, store Store, path []string) error {
	for k, v := range m {
		key := append(path[:len(path):len(path)], k)

		switch x := v.(type) {
		case Map:
			err := walkMap(x, store, key)
			if err != nil {
				return err
			}
		case map[string]any:
			err := walkMap(x, store, key)
			if err != nil {
				return err
			}
		default:
			err := store.Set(key, x)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Set implements the [Store] interface. Intermediate trees are created
// as needed and replace any value previously stored at their key.
func (m Map) Set(key []string, v any) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	cur := m
	for _, name := range key[:len(key)-1] {
		next, ok := cur[name].(Map)
		if !ok {
			next = make(Map)
			cur[name] = next
		}
		cur = next
	}
	cur[key[len(key)-1]] = v
	return nil
}

// Key splits a dot separated key into the path expected by [Store.Set].
func Key(s string) []string {
	return strings.Split(s, ".")
}

func (m Map) plain() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if tree, ok := v.(Map); ok {
			out[k] = tree.plain()
			continue
		}
		out[k] = v
	}
	return out
}
