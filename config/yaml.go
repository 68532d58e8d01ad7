// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/z5labs/h3bridge/internal/try"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when a YAML document holds something other
// than a mapping at its top level, e.g. a list or a bare scalar.
var ErrNotMapping = errors.New("config: yaml document is not a mapping")

// Yaml is a Source backed by a YAML stream. A stream may hold several
// documents, which are applied in order so later documents override
// earlier ones. Empty and null documents are skipped.
type Yaml struct {
	r io.Reader
}

// FromYaml returns a Yaml source reading from r.
// If r is also an [io.Closer], it is closed once read.
func FromYaml(r io.Reader) Yaml {
	return Yaml{r: r}
}

// InvalidYamlError occurs when a document in the stream can not be
// parsed or is not a mapping.
type InvalidYamlError struct {
	// Name is the name of the underlying reader, e.g. the config file
	// path, or empty if the reader has no name.
	Name string

	// Document is the zero based index of the failing document.
	Document int

	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidYamlError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid yaml in document %d: %s", e.Document, e.Cause)
	}
	return fmt.Sprintf("invalid yaml in %s document %d: %s", e.Name, e.Document, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidYamlError) Unwrap() error {
	return e.Cause
}

// Apply implements the [Source] interface.
func (src Yaml) Apply(store Store) (err error) {
	defer try.Close(&err, src.r)

	// the decoder flattens read errors into strings so the stream
	// is read up front
	b, err := io.ReadAll(src.r)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	for doc := 0; ; doc++ {
		var n yaml.Node
		err = dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return src.invalid(doc, err)
		}

		m, err := decodeMapping(&n)
		if err != nil {
			return src.invalid(doc, err)
		}

		err = Map(m).Apply(store)
		if err != nil {
			return err
		}
	}
}

func (src Yaml) invalid(doc int, cause error) InvalidYamlError {
	e := InvalidYamlError{Document: doc, Cause: cause}
	if named, ok := src.r.(interface{ Name() string }); ok {
		e.Name = named.Name()
	}
	return e
}

func decodeMapping(n *yaml.Node) (map[string]any, error) {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, nil
		}
		n = n.Content[0]
	}

	switch {
	case n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null":
		return nil, nil
	case n.Kind != yaml.MappingNode:
		return nil, fmt.Errorf("line %d: %w", n.Line, ErrNotMapping)
	}

	var m map[string]any
	err := n.Decode(&m)
	if err != nil {
		return nil, err
	}
	return m, nil
}
