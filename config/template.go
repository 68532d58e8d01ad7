// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"

	"github.com/z5labs/h3bridge/internal/try"
)

// TemplateOption configures a [TemplateRenderer].
type TemplateOption func(*TemplateRenderer)

// TemplateFunc registers f for use in the template under name.
// It replaces any builtin function with the same name.
func TemplateFunc(name string, f any) TemplateOption {
	return func(tr *TemplateRenderer) {
		tr.funcs[name] = f
	}
}

// TemplateDelims sets the action delimiters. An empty delimiter
// stands for the corresponding default: {{ or }}.
func TemplateDelims(left, right string) TemplateOption {
	return func(tr *TemplateRenderer) {
		tr.left = left
		tr.right = right
	}
}

// TemplateRenderer is an [io.Reader] which renders the text/template read
// from another [io.Reader]. The template is rendered once on first read.
//
// Templates can use the builtin functions env, which returns the value of
// an environment variable, and default, which returns its first argument
// when the second is empty.
//
//	server:
//	  addr: "{{ env "H3BRIDGE_ADDR" | default ":8443" }}"
type TemplateRenderer struct {
	r io.Reader

	left  string
	right string
	funcs template.FuncMap

	renderOnce sync.Once
	renderErr  error
	buf        bytes.Buffer
}

// RenderTemplate returns a TemplateRenderer for the template in r.
// If r is also an [io.Closer], it is closed once read.
func RenderTemplate(r io.Reader, opts ...TemplateOption) *TemplateRenderer {
	tr := &TemplateRenderer{
		r: r,
		funcs: template.FuncMap{
			"env": os.Getenv,
			"default": func(def, v string) string {
				if v == "" {
					return def
				}
				return v
			},
		},
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// TemplateParseError occurs when the config template fails to be parsed.
type TemplateParseError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TemplateParseError) Error() string {
	return fmt.Sprintf("failed to parse config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TemplateParseError) Unwrap() error {
	return e.Cause
}

// TemplateExecError occurs when a template fails to execute, most
// likely because one of its functions returned an error or panicked.
type TemplateExecError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TemplateExecError) Error() string {
	return fmt.Sprintf("failed to exec config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TemplateExecError) Unwrap() error {
	return e.Cause
}

// Name returns the name of the template source or an empty string
// if it has none.
func (tr *TemplateRenderer) Name() string {
	if named, ok := tr.r.(interface{ Name() string }); ok {
		return named.Name()
	}
	return ""
}

// Read implements the [io.Reader] interface.
func (tr *TemplateRenderer) Read(b []byte) (int, error) {
	tr.renderOnce.Do(func() {
		tr.renderErr = tr.render()
	})
	if tr.renderErr != nil {
		return 0, tr.renderErr
	}
	return tr.buf.Read(b)
}

func (tr *TemplateRenderer) render() (err error) {
	defer try.Close(&err, tr.r)

	src, err := io.ReadAll(tr.r)
	if err != nil {
		return err
	}

	tmpl, err := template.New("config").
		Delims(tr.left, tr.right).
		Funcs(tr.funcs).
		Parse(string(src))
	if err != nil {
		return TemplateParseError{Cause: err}
	}

	err = tmpl.Execute(&tr.buf, nil)
	if err != nil {
		return TemplateExecError{Cause: err}
	}
	return nil
}
