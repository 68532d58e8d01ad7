// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readFunc func([]byte) (int, error)

func (f readFunc) Read(b []byte) (int, error) {
	return f(b)
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestRead(t *testing.T) {
	t.Run("will override earlier sources with later ones", func(t *testing.T) {
		m, err := Read(
			Map{"server": map[string]any{"addr": ":8443", "name": "a"}},
			Map{"server": Map{"addr": ":9443"}},
		)
		require.NoError(t, err)

		addr, ok := m.Lookup("server.addr")
		require.True(t, ok)
		assert.Equal(t, ":9443", addr)

		name, ok := m.Lookup("server.name")
		require.True(t, ok)
		assert.Equal(t, "a", name)
	})

	t.Run("will skip nil sources", func(t *testing.T) {
		m, err := Read(nil, Map{"a": 1})
		require.NoError(t, err)

		v, ok := m.Lookup("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
	})

	t.Run("will return a SourceError", func(t *testing.T) {
		t.Run("if a source fails to apply", func(t *testing.T) {
			applyErr := errors.New("failed to apply")
			_, err := Read(Map{}, SourceFunc(func(Store) error {
				return applyErr
			}))

			var serr SourceError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, 1, serr.Index)
			assert.ErrorIs(t, err, applyErr)
		})
	})
}

func TestManager_Lookup(t *testing.T) {
	m, err := Read(Map{"a": Map{"b": "c"}})
	require.NoError(t, err)

	t.Run("will not find a key", func(t *testing.T) {
		t.Run("if it does not exist", func(t *testing.T) {
			_, ok := m.Lookup("a.c")
			assert.False(t, ok)
		})

		t.Run("if a parent is a leaf value", func(t *testing.T) {
			_, ok := m.Lookup("a.b.c")
			assert.False(t, ok)
		})
	})
}

type testConfig struct {
	Server struct {
		Addr    string        `config:"addr"`
		Timeout time.Duration `config:"timeout"`
	} `config:"server"`
	Limiter struct {
		RPS   float64 `config:"rps"`
		Burst int     `config:"burst"`
	} `config:"limiter"`
	Debug    bool       `config:"debug"`
	LogLevel slog.Level `config:"log_level"`
}

func TestManager_Unmarshal(t *testing.T) {
	t.Run("will decode nested values into tagged fields", func(t *testing.T) {
		m, err := Read(FromYaml(strings.NewReader(`
server:
  addr: ":8443"
  timeout: 5s
limiter:
  rps: 2.5
  burst: 10
debug: true
log_level: WARN
`)))
		require.NoError(t, err)

		var cfg testConfig
		require.NoError(t, m.Unmarshal(&cfg))
		assert.Equal(t, ":8443", cfg.Server.Addr)
		assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
		assert.Equal(t, 2.5, cfg.Limiter.RPS)
		assert.Equal(t, 10, cfg.Limiter.Burst)
		assert.True(t, cfg.Debug)
		assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	})

	t.Run("will weakly convert strings from the environment", func(t *testing.T) {
		src := Env{
			prefix: "APP",
			environ: func() []string {
				return []string{
					"APP_SERVER__TIMEOUT=250ms",
					"APP_LIMITER__BURST=3",
					"APP_DEBUG=true",
				}
			},
		}
		m, err := Read(src)
		require.NoError(t, err)

		var cfg testConfig
		require.NoError(t, m.Unmarshal(&cfg))
		assert.Equal(t, 250*time.Millisecond, cfg.Server.Timeout)
		assert.Equal(t, 3, cfg.Limiter.Burst)
		assert.True(t, cfg.Debug)
	})

	t.Run("will decode integer durations as nanoseconds", func(t *testing.T) {
		m, err := Read(Map{"server": Map{"timeout": 1000}})
		require.NoError(t, err)

		var cfg testConfig
		require.NoError(t, m.Unmarshal(&cfg))
		assert.Equal(t, time.Microsecond, cfg.Server.Timeout)
	})

	t.Run("will return a type coercion error", func(t *testing.T) {
		t.Run("if a duration is malformed", func(t *testing.T) {
			m, err := Read(Map{"server": Map{"timeout": "soon"}})
			require.NoError(t, err)

			var cfg testConfig
			err = m.Unmarshal(&cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to coerce value")
		})

		t.Run("if a text unmarshaler rejects its value", func(t *testing.T) {
			m, err := Read(Map{"log_level": "LOUD"})
			require.NoError(t, err)

			var cfg testConfig
			err = m.Unmarshal(&cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to coerce value")
		})
	})
}

func TestMap_Set(t *testing.T) {
	t.Run("will replace a leaf with a tree", func(t *testing.T) {
		m := Map{"a": "leaf"}
		require.NoError(t, m.Set(Key("a.b"), 1))
		assert.Equal(t, Map{"a": Map{"b": 1}}, m)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the key is empty", func(t *testing.T) {
			err := Map{}.Set(nil, 1)
			assert.ErrorIs(t, err, ErrEmptyKey)
		})
	})
}

func TestEnv_Apply(t *testing.T) {
	t.Run("will only apply prefixed variables", func(t *testing.T) {
		src := Env{
			prefix: "H3BRIDGE",
			environ: func() []string {
				return []string{
					"H3BRIDGE_HTTP__MAX_BODY=1024",
					"H3BRIDGE_=ignored",
					"HOME=/root",
					"malformed",
				}
			},
		}

		store := make(Map)
		require.NoError(t, src.Apply(store))
		assert.Equal(t, Map{"http": Map{"max_body": "1024"}}, store)
	})

	t.Run("will apply every variable if there is no prefix", func(t *testing.T) {
		src := Env{
			environ: func() []string {
				return []string{"HOME=/root"}
			},
		}

		store := make(Map)
		require.NoError(t, src.Apply(store))
		assert.Equal(t, Map{"home": "/root"}, store)
	})
}

func TestYaml_Apply(t *testing.T) {
	t.Run("will close the reader", func(t *testing.T) {
		r := &closeTracker{Reader: strings.NewReader("a: 1")}
		require.NoError(t, FromYaml(r).Apply(make(Map)))
		assert.True(t, r.closed)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the reader fails", func(t *testing.T) {
			readErr := errors.New("failed to read")
			err := FromYaml(readFunc(func([]byte) (int, error) {
				return 0, readErr
			})).Apply(make(Map))
			assert.ErrorIs(t, err, readErr)
		})

		t.Run("if the yaml is invalid", func(t *testing.T) {
			err := FromYaml(strings.NewReader("a: [")).Apply(make(Map))

			var yerr InvalidYamlError
			require.ErrorAs(t, err, &yerr)
			assert.NotEmpty(t, yerr.Error())
		})

		t.Run("if a document is not a mapping", func(t *testing.T) {
			err := FromYaml(strings.NewReader("http:\n  addr: :8443\n---\n- :9443\n")).Apply(make(Map))

			var yerr InvalidYamlError
			require.ErrorAs(t, err, &yerr)
			assert.ErrorIs(t, err, ErrNotMapping)
			assert.Equal(t, 1, yerr.Document)
		})

		t.Run("with the name of the config file", func(t *testing.T) {
			fsys := fstest.MapFS{
				"override.yaml": &fstest.MapFile{Data: []byte("listen")},
			}

			err := FromYaml(RenderTemplate(NewFileReader(fsys, "override.yaml"))).Apply(make(Map))

			var yerr InvalidYamlError
			require.ErrorAs(t, err, &yerr)
			assert.ErrorIs(t, err, ErrNotMapping)
			assert.Equal(t, "override.yaml", yerr.Name)
			assert.Contains(t, yerr.Error(), "override.yaml")
		})
	})

	t.Run("will apply every document in order", func(t *testing.T) {
		m, err := Read(FromYaml(strings.NewReader(`
http:
  addr: ":8443"
  max_conns: 16
---
http:
  addr: ":9443"
`)))
		require.NoError(t, err)

		var cfg struct {
			HTTP struct {
				Addr     string `config:"addr"`
				MaxConns int    `config:"max_conns"`
			} `config:"http"`
		}
		require.NoError(t, m.Unmarshal(&cfg))
		assert.Equal(t, ":9443", cfg.HTTP.Addr)
		assert.Equal(t, 16, cfg.HTTP.MaxConns)
	})

	t.Run("will skip empty documents", func(t *testing.T) {
		t.Run("if the stream is empty", func(t *testing.T) {
			store := make(Map)
			require.NoError(t, FromYaml(strings.NewReader("")).Apply(store))
			assert.Empty(t, store)
		})

		t.Run("if a document is null", func(t *testing.T) {
			store := make(Map)
			require.NoError(t, FromYaml(strings.NewReader("---\n~\n---\na: 1\n")).Apply(store))
			assert.Equal(t, Map{"a": 1}, store)
		})
	})
}

func TestFileReader(t *testing.T) {
	fsys := fstest.MapFS{
		"config.yaml": &fstest.MapFile{Data: []byte("a: 1")},
	}

	t.Run("will read the file on first read", func(t *testing.T) {
		r := NewFileReader(fsys, "config.yaml")
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "a: 1", string(b))
		assert.NoError(t, r.Close())
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the file does not exist", func(t *testing.T) {
			r := NewFileReader(fsys, "missing.yaml")
			_, err := io.ReadAll(r)
			assert.ErrorIs(t, err, fs.ErrNotExist)
		})
	})

	t.Run("will not return an error", func(t *testing.T) {
		t.Run("if Close is called before the file has been opened", func(t *testing.T) {
			r := NewFileReader(fsys, "config.yaml")
			assert.NoError(t, r.Close())
		})
	})
}

func TestTemplateRenderer_Read(t *testing.T) {
	t.Run("will render environment variables", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_ADDR", ":9443")

		tr := RenderTemplate(strings.NewReader(`addr: {{ env "CONFIG_TEST_ADDR" }}
name: {{ env "CONFIG_TEST_UNSET" | default "h3bridge" }}`))
		b, err := io.ReadAll(tr)
		require.NoError(t, err)
		assert.Equal(t, "addr: :9443\nname: h3bridge", string(b))
	})

	t.Run("will use custom delimiters and functions", func(t *testing.T) {
		tr := RenderTemplate(
			strings.NewReader(`a: <% answer %>`),
			TemplateDelims("<%", "%>"),
			TemplateFunc("answer", func() int { return 42 }),
		)
		b, err := io.ReadAll(tr)
		require.NoError(t, err)
		assert.Equal(t, "a: 42", string(b))
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the underlying io.Reader fails", func(t *testing.T) {
			readErr := errors.New("failed to read")
			tr := RenderTemplate(readFunc(func([]byte) (int, error) {
				return 0, readErr
			}))
			_, err := io.ReadAll(tr)
			assert.ErrorIs(t, err, readErr)
		})

		t.Run("if the template is invalid", func(t *testing.T) {
			_, err := io.ReadAll(RenderTemplate(strings.NewReader(`{{ hello`)))

			var perr TemplateParseError
			require.ErrorAs(t, err, &perr)
			assert.NotEmpty(t, perr.Error())
		})

		t.Run("if the template fails to execute", func(t *testing.T) {
			tr := RenderTemplate(
				strings.NewReader(`{{ hello }}`),
				TemplateFunc("hello", func() (string, error) {
					return "", errors.New("no greeting")
				}),
			)
			_, err := io.ReadAll(tr)

			var eerr TemplateExecError
			require.ErrorAs(t, err, &eerr)
		})
	})
}
