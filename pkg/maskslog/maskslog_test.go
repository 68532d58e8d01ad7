// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package maskslog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestHandler_Handle(t *testing.T) {
	t.Run("will not mask attrs", func(t *testing.T) {
		t.Run("if no masks are registered", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewHandler(slog.NewJSONHandler(&buf, nil)))

			log.Info("hello", slog.String("remote_addr", "192.0.2.10:443"))

			record := decode(t, &buf)
			assert.Equal(t, "hello", record["msg"])
			assert.Equal(t, "192.0.2.10:443", record["remote_addr"])
		})

		t.Run("if the key does not match a mask", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewHandler(
				slog.NewJSONHandler(&buf, nil),
				Attr("secret", Redact),
			))

			log.Info("hello", slog.String("remote_addr", "192.0.2.10:443"))

			record := decode(t, &buf)
			assert.Equal(t, "192.0.2.10:443", record["remote_addr"])
		})
	})

	t.Run("will mask attrs", func(t *testing.T) {
		t.Run("if the key matches a mask", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewHandler(
				slog.NewJSONHandler(&buf, nil),
				Attr("secret", Redact),
			))

			log.Info("hello", slog.String("secret", "hunter2"), slog.Int("n", 1))

			record := decode(t, &buf)
			assert.Equal(t, "****", record["secret"])
			assert.Equal(t, float64(1), record["n"])
		})

		t.Run("if the attr is nested in a group", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewHandler(
				slog.NewJSONHandler(&buf, nil),
				Attr("secret", Redact),
			))

			log.Info("hello", slog.Group("req", slog.String("secret", "hunter2")))

			record := decode(t, &buf)
			req, ok := record["req"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "****", req["secret"])
		})
	})
}

func TestHandler_WithAttrs(t *testing.T) {
	t.Run("will mask attrs added to the logger", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(NewHandler(
			slog.NewJSONHandler(&buf, nil),
			Attr("remote_addr", TruncateIP),
		))

		log.With(slog.String("remote_addr", "192.0.2.10:443")).Info("hello")

		record := decode(t, &buf)
		assert.Equal(t, "192.0.2.0:443", record["remote_addr"])
	})

	t.Run("will keep masking after a group is opened", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(NewHandler(
			slog.NewJSONHandler(&buf, nil),
			Attr("secret", Redact),
		))

		log.WithGroup("req").Info("hello", slog.String("secret", "hunter2"))

		record := decode(t, &buf)
		req, ok := record["req"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "****", req["secret"])
	})
}

func TestTruncateIP(t *testing.T) {
	testCases := []struct {
		Name  string
		Value string
		Want  string
	}{
		{Name: "ipv4 with port", Value: "192.0.2.10:443", Want: "192.0.2.0:443"},
		{Name: "ipv4", Value: "198.51.100.7", Want: "198.51.100.0"},
		{Name: "ipv6 with port", Value: "[2001:db8:1:2::1]:443", Want: "[2001:db8:1::]:443"},
		{Name: "ipv4 mapped ipv6", Value: "[::ffff:192.0.2.10]:443", Want: "192.0.2.0:443"},
		{Name: "empty", Value: "", Want: ""},
		{Name: "not an address", Value: "example.com:443", Want: "****"},
	}

	for _, testCase := range testCases {
		t.Run("will truncate "+testCase.Name, func(t *testing.T) {
			a := TruncateIP(slog.String("addr", testCase.Value))

			assert.Equal(t, "addr", a.Key)
			assert.Equal(t, testCase.Want, a.Value.String())
		})
	}
}
