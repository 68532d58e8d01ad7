// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slogfield

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logJSON(t *testing.T, attrs ...any) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	log.Info("test", attrs...)

	var record map[string]any
	err := json.Unmarshal(buf.Bytes(), &record)
	require.NoError(t, err)
	return record
}

func TestJsonHandler(t *testing.T) {
	testCases := []struct {
		Name  string
		Attr  slog.Attr
		Key   string
		Value any
	}{
		{
			Name:  "sampled flag",
			Attr:  Bool("sampled", true),
			Key:   "sampled",
			Value: true,
		},
		{
			Name:  "drain timeout",
			Attr:  Duration("drain_timeout", 5*time.Second),
			Key:   "drain_timeout",
			Value: float64(5 * time.Second),
		},
		{
			Name:  "error",
			Attr:  Error(errors.New("stream reset")),
			Key:   "error",
			Value: "stream reset",
		},
		{
			Name:  "inflight handshakes",
			Attr:  Int("inflight_handshakes", 3),
			Key:   "inflight_handshakes",
			Value: float64(3),
		},
		{
			Name:  "body limit",
			Attr:  Int64("limit", 10<<20),
			Key:   "limit",
			Value: float64(10 << 20),
		},
		{
			Name:  "remote address",
			Attr:  RemoteAddr(&net.UDPAddr{IP: net.IPv4(192, 0, 2, 10), Port: 51234}),
			Key:   "remote_addr",
			Value: "192.0.2.10:51234",
		},
		{
			Name:  "nil remote address",
			Attr:  RemoteAddr(nil),
			Key:   "remote_addr",
			Value: "",
		},
		{
			Name:  "listen address",
			Attr:  ListenAddr(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8443}),
			Key:   "addr",
			Value: "127.0.0.1:8443",
		},
		{
			Name:  "method",
			Attr:  Method("POST"),
			Key:   "method",
			Value: "POST",
		},
		{
			Name:  "path",
			Attr:  Path("/echo"),
			Key:   "path",
			Value: "/echo",
		},
		{
			Name:  "stage",
			Attr:  Stage("write_body"),
			Key:   "stage",
			Value: "write_body",
		},
		{
			Name:  "request id",
			Attr:  RequestID("req-1"),
			Key:   "request_id",
			Value: "req-1",
		},
		{
			Name:  "missing request id",
			Attr:  RequestID(""),
			Key:   "request_id",
			Value: "",
		},
	}

	for _, testCase := range testCases {
		t.Run("will log the "+testCase.Name, func(t *testing.T) {
			record := logJSON(t, testCase.Attr)
			assert.Equal(t, testCase.Value, record[testCase.Key])
		})
	}
}
