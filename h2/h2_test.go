// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h2

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/z5labs/h3bridge/internal/httpapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func selfSigned(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, pool
}

func TestServer_Run(t *testing.T) {
	t.Run("will serve HTTP/2 and advertise HTTP/3", func(t *testing.T) {
		cert, pool := selfSigned(t)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		srv := NewServer(
			"",
			&tls.Config{Certificates: []tls.Certificate{cert}},
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, r.Proto)
			}),
			Listener(ln),
			AdvertiseHTTP3(8443, 24*time.Hour),
		)
		assert.False(t, srv.Readiness().Healthy(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Run(ctx)
		}()

		client := &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig:   &tls.Config{RootCAs: pool},
				ForceAttemptHTTP2: true,
			},
		}
		resp, err := client.Get("https://" + ln.Addr().String() + "/")
		require.NoError(t, err)
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, "HTTP/2.0", string(b))
		assert.Equal(t, `h3=":8443"; ma=86400`, resp.Header.Get("Alt-Svc"))
		assert.True(t, srv.Readiness().Healthy(context.Background()))

		cancel()
		require.NoError(t, <-errCh)
		assert.False(t, srv.Readiness().Healthy(context.Background()))
	})

	t.Run("will record one server span per request", func(t *testing.T) {
		t.Run("if the handler is the instrumented api", func(t *testing.T) {
			rec := tracetest.NewSpanRecorder()
			prev := otel.GetTracerProvider()
			otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
			defer otel.SetTracerProvider(prev)

			cert, pool := selfSigned(t)
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			srv := NewServer("", &tls.Config{Certificates: []tls.Certificate{cert}}, httpapi.NewHandler(), Listener(ln))

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Run(ctx)
			}()

			client := &http.Client{
				Timeout: 5 * time.Second,
				Transport: &http.Transport{
					TLSClientConfig:   &tls.Config{RootCAs: pool},
					ForceAttemptHTTP2: true,
				},
			}
			resp, err := client.Get("https://" + ln.Addr().String() + "/")
			require.NoError(t, err)
			_, err = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			cancel()
			require.NoError(t, <-errCh)

			var servers int
			for _, span := range rec.Ended() {
				if span.SpanKind() == trace.SpanKindServer {
					servers++
				}
			}
			assert.Equal(t, 1, servers)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if it fails to listen", func(t *testing.T) {
			listenErr := errors.New("failed to listen")
			srv := NewServer(":0", &tls.Config{}, http.NotFoundHandler())
			srv.listen = func(string, string) (net.Listener, error) {
				return nil, listenErr
			}

			err := srv.Run(context.Background())
			assert.ErrorIs(t, err, listenErr)
		})
	})
}
