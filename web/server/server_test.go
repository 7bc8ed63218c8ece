/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"net"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caiflower/hussar/pkg/crontab"
	webe "github.com/caiflower/hussar/web/e"
	"github.com/caiflower/hussar/web/protocol"
	"github.com/caiflower/hussar/web/router"
	"github.com/caiflower/hussar/web/server/config"
	"github.com/caiflower/hussar/web/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireResponse struct {
	statusLine string
	header     textproto.MIMEHeader
	body       string
}

func (w wireResponse) code() string {
	parts := strings.SplitN(w.statusLine, " ", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func startServer(t *testing.T, r *router.Router, store session.Store, opts ...config.Option) *HttpServer {
	t.Helper()
	base := []config.Option{
		config.WithName(strings.ReplaceAll(t.Name(), "/", "-")),
		config.WithHost("127.0.0.1"),
		config.WithPort(0),
		config.WithWorkers(4, 16),
		config.WithReadTimeout(2 * time.Second),
		config.WithKeepAliveTimeout(2 * time.Second),
	}
	options := config.NewOptions(append(base, opts...))
	s := NewHttpServer(*options, r, store)
	require.NoError(t, s.Listen())

	served := make(chan error, 1)
	go func() {
		served <- s.Serve()
	}()
	t.Cleanup(func() {
		s.Close()
		select {
		case err := <-served:
			assert.ErrorIs(t, err, webe.ErrServerClosed)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})
	return s
}

func dial(t *testing.T, s *HttpServer) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() { _ = conn.Close() })
	return conn, bufio.NewReader(conn)
}

func send(t *testing.T, conn net.Conn, raw string) {
	t.Helper()
	_, err := conn.Write([]byte(raw))
	require.NoError(t, err)
}

func readResponse(t *testing.T, br *bufio.Reader) wireResponse {
	t.Helper()
	tp := textproto.NewReader(br)
	line, err := tp.ReadLine()
	require.NoError(t, err)
	header, err := tp.ReadMIMEHeader()
	require.NoError(t, err)

	n, err := strconv.Atoi(header.Get("Content-Length"))
	require.NoError(t, err)
	body := make([]byte, n)
	_, err = io.ReadFull(br, body)
	require.NoError(t, err)
	return wireResponse{statusLine: line, header: header, body: string(body)}
}

func assertClosed(t *testing.T, br *bufio.Reader) {
	t.Helper()
	_, err := br.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func demoRouter() *router.Router {
	r := router.NewRouter()
	r.GET("/", func(_ *protocol.Request, resp *protocol.Response) {
		resp.SetBody("<p>home</p>")
	})
	r.HEAD("/", func(_ *protocol.Request, resp *protocol.Response) {
		resp.SetBody("<p>home</p>")
	})
	r.POST("/echo", func(req *protocol.Request, resp *protocol.Response) {
		resp.Body = req.Body
	})
	r.RegisterAlt("PUT", "/upload", func(req *protocol.Request, resp *protocol.Response) {
		resp.SetBody("stored " + strconv.Itoa(len(req.Files)))
	})
	r.GET("/panic", func(*protocol.Request, *protocol.Response) {
		panic("boom")
	})
	return r
}

func TestServeKeepAlive(t *testing.T) {
	s := startServer(t, demoRouter(), nil)
	conn, br := dial(t, s)

	for i := 0; i < 3; i++ {
		send(t, conn, "GET / HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n")
		resp := readResponse(t, br)
		assert.Equal(t, "HTTP/1.1 200 OK", resp.statusLine)
		assert.Equal(t, "keep-alive", resp.header.Get("Connection"))
		assert.Equal(t, "hussar", resp.header.Get("Server"))
		assert.Equal(t, "<p>home</p>", resp.body)
	}

	send(t, conn, "GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	resp := readResponse(t, br)
	assert.Equal(t, "close", resp.header.Get("Connection"))
	assertClosed(t, br)
}

func TestServeIdleTimeout(t *testing.T) {
	s := startServer(t, demoRouter(), nil, config.WithKeepAliveTimeout(200*time.Millisecond))
	conn, br := dial(t, s)

	send(t, conn, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	readResponse(t, br)

	begin := time.Now()
	assertClosed(t, br)
	assert.Less(t, time.Since(begin), 2*time.Second)
}

func TestServeHead(t *testing.T) {
	s := startServer(t, demoRouter(), nil)
	conn, br := dial(t, s)

	send(t, conn, "HEAD / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	resp := readResponse(t, br)
	assert.Equal(t, "200", resp.code())
	assert.Equal(t, "0", resp.header.Get("Content-Length"))
	assert.Empty(t, resp.body)

	// no stray body bytes precede the next response
	send(t, conn, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	resp = readResponse(t, br)
	assert.Equal(t, "<p>home</p>", resp.body)
}

func TestServeMalformed(t *testing.T) {
	s := startServer(t, demoRouter(), nil)
	conn, br := dial(t, s)

	send(t, conn, "FOO\r\n\r\n")
	resp := readResponse(t, br)
	assert.Equal(t, "HTTP/1.1 400 BAD REQUEST", resp.statusLine)
	assert.Equal(t, protocol.PageBadRequest, resp.body)
	assertClosed(t, br)
}

func TestServeWithoutHeaderEnd(t *testing.T) {
	t.Run("peer half closes", func(t *testing.T) {
		s := startServer(t, demoRouter(), nil)
		conn, _ := dial(t, s)
		send(t, conn, "FOO\r\n")
		require.NoError(t, conn.(*net.TCPConn).CloseWrite())

		out, err := io.ReadAll(conn)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(out), "HTTP/1.1 400 BAD REQUEST\r\n"), "got %q", out)
	})
	t.Run("peer stalls", func(t *testing.T) {
		s := startServer(t, demoRouter(), nil, config.WithReadTimeout(200*time.Millisecond))
		conn, br := dial(t, s)
		send(t, conn, "FOO\r\n")

		resp := readResponse(t, br)
		assert.Equal(t, "400", resp.code())
		assertClosed(t, br)
	})
	t.Run("short body", func(t *testing.T) {
		s := startServer(t, demoRouter(), nil)
		conn, br := dial(t, s)
		send(t, conn, "POST /echo HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc")
		require.NoError(t, conn.(*net.TCPConn).CloseWrite())

		resp := readResponse(t, br)
		assert.Equal(t, "200", resp.code())
		assert.Equal(t, "abc", resp.body)
	})
}

func TestServeHugeContentLength(t *testing.T) {
	s := startServer(t, demoRouter(), nil, config.WithMaxRequestBodySize(-1))

	tests := []struct {
		name   string
		length string
	}{
		{name: "max int", length: "9223372036854775807"},
		{name: "past int", length: "99999999999999999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, br := dial(t, s)
			send(t, conn, "POST /echo HTTP/1.1\r\nContent-Length: "+tt.length+"\r\n\r\n")
			resp := readResponse(t, br)
			assert.Equal(t, "413", resp.code())
			assertClosed(t, br)
		})
	}
}

func TestServeRoutes(t *testing.T) {
	s := startServer(t, demoRouter(), nil)

	tests := []struct {
		name     string
		raw      string
		wantCode string
		wantBody string
	}{
		{name: "alt route", raw: "PUT /upload HTTP/1.1\r\n\r\n", wantCode: "200", wantBody: "stored 0"},
		{name: "alt miss", raw: "PUT /other HTTP/1.1\r\n\r\n", wantCode: "501", wantBody: protocol.PageNotImplemented},
		{name: "unregistered method", raw: "DELETE /upload HTTP/1.1\r\n\r\n", wantCode: "400", wantBody: protocol.PageBadRequest},
		{name: "missing path", raw: "GET /nothing HTTP/1.1\r\n\r\n", wantCode: "501", wantBody: protocol.PageNotImplemented},
		{name: "body", raw: "POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello", wantCode: "200", wantBody: "hello"},
		{name: "panic", raw: "GET /panic HTTP/1.1\r\n\r\n", wantCode: "500", wantBody: protocol.PageInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, br := dial(t, s)
			send(t, conn, tt.raw)
			resp := readResponse(t, br)
			assert.Equal(t, tt.wantCode, resp.code())
			assert.Equal(t, tt.wantBody, resp.body)
		})
	}
}

func TestServeBodyInSeveralWrites(t *testing.T) {
	s := startServer(t, demoRouter(), nil)
	conn, br := dial(t, s)

	send(t, conn, "POST /echo HTTP/1.1\r\nContent-")
	time.Sleep(20 * time.Millisecond)
	send(t, conn, "Length: 10\r\n\r\n01234")
	time.Sleep(20 * time.Millisecond)
	send(t, conn, "56789")

	resp := readResponse(t, br)
	assert.Equal(t, "0123456789", resp.body)
}

func TestServePanicKeepsConnection(t *testing.T) {
	s := startServer(t, demoRouter(), nil)
	conn, br := dial(t, s)

	send(t, conn, "GET /panic HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	assert.Equal(t, "500", readResponse(t, br).code())

	send(t, conn, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	assert.Equal(t, "200", readResponse(t, br).code())
}

func TestServeSession(t *testing.T) {
	store := session.NewMemoryStore(0)
	r := router.NewRouter()
	r.GET("/", func(req *protocol.Request, resp *protocol.Response) {
		resp.SetBody(req.SessionID)
	})
	s := startServer(t, r, store)
	conn, br := dial(t, s)

	send(t, conn, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	first := readResponse(t, br)
	cookie := first.header.Get("Set-Cookie")
	require.NotEmpty(t, cookie)
	id := first.body
	assert.Len(t, id, 64)
	assert.Equal(t, "id="+id+"; HttpOnly", cookie)
	assert.True(t, store.Exists(id))

	send(t, conn, "GET / HTTP/1.1\r\nConnection: keep-alive\r\nCookie: id="+id+"\r\n\r\n")
	second := readResponse(t, br)
	assert.Empty(t, second.header.Get("Set-Cookie"))
	assert.Equal(t, id, second.body)
	assert.Equal(t, 1, store.Count())

	send(t, conn, "GET / HTTP/1.1\r\nCookie: id=forged\r\n\r\n")
	third := readResponse(t, br)
	assert.NotEmpty(t, third.header.Get("Set-Cookie"))
	assert.NotEqual(t, id, third.body)
	assert.Equal(t, 2, store.Count())
}

type brokenStore struct {
	session.Store
}

func (brokenStore) Create() (string, error) {
	return "", errors.New("no entropy")
}

func (brokenStore) Exists(string) bool {
	return false
}

func TestServeSessionFailure(t *testing.T) {
	var called int32
	r := router.NewRouter()
	r.GET("/", func(*protocol.Request, *protocol.Response) { atomic.StoreInt32(&called, 1) })
	s := startServer(t, r, brokenStore{})
	conn, br := dial(t, s)

	send(t, conn, "GET / HTTP/1.1\r\n\r\n")
	resp := readResponse(t, br)
	assert.Equal(t, "500", resp.code())
	assert.Equal(t, int32(0), atomic.LoadInt32(&called))
}

func TestServeLimits(t *testing.T) {
	s := startServer(t, demoRouter(), nil, config.WithMaxHeaderBytes(64), config.WithMaxRequestBodySize(8))

	t.Run("header", func(t *testing.T) {
		conn, br := dial(t, s)
		send(t, conn, "GET / HTTP/1.1\r\nX-Long: "+strings.Repeat("a", 200)+"\r\n\r\n")
		resp := readResponse(t, br)
		assert.Equal(t, "431", resp.code())
		assertClosed(t, br)
	})
	t.Run("body", func(t *testing.T) {
		conn, br := dial(t, s)
		send(t, conn, "POST /echo HTTP/1.1\r\nContent-Length: 100\r\n\r\n")
		resp := readResponse(t, br)
		assert.Equal(t, "413", resp.code())
		assertClosed(t, br)
	})
}

func TestServeSingleRead(t *testing.T) {
	raw := "GET /" + strings.Repeat("a", 100) + " HTTP/1.1\r\n\r\n"

	t.Run("framed", func(t *testing.T) {
		r := router.NewRouter()
		r.RegisterFallback(func(_ *protocol.Request, resp *protocol.Response) { resp.SetBody("ok") })
		s := startServer(t, r, nil, config.WithReadBufferSize(64))
		conn, br := dial(t, s)
		send(t, conn, raw)
		assert.Equal(t, "200", readResponse(t, br).code())
	})
	t.Run("one read", func(t *testing.T) {
		r := router.NewRouter()
		r.RegisterFallback(func(_ *protocol.Request, resp *protocol.Response) { resp.SetBody("ok") })
		s := startServer(t, r, nil, config.WithReadBufferSize(64), config.WithSingleRead(true))
		conn, br := dial(t, s)
		send(t, conn, raw)
		// only the first 64 bytes are seen, which lack a version
		assert.Equal(t, "400", readResponse(t, br).code())
	})
}

func TestServeRateLimit(t *testing.T) {
	s := startServer(t, demoRouter(), nil, config.WithQps(true, 1))
	conn, br := dial(t, s)

	send(t, conn, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	assert.Equal(t, "200", readResponse(t, br).code())
	send(t, conn, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	resp := readResponse(t, br)
	assert.Equal(t, "429", resp.code())
	assert.Equal(t, webe.TooManyRequests.Page, resp.body)
}

func TestServeMetrics(t *testing.T) {
	s := startServer(t, demoRouter(), nil, config.WithMetricsPath("/metrics"))
	conn, br := dial(t, s)

	send(t, conn, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	readResponse(t, br)
	send(t, conn, "GET /metrics HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	resp := readResponse(t, br)
	assert.Equal(t, "200", resp.code())
	assert.Contains(t, resp.body, `hussar_http_requests_total{code="200",method="GET"`)
	assert.Contains(t, resp.body, "hussar_http_active_connections")
	assert.Equal(t, 1, s.Connections())
}

func TestServeStatsCron(t *testing.T) {
	s := startServer(t, demoRouter(), session.NewMemoryStore(0), config.WithStatsCron("* * * * * *"))

	var c *crontab.CronManger
	require.Eventually(t, func() bool {
		s.lock.Lock()
		defer s.lock.Unlock()
		c = s.cron
		return c != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, c.GetCron().Entries(), 1)

	// let the job run once
	time.Sleep(1100 * time.Millisecond)
	s.Close()
	assert.Empty(t, c.GetCron().Entries())
}

func writeCert(t *testing.T) (keyFile, certFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	keyFile = filepath.Join(dir, "key.pem")
	certFile = filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	return keyFile, certFile
}

func TestServeTLS(t *testing.T) {
	keyFile, certFile := writeCert(t)
	s := startServer(t, demoRouter(), nil, config.WithTLS(keyFile, certFile), config.WithHandshakeTimeout(time.Second))

	t.Run("handshake", func(t *testing.T) {
		conn, err := tls.Dial("tcp", s.Addr(), &tls.Config{InsecureSkipVerify: true})
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

		send(t, conn, "GET / HTTP/1.1\r\n\r\n")
		resp := readResponse(t, bufio.NewReader(conn))
		assert.Equal(t, "<p>home</p>", resp.body)
	})

	t.Run("plaintext client", func(t *testing.T) {
		conn, br := dial(t, s)
		send(t, conn, "GET / HTTP/1.1\r\n\r\n")
		data, _ := io.ReadAll(br)
		assert.False(t, strings.HasPrefix(string(data), "HTTP/"))

		assert.Eventually(t, func() bool {
			body, err := s.Metric().Render()
			return err == nil && strings.Contains(string(body), "hussar_tls_handshake_failures_total{server=\"TestServeTLS\"} 1")
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("silent client", func(t *testing.T) {
		_, br := dial(t, s)
		begin := time.Now()
		_, _ = io.ReadAll(br)
		assert.Less(t, time.Since(begin), 3*time.Second)
	})
}

func TestListenFailures(t *testing.T) {
	t.Run("bad key pair", func(t *testing.T) {
		options := config.NewOptions([]config.Option{config.WithPort(0), config.WithTLS("missing-key.pem", "missing-cert.pem")})
		s := NewHttpServer(*options, nil, nil)
		assert.Error(t, s.Listen())
	})

	t.Run("address in use", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		port := ln.Addr().(*net.TCPAddr).Port

		options := config.NewOptions([]config.Option{config.WithPort(port)})
		s := NewHttpServer(*options, nil, nil)
		assert.Error(t, s.Listen())
	})

	t.Run("serve before listen", func(t *testing.T) {
		s := NewHttpServer(*config.NewOptions(nil), nil, nil)
		assert.ErrorIs(t, s.Serve(), webe.ErrNotListening)
	})
}

func TestCloseStopsConnections(t *testing.T) {
	var served int32
	r := demoRouter()
	r.GET("/count", func(_ *protocol.Request, resp *protocol.Response) {
		atomic.AddInt32(&served, 1)
	})
	s := startServer(t, r, nil)
	conn, br := dial(t, s)
	send(t, conn, "GET /count HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	readResponse(t, br)

	s.Close()
	_, err := br.ReadByte()
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&served))
	assert.Equal(t, 0, s.Connections())
	assert.ErrorIs(t, s.Listen(), webe.ErrServerClosed)
}
