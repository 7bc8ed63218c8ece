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
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/caiflower/hussar/pkg/e"
	golocalv1 "github.com/caiflower/hussar/pkg/golocal/v1"
	"github.com/caiflower/hussar/pkg/tools"
	webe "github.com/caiflower/hussar/web/e"
	"github.com/caiflower/hussar/web/protocol"
)

// serveConn owns conn until the peer leaves, a timeout hits or a request asks to close.
// Requests on one connection are handled strictly one after the other.
func (s *HttpServer) serveConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	golocalv1.PutTraceID(tools.UUID())
	golocalv1.PutRemoteAddr(remote)
	defer golocalv1.Clean()
	defer s.untrack(conn)
	defer e.OnError("serve connection " + remote)

	s.logger.Debug("connection open %s", remote)
	defer s.logger.Debug("connection closed %s", remote)

	if s.tlsConfig != nil {
		tlsConn := tls.Server(conn, s.tlsConfig)
		if err := s.handshake(tlsConn); err != nil {
			s.metric.HandshakeFailed()
			s.logger.Debug("tls handshake with %s failed. Error: %s", remote, err.Error())
			return
		}
		conn = tlsConn
	}

	reader := newRequestReader(conn, s.options)
	idle := s.options.ReadTimeout
	for {
		raw, err := reader.next(idle)
		if err != nil {
			if se, ok := webe.AsServerError(err); ok {
				s.writeError(conn, se)
				lingerClose(conn)
			} else if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrDeadlineExceeded) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("read from %s failed. Error: %s", remote, err.Error())
			}
			return
		}

		if !s.handle(conn, raw) {
			lingerClose(conn)
			return
		}
		idle = s.options.KeepAliveTimeout
	}
}

const (
	lingerTimeout = 500 * time.Millisecond
	lingerBytes   = 256 << 10
)

type closeWriter interface {
	CloseWrite() error
}

// lingerClose half-closes conn and drains what the peer still sends, so the final close does
// not reset a connection whose response is still in flight.
func lingerClose(conn net.Conn) {
	if cw, ok := conn.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerBytes))
}

func (s *HttpServer) handshake(conn *tls.Conn) error {
	if s.options.HandshakeTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.options.HandshakeTimeout)); err != nil {
			return err
		}
	}
	if err := conn.Handshake(); err != nil {
		return err
	}
	return conn.SetDeadline(time.Time{})
}

// handle answers one request and reports whether the connection stays open.
func (s *HttpServer) handle(conn net.Conn, raw []byte) bool {
	begin := time.Now()
	req := protocol.ParseRequest(raw, conn.RemoteAddr().String(), protocol.WithExtraMethods(s.router.HasAltMethod))
	s.logger.Debug("request from %s:\n%s", req.RemoteAddr, raw)

	var resp *protocol.Response
	if s.limiter != nil && !s.limiter.TakeTokenNonBlocking() {
		resp, _ = protocol.NewResponse(req, nil)
		resp.Page(webe.TooManyRequests.Code, webe.TooManyRequests.Page)
	} else {
		resp = s.dispatch(req)
	}

	err := s.write(conn, resp.Serialize())
	cost := time.Since(begin).Milliseconds()
	s.metric.SaveMetric(req.Method, resp.Code, cost)
	s.accessLog(req, resp, cost)
	if err != nil {
		s.logger.Debug("write to %s failed. Error: %s", req.RemoteAddr, err.Error())
		return false
	}
	return resp.Header("Connection") == "keep-alive"
}

// dispatch binds the session and runs the route. A failed session bind or a panicking handler
// yields a 500.
func (s *HttpServer) dispatch(req *protocol.Request) (resp *protocol.Response) {
	resp, err := protocol.NewResponse(req, s.sessions)
	if err != nil {
		s.logger.Error("bind session failed. Error: %s", err.Error())
		resp.InternalError()
		return resp
	}

	bound := append([]protocol.Cookie(nil), resp.Cookies...)
	defer e.OnErrorFunc("dispatch "+req.Method+" "+req.Path, func(r interface{}) {
		s.logger.Error("handler for %s %s panicked: %v", req.Method, req.Path, r)
		resp, _ = protocol.NewResponse(req, nil)
		resp.Cookies = bound
		resp.InternalError()
	})
	s.router.Dispatch(req, resp)
	return resp
}

func (s *HttpServer) write(conn net.Conn, wire []byte) error {
	if s.options.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := conn.Write(wire)
	return err
}

// writeError answers a request that could not be read in full and is followed by a close.
func (s *HttpServer) writeError(conn net.Conn, se webe.ServerError) {
	s.logger.Warn("reject request from %s. type=%s. Error: %s", conn.RemoteAddr().String(), se.GetType(), se.Error())
	req := protocol.ParseRequest(nil, conn.RemoteAddr().String())
	resp, _ := protocol.NewResponse(req, nil)
	resp.Page(se.GetCode(), se.GetPage())
	if err := s.write(conn, resp.Serialize()); err != nil {
		s.logger.Debug("write to %s failed. Error: %s", req.RemoteAddr, err.Error())
	}
	s.metric.SaveMetric("", resp.Code, 0)
}
