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
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caiflower/hussar/web/e"
	"github.com/caiflower/hussar/web/server/config"
)

var (
	headerEnd     = []byte("\r\n\r\n")
	crlf          = []byte("\r\n")
	contentLength = []byte("content-length")
)

// requestReader cuts one request at a time out of a connection.
type requestReader struct {
	conn    net.Conn
	options *config.Options
	chunk   []byte
	pending []byte
	drained bool
}

func newRequestReader(conn net.Conn, options *config.Options) *requestReader {
	size := options.ReadBufferSize
	if size <= 0 {
		size = 4096
	}
	return &requestReader{conn: conn, options: options, chunk: make([]byte, size)}
}

// next returns the bytes of the next request. idle bounds the wait for its first byte; once
// bytes arrive the rest must come within ReadTimeout. io.EOF means the peer is done.
func (r *requestReader) next(idle time.Duration) ([]byte, error) {
	if r.drained {
		return nil, io.EOF
	}
	if r.options.SingleRead {
		return r.readOnce(idle)
	}
	return r.readFramed(idle)
}

// readOnce treats whatever a single read returns as the whole request.
func (r *requestReader) readOnce(idle time.Duration) ([]byte, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
		return nil, err
	}
	n, err := r.conn.Read(r.chunk)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	return append([]byte(nil), r.chunk[:n]...), nil
}

func (r *requestReader) fill() error {
	n, err := r.conn.Read(r.chunk)
	r.pending = append(r.pending, r.chunk[:n]...)
	if n > 0 {
		return nil
	}
	if err == nil {
		err = io.EOF
	}
	return err
}

// partial hands out what was read so far when the peer stops sending mid request, so the
// parser still gets to answer it. Nothing is read after that.
func (r *requestReader) partial(err error) ([]byte, error) {
	if len(r.pending) == 0 || !(errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded)) {
		return nil, err
	}
	raw := r.pending
	r.pending = nil
	r.drained = true
	return raw, nil
}

// readFramed reads up to the blank line and then Content-Length bytes of body.
// Bytes past the body are kept for the next call.
func (r *requestReader) readFramed(idle time.Duration) ([]byte, error) {
	maxHeader := r.options.MaxHeaderBytes

	if len(r.pending) == 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			return nil, err
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
	if err := r.conn.SetReadDeadline(time.Now().Add(r.options.ReadTimeout)); err != nil {
		return nil, err
	}

	headerLen := -1
	for {
		if i := bytes.Index(r.pending, headerEnd); i >= 0 {
			headerLen = i + len(headerEnd)
			break
		}
		if maxHeader > 0 && len(r.pending) > maxHeader {
			return nil, e.NewServerError(e.HeaderTooLarge, fmt.Sprintf("header over %d bytes", maxHeader), nil)
		}
		if err := r.fill(); err != nil {
			return r.partial(err)
		}
	}
	if maxHeader > 0 && headerLen > maxHeader {
		return nil, e.NewServerError(e.HeaderTooLarge, fmt.Sprintf("header of %d bytes over %d", headerLen, maxHeader), nil)
	}

	bodyLen, err := declaredLength(r.pending[:headerLen])
	if err != nil {
		return nil, e.NewServerError(e.BodyTooLarge, "bad content-length", err)
	}
	if bodyLen > math.MaxInt-headerLen {
		return nil, e.NewServerError(e.BodyTooLarge, fmt.Sprintf("content-length %d out of range", bodyLen), nil)
	}
	if limit := r.options.MaxRequestBodySize; limit > 0 && bodyLen > limit {
		return nil, e.NewServerError(e.BodyTooLarge, fmt.Sprintf("content-length %d over %d", bodyLen, limit), nil)
	}

	total := headerLen + bodyLen
	for len(r.pending) < total {
		if err := r.fill(); err != nil {
			return r.partial(err)
		}
	}

	raw := r.pending[:total]
	if rest := r.pending[total:]; len(rest) > 0 {
		r.pending = append([]byte(nil), rest...)
	} else {
		r.pending = nil
	}
	return raw, nil
}

// declaredLength finds Content-Length in a header block, ignoring case. Missing, negative or
// unparseable values count as no body; a number too large for an int is an error.
func declaredLength(head []byte) (int, error) {
	for _, line := range bytes.Split(head, crlf) {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok || !bytes.EqualFold(bytes.TrimSpace(name), contentLength) {
			continue
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(value)))
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("content-length %s out of range", bytes.TrimSpace(value))
		}
		if err != nil || n < 0 {
			return 0, nil
		}
		return n, nil
	}
	return 0, nil
}
