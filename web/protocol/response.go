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

package protocol

import (
	"bytes"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caiflower/hussar/pkg/tools"
)

const (
	ServerName        = "hussar"
	SessionCookieName = "id"
	Proto             = "HTTP/1.1"

	// RFC 1123 with a fixed GMT zone
	dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

	PageBadRequest     = "<h1>400: Bad Request</h1>"
	PageNotFound       = "<h1>404: Not Found</h1>"
	PageInternalError  = "<h1>500: Internal Server Error</h1>"
	PageNotImplemented = "<h1>501: Not Implemented!</h1>"
)

// Sessions is the part of a session store a Response needs to bind the request to a session.
type Sessions interface {
	Create() (string, error)
	Exists(id string) bool
}

// Response is owned by the handler it is passed to and serialized once the handler returns.
// Status is only used for codes missing from the reason phrase table.
type Response struct {
	Code    string
	Status  string
	Headers map[string]string
	Cookies []Cookie
	Body    []byte

	method string
}

// NewResponse prepares the default 200 response for req and binds req to a session: a known
// "id" cookie is reused, otherwise a session is created and its id queued as an HttpOnly cookie.
// The returned Response is usable even when session creation fails.
func NewResponse(req *Request, sessions Sessions) (*Response, error) {
	resp := &Response{
		Code:    StatusOK,
		Headers: make(map[string]string, 8),
		method:  req.Method,
	}
	resp.Headers["Date"] = time.Now().UTC().Format(dateFormat)
	resp.Headers["Server"] = ServerName
	if req.KeepAlive {
		resp.Headers["Connection"] = "keep-alive"
	} else {
		resp.Headers["Connection"] = "close"
	}
	resp.Headers["Content-Type"] = "text/html"

	if sessions == nil || !req.WellFormed {
		return resp, nil
	}

	if c, ok := req.Cookies[SessionCookieName]; ok && sessions.Exists(c.Value) {
		req.SessionID = c.Value
		return resp, nil
	}

	id, err := sessions.Create()
	if err != nil {
		return resp, err
	}
	req.SessionID = id
	cookie := NewCookie(SessionCookieName, id)
	cookie.HttpOnly = true
	resp.Cookies = append(resp.Cookies, cookie)
	return resp, nil
}

func (resp *Response) Method() string {
	return resp.method
}

func (resp *Response) SetStatus(code int) {
	resp.Code = strconv.Itoa(code)
}

// SetStatusText sets a code together with the phrase to use if the code is not in the table.
func (resp *Response) SetStatusText(code int, text string) {
	resp.Code = strconv.Itoa(code)
	resp.Status = text
}

func (resp *Response) SetHeader(key, value string) {
	resp.Headers[key] = value
}

func (resp *Response) Header(key string) string {
	return resp.Headers[key]
}

func (resp *Response) AddCookie(cookie Cookie) {
	resp.Cookies = append(resp.Cookies, cookie)
}

func (resp *Response) Write(p []byte) (int, error) {
	resp.Body = append(resp.Body, p...)
	return len(p), nil
}

func (resp *Response) WriteString(s string) (int, error) {
	resp.Body = append(resp.Body, s...)
	return len(s), nil
}

func (resp *Response) SetBody(body string) {
	resp.Body = []byte(body)
}

func (resp *Response) JSON(v interface{}) error {
	data, err := tools.Marshal(v)
	if err != nil {
		return err
	}
	resp.Headers["Content-Type"] = "application/json"
	resp.Body = data
	return nil
}

func (resp *Response) Redirect(location string) {
	resp.Code = StatusFound
	resp.Headers["Location"] = location
}

// Page replaces the body with a canned html page for code.
func (resp *Response) Page(code, page string) {
	resp.Code = code
	resp.Headers["Content-Type"] = "text/html"
	resp.Body = []byte(page)
}

func (resp *Response) BadRequest() {
	resp.Page(StatusBadRequest, PageBadRequest)
}

func (resp *Response) NotFound() {
	resp.Page(StatusNotFound, PageNotFound)
}

func (resp *Response) InternalError() {
	resp.Page(StatusInternalServerError, PageInternalError)
}

func (resp *Response) NotImplemented() {
	resp.Page(StatusNotImplemented, PageNotImplemented)
}

// statusLine resolves the reason phrase. A code outside the table without a custom phrase,
// or one that is not three digits, turns the whole response into the 500 page.
func (resp *Response) statusLine() (string, string) {
	if text, ok := StatusText(resp.Code); ok {
		return resp.Code, text
	}
	if text := StripControl(resp.Status); text != "" && threeDigits(resp.Code) {
		return resp.Code, text
	}
	resp.InternalError()
	text, _ := StatusText(resp.Code)
	return resp.Code, text
}

func threeDigits(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Serialize renders the wire form. Header keys are written sorted, empty keys and any
// handler-set Content-Length are skipped, and HEAD responses carry Content-Length: 0 and no body.
func (resp *Response) Serialize() []byte {
	code, text := resp.statusLine()

	var buf bytes.Buffer
	buf.Grow(256 + len(resp.Body))
	buf.WriteString(Proto)
	buf.WriteByte(' ')
	buf.WriteString(code)
	buf.WriteByte(' ')
	buf.WriteString(text)
	buf.WriteString("\r\n")

	keys := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		if k == "" || strings.EqualFold(k, "Content-Length") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(StripControl(k))
		buf.WriteString(": ")
		buf.WriteString(StripControl(resp.Headers[k]))
		buf.WriteString("\r\n")
	}

	for i := range resp.Cookies {
		if s := resp.Cookies[i].Serialize(); s != "" {
			buf.WriteString("Set-Cookie: ")
			buf.WriteString(s)
			buf.WriteString("\r\n")
		}
	}

	head := resp.method == MethodHead
	buf.WriteString("Content-Length: ")
	if head {
		buf.WriteByte('0')
	} else {
		buf.WriteString(strconv.Itoa(len(resp.Body)))
	}
	buf.WriteString("\r\n\r\n")

	if !head {
		buf.Write(resp.Body)
	}
	return buf.Bytes()
}
