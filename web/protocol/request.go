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
	"strconv"
	"strings"
)

const (
	MethodGet  = "GET"
	MethodHead = "HEAD"
	MethodPost = "POST"

	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeMultipart = "multipart/form-data"

	minVersion = 0.9
	maxVersion = 1.2
)

type Header struct {
	Name  string
	Value string
}

// Request is built once from the bytes of one request. When WellFormed is false nothing
// but RemoteAddr was filled in.
type Request struct {
	Method  string
	Target  string
	Version string
	Path    string

	RawQuery string
	Body     []byte
	Headers  []Header

	UserAgent     string
	Host          string
	Connection    string
	ContentType   string
	ContentLength string
	CookieHeader  string

	Query   map[string]string
	Form    map[string]string
	Cookies map[string]Cookie
	Files   map[string]UploadedFile

	WellFormed bool
	KeepAlive  bool
	RemoteAddr string
	SessionID  string
}

type parseConfig struct {
	extraMethod func(method string) bool
}

type ParseOption func(*parseConfig)

// WithExtraMethods admits request methods beyond GET, HEAD and POST, typically the ones that
// have an alternate route.
func WithExtraMethods(fn func(method string) bool) ParseOption {
	return func(c *parseConfig) {
		c.extraMethod = fn
	}
}

func newRequest(remoteAddr string) *Request {
	return &Request{
		RemoteAddr: remoteAddr,
		Query:      map[string]string{},
		Form:       map[string]string{},
		Cookies:    map[string]Cookie{},
		Files:      map[string]UploadedFile{},
	}
}

// ParseRequest never fails: any input yields a Request, malformed ones with WellFormed false.
func ParseRequest(raw []byte, remoteAddr string, opts ...ParseOption) *Request {
	cfg := &parseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	req := newRequest(remoteAddr)

	head, body, _ := SplitOnce(raw, headerEnd)
	lines := SplitBytes(head, crlf)
	if len(head) == 0 || len(lines) == 0 {
		return req
	}

	tokens := strings.Split(string(lines[0]), " ")
	if len(tokens) != 3 {
		return req
	}
	method, target, version := tokens[0], tokens[1], tokens[2]
	if !validMethod(method, cfg.extraMethod) || !validVersion(version) {
		return req
	}

	req.Method = method
	req.Target = target
	req.Version = version
	req.WellFormed = true
	if len(body) > 0 {
		req.Body = append([]byte(nil), body...)
	}

	rawPath, rawQuery, _ := strings.Cut(target, "?")
	req.Path = URLDecode(rawPath)
	req.RawQuery = rawQuery

	for _, line := range lines[1:] {
		req.addHeader(line)
	}

	req.KeepAlive = req.Connection == "keep-alive"

	for _, c := range ParseCookieHeader(req.CookieHeader) {
		if c.Name != "" && c.Value != "" {
			req.Cookies[c.Name] = c
		}
	}

	req.Query = ParseParams([]byte(req.RawQuery))

	mediaType := strings.TrimSpace(strings.SplitN(req.ContentType, ";", 2)[0])
	if mediaType == ContentTypeForm {
		req.Form = ParseParams(req.Body)
	}

	if strings.HasPrefix(req.ContentType, ContentTypeMultipart) {
		for _, file := range ExtractFiles(BoundaryFromContentType(req.ContentType), req.Body) {
			if file.Valid {
				req.Files[file.FieldName] = file
			}
		}
	}

	return req
}

func (req *Request) addHeader(line []byte) {
	i := bytes.Index(line, headerSep)
	if i <= 0 {
		return
	}
	name := string(line[:i])
	value := TrimControlRight(string(line[i+len(headerSep):]))
	req.Headers = append(req.Headers, Header{Name: name, Value: value})

	switch name {
	case "User-Agent":
		req.UserAgent = value
	case "Host":
		req.Host = value
	case "Connection":
		req.Connection = value
	case "Content-Type":
		req.ContentType = value
	case "Content-Length":
		req.ContentLength = value
	case "Cookie":
		req.CookieHeader = value
	}
}

func validMethod(method string, extra func(string) bool) bool {
	switch method {
	case MethodGet, MethodHead, MethodPost:
		return true
	case "":
		return false
	}
	return extra != nil && extra(method)
}

// validVersion accepts HTTP/<digits and dots> between 0.9 and 1.2 inclusive.
func validVersion(version string) bool {
	num, ok := strings.CutPrefix(version, "HTTP/")
	if !ok || num == "" {
		return false
	}
	for i := 0; i < len(num); i++ {
		if (num[i] < '0' || num[i] > '9') && num[i] != '.' {
			return false
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return false
	}
	return v >= minVersion && v <= maxVersion
}

// Header returns the first header whose name matches case-insensitively.
func (req *Request) Header(name string) string {
	for _, h := range req.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ContentLengthValue parses Content-Length; ok is false when it is absent or not a count.
func (req *Request) ContentLengthValue() (n int64, ok bool) {
	if req.ContentLength == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(req.ContentLength), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (req *Request) QueryValue(name string) string {
	return req.Query[name]
}

func (req *Request) FormValue(name string) string {
	return req.Form[name]
}

func (req *Request) Cookie(name string) (Cookie, bool) {
	c, ok := req.Cookies[name]
	return c, ok
}

func (req *Request) File(name string) (UploadedFile, bool) {
	f, ok := req.Files[name]
	return f, ok
}

func (req *Request) IsHead() bool {
	return req.Method == MethodHead
}
