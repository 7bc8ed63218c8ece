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
	"strings"
)

func isControl(c byte) bool {
	return (c >= 0x07 && c <= 0x0D) || c == 0x1B || c == 0x7F
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// URLDecode turns %XX into the byte it names and '+' into a space.
// A '%' not followed by two hex digits is kept as a literal '%'. A decoded NUL is dropped.
func URLDecode(s string) string {
	if strings.IndexByte(s, '%') < 0 && strings.IndexByte(s, '+') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 < len(s) {
				hi, ok1 := unhex(s[i+1])
				lo, ok2 := unhex(s[i+2])
				if ok1 && ok2 {
					if v := hi<<4 | lo; v != 0 {
						b.WriteByte(v)
					}
					i += 2
					continue
				}
			}
			b.WriteByte('%')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

// URLEncode is the inverse of URLDecode for query values: unreserved bytes pass through,
// a space becomes '+', everything else is %XX.
func URLEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func HTMLEscape(s string) string {
	return htmlReplacer.Replace(s)
}

// StripControl removes every control byte in 0x07-0x0D, 0x1B and 0x7F.
func StripControl(s string) string {
	idx := -1
	for i := 0; i < len(s); i++ {
		if isControl(s[i]) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s
	}

	b := make([]byte, 0, len(s))
	b = append(b, s[:idx]...)
	for i := idx; i < len(s); i++ {
		if !isControl(s[i]) {
			b = append(b, s[i])
		}
	}
	return string(b)
}

// TrimControlRight removes trailing control bytes, which is where a stray \r ends up.
func TrimControlRight(s string) string {
	end := len(s)
	for end > 0 && isControl(s[end-1]) {
		end--
	}
	return s[:end]
}

// Trim removes surrounding spaces, tabs and control bytes.
func Trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || (r < 0x80 && isControl(byte(r)))
	})
}

// SplitBytes splits b around every sep. Unlike bytes.Split an empty sep returns b whole.
func SplitBytes(b, sep []byte) [][]byte {
	if len(sep) == 0 {
		return [][]byte{b}
	}
	return bytes.Split(b, sep)
}

// SplitOnce splits b around the first sep; ok is false when sep is absent.
func SplitOnce(b, sep []byte) (before, after []byte, ok bool) {
	if i := bytes.Index(b, sep); i >= 0 {
		return b[:i], b[i+len(sep):], true
	}
	return b, nil, false
}

func JoinBytes(parts [][]byte, sep []byte) []byte {
	return bytes.Join(parts, sep)
}

// ValidName reports whether s is a non-empty run of ASCII letters and underscores.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_') {
			return false
		}
	}
	return true
}
