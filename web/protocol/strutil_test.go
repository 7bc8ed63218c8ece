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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "plus", in: "a+b", want: "a b"},
		{name: "escape", in: "a%20b%2Fc", want: "a b/c"},
		{name: "lower hex", in: "%e4%bd%a0", want: "\xe4\xbd\xa0"},
		{name: "nul dropped", in: "a%00b", want: "ab"},
		{name: "bad hex kept", in: "100%zz", want: "100%zz"},
		{name: "truncated", in: "abc%4", want: "abc%4"},
		{name: "lone percent", in: "%", want: "%"},
		{name: "percent then escape", in: "%%41", want: "%A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URLDecode(tt.in))
		})
	}
}

func TestURLDecodeNeverPanics(t *testing.T) {
	inputs := []string{"%", "%%", "%%%", "%0", "%G0", "%0G", "+%+", "\xff%\xff\xff"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { URLDecode(in) })
	}
}

func TestURLEncode(t *testing.T) {
	assert.Equal(t, "a+b%26c%3Dd~", URLEncode("a b&c=d~"))
	for _, s := range []string{"", "hello world", "100%", "a=b&c", "!\"#$%&'()*+,/:;<=>?@[\\]^`{|}"} {
		assert.Equal(t, s, URLDecode(URLEncode(s)))
	}
}

func TestHTMLEscape(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;&quot;Tom&quot; &amp; &#39;Jerry&#39;&lt;/b&gt;", HTMLEscape(`<b>"Tom" & 'Jerry'</b>`))
	assert.Equal(t, "plain", HTMLEscape("plain"))
}

func TestStripControl(t *testing.T) {
	assert.Equal(t, "abc", StripControl("a\x07b\r\n\x1bc\x7f"))
	assert.Equal(t, "keep\x01me", StripControl("keep\x01me"))
	assert.Equal(t, "value", TrimControlRight("value\r\n"))
	assert.Equal(t, "\rvalue", TrimControlRight("\rvalue\x7f"))
	assert.Equal(t, "x y", Trim(" \tx y\r\n"))
}

func TestSplitJoinBytes(t *testing.T) {
	parts := SplitBytes([]byte("a; b; c"), []byte("; "))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, parts)
	assert.Equal(t, []byte("a; b; c"), JoinBytes(parts, []byte("; ")))
	assert.Equal(t, [][]byte{[]byte("abc")}, SplitBytes([]byte("abc"), nil))

	before, after, ok := SplitOnce([]byte("k: v: w"), []byte(": "))
	assert.True(t, ok)
	assert.Equal(t, "k", string(before))
	assert.Equal(t, "v: w", string(after))

	_, _, ok = SplitOnce([]byte("novalue"), []byte(": "))
	assert.False(t, ok)
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "letters", in: "username", want: true},
		{name: "underscore", in: "_user_Name", want: true},
		{name: "empty", in: "", want: false},
		{name: "digit", in: "user1", want: false},
		{name: "dash", in: "user-name", want: false},
		{name: "space", in: "user name", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.in))
		})
	}
}
