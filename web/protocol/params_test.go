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
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{name: "empty", in: "", want: map[string]string{}},
		{name: "single", in: "a=1", want: map[string]string{"a": "1"}},
		{name: "pairs", in: "a=1&b=two", want: map[string]string{"a": "1", "b": "two"}},
		{name: "decoded", in: "msg=Failed+to%20login.", want: map[string]string{"msg": "Failed to login."}},
		{name: "equals in value", in: "token=a=b=c", want: map[string]string{"token": "a=b=c"}},
		{name: "last wins", in: "a=1&a=2", want: map[string]string{"a": "2"}},
		{name: "empty value dropped", in: "a=&b=2", want: map[string]string{"b": "2"}},
		{name: "invalid name dropped", in: "a1=x&b-c=y&ok=z", want: map[string]string{"ok": "z"}},
		{name: "no equals", in: "flag&b=2", want: map[string]string{"b": "2"}},
		{name: "leading equals", in: "=x&b=2", want: map[string]string{"b": "2"}},
		{name: "trailing ampersand", in: "a=1&", want: map[string]string{"a": "1"}},
		{name: "double ampersand", in: "a=1&&b=2", want: map[string]string{"a": "1", "b": "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseParams([]byte(tt.in))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseParams(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func randomName(r *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
	b := make([]byte, 1+r.Intn(8))
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}

func randomPrintable(r *rand.Rand) string {
	b := make([]byte, 1+r.Intn(16))
	for i := range b {
		b[i] = byte(0x20 + r.Intn(0x7f-0x20))
	}
	return string(b)
}

func TestParamsRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		want := map[string]string{}
		for i := 0; i < 1+r.Intn(6); i++ {
			want[randomName(r)] = randomPrintable(r)
		}
		keys := make([]string, 0, len(want))
		for k := range want {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		encoded := EncodeParams(want, keys)
		got := ParseParams([]byte(encoded))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round trip of %q mismatch (-want +got):\n%s", encoded, diff)
		}
	}
}

func TestParseParamsNeverPanics(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		const alphabet = "ab=&%+_\x00\xff1"
		b := make([]byte, r.Intn(40))
		for j := range b {
			b[j] = alphabet[r.Intn(len(alphabet))]
		}
		assert.NotPanics(t, func() { ParseParams(b) })
	}
}
