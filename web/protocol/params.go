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

type paramState int

const (
	paramName paramState = iota
	paramValue
)

// ParseParams reads name=value pairs separated by '&'. Pairs whose name is not a ValidName or
// whose value is empty are dropped; values are URL decoded; a repeated name keeps the last value.
func ParseParams(data []byte) map[string]string {
	params := make(map[string]string)
	if len(data) == 0 {
		return params
	}

	var (
		state = paramName
		name  string
		start int
	)
	closePair := func(end int) {
		if state == paramValue && end > start && ValidName(name) {
			params[name] = URLDecode(string(data[start:end]))
		}
		state = paramName
		name = ""
	}

	for i, c := range data {
		switch c {
		case '=':
			// in VALUE an '=' belongs to the value
			if state == paramName {
				if i > start {
					name = string(data[start:i])
					state = paramValue
				}
				start = i + 1
			}
		case '&':
			closePair(i)
			start = i + 1
		}
	}
	closePair(len(data))

	return params
}

// EncodeParams is the inverse of ParseParams for well-formed maps.
func EncodeParams(params map[string]string, keys []string) string {
	var out []byte
	for _, k := range keys {
		v, ok := params[k]
		if !ok {
			continue
		}
		if len(out) > 0 {
			out = append(out, '&')
		}
		out = append(out, k...)
		out = append(out, '=')
		out = append(out, URLEncode(v)...)
	}
	return string(out)
}
