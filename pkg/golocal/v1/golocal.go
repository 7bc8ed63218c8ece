//go:build go1.4
// +build go1.4

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

package v1

import (
	"sync"

	"github.com/modern-go/gls"
)

const (
	TraceID    = "X-Trace-ID"
	RemoteAddr = "Remote-Addr"
)

// goroutine id -> *sync.Map
var localMap sync.Map

func local() *sync.Map {
	id := gls.GoID()
	if value, ok := localMap.Load(id); ok {
		return value.(*sync.Map)
	}
	m := &sync.Map{}
	actual, _ := localMap.LoadOrStore(id, m)
	return actual.(*sync.Map)
}

func PutTraceID(value string) {
	local().Store(TraceID, value)
}

func GetTraceID() string {
	return GetString(TraceID)
}

func PutRemoteAddr(value string) {
	local().Store(RemoteAddr, value)
}

func GetRemoteAddr() string {
	return GetString(RemoteAddr)
}

func Put(key string, value interface{}) {
	local().Store(key, value)
}

func Get(key string) interface{} {
	if v, ok := local().Load(key); ok {
		return v
	}
	return nil
}

func GetString(key string) string {
	v, _ := Get(key).(string)
	return v
}

// Snapshot copies the current goroutine's values so they can be restored on another goroutine.
func Snapshot() map[string]interface{} {
	values := make(map[string]interface{})
	if value, ok := localMap.Load(gls.GoID()); ok {
		value.(*sync.Map).Range(func(k, v interface{}) bool {
			values[k.(string)] = v
			return true
		})
	}
	return values
}

func Restore(values map[string]interface{}) {
	m := local()
	for k, v := range values {
		m.Store(k, v)
	}
}

// Clean must be called before a pooled goroutine picks up unrelated work.
func Clean() {
	localMap.Delete(gls.GoID())
}
