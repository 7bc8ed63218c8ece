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

package router

import (
	"fmt"
	"sync/atomic"

	"github.com/caiflower/hussar/pkg/logger"
	"github.com/caiflower/hussar/web/protocol"
)

// Handler fills resp for req. The request is shared and must not be modified.
type Handler func(req *protocol.Request, resp *protocol.Response)

type routes map[string]Handler

// Router maps an exact (method, path) onto a Handler. GET, HEAD and POST live in the primary
// tables; any other method token is looked up in the alternate table. Misses go to the fallback.
//
// Routes are registered before the server starts. Dispatch reads the tables without locking, so
// once Freeze is called further registrations are refused.
type Router struct {
	primary  map[string]routes
	alt      map[string]routes
	fallback Handler
	frozen   int32
}

func NewRouter() *Router {
	return &Router{
		primary: map[string]routes{
			protocol.MethodGet:  {},
			protocol.MethodHead: {},
			protocol.MethodPost: {},
		},
		alt:      map[string]routes{},
		fallback: NotImplemented,
	}
}

// NotImplemented is the fallback until RegisterFallback replaces it.
func NotImplemented(_ *protocol.Request, resp *protocol.Response) {
	resp.NotImplemented()
}

func (r *Router) Freeze() {
	atomic.StoreInt32(&r.frozen, 1)
}

func (r *Router) Frozen() bool {
	return atomic.LoadInt32(&r.frozen) == 1
}

func (r *Router) writable(what string) bool {
	if r.Frozen() {
		logger.Error("[router] %s refused, the router is already serving", what)
		return false
	}
	return true
}

// Register adds h for method and path. Methods other than GET, HEAD and POST go to the alternate table.
func (r *Router) Register(method, path string, h Handler) {
	table, ok := r.primary[method]
	if !ok {
		r.RegisterAlt(method, path, h)
		return
	}
	if h == nil || !r.writable(fmt.Sprintf("register %s %s", method, path)) {
		return
	}
	table[path] = h
}

func (r *Router) GET(path string, h Handler) {
	r.Register(protocol.MethodGet, path, h)
}

func (r *Router) HEAD(path string, h Handler) {
	r.Register(protocol.MethodHead, path, h)
}

func (r *Router) POST(path string, h Handler) {
	r.Register(protocol.MethodPost, path, h)
}

// RegisterAlt adds h for a method outside the primary set, e.g. PUT or DELETE.
func (r *Router) RegisterAlt(method, path string, h Handler) {
	if method == "" || h == nil || !r.writable(fmt.Sprintf("register alt %s %s", method, path)) {
		return
	}
	table, ok := r.alt[method]
	if !ok {
		table = routes{}
		r.alt[method] = table
	}
	table[path] = h
}

func (r *Router) RegisterFallback(h Handler) {
	if h == nil || !r.writable("register fallback") {
		return
	}
	r.fallback = h
}

// HasAltMethod reports whether any alternate route uses method. The request parser accepts such
// methods in addition to the primary three.
func (r *Router) HasAltMethod(method string) bool {
	_, ok := r.alt[method]
	return ok
}

// Dispatch runs the matching handler. A malformed request is answered with 400 without
// looking at any table.
func (r *Router) Dispatch(req *protocol.Request, resp *protocol.Response) {
	if !req.WellFormed {
		resp.BadRequest()
		return
	}

	table, ok := r.primary[req.Method]
	if !ok {
		table = r.alt[req.Method]
	}
	if h, ok := table[req.Path]; ok {
		h(req, resp)
		return
	}
	r.fallback(req, resp)
}
