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

package static

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caiflower/hussar/web/protocol"
)

const PageFileNotFound = "<h1>404: File Not found!</h1>"

var (
	slashes = regexp.MustCompile(`/+`)
	dots    = regexp.MustCompile(`\.\.+`)
)

// CleanTarget collapses repeated slashes, drops every run of two or more dots and maps "/" onto
// "/index.html".
func CleanTarget(target string) string {
	target = slashes.ReplaceAllString(target, "/")
	target = dots.ReplaceAllString(target, "")
	target = slashes.ReplaceAllString(target, "/")
	if target == "/" || target == "" {
		return "/index.html"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return target
}

// Resolve loads target from docRoot. A missing document yields docRoot/404.html, or a built-in
// page when that is missing too, with status 404.
func Resolve(docRoot, target string) (data []byte, mime string, status string) {
	document := CleanTarget(target)
	if content, ok := readDocument(docRoot, document); ok {
		return content, ContentType(document), protocol.StatusOK
	}

	if content, ok := readDocument(docRoot, "/404.html"); ok {
		return content, "text/html", protocol.StatusNotFound
	}
	return []byte(PageFileNotFound), "text/html", protocol.StatusNotFound
}

func readDocument(docRoot, document string) ([]byte, bool) {
	root, err := filepath.Abs(docRoot)
	if err != nil {
		return nil, false
	}
	path := filepath.Join(root, filepath.FromSlash(document))
	if rel, err := filepath.Rel(root, path); err != nil || strings.HasPrefix(rel, "..") {
		return nil, false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return content, true
}

// Handler serves documents from docRoot. HEAD requests get the headers only.
func Handler(docRoot string) func(req *protocol.Request, resp *protocol.Response) {
	return func(req *protocol.Request, resp *protocol.Response) {
		data, mime, status := Resolve(docRoot, req.Path)
		resp.Code = status
		resp.SetHeader("Content-Type", mime)
		resp.Body = data
	}
}
