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

var (
	crlf               = []byte("\r\n")
	headerEnd          = []byte("\r\n\r\n")
	headerSep          = []byte(": ")
	dashDash           = []byte("--")
	formData           = "form-data"
	contentDisposition = "content-disposition:"
	partContentType    = "content-type:"
)

// UploadedFile is one file part of a multipart/form-data body.
type UploadedFile struct {
	FieldName string
	FileName  string
	MimeType  string
	Data      []byte
	Valid     bool
}

// BoundaryFromContentType returns the boundary attribute of a multipart Content-Type value.
func BoundaryFromContentType(contentType string) string {
	for _, attr := range strings.Split(contentType, ";") {
		attr = strings.TrimSpace(attr)
		if len(attr) > len("boundary=") && strings.EqualFold(attr[:len("boundary=")], "boundary=") {
			return strings.Trim(attr[len("boundary="):], `"`)
		}
	}
	return ""
}

// ExtractFiles cuts body at every "--"+boundary marker and keeps the form-data parts.
// Parts without a form-data Content-Disposition or without a header/payload separator are
// skipped; the closing "--boundary--" marker ends the scan.
func ExtractFiles(boundary string, body []byte) []UploadedFile {
	if boundary == "" || len(body) == 0 {
		return nil
	}

	marker := append([]byte("--"), boundary...)
	pos := bytes.Index(body, marker)
	if pos < 0 {
		return nil
	}

	var files []UploadedFile
	for pos >= 0 {
		start := pos + len(marker)
		if bytes.HasPrefix(body[start:], dashDash) {
			break
		}
		if bytes.HasPrefix(body[start:], crlf) {
			start += len(crlf)
		}

		var part []byte
		next := bytes.Index(body[start:], marker)
		if next < 0 {
			part = body[start:]
			pos = -1
		} else {
			part = bytes.TrimSuffix(body[start:start+next], crlf)
			pos = start + next
		}

		if file, ok := parsePart(part); ok {
			files = append(files, file)
		}
	}
	return files
}

func parsePart(part []byte) (UploadedFile, bool) {
	var file UploadedFile

	header, data, ok := SplitOnce(part, headerEnd)
	if !ok {
		return file, false
	}

	isFormData := false
	for _, line := range SplitBytes(header, crlf) {
		l := string(line)
		lower := strings.ToLower(l)
		switch {
		case strings.HasPrefix(lower, contentDisposition):
			isFormData = parseDisposition(TrimControlRight(strings.TrimSpace(l[len(contentDisposition):])), &file)
		case strings.HasPrefix(lower, partContentType):
			file.MimeType = TrimControlRight(strings.TrimSpace(l[len(partContentType):]))
		}
	}
	if !isFormData {
		return file, false
	}

	file.Data = data
	file.Valid = true
	return file, true
}

func parseDisposition(value string, file *UploadedFile) bool {
	attrs := strings.Split(value, "; ")
	if attrs[0] != formData {
		return false
	}
	for _, attr := range attrs[1:] {
		key, val, found := strings.Cut(attr, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "name":
			file.FieldName = filterPartName(val)
		case "filename":
			file.FileName = filterPartName(val)
		}
	}
	return true
}

// filterPartName drops quotes, path separators and control bytes so a client file name
// can never name a directory.
func filterPartName(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '/' || c == '\\' || c < 0x20 || c == 0x7F {
			continue
		}
		b = append(b, c)
	}
	name := strings.TrimSpace(string(b))
	if name == "." || name == ".." {
		return ""
	}
	return name
}
