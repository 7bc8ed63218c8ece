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

package e

import (
	"errors"
	"fmt"

	"github.com/caiflower/hussar/web/protocol"
)

// ServerError is a failure the connection handler answers with a status page before closing.
type ServerError interface {
	error
	GetCode() string
	GetType() string
	GetPage() string
}

type serverError struct {
	Code    string
	Type    string
	Page    string
	Message string
	Cause   error
}

func (e *serverError) GetCode() string {
	return e.Code
}

func (e *serverError) GetType() string {
	return e.Type
}

func (e *serverError) GetPage() string {
	return e.Page
}

func (e *serverError) Unwrap() error {
	return e.Cause
}

func (e *serverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type ErrorCode struct {
	Code string
	Type string
	Page string
}

var (
	HeaderTooLarge  = &ErrorCode{Code: protocol.StatusHeaderTooLarge, Type: "HeaderTooLarge", Page: "<h1>431: Request Header Fields Too Large</h1>"}
	BodyTooLarge    = &ErrorCode{Code: protocol.StatusRequestTooLarge, Type: "BodyTooLarge", Page: "<h1>413: Payload Too Large</h1>"}
	TooManyRequests = &ErrorCode{Code: protocol.StatusTooManyRequests, Type: "TooManyRequests", Page: "<h1>429: Too Many Requests</h1>"}
	Internal        = &ErrorCode{Code: protocol.StatusInternalServerError, Type: "InternalError", Page: protocol.PageInternalError}
)

func NewServerError(errCode *ErrorCode, msg string, err error) ServerError {
	return &serverError{
		Code:    errCode.Code,
		Type:    errCode.Type,
		Page:    errCode.Page,
		Message: msg,
		Cause:   err,
	}
}

var (
	ErrServerClosed  = errors.New("hussar: server closed")
	ErrNotListening  = errors.New("hussar: server is not listening")
	ErrAlreadyServed = errors.New("hussar: server already serving")
)

// AsServerError finds a ServerError in err's chain.
func AsServerError(err error) (ServerError, bool) {
	var se ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
