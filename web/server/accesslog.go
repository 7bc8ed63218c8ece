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

package server

import (
	"github.com/caiflower/hussar/pkg/logger"
	"github.com/caiflower/hussar/web/protocol"
	"github.com/fatih/color"
)

var (
	okColor       = color.New(color.FgGreen)
	redirectColor = color.New(color.FgCyan)
	clientColor   = color.New(color.FgYellow)
	serverColor   = color.New(color.FgRed)
)

func statusColor(code string) *color.Color {
	if code == "" {
		return serverColor
	}
	switch code[0] {
	case '2':
		return okColor
	case '3':
		return redirectColor
	case '4':
		return clientColor
	default:
		return serverColor
	}
}

// accessLog writes one INFO line per answered request.
func (s *HttpServer) accessLog(req *protocol.Request, resp *protocol.Response, cost int64) {
	if lh, ok := s.logger.(*logger.LoggerHandler); ok && !lh.Enabled(logger.InfoLevel) {
		return
	}

	line := "-"
	if req.WellFormed {
		line = req.Method + " " + req.Target + " " + req.Version
	}
	s.logger.Info("%s \"%s\" %s %d %dms %q",
		req.RemoteAddr, line, statusColor(resp.Code).Sprint(resp.Code), len(resp.Body), cost, req.UserAgent)
}
