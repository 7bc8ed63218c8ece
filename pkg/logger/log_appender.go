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

package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Appender interface {
	write(data data)
	close()
}

var levelColors = map[string]*color.Color{
	TraceLevel: color.New(color.FgWhite, color.Bold),
	DebugLevel: color.New(color.FgCyan, color.Bold),
	InfoLevel:  color.New(color.FgGreen, color.Bold),
	WarnLevel:  color.New(color.FgYellow, color.Bold),
	ErrorLevel: color.New(color.FgRed, color.Bold),
	FatalLevel: color.New(color.FgRed, color.Bold),
}

var traceColor = color.New(color.FgMagenta, color.Bold)

type logAppender struct {
	timeFormat  string
	isConsole   bool
	enableTrace bool
	enableColor bool
	dir         string
	fileName    string

	bufPool   sync.Pool
	log       *log.Logger
	writeLock sync.Mutex
	logFile   *os.File
}

func newLogAppender(timeFormat, path, fileName string, enableTrace, enableColor bool) Appender {
	appender := &logAppender{
		timeFormat: timeFormat,
		bufPool: sync.Pool{
			New: func() interface{} {
				return new(strings.Builder)
			}},
		dir:         path,
		fileName:    fileName,
		enableTrace: enableTrace,
		enableColor: enableColor,
		log:         new(log.Logger),
	}

	if appender.dir == "" {
		appender.isConsole = true
		appender.log.SetOutput(os.Stdout)
		return appender
	}

	if err := os.MkdirAll(appender.dir, 0755); err != nil {
		panic(fmt.Sprintf("[logger appender] mkdir err: %s\n", err))
	}
	logfile, err := os.OpenFile(filepath.Join(appender.dir, appender.fileName), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("[logger appender] open logfile err: %s\n", err))
	}
	appender.logFile = logfile
	appender.log.SetOutput(logfile)
	// colors only make sense on a terminal
	appender.enableColor = false

	return appender
}

func (appender *logAppender) format(d data) string {
	level := d.level
	traceID := d.traceID
	if appender.enableColor {
		if c, ok := levelColors[level]; ok {
			level = c.Sprint(level)
		}
		if traceID != "" {
			traceID = traceColor.Sprint(traceID)
		}
	}

	buf := appender.bufPool.Get().(*strings.Builder)
	defer func() {
		buf.Reset()
		appender.bufPool.Put(buf)
	}()
	buf.WriteString(d.timestamp.Format(appender.timeFormat))
	buf.WriteString(" [")
	buf.WriteString(level)
	buf.WriteString("] ")
	if appender.enableTrace && traceID != "" {
		buf.WriteString("[")
		buf.WriteString(traceID)
		buf.WriteString("] ")
	}
	buf.WriteString(d.position)
	buf.WriteString(" - ")
	buf.WriteString(d.content)
	return buf.String()
}

func (appender *logAppender) write(d data) {
	defer onError("[logger appender]")

	line := appender.format(d)

	// one line per Println keeps concurrent workers from interleaving
	appender.writeLock.Lock()
	defer appender.writeLock.Unlock()
	appender.log.Println(line)
}

func (appender *logAppender) close() {
	appender.writeLock.Lock()
	defer appender.writeLock.Unlock()

	if appender.logFile != nil {
		if err := appender.logFile.Sync(); err != nil {
			fmt.Printf("[logger close] sync log file err: %s\n", err)
		}
		if err := appender.logFile.Close(); err != nil {
			fmt.Printf("[logger appender] close logfile err: %s\n", err)
		}
		appender.logFile = nil
	}
}

// 拦截panic
func onError(txt string) {
	if r := recover(); r != nil {
		fmt.Printf("%s [ERROR] - Got a runtime error %s. %v\n%s", time.Now().Format(_timeFormat), txt, r, string(debug.Stack()))
	}
}
