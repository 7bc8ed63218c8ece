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
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	golocalv1 "github.com/caiflower/hussar/pkg/golocal/v1"
)

const (
	_trace = iota
	_debug
	_info
	_warn
	_error
	_fatal

	TraceLevel = "TRACE"
	DebugLevel = "DEBUG"
	InfoLevel  = "INFO"
	WarnLevel  = "WARN"
	ErrorLevel = "ERROR"
	FatalLevel = "FATAL"

	_timeFormat = "2006-01-02 15:04:05"
)

type ILog interface {
	Trace(text string, v ...interface{})
	Debug(text string, v ...interface{})
	Info(text string, v ...interface{})
	Warn(text string, v ...interface{})
	Error(text string, v ...interface{})
	Fatal(text string, v ...interface{})
}

type data struct {
	timestamp time.Time
	traceID   string
	position  string
	level     string
	content   string
}

var defaultLogger = newLoggerHandler(&Config{})

func Trace(text string, v ...interface{}) {
	defaultLogger.log(TraceLevel, text, v...)
}
func Debug(text string, v ...interface{}) {
	defaultLogger.log(DebugLevel, text, v...)
}
func Info(text string, v ...interface{}) {
	defaultLogger.log(InfoLevel, text, v...)
}
func Warn(text string, v ...interface{}) {
	defaultLogger.log(WarnLevel, text, v...)
}
func Error(text string, v ...interface{}) {
	defaultLogger.log(ErrorLevel, text, v...)
}
func Fatal(text string, v ...interface{}) {
	defaultLogger.log(FatalLevel, text, v...)
}

type LoggerHandler struct {
	lock        sync.RWMutex
	level       int32
	dataQueue   chan data
	logAppender Appender
	workers     sync.WaitGroup
	closed      bool
}

type Config struct {
	Level       string `yaml:"level"`       // 日志级别
	EnableTrace string `yaml:"trace"`       // 是否输出TraceID, True/False。默认True
	QueueLength int    `yaml:"queueLength"` // 缓存队列大小，默认50000
	AppenderNum int    `yaml:"appenderNum"` // 日志输出器数量，默认2
	TimeFormat  string `yaml:"timeFormat"`  // 日志时间输出格式
	Path        string `yaml:"path"`        // 日志存储目录，为空时输出到控制台
	FileName    string `yaml:"fileName"`    // 日志文件名称
	EnableColor string `yaml:"color"`       // 是否开启颜色
}

// LevelForVerbosity maps the -v count of the command line onto a level.
func LevelForVerbosity(verbosity int) string {
	switch {
	case verbosity <= 0:
		return WarnLevel
	case verbosity == 1:
		return InfoLevel
	default:
		return DebugLevel
	}
}

func DefaultLogger() *LoggerHandler {
	return defaultLogger
}

func InitLogger(config *Config) {
	old := defaultLogger
	defaultLogger = newLoggerHandler(config)
	old.Close()
}

func newLoggerHandler(config *Config) *LoggerHandler {
	if config.Level == "" {
		config.Level = InfoLevel
	}
	if config.QueueLength <= 0 {
		config.QueueLength = 50000
	}
	if config.AppenderNum <= 0 {
		config.AppenderNum = 2
	}
	if config.TimeFormat == "" {
		config.TimeFormat = _timeFormat
	}
	if config.FileName == "" {
		config.FileName = "hussar.log"
	}
	enableTrace := true
	if config.EnableTrace != "" {
		enableTrace, _ = strconv.ParseBool(config.EnableTrace)
	}
	enableColor := false
	if config.EnableColor != "" {
		enableColor, _ = strconv.ParseBool(config.EnableColor)
	}

	logger := &LoggerHandler{
		level:       int32(getLevel(config.Level)),
		dataQueue:   make(chan data, config.QueueLength),
		logAppender: newLogAppender(config.TimeFormat, config.Path, config.FileName, enableTrace, enableColor),
	}

	for i := 0; i < config.AppenderNum; i++ {
		logger.workers.Add(1)
		go func() {
			defer logger.workers.Done()
			for d := range logger.dataQueue {
				logger.logAppender.write(d)
			}
		}()
	}

	return logger
}

// Close drains the queue and releases the output file.
func (lh *LoggerHandler) Close() {
	lh.lock.Lock()
	if lh.closed {
		lh.lock.Unlock()
		return
	}
	lh.closed = true
	close(lh.dataQueue)
	lh.lock.Unlock()

	lh.workers.Wait()
	lh.logAppender.close()
}

func (lh *LoggerHandler) SetLevel(level string) {
	atomic.StoreInt32(&lh.level, int32(getLevel(level)))
}

func (lh *LoggerHandler) Enabled(level string) bool {
	return atomic.LoadInt32(&lh.level) <= int32(getLevel(level))
}

func (lh *LoggerHandler) Trace(text string, v ...interface{}) {
	lh.log(TraceLevel, text, v...)
}

func (lh *LoggerHandler) Debug(text string, v ...interface{}) {
	lh.log(DebugLevel, text, v...)
}

func (lh *LoggerHandler) Info(text string, v ...interface{}) {
	lh.log(InfoLevel, text, v...)
}

func (lh *LoggerHandler) Warn(text string, v ...interface{}) {
	lh.log(WarnLevel, text, v...)
}

func (lh *LoggerHandler) Error(text string, v ...interface{}) {
	lh.log(ErrorLevel, text, v...)
}

func (lh *LoggerHandler) Fatal(text string, v ...interface{}) {
	lh.log(FatalLevel, text, v...)
}

func getLevel(level string) int {
	switch level {
	case TraceLevel:
		return _trace
	case DebugLevel:
		return _debug
	case InfoLevel:
		return _info
	case WarnLevel:
		return _warn
	case ErrorLevel:
		return _error
	case FatalLevel:
		return _fatal
	default:
		return _trace
	}
}

func (lh *LoggerHandler) log(level string, text string, v ...interface{}) {
	if !lh.Enabled(level) {
		return
	}

	_, file, line, _ := runtime.Caller(2)
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			file = file[i+1:]
			break
		}
	}

	content := text
	if len(v) > 0 {
		content = fmt.Sprintf(text, v...)
	}

	lh.lock.RLock()
	defer lh.lock.RUnlock()
	if lh.closed {
		return
	}
	lh.dataQueue <- data{
		timestamp: time.Now(),
		level:     level,
		content:   content,
		traceID:   golocalv1.GetTraceID(),
		position:  fmt.Sprintf("%s:%d", file, line),
	}
}
