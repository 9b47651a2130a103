// Copyright (C) 2024 The Firtree Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package xlog provides a small context-threaded logger. Log records
// carry whatever key/value pairs have been attached to the context
// along the call chain. A record below the minimum severity, or logged
// while no handler is installed, is dropped before it reaches a
// handler; its message is still formatted by the logging call.
package xlog

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Severity orders log records from least to most urgent.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Handler receives formatted records. Install one with SetHandler;
// the zero value of the package writes Warning and above to stderr.
type Handler func(Record)

// Record is a single emitted log line.
type Record struct {
	Time     time.Time
	Severity Severity
	Message  string
	Values   map[string]interface{}
}

type ctxKey struct{}

type state struct {
	values map[string]interface{}
}

var handler Handler = stderrHandler
var minSeverity = Warning

// SetHandler installs the process-wide log sink.
func SetHandler(h Handler) { handler = h }

// SetMinSeverity suppresses records below the given severity.
func SetMinSeverity(s Severity) { minSeverity = s }

func stderrHandler(r Record) {
	fmt.Fprintf(os.Stderr, "%s [%s] %s %v\n", r.Time.Format(time.RFC3339), r.Severity, r.Message, r.Values)
}

// With returns a derived context carrying an additional key/value
// pair that will be attached to every record logged through it.
func With(ctx context.Context, key string, value interface{}) context.Context {
	prev, _ := ctx.Value(ctxKey{}).(*state)
	values := map[string]interface{}{}
	if prev != nil {
		for k, v := range prev.values {
			values[k] = v
		}
	}
	values[key] = value
	return context.WithValue(ctx, ctxKey{}, &state{values: values})
}

func valuesOf(ctx context.Context) map[string]interface{} {
	if s, ok := ctx.Value(ctxKey{}).(*state); ok {
		return s.values
	}
	return nil
}

func emit(ctx context.Context, sev Severity, msg string) {
	if sev < minSeverity || handler == nil {
		return
	}
	handler(Record{Time: time.Now(), Severity: sev, Message: msg, Values: valuesOf(ctx)})
}

// Debugf logs at Debug severity.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, Debug, fmt.Sprintf(format, args...))
}

// Infof logs at Info severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, Info, fmt.Sprintf(format, args...))
}

// Warningf logs at Warning severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, Warning, fmt.Sprintf(format, args...))
}

// Errorf logs at Error severity. The error is also attached to the
// record's values under the "error" key.
func Errorf(ctx context.Context, err error, format string, args ...interface{}) {
	ctx = With(ctx, "error", err)
	emit(ctx, Error, fmt.Sprintf(format, args...))
}
