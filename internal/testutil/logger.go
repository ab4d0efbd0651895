// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/layermake/layermake/internal/logging"
)

type (
	// RecordingLogger is a logging.Logger that keeps every record in memory.
	RecordingLogger struct {
		mu      sync.Mutex
		Records []LogRecord
	}

	// LogRecord is one captured log call.
	LogRecord struct {
		Level   string
		Message string
		KeyVals []any
	}

	recordingStatus struct {
		log *RecordingLogger
	}
)

var _ logging.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger returns an empty recorder.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) record(level, msg string, keyvals []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Records = append(l.Records, LogRecord{Level: level, Message: msg, KeyVals: keyvals})
}

func (l *RecordingLogger) Debug(msg string, kv ...any)   { l.record("debug", msg, kv) }
func (l *RecordingLogger) Info(msg string, kv ...any)    { l.record("info", msg, kv) }
func (l *RecordingLogger) Success(msg string, kv ...any) { l.record("success", msg, kv) }
func (l *RecordingLogger) Warn(msg string, kv ...any)    { l.record("warn", msg, kv) }
func (l *RecordingLogger) Error(msg string, kv ...any)   { l.record("error", msg, kv) }

func (l *RecordingLogger) Status(msg string) logging.Status {
	l.record("status", msg, nil)
	return recordingStatus{log: l}
}

func (s recordingStatus) Update(msg string) { s.log.record("status", msg, nil) }
func (s recordingStatus) Done()             {}

// Messages returns the messages logged at level, each followed by its
// key/value pairs rendered as "k=v".
func (l *RecordingLogger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, r := range l.Records {
		if r.Level != level {
			continue
		}
		msg := r.Message
		for i := 0; i+1 < len(r.KeyVals); i += 2 {
			msg += fmt.Sprintf(" %v=%v", r.KeyVals[i], r.KeyVals[i+1])
		}
		out = append(out, msg)
	}
	return out
}

// Contains reports whether any record at level contains substr.
func (l *RecordingLogger) Contains(level, substr string) bool {
	for _, m := range l.Messages(level) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}
