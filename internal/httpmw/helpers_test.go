package httpmw

import (
	"context"
	"sync"

	"github.com/keithlinneman/newsfront/internal/log"
)

type capturedLog struct {
	level  string
	msg    string
	err    error
	fields []any
}

// spyLogger records every call. With returns the same spy with the fields
// appended to withs, so records from derived loggers land here too.
type spyLogger struct {
	mu      sync.Mutex
	records []capturedLog
	withs   [][]any
}

func newSpyLogger() *spyLogger { return &spyLogger{} }

func (s *spyLogger) With(kv ...any) log.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withs = append(s.withs, kv)
	return s
}

func (s *spyLogger) add(level, msg string, err error, kv []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, capturedLog{level: level, msg: msg, err: err, fields: kv})
}

func (s *spyLogger) Debug(_ context.Context, msg string, kv ...any) { s.add("debug", msg, nil, kv) }
func (s *spyLogger) Info(_ context.Context, msg string, kv ...any)  { s.add("info", msg, nil, kv) }
func (s *spyLogger) Warn(_ context.Context, msg string, kv ...any)  { s.add("warn", msg, nil, kv) }
func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.add("error", msg, err, kv)
}
func (s *spyLogger) Sync() error { return nil }

func (s *spyLogger) byLevel(level string) []capturedLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []capturedLog
	for _, r := range s.records {
		if r.level == level {
			out = append(out, r)
		}
	}
	return out
}

func (s *spyLogger) allWith() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, kv := range s.withs {
		out = append(out, kv...)
	}
	return out
}

// field returns the value following key in a flat kv list.
func field(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			return kv[i+1], true
		}
	}
	return nil, false
}
