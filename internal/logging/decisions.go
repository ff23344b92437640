package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DecisionsFile is the decision trace file name inside the store directory.
const DecisionsFile = "decisions.jsonl"

// ClassifyEvent summarizes how a registry was split into stocks and
// auxiliaries.
type ClassifyEvent struct {
	Model       string   `json:"model"`
	Markers     []string `json:"markers"`
	Stocks      int      `json:"stocks"`
	Auxiliaries int      `json:"auxiliaries"`
	Flows       int      `json:"flows"`
}

// ResolveEvent records one name lookup. Scope names the vocabulary searched:
// "variable", "stock", "auxiliary" and so on.
type ResolveEvent struct {
	Scope      string   `json:"scope"`
	Query      string   `json:"query"`
	Status     string   `json:"status"`
	Match      string   `json:"match,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// SolveEvent records one solve, finished or not. Error is set when the
// solve stopped early.
type SolveEvent struct {
	Model    string        `json:"model"`
	Start    float64       `json:"start"`
	Stop     float64       `json:"stop"`
	Step     float64       `json:"step"`
	Steps    int           `json:"steps"`
	States   int           `json:"states"`
	Observed int           `json:"observed"`
	Recorded int           `json:"recorded"`
	Elapsed  time.Duration `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// DecisionLogger writes structured decision events to a JSONL file.
// It is safe for concurrent use. A nil DecisionLogger is safe to use;
// all methods are no-ops on nil receiver.
type DecisionLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDecisionLogger creates a decision logger writing to dir/decisions.jsonl.
// At "info" level (the default), returns nil; no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, DecisionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &DecisionLogger{file: f}
}

type header struct {
	Time  string `json:"time"`
	Event string `json:"event"`
}

// Classified records a classification summary.
func (dl *DecisionLogger) Classified(e ClassifyEvent) {
	if e.Markers == nil {
		e.Markers = []string{}
	}
	dl.write(struct {
		header
		ClassifyEvent
	}{dl.header("classify"), e})
}

// Resolved records a name lookup.
func (dl *DecisionLogger) Resolved(e ResolveEvent) {
	dl.write(struct {
		header
		ResolveEvent
	}{dl.header("resolve"), e})
}

// Solved records a solve.
func (dl *DecisionLogger) Solved(e SolveEvent) {
	dl.write(struct {
		header
		SolveEvent
		ElapsedMS int64 `json:"elapsed_ms"`
	}{dl.header("solve"), e, e.Elapsed.Milliseconds()})
}

func (dl *DecisionLogger) header(event string) header {
	return header{Time: time.Now().UTC().Format(time.RFC3339Nano), Event: event}
}

// write appends v as a single JSONL line. Safe to call on nil receiver.
func (dl *DecisionLogger) write(v any) {
	if dl == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	_, _ = dl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (dl *DecisionLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	dl.file.Close()
	dl.file = nil
}
