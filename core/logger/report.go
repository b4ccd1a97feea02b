package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	RunCommand      RunCommandReport      `json:"run_command_report"`
	UnknownCommand  UnknownCommandReport  `json:"unknown_command_report"`
	SyntaxError     SyntaxErrorReport     `json:"syntax_error_report"`
	RedirectFailure RedirectFailureReport `json:"redirect_failure_report"`
	BuiltinFailure  BuiltinFailureReport  `json:"builtin_failure_report"`
	JobExit         JobExitReport         `json:"job_exit_report"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		RedirectFailure: RedirectFailureReport{
			Failures: NewPathCounter("target", "error"),
		},
		BuiltinFailure: BuiltinFailureReport{
			Failures: NewPathCounter("command", "error"),
		},
	}
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	if le.SessionID != "" {
		r.Sessions.Increment(le.SessionID)
	}

	switch event := le.GetLogType().(type) {
	case *RunCommand:
		r.RunCommand.update(event)
	case *UnknownCommand:
		r.UnknownCommand.update(event)
	case *SyntaxError:
		r.SyntaxError.update(event)
	case *RedirectFailure:
		r.RedirectFailure.update(event)
	case *BuiltinFailure:
		r.BuiltinFailure.update(event)
	case *JobExit:
		r.JobExit.update(event)
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%T", event))
	}
}

type RunCommandReport struct {
	// Name of the resolved command
	ResolvedCommandPaths StrCounter `json:"resolved_command_names"`
	// Name of the command
	CommandNames StrCounter `json:"command_names"`
	Builtins     int        `json:"builtins"`
	Background   int        `json:"background"`
}

func (r *RunCommandReport) update(rc *RunCommand) {
	if rc.ResolvedCommandPath != "" {
		r.ResolvedCommandPaths.Increment(rc.ResolvedCommandPath)
	}
	if len(rc.Command) > 0 {
		r.CommandNames.Increment(rc.Command[0])
	}
	if rc.Builtin {
		r.Builtins++
	}
	if rc.Background {
		r.Background++
	}
}

type UnknownCommandReport struct {
	CommandNames    StrCounter `json:"command_names"`
	CommandStatuses StrCounter `json:"command_statuses"`
}

func (r *UnknownCommandReport) update(logEntry *UnknownCommand) {
	if len(logEntry.Command) > 0 {
		r.CommandNames.Increment(logEntry.Command[0])
	}

	r.CommandStatuses.Increment(fmt.Sprintf("%d", logEntry.Status))
}

type SyntaxErrorReport struct {
	Operators StrCounter `json:"operators"`
	Lines     []string   `json:"lines"`
}

func (r *SyntaxErrorReport) update(logEntry *SyntaxError) {
	r.Operators.Increment(logEntry.Operator)
	r.Lines = append(r.Lines, logEntry.Line)
}

type RedirectFailureReport struct {
	Failures *PathCounter `json:"failures"`
}

func (r *RedirectFailureReport) update(logEntry *RedirectFailure) {
	if r.Failures == nil {
		r.Failures = NewPathCounter("target", "error")
	}
	r.Failures.Increment(logEntry.Target, logEntry.Error)
}

type BuiltinFailureReport struct {
	Failures *PathCounter `json:"failures"`
}

func (r *BuiltinFailureReport) update(logEntry *BuiltinFailure) {
	if r.Failures == nil {
		r.Failures = NewPathCounter("command", "error")
	}
	r.Failures.Increment(logEntry.Command, logEntry.Error)
}

type JobExitReport struct {
	Count    int        `json:"count"`
	Statuses StrCounter `json:"statuses"`
	Commands StrCounter `json:"commands"`
}

func (r *JobExitReport) update(logEntry *JobExit) {
	r.Count++
	r.Statuses.Increment(fmt.Sprintf("%d", logEntry.Status))
	if name := strings.Fields(logEntry.Command); len(name) > 0 {
		r.Commands.Increment(name[0])
	}
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Count returns how many times key was seen.
func (s *StrCounter) Count(key string) int {
	return s.internal[key]
}

// MarshalJSON implements a custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts combinations of column values.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Count returns how many times the combination of values was seen.
func (ctr *PathCounter) Count(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implements a custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
