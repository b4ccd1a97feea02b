// Package logger is a standardized event logging framework for the shell.
//
// Each event is written as one JSON object per line with exactly one of the
// event fields set.
package logger

// LogEntry is a single logged event.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	RunCommand      *RunCommand      `json:"run_command,omitempty"`
	UnknownCommand  *UnknownCommand  `json:"unknown_command,omitempty"`
	SyntaxError     *SyntaxError     `json:"syntax_error,omitempty"`
	RedirectFailure *RedirectFailure `json:"redirect_failure,omitempty"`
	BuiltinFailure  *BuiltinFailure  `json:"builtin_failure,omitempty"`
	JobExit         *JobExit         `json:"job_exit,omitempty"`
}

// LogType is implemented by every event that can be recorded.
type LogType interface {
	setOn(le *LogEntry)
}

// GetLogType returns the event held by the entry, nil if there is none.
func (le *LogEntry) GetLogType() LogType {
	switch {
	case le.RunCommand != nil:
		return le.RunCommand
	case le.UnknownCommand != nil:
		return le.UnknownCommand
	case le.SyntaxError != nil:
		return le.SyntaxError
	case le.RedirectFailure != nil:
		return le.RedirectFailure
	case le.BuiltinFailure != nil:
		return le.BuiltinFailure
	case le.JobExit != nil:
		return le.JobExit
	default:
		return nil
	}
}

// RunCommand is a command that was started.
type RunCommand struct {
	Command []string `json:"command"`
	// ResolvedCommandPath is the executable, empty for built-ins.
	ResolvedCommandPath string `json:"resolved_command_path,omitempty"`
	Builtin             bool   `json:"builtin,omitempty"`
	Dir                 string `json:"dir,omitempty"`
	Background          bool   `json:"background,omitempty"`
}

func (e *RunCommand) setOn(le *LogEntry) { le.RunCommand = e }

// UnknownCommand is a command that couldn't be resolved.
type UnknownCommand struct {
	Command      []string `json:"command"`
	Status       int      `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

func (e *UnknownCommand) setOn(le *LogEntry) { le.UnknownCommand = e }

// SyntaxError is a statement that was rejected by the parser.
type SyntaxError struct {
	Line     string `json:"line"`
	Operator string `json:"operator,omitempty"`
	Error    string `json:"error"`
}

func (e *SyntaxError) setOn(le *LogEntry) { le.SyntaxError = e }

// RedirectFailure is a redirection that couldn't be set up.
type RedirectFailure struct {
	Command []string `json:"command,omitempty"`
	Target  string   `json:"target"`
	Error   string   `json:"error"`
}

func (e *RedirectFailure) setOn(le *LogEntry) { le.RedirectFailure = e }

// BuiltinFailure is a built-in that returned an error.
type BuiltinFailure struct {
	Command string `json:"command"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

func (e *BuiltinFailure) setOn(le *LogEntry) { le.BuiltinFailure = e }

// JobExit is a background job that finished.
type JobExit struct {
	JobID   int    `json:"job_id"`
	Command string `json:"command"`
	Status  int    `json:"status"`
}

func (e *JobExit) setOn(le *LogEntry) { le.JobExit = e }
