package core

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/josephlewis42/rush/core/logger"
	"github.com/josephlewis42/rush/core/shell"
)

// ScriptMode controls what happens when a statement fails.
type ScriptMode int

const (
	// IgnoreErrors runs every statement, like sourcing a file.
	IgnoreErrors ScriptMode = iota
	// StopOnError stops at the first statement with a nonzero status.
	StopOnError
)

const maxLineLength = 1024 * 1024

// RunLine feeds one line to parser and runs the statement once it's
// complete. ran is false if the line held no statement or the statement
// continues on the next line. Syntax errors are reported and give status 2.
func (e *Executor) RunLine(parser *shell.Parser, line string) (status int, ran bool) {
	list, err := parser.ParseLine(line)
	if err != nil {
		e.syntaxError(line, err)
		e.State.LastStatus = 2
		return 2, true
	}
	if list == nil {
		return e.State.LastStatus, false
	}
	return e.Run(list, false, nil), true
}

// RunString runs src as a complete piece of shell text. Unterminated quotes
// or here-documents are syntax errors.
func (e *Executor) RunString(src string) int {
	list, err := shell.Parse(src)
	if errors.Is(err, shell.ErrIncomplete) {
		err = &shell.SyntaxError{Op: "newline", Pos: len(src), Err: shell.ErrIncomplete}
	}
	if err != nil {
		e.syntaxError(src, err)
		e.State.LastStatus = 2
		return 2
	}
	return e.Run(list, false, nil)
}

func (e *Executor) syntaxError(line string, err error) {
	event := &logger.SyntaxError{Line: line, Error: err.Error()}
	var syntaxErr *shell.SyntaxError
	if errors.As(err, &syntaxErr) {
		event.Operator = syntaxErr.Op
	}

	e.errorf("%v", err)
	e.record(event)
}

// RunLines reads statements from r line by line and runs them. It stops at
// end of input, when the shell exits, or in StopOnError mode at the first
// failing statement. The status is that of the last statement run, or the
// exit code if the shell exited.
func (e *Executor) RunLines(r io.Reader, mode ScriptMode) int {
	parser := shell.NewParser()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	status := 0
	for scanner.Scan() {
		lineStatus, ran := e.RunLine(parser, scanner.Text())
		if code, exited := e.State.Exited(); exited {
			return code
		}
		if !ran {
			continue
		}
		status = lineStatus
		if mode == StopOnError && status != 0 {
			return status
		}
	}

	if err := scanner.Err(); err != nil {
		e.errorf("read: %v", err)
		return 1
	}

	if parser.Pending() {
		parser.Reset()
		e.syntaxError("", &shell.SyntaxError{Op: "newline", Err: shell.ErrIncomplete})
		e.State.LastStatus = 2
		return 2
	}

	return status
}

// Source runs the file at path in the current state, ignoring failures of
// individual statements. If args is non-nil the positional parameters are
// replaced while the file runs.
func (e *Executor) Source(path string, args []string) int {
	fd, err := os.Open(e.State.Abs(path))
	if err != nil {
		e.errorf("%v", &RedirectError{Target: path, Err: underlying(err)})
		return 1
	}
	defer fd.Close()

	if args != nil {
		saved := e.State.Args
		e.State.Args = append([]string{e.State.Args[0]}, args...)
		defer func() { e.State.Args = saved }()
	}

	return e.RunLines(fd, IgnoreErrors)
}

// RunScript runs the file at path as a script with the given arguments,
// stopping at the first failing statement.
func (e *Executor) RunScript(path string, args []string) int {
	fd, err := os.Open(e.State.Abs(path))
	if err != nil {
		e.errorf("%v", &RedirectError{Target: path, Err: underlying(err)})
		return 127
	}
	defer fd.Close()

	e.State.Args = append([]string{path}, args...)
	return e.RunLines(fd, StopOnError)
}
