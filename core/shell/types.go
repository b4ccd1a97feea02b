package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned by Parse when the text needs another line.
	ErrIncomplete = errors.New("unexpected end of input")

	// ErrDanglingOperator is an operator missing its operand, e.g. a
	// trailing "|" or a ">" without a file name.
	ErrDanglingOperator = errors.New("operator without operand")

	// ErrBadRedirect is a malformed descriptor duplication such as "2>&x".
	ErrBadRedirect = errors.New("bad redirection")
)

// SyntaxError describes why a statement was rejected.
type SyntaxError struct {
	// Op is the offending operator, or "newline" at the end of input.
	Op string
	// Pos is the byte offset of Op in the statement text.
	Pos int
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error near %q: %v", e.Op, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// RedirectKind is the type of a redirection.
type RedirectKind int

const (
	RedirectInput   RedirectKind = iota // <
	RedirectOutput                      // >
	RedirectAppend                      // >>
	RedirectHeredoc                     // << and <<-
	RedirectDup                         // <& and >&
	RedirectClose                       // <&- and >&-
)

func (k RedirectKind) String() string {
	switch k {
	case RedirectInput:
		return "input"
	case RedirectOutput:
		return "output"
	case RedirectAppend:
		return "append"
	case RedirectHeredoc:
		return "heredoc"
	case RedirectDup:
		return "dup"
	case RedirectClose:
		return "close"
	default:
		return fmt.Sprintf("redirect(%d)", int(k))
	}
}

// RedirectSpec is one redirection attached to a command.
type RedirectSpec struct {
	Kind RedirectKind
	// Op is the operator as written, without the descriptor number.
	Op string
	// SourceFD is the descriptor being redirected. It defaults to 0 for
	// input operators and 1 for output operators.
	SourceFD int
	// Target is the file name, the duplicated descriptor as written, or the
	// here-document delimiter.
	Target Word
	// TargetFD is the descriptor copied onto SourceFD for RedirectDup.
	TargetFD int
	// Body holds here-document text.
	Body string
	// Expand is set when parameters in Body should be expanded, i.e. the
	// delimiter was not quoted.
	Expand bool
}

// Assign is a NAME=value prefix of a command.
type Assign struct {
	Name  string
	Value Word
}

// Command is a simple command: assignments, arguments and redirections.
type Command struct {
	Assigns   []Assign
	Args      []Word
	Redirects []RedirectSpec
}

func (c *Command) empty() bool {
	return len(c.Assigns) == 0 && len(c.Args) == 0 && len(c.Redirects) == 0
}

// Argv returns the arguments without expansion.
func (c *Command) Argv() []string {
	out := make([]string, 0, len(c.Args))
	for _, arg := range c.Args {
		out = append(out, arg.Literal())
	}
	return out
}

// Pipeline is one or more commands connected stdout to stdin.
type Pipeline struct {
	Commands   []*Command
	Background bool
}

// JoinOp controls whether the pipeline after it runs.
type JoinOp int

const (
	JoinEnd        JoinOp = iota // last pipeline of the list
	JoinSequential               // ; or &
	JoinAndThen                  // &&
	JoinOrElse                   // ||
)

func (op JoinOp) String() string {
	switch op {
	case JoinEnd:
		return ""
	case JoinSequential:
		return ";"
	case JoinAndThen:
		return "&&"
	case JoinOrElse:
		return "||"
	default:
		return fmt.Sprintf("join(%d)", int(op))
	}
}

// Step is a pipeline with the operator that follows it.
type Step struct {
	Pipeline *Pipeline
	Op       JoinOp
}

// CommandList is a parsed statement.
type CommandList struct {
	Steps []Step
}
