package core

import (
	"fmt"
	"io"

	"github.com/josephlewis42/rush/core/logger"
	getopt "github.com/pborman/getopt/v2"
)

// BuiltinContext is what a built-in sees of the shell: the state it may
// change and its already redirected standard streams.
type BuiltinContext struct {
	State  *ShellState
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Exec runs nested commands with the built-in's state and descriptors.
	Exec *Executor
}

// ShellBuiltin is a command that runs inside the shell process.
type ShellBuiltin interface {
	Main(bc *BuiltinContext, args []string) int
}

type ShellBuiltinFunc func(bc *BuiltinContext, args []string) int

func (f ShellBuiltinFunc) Main(bc *BuiltinContext, args []string) int {
	return f(bc, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// BuiltinError is a built-in that failed, e.g. cd to a missing directory.
type BuiltinError struct {
	Name string
	Err  error
}

func (e *BuiltinError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *BuiltinError) Unwrap() error {
	return e.Err
}

// Fail reports err for the named built-in and returns status 1.
func (bc *BuiltinContext) Fail(name string, err error) int {
	return bc.FailStatus(1, name, err)
}

// FailStatus reports err for the named built-in and returns status.
func (bc *BuiltinContext) FailStatus(status int, name string, err error) int {
	builtinErr := &BuiltinError{Name: name, Err: err}
	prefix := "rush: "
	if bc.Exec != nil && bc.Exec.ErrorPrefix != "" {
		prefix = bc.Exec.ErrorPrefix
	}
	fmt.Fprintf(bc.Stderr, "%s%v\n", prefix, builtinErr)
	if bc.Exec != nil {
		bc.Exec.record(&logger.BuiltinFailure{
			Command: name,
			Error:   err.Error(),
			Status:  status,
		})
	}
	return status
}

// SimpleCommand parses a built-in's options with getopt and handles --help.
type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback.
// Invalid options print usage and return status 2.
func (s *SimpleCommand) Run(bc *BuiltinContext, args []string, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(args, nil); err != nil {
		status := bc.FailStatus(2, args[0], err)
		s.PrintHelp(bc.Stderr)
		return status
	}

	if *s.ShowHelp {
		s.PrintHelp(bc.Stdout)
		return 0
	}

	return callback()
}
