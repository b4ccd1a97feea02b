package core

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/josephlewis42/rush/core/env"
	"github.com/josephlewis42/rush/core/shell"
	"golang.org/x/sys/unix"
)

const (
	EnvHome     = "HOME"
	EnvPWD      = "PWD"
	EnvOldPWD   = "OLDPWD"
	EnvPath     = "PATH"
	EnvPrompt   = "PS1"
	EnvHostname = "HOSTNAME"
	EnvUser     = "USER"

	// DefaultPath is searched for commands when PATH is unset.
	DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

// ShellState is everything a shell carries from one statement to the next.
//
// Commands never change the process working directory or environment;
// children receive Dir and the exported Vars when they're started.
type ShellState struct {
	// Dir is the absolute working directory.
	Dir  string
	Vars *env.Vars
	// Args are the positional parameters, Args[0] is the shell or script name.
	Args []string
	// LastStatus is the status of the most recent pipeline, $?.
	LastStatus int
	// Pid is reported as $$.
	Pid int

	exited   bool
	exitCode int
}

// NewShellState creates a state rooted at dir. If dir is empty the process
// working directory is used, falling back to / if it can't be read.
func NewShellState(dir string, vars *env.Vars, args []string) *ShellState {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "/"
		}
		dir = wd
	}
	if vars == nil {
		vars = env.New()
	}
	if len(args) == 0 {
		args = []string{"rush"}
	}

	state := &ShellState{
		Dir:  filepath.Clean(dir),
		Vars: vars,
		Args: args,
		Pid:  os.Getpid(),
	}
	state.Vars.Set(EnvPWD, state.Dir)
	state.Vars.Export(EnvPWD)
	return state
}

// Clone returns an independent copy for running commands in a subshell.
func (s *ShellState) Clone() *ShellState {
	out := *s
	out.Vars = s.Vars.Clone()
	out.Args = append([]string(nil), s.Args...)
	return &out
}

// Param resolves a parameter name, including the special parameters.
func (s *ShellState) Param(name string) (string, bool) {
	switch name {
	case "?":
		return strconv.Itoa(s.LastStatus), true
	case "$":
		return strconv.Itoa(s.Pid), true
	case "#":
		return strconv.Itoa(len(s.positional())), true
	case "@", "*":
		return strings.Join(s.positional(), " "), true
	}

	if n, err := strconv.Atoi(name); err == nil {
		if n >= 0 && n < len(s.Args) {
			return s.Args[n], true
		}
		return "", false
	}

	return s.Vars.Lookup(name)
}

func (s *ShellState) positional() []string {
	if len(s.Args) <= 1 {
		return nil
	}
	return s.Args[1:]
}

// Expand expands a word against the state. See shell.Word.Expand.
func (s *ShellState) Expand(w shell.Word) (string, bool) {
	return w.Expand(s.Param)
}

// ExpandText expands parameters in free text, like a here-document body.
func (s *ShellState) ExpandText(text string) string {
	return shell.ExpandText(text, s.Param)
}

// Abs resolves path against the working directory.
func (s *ShellState) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.Dir, path)
}

// Chdir changes the working directory. The directory is left unchanged if
// path doesn't exist, isn't a directory or can't be searched. If physical is
// set, symbolic links are resolved.
func (s *ShellState) Chdir(path string, physical bool) error {
	target := s.Abs(path)

	info, err := os.Stat(target)
	if err != nil {
		return &fs.PathError{Op: "chdir", Path: path, Err: underlying(err)}
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "chdir", Path: path, Err: syscall.ENOTDIR}
	}
	if err := unix.Access(target, unix.X_OK); err != nil {
		return &fs.PathError{Op: "chdir", Path: path, Err: err}
	}

	if physical {
		resolved, err := filepath.EvalSymlinks(target)
		if err != nil {
			return &fs.PathError{Op: "chdir", Path: path, Err: underlying(err)}
		}
		target = resolved
	}

	s.Vars.Set(EnvOldPWD, s.Dir)
	s.Vars.Set(EnvPWD, target)
	s.Dir = target
	return nil
}

// Exit marks the shell as finished. No further commands run.
func (s *ShellState) Exit(code int) {
	s.exited = true
	s.exitCode = code
}

// Exited reports whether Exit was called and with which code.
func (s *ShellState) Exited() (int, bool) {
	return s.exitCode, s.exited
}

// underlying strips the path from an *fs.PathError so it can be reported
// against the name the user typed.
func underlying(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}
