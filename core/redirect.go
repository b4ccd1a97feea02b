package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"

	"github.com/josephlewis42/rush/core/shell"
	"golang.org/x/sys/unix"
)

var errAmbiguousRedirect = errors.New("ambiguous redirect")

// fdLimitCeiling bounds descriptor numbers when the open file limit is
// unlimited or can't be read.
const fdLimitCeiling = 1 << 20

// fdLimit is one past the highest descriptor number a redirection may use,
// the soft RLIMIT_NOFILE capped at fdLimitCeiling.
func fdLimit() int {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil || lim.Cur >= fdLimitCeiling {
		return fdLimitCeiling
	}
	return int(lim.Cur)
}

// checkFd fails with EBADF if fd can't name a descriptor.
func checkFd(fd int) error {
	if fd < 0 || fd >= fdLimit() {
		return &RedirectError{Target: strconv.Itoa(fd), Err: syscall.EBADF}
	}
	return nil
}

// RedirectError is a redirection that couldn't be established.
type RedirectError struct {
	// Target is the file or descriptor that failed.
	Target string
	Err    error
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Target, e.Err)
}

func (e *RedirectError) Unwrap() error {
	return e.Err
}

// FdAction is one step in setting up a command's descriptors. Actions are
// applied in order so later ones see the results of earlier ones.
type FdAction struct {
	// Fd is the descriptor being set up in the command.
	Fd int
	// File is an opened file owned by the action, nil for dup and close.
	File *os.File
	// DupFrom is copied onto Fd when File is nil and Close is false.
	DupFrom int
	// Close removes Fd from the command.
	Close bool
}

// ResolveRedirects opens the files named by specs. On failure every file
// opened so far is closed and nothing is returned.
//
// The caller owns the returned files and must release them with CloseActions.
func ResolveRedirects(state *ShellState, specs []shell.RedirectSpec) (actions []FdAction, err error) {
	defer func() {
		if err != nil {
			CloseActions(actions)
			actions = nil
		}
	}()

	for _, spec := range specs {
		if err := checkFd(spec.SourceFD); err != nil {
			return actions, err
		}

		switch spec.Kind {
		case shell.RedirectDup:
			if err := checkFd(spec.TargetFD); err != nil {
				return actions, err
			}
			actions = append(actions, FdAction{Fd: spec.SourceFD, DupFrom: spec.TargetFD})

		case shell.RedirectClose:
			actions = append(actions, FdAction{Fd: spec.SourceFD, DupFrom: -1, Close: true})

		case shell.RedirectHeredoc:
			body := spec.Body
			if spec.Expand {
				body = state.ExpandText(body)
			}
			fd, err := heredocFile(body)
			if err != nil {
				return actions, &RedirectError{Target: "here-document", Err: err}
			}
			actions = append(actions, FdAction{Fd: spec.SourceFD, File: fd, DupFrom: -1})

		default:
			target, ok := state.Expand(spec.Target)
			if !ok {
				return actions, &RedirectError{Target: spec.Target.Literal(), Err: errAmbiguousRedirect}
			}

			fd, err := os.OpenFile(state.Abs(target), openFlags(spec.Kind), 0666)
			if err != nil {
				return actions, &RedirectError{Target: target, Err: underlying(err)}
			}
			actions = append(actions, FdAction{Fd: spec.SourceFD, File: fd, DupFrom: -1})
		}
	}

	return actions, nil
}

func openFlags(kind shell.RedirectKind) int {
	switch kind {
	case shell.RedirectOutput:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case shell.RedirectAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return os.O_RDONLY
	}
}

// heredocFile stores body in an unlinked temporary file positioned at the
// start, so it can be handed to a child like any other file.
func heredocFile(body string) (*os.File, error) {
	fd, err := os.CreateTemp("", "rush-heredoc-*")
	if err != nil {
		return nil, err
	}
	if err := os.Remove(fd.Name()); err != nil {
		fd.Close()
		return nil, err
	}
	if _, err := io.WriteString(fd, body); err != nil {
		fd.Close()
		return nil, err
	}
	if _, err := fd.Seek(0, io.SeekStart); err != nil {
		fd.Close()
		return nil, err
	}
	return fd, nil
}

// CloseActions closes the files owned by actions.
func CloseActions(actions []FdAction) {
	for _, action := range actions {
		if action.File != nil {
			action.File.Close()
		}
	}
}

// fdTable maps a command's descriptor numbers to files. The table borrows the
// files, it never closes them.
type fdTable map[int]*os.File

func newFdTable(stdin, stdout, stderr *os.File) fdTable {
	table := fdTable{}
	for fd, file := range []*os.File{stdin, stdout, stderr} {
		if file != nil {
			table[fd] = file
		}
	}
	return table
}

// apply performs the actions in order. Duplicating a descriptor that isn't
// open, or naming one beyond the open file limit, fails with EBADF.
func (t fdTable) apply(actions []FdAction) error {
	for _, action := range actions {
		if err := checkFd(action.Fd); err != nil {
			return err
		}

		switch {
		case action.Close:
			delete(t, action.Fd)
		case action.File != nil:
			t[action.Fd] = action.File
		default:
			src, ok := t[action.DupFrom]
			if !ok {
				return &RedirectError{Target: strconv.Itoa(action.DupFrom), Err: syscall.EBADF}
			}
			t[action.Fd] = src
		}
	}
	return nil
}

// reader returns descriptor fd for in-process use, empty if it's closed.
func (t fdTable) reader(fd int) io.Reader {
	if file, ok := t[fd]; ok {
		return file
	}
	return eofReader{}
}

// writer returns descriptor fd for in-process use, discarding output if it's
// closed.
func (t fdTable) writer(fd int) io.Writer {
	if file, ok := t[fd]; ok {
		return file
	}
	return io.Discard
}

// extraFiles lays out descriptors above 2 for exec.Cmd.ExtraFiles. Gaps stay
// closed in the child. apply keeps every entry below fdLimit, so the slice is
// bounded by the highest descriptor actually in the table.
func (t fdTable) extraFiles() []*os.File {
	highest := 2
	for fd := range t {
		if fd > highest {
			highest = fd
		}
	}
	if highest == 2 {
		return nil
	}

	extra := make([]*os.File, highest-2)
	for fd, file := range t {
		if fd > 2 {
			extra[fd-3] = file
		}
	}
	return extra
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
