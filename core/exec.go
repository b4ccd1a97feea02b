package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	// ErrNotFound is the error resulting if a path search failed to find an executable file.
	ErrNotFound = exec.ErrNotFound

	// ErrPermission is returned when a command exists but can't be executed.
	ErrPermission = fs.ErrPermission
)

// SpawnError is a command that couldn't be started.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	if errors.Is(e.Err, ErrNotFound) {
		return fmt.Sprintf("%s: command not found", e.Name)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Status is the conventional exit status for the failure: 127 if the command
// wasn't found and 126 if it couldn't be executed.
func (e *SpawnError) Status() int {
	if errors.Is(e.Err, ErrNotFound) {
		return 127
	}
	return 126
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if d.Mode().IsDir() {
		return ErrPermission
	}
	if err := unix.Access(file, unix.X_OK); err != nil {
		return ErrPermission
	}
	return nil
}

func searchPath(state *ShellState) []string {
	path, ok := state.Vars.Lookup(EnvPath)
	if !ok {
		path = DefaultPath
	}

	var dirs []string
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		dirs = append(dirs, state.Abs(dir))
	}
	return dirs
}

// LookPath searches for an executable named file in the directories named by
// the shell's PATH variable. If file contains a slash, it is tried directly
// relative to the shell's working directory and the PATH is not consulted.
// The result is an absolute path.
func LookPath(state *ShellState, file string) (string, error) {
	if file == "" {
		return "", ErrNotFound
	}

	if strings.Contains(file, "/") {
		path := state.Abs(file)
		err := findExecutable(path)
		switch {
		case err == nil:
			return path, nil
		case errors.Is(err, fs.ErrNotExist):
			return "", ErrNotFound
		default:
			return "", ErrPermission
		}
	}

	var denied bool
	for _, dir := range searchPath(state) {
		path := filepath.Join(dir, file)
		err := findExecutable(path)
		if err == nil {
			return path, nil
		}
		if errors.Is(err, ErrPermission) {
			denied = true
		}
	}

	if denied {
		return "", ErrPermission
	}
	return "", ErrNotFound
}

// PathCommands lists the names of executables on PATH that start with prefix.
func PathCommands(state *ShellState, prefix string) []string {
	seen := make(map[string]bool)
	var out []string

	for _, dir := range searchPath(state) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if seen[name] || !strings.HasPrefix(name, prefix) {
				continue
			}
			if findExecutable(filepath.Join(dir, name)) != nil {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}

	sort.Strings(out)
	return out
}
