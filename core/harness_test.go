package core

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/josephlewis42/rush/core/env"
	"github.com/josephlewis42/rush/core/shell"
	"github.com/stretchr/testify/require"
)

// requireCommands skips the test if any of the programs isn't installed.
func requireCommands(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s isn't available: %v", name, err)
		}
	}
}

// testShell is an executor working in a temporary directory with its output
// captured in files.
type testShell struct {
	*Executor

	stdout *os.File
	stderr *os.File
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()

	vars := env.New()
	if path, ok := os.LookupEnv(EnvPath); ok {
		vars.Set(EnvPath, path)
		vars.Export(EnvPath)
	}
	vars.Set(EnvHome, t.TempDir())
	vars.Export(EnvHome)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	capture := t.TempDir()
	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	stdout, err := os.Create(filepath.Join(capture, "stdout"))
	require.NoError(t, err)
	stderr, err := os.Create(filepath.Join(capture, "stderr"))
	require.NoError(t, err)
	t.Cleanup(func() {
		stdin.Close()
		stdout.Close()
		stderr.Close()
	})

	e := NewExecutor(NewShellState(dir, vars, []string{"rush-test"}))
	e.Stdin, e.Stdout, e.Stderr = stdin, stdout, stderr

	return &testShell{Executor: e, stdout: stdout, stderr: stderr}
}

// run parses and executes src, failing the test on syntax errors.
func (ts *testShell) run(t *testing.T, src string) int {
	t.Helper()

	list, err := shell.Parse(src)
	require.NoError(t, err, src)
	return ts.Run(list, false, nil)
}

func (ts *testShell) out(t *testing.T) string {
	t.Helper()
	out, err := os.ReadFile(ts.stdout.Name())
	require.NoError(t, err)
	return string(out)
}

func (ts *testShell) errs(t *testing.T) string {
	t.Helper()
	out, err := os.ReadFile(ts.stderr.Name())
	require.NoError(t, err)
	return string(out)
}

// path resolves name in the shell's working directory.
func (ts *testShell) path(name string) string {
	return filepath.Join(ts.State.Dir, name)
}

func (ts *testShell) writeFile(t *testing.T, name, contents string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(ts.path(name), []byte(contents), perm))
}

func (ts *testShell) readFile(t *testing.T, name string) string {
	t.Helper()
	out, err := os.ReadFile(ts.path(name))
	require.NoError(t, err)
	return string(out)
}
