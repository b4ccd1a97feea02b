package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/rush/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frontEnd struct {
	*Shell

	dir    string
	stdout *os.File
	stderr *os.File
}

// newFrontEnd creates a shell configured from an empty directory, so the
// defaults apply and the event log is written there.
func newFrontEnd(t *testing.T) *frontEnd {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.LoadOrDefault(dir)
	require.NoError(t, err)
	cfg.Color = config.ColorNever

	capture := t.TempDir()
	stdout, err := os.Create(filepath.Join(capture, "stdout"))
	require.NoError(t, err)
	stderr, err := os.Create(filepath.Join(capture, "stderr"))
	require.NoError(t, err)

	s, err := NewShell(cfg, nil, stdout, stderr)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
		stdout.Close()
		stderr.Close()
	})

	return &frontEnd{Shell: s, dir: dir, stdout: stdout, stderr: stderr}
}

func (fe *frontEnd) out(t *testing.T) string {
	t.Helper()
	out, err := os.ReadFile(fe.stdout.Name())
	require.NoError(t, err)
	return string(out)
}

func (fe *frontEnd) errs(t *testing.T) string {
	t.Helper()
	out, err := os.ReadFile(fe.stderr.Name())
	require.NoError(t, err)
	return string(out)
}

func TestNewShell(t *testing.T) {
	fe := newFrontEnd(t)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, fe.State().Dir)
	t.Setenv("RUSH_TEST_VAR", "inherited")
	fe = newFrontEnd(t)
	assert.Equal(t, "inherited", fe.State().Vars.Get("RUSH_TEST_VAR"))
	assert.True(t, fe.State().Vars.IsExported("RUSH_TEST_VAR"))

	_, ok := fe.Exec.Builtins["history"]
	assert.True(t, ok)
	_, ok = AllBuiltins["history"]
	assert.False(t, ok, "history belongs to the shell it was created for")
}

func TestNewShell_defaultPath(t *testing.T) {
	path, had := os.LookupEnv(EnvPath)
	require.NoError(t, os.Unsetenv(EnvPath))
	t.Cleanup(func() {
		if had {
			os.Setenv(EnvPath, path)
		}
	})

	fe := newFrontEnd(t)
	assert.Equal(t, fe.Config.DefaultPath, fe.State().Vars.Get(EnvPath))
	assert.True(t, fe.State().Vars.IsExported(EnvPath))
}

func TestShell_RunCommandString(t *testing.T) {
	t.Run("arguments", func(t *testing.T) {
		fe := newFrontEnd(t)

		assert.Equal(t, 0, fe.RunCommandString("echo $0 $#; echo $@", []string{"name", "a", "b"}))
		assert.Equal(t, "name 2\na b\n", fe.out(t))
	})

	t.Run("exit code", func(t *testing.T) {
		fe := newFrontEnd(t)

		assert.Equal(t, 3, fe.RunCommandString("exit 3; echo unreachable", nil))
		assert.Empty(t, fe.out(t))
	})

	t.Run("suggestion", func(t *testing.T) {
		fe := newFrontEnd(t)

		assert.Equal(t, 127, fe.RunCommandString("ecoh hi", nil))
		assert.Contains(t, fe.errs(t), "rush: ecoh: command not found\n")
		assert.Contains(t, fe.errs(t), `rush: did you mean "`)
	})
}

func TestShell_RunReader(t *testing.T) {
	fe := newFrontEnd(t)

	status := fe.RunReader(strings.NewReader("echo one\nfalse\necho two\n"))
	assert.Equal(t, 0, status)
	assert.Equal(t, "one\ntwo\n", fe.out(t))
}

func TestShell_SourceStartup(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		fe := newFrontEnd(t)

		assert.Equal(t, 0, fe.SourceStartup())
		assert.Empty(t, fe.errs(t))
	})

	t.Run("present", func(t *testing.T) {
		fe := newFrontEnd(t)
		rc := filepath.Join(fe.dir, fe.Config.StartupScript)
		require.NoError(t, os.WriteFile(rc, []byte("GREETING=hi\nfalse\necho loaded\n"), 0600))

		assert.Equal(t, 0, fe.SourceStartup())
		assert.Equal(t, "hi", fe.State().Vars.Get("GREETING"))
		assert.Equal(t, "loaded\n", fe.out(t))
	})

	t.Run("disabled", func(t *testing.T) {
		fe := newFrontEnd(t)
		fe.Config.StartupScript = ""

		assert.Equal(t, 0, fe.SourceStartup())
	})
}

func TestShell_events(t *testing.T) {
	fe := newFrontEnd(t)

	fe.RunCommandString("echo logged", nil)

	events, err := os.ReadFile(filepath.Join(fe.dir, fe.Config.EventLog))
	require.NoError(t, err)
	assert.Contains(t, string(events), `"logged"`)
}

func TestShell_Prompt(t *testing.T) {
	sign := "$"
	if os.Geteuid() == 0 {
		sign = "#"
	}

	cases := map[string]struct {
		ps1  string
		dir  string
		want string
	}{
		"default":       {"", "/home/alice/src", "alice@box:~/src" + sign + " "},
		"home":          {`\w \W`, "/home/alice", "~ ~"},
		"outside home":  {`\w \W`, "/usr/local", "/usr/local local"},
		"home prefix":   {`\w`, "/home/alice2", "/home/alice2"},
		"literal":       {"> ", "/", "> "},
		"escapes":       {`\e[0m\$`, "/", "\x1b[0m" + sign},
		"escaped slash": {`a\\b`, "/", `a\b`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fe := newFrontEnd(t)
			vars := fe.State().Vars
			vars.Set(EnvUser, "alice")
			vars.Set(EnvHostname, "box.example.com")
			vars.Set(EnvHome, "/home/alice")
			vars.Unset(EnvPrompt)
			if tc.ps1 != "" {
				vars.Set(EnvPrompt, tc.ps1)
			}
			fe.State().Dir = tc.dir

			assert.Equal(t, tc.want, fe.Prompt())
		})
	}
}

func TestShell_Prompt_color(t *testing.T) {
	fe := newFrontEnd(t)
	fe.Config.Color = config.ColorAlways
	fe.colors.Mode = config.ColorAlways
	fe.State().Vars.Set(EnvPrompt, `\W`)
	fe.State().Dir = "/tmp"

	prompt := fe.Prompt()
	assert.NotEqual(t, "tmp", prompt)
	assert.Contains(t, prompt, "tmp")
	assert.True(t, strings.HasPrefix(prompt, "\x1b["))
}

func TestShell_History(t *testing.T) {
	fe := newFrontEnd(t)
	fe.history = []string{"echo a", "ls -l"}

	assert.Equal(t, 0, fe.RunLine("history"))
	assert.Equal(t, "    1  echo a\n    2  ls -l\n", fe.out(t))

	assert.Equal(t, 0, fe.RunLine("history -c"))
	assert.Empty(t, fe.history)
}

func TestShell_RunLine_continuation(t *testing.T) {
	fe := newFrontEnd(t)

	assert.Equal(t, 0, fe.RunLine("echo 'a"))
	assert.True(t, fe.parser.Pending())
	assert.Equal(t, 0, fe.RunLine("b'"))
	assert.False(t, fe.parser.Pending())
	assert.Equal(t, "a\nb\n", fe.out(t))
}
