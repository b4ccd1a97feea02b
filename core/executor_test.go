package core

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/josephlewis42/rush/core/logger"
	"github.com/josephlewis42/rush/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_builtin(t *testing.T) {
	ts := newTestShell(t)

	assert.Equal(t, 0, ts.run(t, "echo hello   world"))
	assert.Equal(t, "hello world\n", ts.out(t))
}

func TestRun_pipeline(t *testing.T) {
	requireCommands(t, "tr", "cat")
	ts := newTestShell(t)

	assert.Equal(t, 0, ts.run(t, "echo hello | tr a-z A-Z | cat"))
	assert.Equal(t, "HELLO\n", ts.out(t))
}

func TestRun_pipelineStatusIsLastCommand(t *testing.T) {
	requireCommands(t, "sh")

	cases := map[string]int{
		"sh -c 'exit 3' | sh -c 'exit 0'": 0,
		"true | sh -c 'exit 4'":           4,
		"false | true":                    0,
		"true | false":                    1,
	}

	for src, want := range cases {
		t.Run(src, func(t *testing.T) {
			ts := newTestShell(t)
			assert.Equal(t, want, ts.run(t, src))
		})
	}
}

func TestRun_conditionals(t *testing.T) {
	cases := []struct {
		src        string
		wantStatus int
		wantOut    string
	}{
		{"false && echo no", 1, ""},
		{"true && echo yes", 0, "yes\n"},
		{"false || echo recovered", 0, "recovered\n"},
		{"true || echo skipped", 0, ""},
		{"false && echo a || echo b", 0, "b\n"},
		{"true && false || echo c", 0, "c\n"},
		{"false && true", 1, ""},
		{"true; false", 1, ""},
		{"false; true", 0, ""},
		{"false; echo $?", 0, "1\n"},
	}

	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			ts := newTestShell(t)

			assert.Equal(t, tc.wantStatus, ts.run(t, tc.src))
			assert.Equal(t, tc.wantStatus, ts.State.LastStatus)
			assert.Equal(t, tc.wantOut, ts.out(t))
		})
	}
}

func TestRun_redirects(t *testing.T) {
	requireCommands(t, "cat")
	ts := newTestShell(t)

	assert.Equal(t, 0, ts.run(t, "echo data > out.txt; echo more >> out.txt"))
	assert.Equal(t, "data\nmore\n", ts.readFile(t, "out.txt"))

	assert.Equal(t, 0, ts.run(t, "cat < out.txt"))
	assert.Equal(t, "data\nmore\n", ts.out(t))

	assert.Equal(t, 0, ts.run(t, "echo replaced > out.txt"))
	assert.Equal(t, "replaced\n", ts.readFile(t, "out.txt"))
}

func TestRun_redirectFailure(t *testing.T) {
	requireCommands(t, "cat")

	t.Run("missing input", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 1, ts.run(t, "cat < missing.txt"))
		assert.Contains(t, ts.errs(t), "rush: missing.txt: no such file or directory")
	})

	t.Run("later statements run", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "echo hidden > nodir/out.txt; echo after"))
		assert.Equal(t, "after\n", ts.out(t))
	})

	t.Run("skips or-else", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "cat < missing.txt || echo fallback"))
		assert.Equal(t, "fallback\n", ts.out(t))
	})

	t.Run("bad descriptor", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 1, ts.run(t, "echo hi >&7"))
		assert.Contains(t, ts.errs(t), "7: bad file descriptor")
		assert.Empty(t, ts.out(t))
	})

	t.Run("descriptor out of range", func(t *testing.T) {
		if _, err := os.Stat("/bin/true"); err != nil {
			t.Skip("/bin/true isn't available")
		}

		for _, src := range []string{
			"/bin/true 2147483647>/dev/null",
			"/bin/true 3>&2147483647",
			"cat </dev/null | /bin/true 2147483647>/dev/null",
		} {
			ts := newTestShell(t)

			assert.NotEqual(t, 0, ts.run(t, src), src)
			assert.Contains(t, ts.errs(t), "rush: 2147483647: bad file descriptor", src)
		}
	})
}

func TestRun_notFound(t *testing.T) {
	requireCommands(t, "cat")

	t.Run("alone", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 127, ts.run(t, "definitely-not-a-rush-command arg"))
		assert.Contains(t, ts.errs(t), "rush: definitely-not-a-rush-command: command not found")
	})

	t.Run("first stage", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "definitely-not-a-rush-command | cat"))
	})

	t.Run("last stage", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 127, ts.run(t, "echo hi | definitely-not-a-rush-command"))
	})

	t.Run("suggestion", func(t *testing.T) {
		ts := newTestShell(t)
		ts.Suggest = func(name string) string { return "echo" }

		assert.Equal(t, 127, ts.run(t, "ecoh hi"))
		assert.Contains(t, ts.errs(t), `did you mean "echo"?`)
	})
}

func TestRun_notExecutable(t *testing.T) {
	ts := newTestShell(t)
	ts.writeFile(t, "script.sh", "#!/bin/sh\necho hi\n", 0644)
	require.NoError(t, os.Mkdir(ts.path("subdir"), 0755))

	assert.Equal(t, 126, ts.run(t, "./script.sh"))
	assert.Contains(t, ts.errs(t), "./script.sh: permission denied")

	assert.Equal(t, 126, ts.run(t, "./subdir"))
}

func TestRun_script(t *testing.T) {
	requireCommands(t, "sh")
	ts := newTestShell(t)
	ts.writeFile(t, "hello.sh", "#!/bin/sh\necho \"hello $1\"\nexit 5\n", 0755)

	assert.Equal(t, 5, ts.run(t, "./hello.sh world"))
	assert.Equal(t, "hello world\n", ts.out(t))
}

func TestRun_signalStatus(t *testing.T) {
	requireCommands(t, "sh")
	ts := newTestShell(t)

	assert.Equal(t, 128+15, ts.run(t, "sh -c 'kill -TERM $$'"))
}

func TestRun_cdAffectsChildren(t *testing.T) {
	requireCommands(t, "sh")
	ts := newTestShell(t)
	require.NoError(t, os.Mkdir(ts.path("sub"), 0755))
	before, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, 0, ts.run(t, "cd sub && sh -c pwd"))
	assert.Equal(t, ts.path("sub")+"\n", ts.out(t))
	assert.Equal(t, ts.path("sub"), ts.State.Dir)

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after, "process directory is left alone")
}

func TestRun_cdFailure(t *testing.T) {
	ts := newTestShell(t)
	dir := ts.State.Dir

	assert.Equal(t, 1, ts.run(t, "cd missing"))
	assert.Equal(t, dir, ts.State.Dir)
	assert.Contains(t, ts.errs(t), "rush: cd: chdir missing: no such file or directory")
}

func TestRun_environment(t *testing.T) {
	requireCommands(t, "sh")

	cases := []struct {
		src     string
		wantOut string
	}{
		{"FOO=bar sh -c 'echo $FOO'", "bar\n"},
		{"export BAZ=qux; sh -c 'echo $BAZ'", "qux\n"},
		{"LOCAL=1; sh -c 'echo \"[$LOCAL]\"'", "[]\n"},
		{"LOCAL=1; export LOCAL; sh -c 'echo $LOCAL'", "1\n"},
		{"X=1; echo $X", "1\n"},
		{"X=outer; X=inner sh -c 'echo $X'; echo $X", "inner\nouter\n"},
		{"export GONE=1; unset GONE; sh -c 'echo \"[$GONE]\"'", "[]\n"},
	}

	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			ts := newTestShell(t)

			assert.Equal(t, 0, ts.run(t, tc.src))
			assert.Equal(t, tc.wantOut, ts.out(t))
		})
	}
}

func TestRun_prefixAssignmentIsTemporary(t *testing.T) {
	requireCommands(t, "sh")
	ts := newTestShell(t)

	assert.Equal(t, 0, ts.run(t, "FOO=bar sh -c true"))
	_, ok := ts.State.Vars.Lookup("FOO")
	assert.False(t, ok)
}

func TestRun_descriptorDuplication(t *testing.T) {
	requireCommands(t, "sh", "cat")

	t.Run("stderr into pipe", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "sh -c 'echo err >&2' 2>&1 | cat"))
		assert.Equal(t, "err\n", ts.out(t))
		assert.Empty(t, ts.errs(t))
	})

	t.Run("order matters", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "sh -c 'echo out; echo err >&2' > both.txt 2>&1"))
		assert.Equal(t, "out\nerr\n", ts.readFile(t, "both.txt"))

		assert.Equal(t, 0, ts.run(t, "sh -c 'echo err >&2' 2>&1 > only.txt"))
		assert.Equal(t, "", ts.readFile(t, "only.txt"))
		assert.Equal(t, "err\n", ts.out(t), "stderr went where stdout pointed before it moved")
	})

	t.Run("extra descriptor", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "sh -c 'echo three >&3' 3>three.txt"))
		assert.Equal(t, "three\n", ts.readFile(t, "three.txt"))
	})

	t.Run("closed stdout", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "echo hidden >&-"))
		assert.Equal(t, 0, ts.run(t, "sh -c 'echo hidden' >&-"))
		assert.Empty(t, ts.out(t))
	})
}

func TestRun_heredoc(t *testing.T) {
	requireCommands(t, "cat", "wc")

	t.Run("expanded", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "NAME=world; cat <<EOF\nhello $NAME\nEOF"))
		assert.Equal(t, "hello world\n", ts.out(t))
	})

	t.Run("quoted", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "NAME=world; cat <<'EOF'\nhello $NAME\nEOF"))
		assert.Equal(t, "hello $NAME\n", ts.out(t))
	})

	t.Run("into pipeline", func(t *testing.T) {
		ts := newTestShell(t)

		assert.Equal(t, 0, ts.run(t, "cat <<EOF | wc -l\na\nb\nc\nEOF"))
		assert.Contains(t, ts.out(t), "3")
	})
}

func TestRun_positionalParameters(t *testing.T) {
	ts := newTestShell(t)
	list, err := shell.Parse("echo $0 $1 $# \"$@\"")
	require.NoError(t, err)

	assert.Equal(t, 0, ts.Run(list, false, []string{"script", "a", "b"}))
	assert.Equal(t, "script a 2 a b\n", ts.out(t))
}

func TestRun_exit(t *testing.T) {
	ts := newTestShell(t)

	assert.Equal(t, 3, ts.run(t, "exit 3; echo unreachable"))
	assert.Empty(t, ts.out(t))

	code, exited := ts.State.Exited()
	assert.True(t, exited)
	assert.Equal(t, 3, code)

	assert.Equal(t, 0, ts.run(t, "echo still unreachable"))
	assert.Empty(t, ts.out(t))
}

func TestRun_builtinsInPipelinesUseACopy(t *testing.T) {
	ts := newTestShell(t)
	require.NoError(t, os.Mkdir(ts.path("sub"), 0755))
	dir := ts.State.Dir

	assert.Equal(t, 0, ts.run(t, "cd sub | true"))
	assert.Equal(t, dir, ts.State.Dir)

	assert.Equal(t, 0, ts.run(t, "exit 4 | true; echo alive"))
	assert.Equal(t, "alive\n", ts.out(t))
}

func TestRun_background(t *testing.T) {
	requireCommands(t, "sleep", "sh")
	ts := newTestShell(t)

	start := time.Now()
	assert.Equal(t, 0, ts.run(t, "sleep 1 &"))
	assert.Less(t, int64(time.Since(start)), int64(500*time.Millisecond))

	jobs := ts.Jobs.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, "sleep 1", jobs[0].Command)
	assert.Len(t, jobs[0].Pids, 1)

	ts.Jobs.WaitAll()
	assert.True(t, jobs[0].Done())

	assert.Equal(t, 3, ts.run(t, "sh -c 'exit 3' & wait %2"))
}

func TestRun_backgroundByDefault(t *testing.T) {
	requireCommands(t, "sh")
	ts := newTestShell(t)
	list, err := shell.Parse("sh -c 'exit 1'; sh -c 'exit 2'")
	require.NoError(t, err)

	assert.Equal(t, 0, ts.Run(list, true, nil))
	assert.Len(t, ts.Jobs.List(), 2)
	ts.Jobs.WaitAll()
}

func countOpenFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("can't list descriptors: %v", err)
	}
	return len(entries)
}

func TestRun_noDescriptorLeaks(t *testing.T) {
	requireCommands(t, "cat", "sh")
	ts := newTestShell(t)

	statements := []string{
		"echo a | cat | cat > out.txt",
		"cat < out.txt | definitely-not-a-rush-command | cat",
		"cat < missing.txt | cat",
		"echo x > out.txt 2>&1 >&9",
		"cat <<EOF | cat\nbody\nEOF",
		"sh -c 'exit 1' 3<out.txt 4>>out.txt || true",
		"cd missing | echo b",
		"sh -c true 2147483647>out.txt",
		"echo x 3>out.txt 2147483647>&3 | cat",
	}

	// Warm up anything the runtime opens lazily.
	for _, src := range statements {
		ts.run(t, src)
	}

	before := countOpenFiles(t)
	for i := 0; i < 5; i++ {
		for _, src := range statements {
			ts.run(t, src)
		}
	}
	assert.Equal(t, before, countOpenFiles(t))
}

func TestRun_events(t *testing.T) {
	ts := newTestShell(t)
	var log bytes.Buffer
	ts.Events = logger.NewJsonLinesLogRecorder(&log).NewSession()

	ts.run(t, "definitely-not-a-rush-command; echo hi > nodir/out.txt; cd missing; echo ok")

	var events []logger.LogType
	require.NoError(t, logger.ReadJSONLinesLog(&log, func(le *logger.LogEntry) {
		events = append(events, le.GetLogType())
	}))

	require.Len(t, events, 5)
	assert.Equal(t, &logger.UnknownCommand{
		Command:      []string{"definitely-not-a-rush-command"},
		Status:       127,
		ErrorMessage: "definitely-not-a-rush-command: command not found",
	}, events[0])
	assert.Equal(t, &logger.RedirectFailure{
		Command: []string{"echo", "hi"},
		Target:  "nodir/out.txt",
		Error:   "no such file or directory",
	}, events[1])
	assert.Equal(t, &logger.RunCommand{Command: []string{"cd", "missing"}, Builtin: true, Dir: ts.State.Dir}, events[2])
	assert.Equal(t, &logger.BuiltinFailure{Command: "cd", Error: "chdir missing: no such file or directory", Status: 1}, events[3])
	assert.Equal(t, &logger.RunCommand{Command: []string{"echo", "ok"}, Builtin: true, Dir: ts.State.Dir}, events[4])
}
