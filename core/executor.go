package core

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/josephlewis42/rush/core/logger"
	"github.com/josephlewis42/rush/core/shell"
)

// Executor runs parsed command lists against a ShellState.
type Executor struct {
	State    *ShellState
	Builtins map[string]ShellBuiltin
	Jobs     *JobTable

	// Standard descriptors handed to commands. A nil file is closed.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Events receives structured events, it may be nil.
	Events *logger.SessionLogger

	// Interactive announces background jobs as they're started.
	Interactive bool

	// Suggest, if set, offers an alternative for a command that wasn't found.
	Suggest func(name string) string

	// ErrorPrefix starts each diagnostic, "rush: " if empty.
	ErrorPrefix string
}

// NewExecutor creates an executor using the process's standard descriptors
// and all registered built-ins.
func NewExecutor(state *ShellState) *Executor {
	return &Executor{
		State:    state,
		Builtins: AllBuiltins,
		Jobs:     NewJobTable(),
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// fork creates an executor sharing everything but the state and descriptors.
func (e *Executor) fork(state *ShellState, files fdTable) *Executor {
	out := *e
	out.State = state
	out.Stdin, out.Stdout, out.Stderr = files[0], files[1], files[2]
	return &out
}

func (e *Executor) record(event logger.LogType) {
	if err := e.Events.Record(event); err != nil {
		e.errorf("event log: %v", err)
	}
}

// errorf writes a diagnostic to the shell's standard error.
func (e *Executor) errorf(format string, args ...interface{}) {
	if e.Stderr == nil {
		return
	}
	prefix := e.ErrorPrefix
	if prefix == "" {
		prefix = "rush: "
	}
	fmt.Fprint(e.Stderr, prefix)
	fmt.Fprintf(e.Stderr, format+"\n", args...)
}

// Run executes list and returns the status of the last pipeline that ran.
//
// A pipeline runs if the operator before it allows it: && needs a zero
// status, || a nonzero one, and ; or & always runs. Skipped pipelines don't
// change the status. If background is set every pipeline runs in the
// background. If args is non-nil it replaces the positional parameters.
func (e *Executor) Run(list *shell.CommandList, background bool, args []string) int {
	if args != nil {
		e.State.Args = args
	}
	if list == nil {
		return 0
	}

	status := 0
	prevOp := shell.JoinSequential
	for _, step := range list.Steps {
		if _, exited := e.State.Exited(); exited {
			break
		}

		if shouldRun(prevOp, status) {
			status = e.runPipeline(step.Pipeline, background || step.Pipeline.Background)
			e.State.LastStatus = status
		}
		prevOp = step.Op
	}

	return status
}

func shouldRun(prevOp shell.JoinOp, status int) bool {
	switch prevOp {
	case shell.JoinAndThen:
		return status == 0
	case shell.JoinOrElse:
		return status != 0
	default:
		return true
	}
}

// runPipeline starts every stage of p and, unless it runs in the
// background, waits for all of them. The status is the last stage's.
func (e *Executor) runPipeline(p *shell.Pipeline, background bool) int {
	n := len(p.Commands)
	if n == 0 {
		return 0
	}

	if n == 1 && !background {
		return e.startStage(p.Commands[0], nil, nil, false, false).Wait()
	}

	// Every pipe exists before any stage starts. readers[i] and writers[i]
	// are the ends owned by stage i.
	readers := make([]*os.File, n)
	writers := make([]*os.File, n)
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closeFiles(readers...)
			closeFiles(writers...)
			e.errorf("pipe: %v", err)
			return 1
		}
		writers[i] = w
		readers[i+1] = r
	}

	procs := make([]process, 0, n)
	for i, cmd := range p.Commands {
		procs = append(procs, e.startStage(cmd, readers[i], writers[i], true, background))
	}

	if background {
		command := (&shell.Pipeline{Commands: p.Commands}).String()
		job := e.Jobs.Add(command, procs)
		if e.Interactive {
			e.announce(job)
		}
		return 0
	}

	return waitAll(procs)
}

func (e *Executor) announce(job *Job) {
	if e.Stderr == nil {
		return
	}
	if len(job.Pids) > 0 {
		fmt.Fprintf(e.Stderr, "[%d] %d\n", job.ID, job.Pids[len(job.Pids)-1])
	} else {
		fmt.Fprintf(e.Stderr, "[%d]\n", job.ID)
	}
}

// startStage starts one command. stdin and stdout are pipe ends owned by the
// stage, nil to use the executor's descriptors; they're closed in the shell
// once the command no longer needs them, on every path.
//
// A subshell stage runs built-ins on a copy of the state in their own
// goroutine; otherwise built-ins run to completion before startStage returns.
func (e *Executor) startStage(cmd *shell.Command, stdin, stdout *os.File, subshell, background bool) process {
	owned := []*os.File{stdin, stdout}

	state := e.State
	if subshell {
		state = e.State.Clone()
	}

	files := newFdTable(e.Stdin, e.Stdout, e.Stderr)
	if stdin != nil {
		files[0] = stdin
	}
	if stdout != nil {
		files[1] = stdout
	}

	argv := expandArgs(state, cmd.Args)

	actions, err := ResolveRedirects(state, cmd.Redirects)
	if err == nil {
		err = files.apply(actions)
	}
	if err != nil {
		e.redirectFailed(argv, err)
		CloseActions(actions)
		closeFiles(owned...)
		return exitedProcess(1)
	}
	owned = append(owned, actionFiles(actions)...)

	assigns := expandAssigns(state, cmd.Assigns)

	if len(argv) == 0 {
		for _, assign := range assigns {
			state.Vars.Set(assign[0], assign[1])
		}
		closeFiles(owned...)
		return exitedProcess(0)
	}

	inv, err := e.resolve(state, argv)
	if err != nil {
		var spawnErr *SpawnError
		status := 1
		if errors.As(err, &spawnErr) {
			status = spawnErr.Status()
		}
		e.unknownCommand(argv, status, err)
		closeFiles(owned...)
		return exitedProcess(status)
	}

	switch inv := inv.(type) {
	case *BuiltinInvocation:
		e.record(&logger.RunCommand{Command: argv, Builtin: true, Dir: state.Dir, Background: background})
		for _, assign := range assigns {
			state.Vars.Set(assign[0], assign[1])
		}

		bc := &BuiltinContext{
			State:  state,
			Stdin:  files.reader(0),
			Stdout: files.writer(1),
			Stderr: files.writer(2),
			Exec:   e.fork(state, files),
		}

		if !subshell {
			status := inv.Builtin.Main(bc, inv.Args)
			closeFiles(owned...)
			return exitedProcess(status)
		}

		proc := &builtinProcess{done: make(chan int, 1)}
		go func() {
			status := inv.Builtin.Main(bc, inv.Args)
			// Readers of the pipe see EOF before the stage reports done.
			closeFiles(owned...)
			proc.done <- status
		}()
		return proc

	case *ExternalInvocation:
		envOverrides := make([]string, 0, len(assigns))
		for _, assign := range assigns {
			envOverrides = append(envOverrides, assign[0]+"="+assign[1])
		}

		c := &exec.Cmd{
			Path:       inv.Path,
			Args:       inv.Args,
			Dir:        state.Dir,
			Env:        state.Vars.WithOverrides(envOverrides),
			ExtraFiles: files.extraFiles(),
		}
		// Leave unset descriptors nil so the child gets /dev/null instead of
		// a typed nil interface.
		if f, ok := files[0]; ok {
			c.Stdin = f
		}
		if f, ok := files[1]; ok {
			c.Stdout = f
		}
		if f, ok := files[2]; ok {
			c.Stderr = f
		}
		// Background jobs don't receive the terminal's interrupts.
		if background {
			c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		}

		err := c.Start()
		closeFiles(owned...)
		if err != nil {
			spawnErr := &SpawnError{Name: argv[0], Err: underlying(err)}
			e.errorf("%v", spawnErr)
			e.record(&logger.UnknownCommand{Command: argv, Status: 126, ErrorMessage: err.Error()})
			return exitedProcess(126)
		}

		e.record(&logger.RunCommand{
			Command:             argv,
			ResolvedCommandPath: inv.Path,
			Dir:                 state.Dir,
			Background:          background,
		})
		return &externalProcess{cmd: c}

	default:
		closeFiles(owned...)
		return exitedProcess(1)
	}
}

func (e *Executor) redirectFailed(argv []string, err error) {
	e.errorf("%v", err)

	target, message := "", err.Error()
	var redirectErr *RedirectError
	if errors.As(err, &redirectErr) {
		target, message = redirectErr.Target, redirectErr.Err.Error()
	}
	e.record(&logger.RedirectFailure{Command: argv, Target: target, Error: message})
}

func (e *Executor) unknownCommand(argv []string, status int, err error) {
	e.errorf("%v", err)
	if status == 127 && e.Suggest != nil {
		if alt := e.Suggest(argv[0]); alt != "" {
			e.errorf("did you mean %q?", alt)
		}
	}
	e.record(&logger.UnknownCommand{Command: argv, Status: status, ErrorMessage: err.Error()})
}

// expandArgs expands each word, dropping unquoted words that expand to
// nothing.
func expandArgs(state *ShellState, words []shell.Word) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if val, ok := state.Expand(w); ok {
			out = append(out, val)
		}
	}
	return out
}

func expandAssigns(state *ShellState, assigns []shell.Assign) [][2]string {
	out := make([][2]string, 0, len(assigns))
	for _, assign := range assigns {
		val, _ := state.Expand(assign.Value)
		out = append(out, [2]string{assign.Name, val})
	}
	return out
}

func actionFiles(actions []FdAction) []*os.File {
	var out []*os.File
	for _, action := range actions {
		if action.File != nil {
			out = append(out, action.File)
		}
	}
	return out
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}
