package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/rush/core/config"
	"github.com/josephlewis42/rush/core/env"
	"github.com/josephlewis42/rush/core/logger"
	"github.com/josephlewis42/rush/core/shell"
)

const (
	DefaultPrompt = `\u@\h:\w\$ `
)

// Shell connects an Executor to its sources of input: a terminal, a
// script, a command string or a stream of lines.
type Shell struct {
	Config   *config.Configuration
	Exec     *Executor
	Readline *readline.Instance

	colors  ColorPrinter
	parser  *shell.Parser
	history []string
	toClose listCloser
}

// NewShell creates a shell from the process environment and working
// directory using the given standard files.
func NewShell(cfg *config.Configuration, stdin, stdout, stderr *os.File) (*Shell, error) {
	vars := env.FromEnviron(os.Environ())
	if _, ok := vars.Lookup(EnvPath); !ok {
		vars.Set(EnvPath, cfg.DefaultPath)
		vars.Export(EnvPath)
	}

	exec := NewExecutor(NewShellState("", vars, nil))
	exec.Stdin, exec.Stdout, exec.Stderr = stdin, stdout, stderr

	s := &Shell{
		Config: cfg,
		Exec:   exec,
		colors: ColorPrinter{Mode: cfg.Color, Out: stderr},
		parser: shell.NewParser(),
	}

	exec.Builtins = make(map[string]ShellBuiltin, len(AllBuiltins)+1)
	for name, builtin := range AllBuiltins {
		exec.Builtins[name] = builtin
	}
	exec.Builtins["history"] = ShellBuiltinFunc(s.History)

	if s.colors.ShouldColor() {
		exec.ErrorPrefix = s.colors.Sprint(ColorBoldRed, "rush:") + " "
	}

	if cfg.SuggestCommands {
		exec.Suggest = func(name string) string {
			return SuggestCommand(exec, name)
		}
	}

	if cfg.EventLog != "" {
		fd, err := cfg.OpenEventLog()
		if err != nil {
			return nil, fmt.Errorf("event log: %w", err)
		}
		s.toClose = append(s.toClose, fd)
		exec.Events = logger.NewJsonLinesLogRecorder(fd).NewSession()
	}

	exec.Jobs.OnExit = func(job *Job) {
		exec.record(&logger.JobExit{JobID: job.ID, Command: job.Command, Status: job.status})
	}

	return s, nil
}

// State is the shell's state.
func (s *Shell) State() *ShellState {
	return s.Exec.State
}

// ExitCode is the code the process should exit with after a run returned
// status: the code given to exit if it was called.
func (s *Shell) ExitCode(status int) int {
	if code, exited := s.State().Exited(); exited {
		return code
	}
	return status
}

// RunLine runs one line of interactive input. Statements spanning several
// lines run once their last line arrives.
func (s *Shell) RunLine(line string) int {
	status, _ := s.Exec.RunLine(s.parser, line)
	return status
}

// RunCommandString runs cmd with the given positional parameters, args[0]
// being the name reported as $0.
func (s *Shell) RunCommandString(cmd string, args []string) int {
	if len(args) > 0 {
		s.State().Args = args
	}
	return s.ExitCode(s.Exec.RunString(cmd))
}

// RunScript runs the script at path, stopping at the first failure.
func (s *Shell) RunScript(path string, args []string) int {
	return s.ExitCode(s.Exec.RunScript(path, args))
}

// RunReader runs each line read from r, ignoring failures, until the input
// ends or exit is called.
func (s *Shell) RunReader(r io.Reader) int {
	return s.ExitCode(s.Exec.RunLines(r, IgnoreErrors))
}

// Source runs a file in the shell, like the source builtin.
func (s *Shell) Source(path string) int {
	return s.Exec.Source(path, nil)
}

// SourceStartup runs the configured startup script if it exists.
func (s *Shell) SourceStartup() int {
	fd, err := s.Config.OpenStartupScript()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return 0
	case err != nil:
		s.Exec.errorf("%s: %v", s.Config.StartupScript, underlying(err))
		return 1
	}
	defer fd.Close()

	return s.Exec.RunLines(fd, IgnoreErrors)
}

// Prompt expands the prompt template from PS1 or the configuration.
//
// Supported escapes are \u for the user, \h for the short host name, \w for
// the working directory with HOME shown as ~, \W for its last element and \$
// for # as root or $ otherwise. Backslash escapes like \e are interpreted.
func (s *Shell) Prompt() string {
	state := s.State()

	prompt, ok := state.Vars.Lookup(EnvPrompt)
	if !ok {
		prompt = s.Config.Prompt
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}
	prompt = unescape(prompt)

	pwd := state.Dir
	if home := state.Vars.Get(EnvHome); home != "" && home != "/" {
		if pwd == home || strings.HasPrefix(pwd, home+"/") {
			pwd = "~" + strings.TrimPrefix(pwd, home)
		}
	}
	base := filepath.Base(state.Dir)
	if pwd == "~" {
		base = "~"
	}

	sign := "$"
	if os.Geteuid() == 0 {
		sign = "#"
	}

	replacer := strings.NewReplacer(
		`\u`, s.colors.Sprint(ColorBoldGreen, promptUser(state)),
		`\h`, s.colors.Sprint(ColorBoldGreen, promptHost(state)),
		`\w`, s.colors.Sprint(ColorBoldBlue, pwd),
		`\W`, s.colors.Sprint(ColorBoldBlue, base),
		`\$`, sign,
	)
	return replacer.Replace(prompt)
}

func promptUser(state *ShellState) string {
	if name := state.Vars.Get(EnvUser); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "?"
}

func promptHost(state *ShellState) string {
	host := state.Vars.Get(EnvHostname)
	if host == "" {
		host, _ = os.Hostname()
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		host = host[:i]
	}
	return host
}

// RunInteractive reads commands from the terminal until input ends or exit
// is called.
func (s *Shell) RunInteractive() int {
	historyLimit := s.Config.HistoryLimit
	if historyLimit == 0 {
		historyLimit = -1
	}

	cfg := &readline.Config{
		Prompt:            s.Prompt(),
		HistoryFile:       s.Config.HistoryPath(),
		HistoryLimit:      historyLimit,
		HistorySearchFold: true,
		AutoComplete:      &Completer{Exec: s.Exec},
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		Stdin:             readline.NewCancelableStdin(s.Exec.Stdin),
		Stdout:            s.Exec.Stdout,
		Stderr:            s.Exec.Stderr,
	}
	if err := cfg.Init(); err != nil {
		s.Exec.errorf("%v", err)
		return 1
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		s.Exec.errorf("%v", err)
		return 1
	}
	s.Readline = rl
	s.toClose = append(s.toClose, rl)
	s.Exec.Interactive = true

	// Interrupts are meant for the foreground command, the shell survives
	// them.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
		}
	}()

	for {
		if _, exited := s.State().Exited(); exited {
			break
		}
		s.notifyJobs()

		if s.parser.Pending() {
			rl.SetPrompt(s.Config.ContinuationPrompt)
		} else {
			rl.SetPrompt(s.Prompt())
		}

		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			// Interrupt clears the line and anything pending.
			s.parser.Reset()
			continue
		case err == io.EOF:
			return s.ExitCode(s.State().LastStatus)
		case err != nil:
			s.Exec.errorf("%v", err)
			return 1
		}

		if strings.TrimSpace(line) != "" {
			s.history = append(s.history, line)
		}
		s.RunLine(line)
	}

	return s.ExitCode(s.State().LastStatus)
}

// notifyJobs reports background jobs that finished since the last prompt.
func (s *Shell) notifyJobs() {
	for _, job := range s.Exec.Jobs.Reap() {
		fmt.Fprintln(s.Exec.Stderr, job)
	}
}

// History is the history builtin for interactive shells.
func (s *Shell) History(bc *BuiltinContext, args []string) int {
	cmd := newCommand("history")
	clearHistory := cmd.Flags().Bool('c', "clear the history by deleting all entries")

	return cmd.Run(bc, args, func() int {
		if *clearHistory {
			if s.Readline != nil {
				s.Readline.Operation.ResetHistory()
			}
			s.history = nil
			return 0
		}

		for i, line := range s.history {
			fmt.Fprintf(bc.Stdout, "% 5d  %s\n", i+1, line)
		}
		return 0
	})
}

// Close releases the terminal and event log.
func (s *Shell) Close() error {
	return s.toClose.Close()
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

func init() {
	builtinDocs["history"] = SimpleCommand{
		Use:   "history [-c]",
		Short: "Display or clear the history list.",
	}
}
