package core

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/josephlewis42/rush/core/shell"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

// builtinDocs holds the usage line and description of each builtin.
var builtinDocs = make(map[string]SimpleCommand)

func addBuiltin(name, use, short string, fn ShellBuiltinFunc) {
	AllBuiltins[name] = fn
	builtinDocs[name] = SimpleCommand{Use: use, Short: short}
}

// newCommand creates the option parser for a registered builtin.
func newCommand(name string) *SimpleCommand {
	doc := builtinDocs[name]
	return &SimpleCommand{Use: doc.Use, Short: doc.Short}
}

var (
	errTooManyArgs   = errors.New("too many arguments")
	errNotIdentifier = errors.New("not a valid identifier")
)

// Cd is the cd shell builtin
func Cd(bc *BuiltinContext, args []string) int {
	cmd := newCommand("cd")
	opts := cmd.Flags()
	opts.Bool('L', "keep symbolic links in the new directory (default)")
	physical := opts.Bool('P', "resolve symbolic links in the new directory")

	return cmd.Run(bc, args, func() int {
		var target string
		printDir := false

		switch rest := opts.Args(); len(rest) {
		case 0:
			home, ok := bc.State.Vars.Lookup(EnvHome)
			if !ok || home == "" {
				return bc.Fail(args[0], fmt.Errorf("%s not set", EnvHome))
			}
			target = home
		case 1:
			target = rest[0]
			if target == "-" {
				prev, ok := bc.State.Vars.Lookup(EnvOldPWD)
				if !ok || prev == "" {
					return bc.Fail(args[0], fmt.Errorf("%s not set", EnvOldPWD))
				}
				target = prev
				printDir = true
			}
		default:
			return bc.Fail(args[0], errTooManyArgs)
		}

		if err := bc.State.Chdir(target, *physical); err != nil {
			return bc.Fail(args[0], err)
		}
		if printDir {
			fmt.Fprintln(bc.Stdout, bc.State.Dir)
		}
		return 0
	})
}

// Exit quits the shell. Without an argument the status is 0.
func Exit(bc *BuiltinContext, args []string) int {
	switch len(args) {
	case 1:
		bc.State.Exit(0)
		return 0
	case 2:
		code, err := strconv.Atoi(args[1])
		if err != nil {
			status := bc.FailStatus(2, args[0], fmt.Errorf("%s: numeric argument required", args[1]))
			bc.State.Exit(status)
			return status
		}
		code &= 0xff
		bc.State.Exit(code)
		return code
	default:
		return bc.Fail(args[0], errTooManyArgs)
	}
}

// Export marks variables to be passed to the environment of commands.
func Export(bc *BuiltinContext, args []string) int {
	cmd := newCommand("export")
	opts := cmd.Flags()
	remove := opts.Bool('n', "remove the export property from each NAME")
	printAll := opts.Bool('p', "display all exported variables")

	return cmd.Run(bc, args, func() int {
		names := opts.Args()
		if len(names) == 0 || *printAll {
			printExports(bc.Stdout, bc.State)
			return 0
		}

		status := 0
		for _, arg := range names {
			name, value, hasValue := strings.Cut(arg, "=")
			if !shell.ValidName(name) {
				status = bc.Fail(args[0], fmt.Errorf("`%s': %w", arg, errNotIdentifier))
				continue
			}

			switch {
			case *remove:
				if hasValue {
					bc.State.Vars.Set(name, value)
				}
				bc.State.Vars.Unexport(name)
			default:
				if hasValue {
					bc.State.Vars.Set(name, value)
				}
				bc.State.Vars.Export(name)
			}
		}
		return status
	})
}

func printExports(w io.Writer, state *ShellState) {
	for _, entry := range state.Vars.Environ() {
		name, value, _ := strings.Cut(entry, "=")
		fmt.Fprintf(w, "export %s=%s\n", name, shell.QuoteWord(value))
	}
}

// Unset removes variables.
func Unset(bc *BuiltinContext, args []string) int {
	cmd := newCommand("unset")
	opts := cmd.Flags()
	opts.Bool('v', "treat each NAME as a variable (default)")

	return cmd.Run(bc, args, func() int {
		status := 0
		for _, name := range opts.Args() {
			if !shell.ValidName(name) {
				status = bc.Fail(args[0], fmt.Errorf("`%s': %w", name, errNotIdentifier))
				continue
			}
			bc.State.Vars.Unset(name)
		}
		return status
	})
}

// Pwd prints the working directory.
func Pwd(bc *BuiltinContext, args []string) int {
	cmd := newCommand("pwd")
	opts := cmd.Flags()
	opts.Bool('L', "print the directory as it was entered (default)")
	physical := opts.Bool('P', "print the directory with symbolic links resolved")

	return cmd.Run(bc, args, func() int {
		dir := bc.State.Dir
		if *physical {
			resolved, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return bc.Fail(args[0], underlying(err))
			}
			dir = resolved
		}
		fmt.Fprintln(bc.Stdout, dir)
		return 0
	})
}

var (
	unescapeSeq   = regexp.MustCompile(`\\(0[0-7]{0,3}|x[0-9a-fA-F]{1,2}|[nrt\\abfve])`)
	unescapeChars = map[byte]string{
		'n':  "\n",   // newline
		'r':  "\r",   // carriage return
		't':  "\t",   // horizontal tab
		'\\': `\`,    // backslash literal
		'a':  "\a",   // alert
		'b':  "\b",   // backspace
		'f':  "\f",   // form feed
		'v':  "\v",   // vertical tab
		'e':  "\x1b", // escape
	}
	echoFlag = regexp.MustCompile(`^-[neE]+$`)
)

// unescape interprets the backslash escapes echo -e understands: the
// characters above, \0nnn octal and \xHH hexadecimal bytes.
func unescape(s string) string {
	return unescapeSeq.ReplaceAllStringFunc(s, func(seq string) string {
		switch seq[1] {
		case '0':
			if len(seq) == 2 {
				return "\x00"
			}
			out, err := strconv.ParseUint(seq[2:], 8, 8)
			if err != nil {
				return seq
			}
			return string([]byte{byte(out)})
		case 'x':
			out, err := strconv.ParseUint(seq[2:], 16, 8)
			if err != nil {
				return seq
			}
			return string([]byte{byte(out)})
		default:
			return unescapeChars[seq[1]]
		}
	})
}

// Echo writes its arguments separated by spaces.
//
// Options are only recognized before the first operand and unknown options
// are printed, like other shells do, so getopt isn't used.
func Echo(bc *BuiltinContext, args []string) int {
	newline, escapes := true, false

	operands := args[1:]
	for len(operands) > 0 && echoFlag.MatchString(operands[0]) {
		for _, flag := range operands[0][1:] {
			switch flag {
			case 'n':
				newline = false
			case 'e':
				escapes = true
			case 'E':
				escapes = false
			}
		}
		operands = operands[1:]
	}

	var sb strings.Builder
	for i, arg := range operands {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if escapes {
			arg = unescape(arg)
		}
		sb.WriteString(arg)
	}
	if newline {
		sb.WriteByte('\n')
	}

	if _, err := io.WriteString(bc.Stdout, sb.String()); err != nil {
		return bc.Fail(args[0], underlying(err))
	}
	return 0
}

func True(*BuiltinContext, []string) int { return 0 }

func False(*BuiltinContext, []string) int { return 1 }

// Type tells how each name would be run.
func Type(bc *BuiltinContext, args []string) int {
	cmd := newCommand("type")

	return cmd.Run(bc, args, func() int {
		status := 0
		for _, name := range cmd.Flags().Args() {
			if _, ok := bc.builtins()[name]; ok {
				fmt.Fprintf(bc.Stdout, "%s is a shell builtin\n", name)
				continue
			}

			path, err := LookPath(bc.State, name)
			if err != nil {
				status = bc.Fail(args[0], fmt.Errorf("%s: not found", name))
				continue
			}
			fmt.Fprintf(bc.Stdout, "%s is %s\n", name, path)
		}
		return status
	})
}

func (bc *BuiltinContext) builtins() map[string]ShellBuiltin {
	if bc.Exec == nil {
		return AllBuiltins
	}
	return bc.Exec.Builtins
}

// Help lists the builtins or describes one of them.
func Help(bc *BuiltinContext, args []string) int {
	cmd := newCommand("help")

	return cmd.Run(bc, args, func() int {
		names := cmd.Flags().Args()
		if len(names) > 0 {
			status := 0
			for _, name := range names {
				doc, ok := builtinDocs[name]
				if !ok {
					status = bc.Fail(args[0], fmt.Errorf("no help topics match `%s'", name))
					continue
				}
				fmt.Fprintf(bc.Stdout, "%s: %s\n    %s\n", name, doc.Use, doc.Short)
			}
			return status
		}

		w := bc.Stdout
		fmt.Fprintln(w, "rush, a small command shell")
		fmt.Fprintln(w, "These shell commands are defined internally.  Type `help' to see this list.")
		fmt.Fprintln(w, "Type `help name' to find out more about the function `name'.")
		fmt.Fprintln(w)

		var builtins []string
		for name := range bc.builtins() {
			builtins = append(builtins, name)
		}
		sort.Strings(builtins)

		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		for _, name := range builtins {
			fmt.Fprintf(tw, "%s\t%s\n", builtinDocs[name].Use, builtinDocs[name].Short)
		}
		tw.Flush()

		return 0
	})
}

// Jobs lists background jobs. Finished jobs are shown once and forgotten.
func Jobs(bc *BuiltinContext, args []string) int {
	cmd := newCommand("jobs")
	long := cmd.Flags().Bool('l', "list process IDs in addition to the normal information")

	return cmd.Run(bc, args, func() int {
		if bc.Exec == nil {
			return 0
		}

		finished := bc.Exec.Jobs.Reap()
		jobs := append(finished, bc.Exec.Jobs.List()...)
		sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })

		for _, job := range jobs {
			if *long {
				pids := make([]string, len(job.Pids))
				for i, pid := range job.Pids {
					pids[i] = strconv.Itoa(pid)
				}
				fmt.Fprintf(bc.Stdout, "[%d]  %s %-10s %s\n", job.ID, strings.Join(pids, ","), job.State(), job.Command)
				continue
			}
			fmt.Fprintln(bc.Stdout, job)
		}
		return 0
	})
}

// Wait waits for background jobs and returns the status of the last one
// named. Without arguments it waits for all of them and returns 0.
func Wait(bc *BuiltinContext, args []string) int {
	cmd := newCommand("wait")

	return cmd.Run(bc, args, func() int {
		if bc.Exec == nil {
			return 0
		}
		jobs := bc.Exec.Jobs

		ids := cmd.Flags().Args()
		if len(ids) == 0 {
			for _, job := range jobs.List() {
				job.Wait()
				jobs.Forget(job)
			}
			return 0
		}

		status := 0
		for _, arg := range ids {
			id, err := strconv.Atoi(strings.TrimPrefix(arg, "%"))
			if err != nil {
				status = bc.FailStatus(2, args[0], fmt.Errorf("`%s': not a job id", arg))
				continue
			}

			job, ok := jobs.Get(id)
			if !ok {
				status = bc.FailStatus(127, args[0], fmt.Errorf("%%%d: no such job", id))
				continue
			}
			status = job.Wait()
			jobs.Forget(job)
		}
		return status
	})
}

// Source runs a file's commands in the current shell.
func Source(bc *BuiltinContext, args []string) int {
	cmd := newCommand(args[0])

	return cmd.Run(bc, args, func() int {
		rest := cmd.Flags().Args()
		if len(rest) == 0 {
			return bc.FailStatus(2, args[0], errors.New("filename argument required"))
		}
		if bc.Exec == nil {
			return 1
		}

		var positional []string
		if len(rest) > 1 {
			positional = rest[1:]
		}
		return bc.Exec.Source(rest[0], positional)
	})
}

func init() {
	addBuiltin("cd", "cd [-L|-P] [DIR|-]", "Change the shell working directory.", Cd)
	addBuiltin("exit", "exit [N]", "Exit the shell with status N, or 0.", Exit)
	addBuiltin("export", "export [-n] [-p] [NAME[=VALUE]...]", "Set the export attribute for shell variables.", Export)
	addBuiltin("unset", "unset [-v] [NAME...]", "Unset values of shell variables.", Unset)
	addBuiltin("pwd", "pwd [-L|-P]", "Print the name of the current working directory.", Pwd)
	addBuiltin("echo", "echo [-neE] [ARG...]", "Write arguments to the standard output.", Echo)
	addBuiltin("true", "true", "Return a successful result.", True)
	addBuiltin("false", "false", "Return an unsuccessful result.", False)
	addBuiltin("type", "type NAME...", "Display information about command type.", Type)
	addBuiltin("help", "help [NAME...]", "Display information about builtin commands.", Help)
	addBuiltin("jobs", "jobs [-l]", "Display status of jobs.", Jobs)
	addBuiltin("wait", "wait [ID...]", "Wait for job completion and return exit status.", Wait)
	addBuiltin("source", "source FILE [ARGS...]", "Execute commands from a file in the current shell.", Source)
	addBuiltin(".", ". FILE [ARGS...]", "Execute commands from a file in the current shell.", Source)
}

// BuiltinHelp returns the usage line and description of a builtin.
func BuiltinHelp(name string) (use, short string, ok bool) {
	doc, ok := builtinDocs[name]
	return doc.Use, doc.Short, ok
}
