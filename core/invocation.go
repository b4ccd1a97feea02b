package core

// Invocation is a command resolved to the thing that will run it: either a
// built-in or an external program.
type Invocation interface {
	Argv() []string
}

// BuiltinInvocation runs inside the shell.
type BuiltinInvocation struct {
	Name    string
	Builtin ShellBuiltin
	Args    []string
}

func (b *BuiltinInvocation) Argv() []string { return b.Args }

// ExternalInvocation runs an executable in a child process.
type ExternalInvocation struct {
	Path string
	Args []string
}

func (x *ExternalInvocation) Argv() []string { return x.Args }

// resolve decides how argv runs. Built-ins shadow executables of the same
// name. Failures are returned as a *SpawnError.
func (e *Executor) resolve(state *ShellState, argv []string) (Invocation, error) {
	name := argv[0]
	if builtin, ok := e.Builtins[name]; ok {
		return &BuiltinInvocation{Name: name, Builtin: builtin, Args: argv}, nil
	}

	path, err := LookPath(state, name)
	if err != nil {
		return nil, &SpawnError{Name: name, Err: err}
	}
	return &ExternalInvocation{Path: path, Args: argv}, nil
}
