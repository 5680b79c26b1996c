// Package boxsh is the host-facing entry point for the sandboxed shell
// interpreter (§6 "External Interfaces"). It wires a parsed program to an
// interp.Runner and reduces the result to a plain Options-in/Result-out
// call, the same shape the teacher's own `shell` convenience wrappers give
// its embedders, minus anything that would touch a real OS process or
// filesystem.
package boxsh

import (
	"context"

	"github.com/boxsh/boxsh/expand"
	"github.com/boxsh/boxsh/interp"
	"github.com/boxsh/boxsh/syntax"
)

// Options configures one Execute call (§6 "Host entry point").
type Options struct {
	// Cwd is the sandbox working directory Execute starts in. Defaults to
	// "/" when empty.
	Cwd string

	// Env seeds the interpreter's base environment.
	Env map[string]string

	// Files seeds a default in-memory Filesystem when Filesystem is nil
	// (§6 "files seed"): path -> file contents. Ignored if Filesystem is
	// set, since the host's own Filesystem owns seeding in that case.
	Files map[string][]byte

	XPGEcho bool
	Posix   bool
	Limits  Limits

	// CustomCommands and CustomCommandsLazy register host collaborators
	// (§6 "Custom commands registration"). For a name present in both,
	// the CustomCommands entry is the one that runs.
	CustomCommands     map[string]Command
	CustomCommandsLazy map[string]func() Command

	// Filesystem is the host-provided sandboxed Filesystem. If nil and
	// Files is non-nil, Execute builds a default in-memory one from Files.
	// If both are nil, any path-touching builtin fails at run time.
	Filesystem Filesystem

	// Stdin seeds bytes the "read" builtin and the top-level stdin stream
	// consume, before any pipeline or redirection replaces it.
	Stdin []byte

	// Cancel is a host-provided cooperative cancellation token (§5
	// "Suspension points"), independent of ctx.
	Cancel <-chan struct{}
}

// Result is the outcome of one Execute call (§6 "Host entry point").
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Env      map[string]string
}

// Execute parses and runs one shell program end to end (§6). A parse error
// never reaches the executor: it's reported directly as exit 2 with the
// parser's message on stderr, matching the "Parse errors" category of §7;
// no statement runs. Every other outcome, however it unwinds internally, is
// already resolved into Result by the time Execute returns.
func Execute(ctx context.Context, source []byte, opts Options) (Result, error) {
	file, err := syntax.Parse("", source, 0)
	if err != nil {
		return Result{
			ExitCode: 2,
			Stderr:   []byte(err.Error() + "\n"),
			Env:      opts.Env,
		}, nil
	}

	fsys := opts.Filesystem
	if fsys == nil && opts.Files != nil {
		fsys = newMemFilesystem(opts.Files)
	}

	ropts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(envPairs(opts.Env)...)),
		interp.Dir(cwdOrDefault(opts.Cwd)),
		interp.XPGEcho(opts.XPGEcho),
		interp.Posix(opts.Posix),
		interp.WithLimits(opts.Limits),
		interp.Stdin(opts.Stdin),
	}
	if fsys != nil {
		ropts = append(ropts, interp.FS(fsys))
	}
	if opts.Cancel != nil {
		ropts = append(ropts, interp.Cancel(opts.Cancel))
	}
	if len(opts.CustomCommands) > 0 || len(opts.CustomCommandsLazy) > 0 {
		ropts = append(ropts, interp.Commands(opts.CustomCommands, opts.CustomCommandsLazy))
	}

	r, err := interp.New(ropts...)
	if err != nil {
		return Result{}, err
	}
	r.Reset()

	if err := r.Run(ctx, file); err != nil {
		return Result{}, err
	}

	return Result{
		Stdout:   r.StdoutBytes(),
		Stderr:   r.StderrBytes(),
		ExitCode: r.ExitCode(),
		Env:      r.EnvironMap(),
	}, nil
}

func cwdOrDefault(cwd string) string {
	if cwd == "" {
		return "/"
	}
	return cwd
}

func envPairs(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	return pairs
}
