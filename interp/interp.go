package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"math/rand"

	"github.com/boxsh/boxsh/expand"
	"github.com/boxsh/boxsh/syntax"
)

// RunnerOption configures a Runner at construction time (§9 "Configuration":
// the teacher's functional-options constructor, kept unchanged in shape).
type RunnerOption func(*Runner) error

// New creates a new Runner, applying the given options. Any unset option
// falls back to a safe, empty default: no base environment, working
// directory "/", no filesystem (any path-touching builtin fails), no
// custom commands.
func New(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		usedNew: true,
		pid:     1,
		rng:     rand.New(rand.NewSource(1)),
	}
	r.dirStack = r.dirBootstrap[:0]
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.Env == nil {
		Env(nil)(r)
	}
	if r.Dir == "" {
		Dir("/")(r)
	}
	if r.meter == nil {
		r.meter = &meter{}
	}
	return r, nil
}

// Env sets the interpreter's base environment. A nil env means empty.
func Env(env expand.Environ) RunnerOption {
	return func(r *Runner) error {
		if env == nil {
			env = expand.ListEnviron()
		}
		r.Env = env
		return nil
	}
}

// Dir sets the interpreter's working directory, which must be an absolute
// sandbox path; there is no real process cwd to fall back on (§1 "no host
// shell escape").
func Dir(path string) RunnerOption {
	return func(r *Runner) error {
		if path == "" {
			path = "/"
		}
		r.Dir = path
		return nil
	}
}

// Params populates the shell's boolean options and positional parameters,
// the same grammar the "set" builtin accepts (e.g. Params("-e", "--", "a")).
func Params(args ...string) RunnerOption {
	return func(r *Runner) error {
		rest, err := r.applySetFlags(args)
		if err != nil {
			return err
		}
		if rest != nil {
			r.Params = rest
		}
		return nil
	}
}

// FS sets the sandboxed Filesystem every path-touching operation goes
// through (§6 "Filesystem trait").
func FS(fsys Filesystem) RunnerOption {
	return func(r *Runner) error {
		r.fs = fsys
		return nil
	}
}

// Stdin seeds the bytes the "read" builtin and any command's stdin consume
// at the top level, before any pipeline or redirection replaces it.
func Stdin(b []byte) RunnerOption {
	return func(r *Runner) error {
		r.rootStdin = b
		return nil
	}
}

// WithLimits bounds the execution counters of §4.7.
func WithLimits(l Limits) RunnerOption {
	return func(r *Runner) error {
		r.meter = &meter{limits: l}
		return nil
	}
}

// Posix stores the POSIX-mode setting on the Runner. The executor does not
// consult it: a failing special builtin is reported like any other builtin
// failure, and PosixFatalError is never raised.
func Posix(on bool) RunnerOption {
	return func(r *Runner) error {
		r.posix = on
		return nil
	}
}

// XPGEcho makes the "echo" builtin interpret backslash escapes by default,
// as it does under System V / xpg_echo semantics, without needing "-e".
func XPGEcho(on bool) RunnerOption {
	return func(r *Runner) error {
		r.xpgEcho = on
		return nil
	}
}

// Cancel wires a host-provided cancellation token (§5 "Suspension points"):
// when the channel closes, the next suspension point aborts the run with
// exit code 130, independently of whatever context.Context Run is called
// with.
func Cancel(ch <-chan struct{}) RunnerOption {
	return func(r *Runner) error {
		r.cancel = ch
		return nil
	}
}

// Commands registers the host's custom Command collaborators (§6 "Custom
// commands registration"). Eager commands are dispatched directly; lazy
// ones are loaded and cached on first dispatch.
func Commands(eager map[string]Command, lazy map[string]func() Command) RunnerOption {
	return func(r *Runner) error {
		if r.commands == nil {
			r.commands = make(map[string]Command)
		}
		for name, c := range eager {
			r.commands[name] = c
		}
		if len(lazy) > 0 {
			if r.lazyCommands == nil {
				r.lazyCommands = make(map[string]*lazyCommand)
			}
			for name, load := range lazy {
				r.lazyCommands[name] = &lazyCommand{load: load}
			}
		}
		return nil
	}
}

// Runner interprets a parsed shell program against a layered variable
// environment and a host-provided Filesystem/Command set (§2 "Executor &
// Pipeline Runner"). It is not safe for concurrent use; every statement in
// a program (including backgrounded ones, per §5) runs to completion
// before Run returns.
type Runner struct {
	Env   expand.Environ
	Dir   string

	Params []string
	Funcs  map[string]*syntax.Stmt

	vars *varStack

	fs           Filesystem
	commands     map[string]Command
	lazyCommands map[string]*lazyCommand

	rootStdin []byte
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer

	ecfg *expand.Config
	ectx context.Context

	didReset bool
	usedNew  bool

	filename string
	curLine  int

	cmdVars map[string]string

	breakEnclosing, contnEnclosing int
	inLoop, inFunc, inSource       bool
	inCondition                    bool
	noErrExit                     bool

	opts runnerOpts

	traps        trapTable
	handlingTrap map[string]bool

	aliases     map[string]string
	aliasActive map[string]bool

	meter  *meter
	posix  bool
	xpgEcho bool

	rng         *rand.Rand
	pid         int
	lastBgToken int
	funcStack   []string
	pipeStatus  []int

	dirStack     []string
	dirBootstrap [1]string

	optState getopts

	keepRedirs bool

	cancel <-chan struct{}

	exit int
}

type runnerOpts [numShellOpts]bool

const (
	optErrExit = iota
	optNounset
	optXTrace
	optNoGlob
	optNoClobber
	optAllExport
	optPipefail
	optPosixOpt
	optExtglob
	optGlobstar
	optNocaseglob
	optNullglob
	optFailglob
	optNoexec
	numShellOpts
)

var shellOptNames = map[string]int{
	"errexit":    optErrExit,
	"nounset":    optNounset,
	"xtrace":     optXTrace,
	"noglob":     optNoGlob,
	"noclobber":  optNoClobber,
	"allexport":  optAllExport,
	"pipefail":   optPipefail,
	"posix":      optPosixOpt,
	"extglob":    optExtglob,
	"globstar":   optGlobstar,
	"nocaseglob": optNocaseglob,
	"nullglob":   optNullglob,
	"failglob":   optFailglob,
	"noexec":     optNoexec,
}

var shellOptFlags = map[byte]int{
	'e': optErrExit,
	'u': optNounset,
	'x': optXTrace,
	'f': optNoGlob,
	'C': optNoClobber,
	'a': optAllExport,
	'n': optNoexec,
}

// applySetFlags implements the flag grammar shared by the "set" builtin and
// the Params constructor option: leading "-"/"+" flags (short or "-o name"),
// terminated by "--" or a non-flag argument, after which any remaining args
// become the new positional parameters (nil means "don't change them").
func (r *Runner) applySetFlags(args []string) ([]string, error) {
	onlyFlags := true
	for len(args) > 0 {
		arg := args[0]
		if arg == "" || (arg[0] != '-' && arg[0] != '+') {
			onlyFlags = false
			break
		}
		if arg == "--" {
			args = args[1:]
			onlyFlags = false
			break
		}
		enable := arg[0] == '-'
		if arg[1:] == "o" {
			args = args[1:]
			if len(args) == 0 {
				break
			}
			name := args[0]
			args = args[1:]
			idx, ok := shellOptNames[name]
			if !ok {
				return nil, fmt.Errorf("set: invalid option name %q", name)
			}
			r.opts[idx] = enable
			continue
		}
		for _, c := range arg[1:] {
			idx, ok := shellOptFlags[byte(c)]
			if !ok {
				return nil, fmt.Errorf("set: invalid option: %q", arg)
			}
			r.opts[idx] = enable
		}
		args = args[1:]
	}
	if onlyFlags {
		return nil, nil
	}
	return args, nil
}

// Reset returns the Runner to the state right before the first Run, keeping
// the options it was constructed with. Host code normally creates one fresh
// Runner per Execute call instead of calling this directly.
func (r *Runner) Reset() {
	if !r.usedNew {
		panic("use interp.New to construct a Runner")
	}
	r.vars = newVarStack(r.Env)
	r.cmdVars = make(map[string]string)
	r.Funcs = make(map[string]*syntax.Stmt)
	r.aliases = make(map[string]string)
	r.stdout = &bytes.Buffer{}
	r.stderr = &bytes.Buffer{}
	if r.rootStdin != nil {
		r.stdin = bytes.NewReader(r.rootStdin)
	} else {
		r.stdin = bytes.NewReader(nil)
	}
	r.dirStack = append(r.dirStack[:0], r.Dir)
	r.exit = 0
	r.pid = 1

	r.vars.Set("PWD", expand.Variable{Set: true, Exported: true, Kind: expand.String, Str: r.Dir})
	if !r.Env.Get("HOME").IsSet() {
		r.vars.Set("HOME", expand.Variable{Set: true, Exported: true, Kind: expand.String, Str: "/root"})
	}
	r.vars.Set("IFS", expand.Variable{Set: true, Kind: expand.String, Str: " \t\n"})
	r.vars.Set("OPTIND", expand.Variable{Set: true, Kind: expand.String, Str: "1"})
	r.didReset = true
}

func (r *Runner) fillExpandConfig(ctx context.Context) {
	r.ectx = ctx
	r.ecfg = &expand.Config{
		Ctx: ctx,
		Env: runnerEnviron{r},
		CmdSubst: func(ctx context.Context, w io.Writer, cs *syntax.CmdSubst) error {
			if err := r.meter.enterSubst(); err != nil {
				return err
			}
			defer r.meter.leaveSubst()
			r2 := r.sub()
			r2.stdout = &bytes.Buffer{}
			defer func() { w.Write(r2.stdout.Bytes()) }()
			return r2.stmts(ctx, cs.Stmts)
		},
		ProcSubst: func(ctx context.Context, ps *syntax.ProcSubst) (string, error) {
			// Stub: process substitution resolves to a synthetic path; no
			// real fifo exists in the sandbox (§3 ProcessSubstitution).
			return "/dev/fd/procsubst", nil
		},
		OnGlobOp:    func() error { return r.meter.glob() },
		OnExpansion: func(n int) error { return r.meter.expansion(n) },
	}
	r.updateExpandOpts()
}

func (r *Runner) updateExpandOpts() {
	if r.opts[optNoGlob] || r.fs == nil {
		r.ecfg.ReadDir = nil
	} else {
		r.ecfg.ReadDir = func(dir string) ([]fs.DirEntry, error) {
			return r.fs.ReadDir(r.ectx, dir)
		}
	}
	r.ecfg.GlobStar = r.opts[optGlobstar]
	r.ecfg.NoCaseGlob = r.opts[optNocaseglob]
	r.ecfg.NullGlob = r.opts[optNullglob]
	r.ecfg.FailGlob = r.opts[optFailglob]
	r.ecfg.NoGlob = r.opts[optNoGlob]
}

// sub clones the Runner's state for a subshell or command substitution
// (§3 Lifecycles: "Subshell execution clones state ... mutations in a
// subshell are never visible to the parent"). The clone shares the meter,
// Filesystem and command registry, but gets its own variable-scope copy
// and directory stack. It writes to the parent's stdout and stderr writers
// until a caller replaces them.
func (r *Runner) sub() *Runner {
	r2 := &Runner{
		Env:          r.Env,
		Dir:          r.Dir,
		Params:       r.Params,
		Funcs:        r.Funcs,
		fs:           r.fs,
		commands:     r.commands,
		lazyCommands: r.lazyCommands,
		stdin:        r.stdin,
		filename:     r.filename,
		curLine:      r.curLine,
		opts:         r.opts,
		meter:        r.meter,
		posix:        r.posix,
		xpgEcho:      r.xpgEcho,
		rng:          r.rng,
		pid:          r.pid,
		funcStack:    append([]string{}, r.funcStack...),
		cancel:       r.cancel,
		usedNew:      true,
		didReset:     true,
	}
	r2.vars = r.vars.clone()
	r2.cmdVars = make(map[string]string, len(r.cmdVars))
	for k, v := range r.cmdVars {
		r2.cmdVars[k] = v
	}
	r2.aliases = make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		r2.aliases[k] = v
	}
	r2.traps = make(trapTable, len(r.traps))
	for k, v := range r.traps {
		r2.traps[k] = v
	}
	r2.dirStack = append(r2.dirBootstrap[:0], r.dirStack...)
	r2.stdout = r.stdout
	r2.stderr = r.stderr
	r2.fillExpandConfig(r.ectx)
	return r2
}

// Run executes a whole parsed program and always returns nil: every
// outcome -- nonzero exit, errexit/nounset/limit abort, "exit", or an error
// of a kind handleTopLevel does not recognize -- is fully resolved into
// Runner.ExitCode/Stdout/Stderr before Run returns.
func (r *Runner) Run(ctx context.Context, file *syntax.File) error {
	if !r.didReset {
		r.Reset()
	}
	r.fillExpandConfig(ctx)
	r.filename = file.Name

	err := r.stmts(ctx, file.Stmts)
	r.handleTopLevel(ctx, err)
	r.runTrap(ctx, "EXIT")
	return nil
}

// handleTopLevel maps an unwound control-flow error to its final exit code
// and flushes any bytes it carried (§7 failure-category table, §9 "non-local
// exits carrying output").
func (r *Runner) handleTopLevel(ctx context.Context, err error) {
	if err == nil {
		return
	}
	r.flushCarried(err)
	r.exit = ExitCode(err)
	switch e := err.(type) {
	case *NounsetError:
		r.errf("%s: unbound variable\n", e.Name)
	case *ArithmeticError:
		r.errf("%s\n", e.Message)
	case *BraceExpansionError:
		r.errf("%s\n", e.Message)
	case *GlobError:
		r.errf("%s\n", e.Error())
	case *ExecutionLimitError:
		r.errf("%s\n", e.Error())
	case *PosixFatalError:
		r.errf("%s\n", e.Message)
	case *BreakError:
		r.errf("break: only meaningful in a `for', `while', or `until' loop\n")
		r.exit = 0
	case *ContinueError:
		r.errf("continue: only meaningful in a `for', `while', or `until' loop\n")
		r.exit = 0
	case *ReturnError:
		// "return" outside a function/sourced script: bash treats it like
		// a no-op error but keeps the requested code.
	}
}

// flushCarried appends whatever partial output a discarded frame captured
// onto the current buffers, so no bytes are lost across an unwind (§9).
func (r *Runner) flushCarried(err error) {
	type carrier interface{ carriedOutput() ([]byte, []byte) }
	if c, ok := err.(carrier); ok {
		out, errb := c.carriedOutput()
		r.stdout.Write(out)
		r.stderr.Write(errb)
	}
}

func (r *Runner) out(s string)  { io.WriteString(r.stdout, s) }
func (r *Runner) errf(format string, a ...any) {
	fmt.Fprintf(r.stderr, format, a...)
}
func (r *Runner) outf(format string, a ...any) {
	fmt.Fprintf(r.stdout, format, a...)
}

// StdoutBytes returns the accumulated standard output of the run.
func (r *Runner) StdoutBytes() []byte { return bufBytes(r.stdout) }

// StderrBytes returns the accumulated standard error of the run.
func (r *Runner) StderrBytes() []byte { return bufBytes(r.stderr) }

// bufBytes reads back whatever a Runner's stdout/stderr currently holds. By
// the time a host calls StdoutBytes/StderrBytes, any statement-scoped
// redirection has already been unwound and the writer is back to the root
// *bytes.Buffer from Reset; mid-redirect writers (e.g. a file redirect) never
// feed these accessors.
func bufBytes(w io.Writer) []byte {
	if b, ok := w.(*bytes.Buffer); ok {
		return append([]byte(nil), b.Bytes()...)
	}
	return nil
}

// ExitCode returns the process exit status the host should observe.
func (r *Runner) ExitCode() int { return r.exit }

// EnvironMap snapshots every currently-set, exported variable as a
// name->string-value map, for the host Result's "env" field.
func (r *Runner) EnvironMap() map[string]string {
	out := make(map[string]string)
	r.vars.Each(func(name string, vr expand.Variable) bool {
		if vr.Exported && vr.Set {
			out[name] = vr.String()
		}
		return true
	})
	return out
}

func oneIf(b bool) int {
	if b {
		return 1
	}
	return 0
}
