package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/boxsh/boxsh/expand"
	"github.com/boxsh/boxsh/pattern"
	"github.com/boxsh/boxsh/syntax"
)

// carriedOutput lets handleTopLevel and every catching frame recover the
// partial bytes a non-local exit was carrying (§9).
func (e *BreakError) carriedOutput() ([]byte, []byte)          { return e.Stdout, e.Stderr }
func (e *ContinueError) carriedOutput() ([]byte, []byte)       { return e.Stdout, e.Stderr }
func (e *ReturnError) carriedOutput() ([]byte, []byte)         { return e.Stdout, e.Stderr }
func (e *ExitError) carriedOutput() ([]byte, []byte)           { return e.Stdout, e.Stderr }
func (e *ErrexitError) carriedOutput() ([]byte, []byte)        { return e.Stdout, e.Stderr }
func (e *NounsetError) carriedOutput() ([]byte, []byte)        { return e.Stdout, e.Stderr }
func (e *ArithmeticError) carriedOutput() ([]byte, []byte)     { return e.Stdout, e.Stderr }
func (e *BraceExpansionError) carriedOutput() ([]byte, []byte) { return e.Stdout, e.Stderr }
func (e *GlobError) carriedOutput() ([]byte, []byte)           { return e.Stdout, e.Stderr }
func (e *ExecutionLimitError) carriedOutput() ([]byte, []byte) { return e.Stdout, e.Stderr }
func (e *PosixFatalError) carriedOutput() ([]byte, []byte)     { return e.Stdout, e.Stderr }

func (r *Runner) checkCancel(ctx context.Context) error {
	select {
	case <-r.cancel:
		return &ExitError{Code: 130}
	default:
	}
	if err := ctx.Err(); err != nil {
		return &ExitError{Code: 130}
	}
	return nil
}

// stmts runs a statement list in order (§4.5 "Lists": plain ";" sequencing),
// stopping and propagating the first control-flow error.
func (r *Runner) stmts(ctx context.Context, stmts []*syntax.Stmt) error {
	for _, st := range stmts {
		if err := r.stmt(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) stmt(ctx context.Context, st *syntax.Stmt) error {
	if err := r.checkCancel(ctx); err != nil {
		return err
	}
	r.curLine = int(st.Position)

	if st.Background {
		// Backgrounding is emulated synchronously (§5, §9 design note): the
		// statement runs to completion now, sharing the parent's output
		// writers directly, but its exit code does not become the enclosing
		// list's: "$?" is set to 0 and "$!" gets a new pid-like token. An
		// errgroup.Group carries the
		// cancellation-aware bookkeeping the teacher's bgShells group does,
		// even though this group only ever holds the one task: Wait returns
		// as soon as that task completes, which is what keeps "&" synchronous
		// per the scheduling model instead of truly concurrent.
		g, gctx := errgroup.WithContext(ctx)
		r2 := r.sub()
		st2 := *st
		st2.Background = false
		var bgErr error
		g.Go(func() error {
			bgErr = r2.stmt(gctx, &st2)
			return bgErr
		})
		_ = g.Wait()
		r.lastBgToken++
		if bgErr != nil {
			r.flushCarried(bgErr)
		}
		r.exit = 0
		return nil
	}
	return r.stmtSync(ctx, st)
}

func (r *Runner) stmtSync(ctx context.Context, st *syntax.Stmt) error {
	var closers []io.Closer
	oldIn, oldOut, oldErr := r.stdin, r.stdout, r.stderr
	for _, rd := range st.Redirs {
		cls, err := r.redir(ctx, rd)
		if err != nil {
			r.exit = 1
			r.errf("%v\n", err)
			for _, c := range closers {
				c.Close()
			}
			if !r.keepRedirs {
				r.stdin, r.stdout, r.stderr = oldIn, oldOut, oldErr
			}
			return nil
		}
		if cls != nil {
			closers = append(closers, cls)
		}
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
		if !r.keepRedirs {
			r.stdin, r.stdout, r.stderr = oldIn, oldOut, oldErr
		}
	}()

	var err error
	if st.Cmd == nil {
		for _, as := range st.Assigns {
			if err := r.applyAssign(as); err != nil {
				return err
			}
		}
		r.exit = 0
	} else if ce, ok := st.Cmd.(*syntax.CallExpr); ok {
		err = r.callExpr(ctx, ce, st.Assigns)
	} else {
		err = r.cmd(ctx, st.Cmd)
	}
	if err != nil {
		return err
	}

	if st.Negated {
		r.exit = oneIf(r.exit == 0)
	}

	_, isCall := st.Cmd.(*syntax.CallExpr)
	suppressed := r.noErrExit || st.Negated || !(isCall || st.Cmd == nil)
	if r.exit != 0 && !suppressed {
		r.runTrap(ctx, "ERR")
	}
	if r.exit != 0 && !suppressed && r.opts[optErrExit] {
		return &ErrexitError{Code: r.exit, Stdout: bufBytes(r.stdout), Stderr: bufBytes(r.stderr)}
	}
	return nil
}

func (r *Runner) cmd(ctx context.Context, cm syntax.Command) error {
	if err := r.checkCancel(ctx); err != nil {
		return err
	}
	switch x := cm.(type) {
	case *syntax.Pipeline:
		return r.pipeline(ctx, x)
	case *syntax.BinaryList:
		return r.binaryList(ctx, x)
	case *syntax.Subshell:
		r2 := r.sub()
		err := r2.stmts(ctx, x.Stmts)
		r.exit = r2.exit
		if err != nil {
			if ee, ok := err.(*ExitError); ok {
				r.stdout.Write(ee.Stdout)
				r.stderr.Write(ee.Stderr)
				r.exit = ee.Code
				return nil
			}
			return err
		}
		return nil
	case *syntax.Group:
		return r.stmts(ctx, x.Stmts)
	case *syntax.IfClause:
		return r.ifClause(ctx, x)
	case *syntax.WhileClause:
		return r.whileClause(ctx, x)
	case *syntax.ForClause:
		return r.forClause(ctx, x)
	case *syntax.CaseClause:
		return r.caseClause(ctx, x)
	case *syntax.FuncDecl:
		r.setFunc(x.Name.Value, x.Body)
		r.exit = 0
		return nil
	case *syntax.ArithmCmd:
		n, err := r.arithmChecked(x.X)
		if err != nil {
			return err
		}
		r.exit = oneIf(n == 0)
		return nil
	default:
		return fmt.Errorf("bash: internal error: unhandled command node %T", x)
	}
}

func (r *Runner) arithmChecked(expr syntax.ArithmExpr) (int, error) {
	n, err := expand.Arithm(r.ecfg, expr)
	if err != nil {
		if _, ok := err.(expand.UnsetParameterError); ok {
			return 0, &NounsetError{Stdout: bufBytes(r.stdout), Stderr: bufBytes(r.stderr)}
		}
		return 0, &ArithmeticError{Message: err.Error(), Stdout: bufBytes(r.stdout), Stderr: bufBytes(r.stderr)}
	}
	return n, nil
}

func (r *Runner) fieldsChecked(words ...*syntax.Word) ([]string, error) {
	strs, err := expand.Fields(r.ecfg, words...)
	if err != nil {
		return nil, r.wrapExpandErr(err)
	}
	return strs, nil
}

func (r *Runner) literalChecked(w *syntax.Word) (string, error) {
	s, err := expand.Literal(r.ecfg, w)
	if err != nil {
		return "", r.wrapExpandErr(err)
	}
	return s, nil
}

func (r *Runner) wrapExpandErr(err error) error {
	switch e := err.(type) {
	case expand.UnsetParameterError:
		_ = e
		return &NounsetError{Stdout: bufBytes(r.stdout), Stderr: bufBytes(r.stderr)}
	case *expand.NoGlobMatchError:
		return &GlobError{Pattern: e.Pattern, Stdout: bufBytes(r.stdout), Stderr: bufBytes(r.stderr)}
	default:
		if le, ok := err.(*ExecutionLimitError); ok {
			return le
		}
		return &ArithmeticError{Message: err.Error(), Stdout: bufBytes(r.stdout), Stderr: bufBytes(r.stderr)}
	}
}

// callExpr runs a simple command: assignments, then dispatch (§4.5 "Simple
// command"). Assignments with no command words mutate the environment and
// persist; assignments preceding a command word are ephemeral, scoped to
// that one invocation, except that special builtins (listed in §4.6) let
// them persist -- this implementation applies redirections before
// assignments, matching DESIGN.md's documented Open Question decision.
func (r *Runner) callExpr(ctx context.Context, c *syntax.CallExpr, assigns []*syntax.Assign) error {
	fields, err := r.fieldsChecked(c.Args...)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		for _, as := range assigns {
			if err := r.applyAssign(as); err != nil {
				return err
			}
		}
		r.exit = 0
		return nil
	}
	switch fields[0] {
	case ":", ".", "break", "continue", "eval", "exec", "exit", "export",
		"readonly", "return", "set", "shift", "trap", "unset":
		for _, as := range assigns {
			if err := r.applyAssign(as); err != nil {
				return err
			}
		}
		return r.call(ctx, fields)
	}
	for _, as := range assigns {
		vr, err := r.assignVal(as, "")
		if err != nil {
			return err
		}
		r.cmdVars[as.Name.Value] = vr.String()
	}
	err = r.call(ctx, fields)
	for k := range r.cmdVars {
		delete(r.cmdVars, k)
	}
	return err
}

func (r *Runner) applyAssign(as *syntax.Assign) error {
	name := as.Name.Value
	vr, err := r.assignVal(as, "")
	if err != nil {
		return err
	}
	if err := r.setVar(name, as.Index, vr); err != nil {
		r.errf("%s\n", err)
		r.exit = 1
	}
	return nil
}

// call resolves fields[0] through the dispatch order of §4.5: function,
// builtin, registered Command, else exit 127 "command not found".
func (r *Runner) call(ctx context.Context, fields []string) error {
	name, args := fields[0], fields[1:]

	if err := r.meter.command(); err != nil {
		return err
	}

	if rep, ok := r.aliases[name]; ok && !r.aliasActive[name] {
		if extra := strings.Fields(rep); len(extra) > 0 {
			if r.aliasActive == nil {
				r.aliasActive = make(map[string]bool)
			}
			r.aliasActive[name] = true
			defer delete(r.aliasActive, name)
			return r.call(ctx, append(extra, args...))
		}
	}

	if body := r.Funcs[name]; body != nil {
		return r.callFunc(ctx, name, body, args)
	}
	if isBuiltin(name) {
		code, err := r.builtin(ctx, name, args)
		if err != nil {
			return err
		}
		r.exit = code
		return nil
	}
	if cmd := r.lookupCommand(name); cmd != nil {
		res, err := cmd.Execute(ctx, fields, r.commandContext(ctx))
		if err != nil {
			return fmt.Errorf("bash: internal error: %s: %w", name, err)
		}
		r.stdout.Write(res.Stdout)
		r.stderr.Write(res.Stderr)
		r.exit = res.ExitCode
		return nil
	}
	r.errf("%s: command not found\n", name)
	r.exit = 127
	return nil
}

func (r *Runner) lookupCommand(name string) Command {
	if c, ok := r.commands[name]; ok {
		return c
	}
	if lc, ok := r.lazyCommands[name]; ok {
		return lc.get()
	}
	return nil
}

func (r *Runner) commandContext(ctx context.Context) *CommandContext {
	return &CommandContext{
		FS:      r.fs,
		Cwd:     r.Dir,
		Env:     cmdEnvView{r},
		Stdin:   readAll(r.stdin),
		Limits:  r.meter.limits,
		XPGEcho: r.xpgEcho,
		Exec: func(ctx context.Context, line string, opts Options) (ExecResult, error) {
			return r.reenter(ctx, line, opts)
		},
	}
}

func readAll(rd io.Reader) []byte {
	if rd == nil {
		return nil
	}
	b, _ := io.ReadAll(rd)
	return b
}

// reenter runs a line of shell source against a subshell snapshot of the
// current state, returning its result as an ExecResult -- used by the
// CommandContext.Exec callback (xargs, env, time, watch, per §6).
func (r *Runner) reenter(ctx context.Context, line string, opts Options) (ExecResult, error) {
	file, err := syntax.Parse("", []byte(line), 0)
	if err != nil {
		return ExecResult{Stderr: []byte(err.Error() + "\n"), ExitCode: 2}, nil
	}
	r2 := r.sub()
	out, errb := &bytes.Buffer{}, &bytes.Buffer{}
	r2.stdout, r2.stderr = out, errb
	for name, val := range opts.Env {
		r2.setVarString(name, val)
	}
	err2 := r2.stmts(ctx, file.Stmts)
	r2.handleTopLevel(ctx, err2)
	return ExecResult{Stdout: out.Bytes(), Stderr: errb.Bytes(), ExitCode: r2.exit}, nil
}

// cmdEnvView adapts the Runner's cmdVars-overlay environment into the
// live, mutable view a Command sees (§6 CommandContext.Env).
type cmdEnvView struct{ r *Runner }

func (e cmdEnvView) Get(name string) (string, bool) {
	vr := e.r.lookupVar(name)
	return vr.String(), vr.IsSet()
}
func (e cmdEnvView) Set(name, value string) { e.r.setVarString(name, value) }
func (e cmdEnvView) Each(fn func(name, value string)) {
	e.r.vars.Each(func(name string, vr expand.Variable) bool {
		fn(name, vr.String())
		return true
	})
}

func (r *Runner) callFunc(ctx context.Context, name string, body *syntax.Stmt, args []string) error {
	if err := r.meter.enterRecursion(); err != nil {
		return err
	}
	defer r.meter.leaveRecursion()

	oldParams := r.Params
	r.Params = args
	oldInFunc := r.inFunc
	r.inFunc = true
	r.funcStack = append(r.funcStack, name)
	r.vars.push()

	err := r.stmt(ctx, body)

	r.vars.pop()
	r.funcStack = r.funcStack[:len(r.funcStack)-1]
	r.Params = oldParams
	r.inFunc = oldInFunc

	if re, ok := err.(*ReturnError); ok {
		r.stdout.Write(re.Stdout)
		r.stderr.Write(re.Stderr)
		r.exit = re.Code
		return nil
	}
	return err
}

func (r *Runner) binaryList(ctx context.Context, b *syntax.BinaryList) error {
	oldNoErrExit := r.noErrExit
	r.noErrExit = true
	err := r.stmt(ctx, b.X)
	r.noErrExit = oldNoErrExit
	if err != nil {
		return err
	}
	if (r.exit == 0) == (b.Op == syntax.AndStmt) {
		return r.stmt(ctx, b.Y)
	}
	return nil
}

// pipeline runs each stage sequentially, handing the previous stage's full
// captured stdout to the next before it starts (§2, §4.5, §5: "each stage's
// full stdout is delivered to the next before the next starts" -- a
// deliberate byte-buffer emulation rather than real concurrent piping).
func (r *Runner) pipeline(ctx context.Context, p *syntax.Pipeline) error {
	n := len(p.Stmts)
	codes := make([]int, n)
	var curIn io.Reader = r.stdin

	for i, st := range p.Stmts {
		r2 := r.sub()
		r2.stdin = curIn
		out := &bytes.Buffer{}
		r2.stdout = out
		if p.All {
			r2.stderr = out
		} else {
			r2.stderr = r.stderr
		}

		err := r2.stmt(ctx, st)
		codes[i] = r2.exit
		curIn = bytes.NewReader(out.Bytes())

		if i == n-1 {
			r.stdout.Write(out.Bytes())
		}
		if !p.All {
			// stderr was already written directly to r.stderr above.
		}
		if err != nil {
			r.flushCarried(err)
			codes[i] = ExitCode(err)
			r.pipeStatus = codes
			return err
		}
	}
	r.pipeStatus = codes

	last := codes[n-1]
	if r.opts[optPipefail] {
		or := 0
		for _, c := range codes {
			if c != 0 {
				or |= c
			}
		}
		if or != 0 {
			last = or
		}
	}
	if p.Negated {
		last = oneIf(last == 0)
	}
	r.exit = last
	return nil
}

func (r *Runner) ifClause(ctx context.Context, c *syntax.IfClause) error {
	oldNoErrExit, oldInCond := r.noErrExit, r.inCondition
	r.noErrExit, r.inCondition = true, true
	err := r.stmts(ctx, c.CondStmts)
	r.noErrExit, r.inCondition = oldNoErrExit, oldInCond
	if err != nil {
		return err
	}
	if r.exit == 0 {
		return r.stmts(ctx, c.ThenStmts)
	}
	for _, elif := range c.Elifs {
		r.noErrExit, r.inCondition = true, true
		err := r.stmts(ctx, elif.CondStmts)
		r.noErrExit, r.inCondition = oldNoErrExit, oldInCond
		if err != nil {
			return err
		}
		if r.exit == 0 {
			return r.stmts(ctx, elif.ThenStmts)
		}
	}
	r.exit = 0
	if c.ElseStmts != nil {
		return r.stmts(ctx, c.ElseStmts)
	}
	return nil
}

func (r *Runner) whileClause(ctx context.Context, c *syntax.WhileClause) error {
	for {
		if err := r.checkCancel(ctx); err != nil {
			return err
		}
		oldNoErrExit, oldInCond := r.noErrExit, r.inCondition
		r.noErrExit, r.inCondition = true, true
		err := r.stmts(ctx, c.CondStmts)
		r.noErrExit, r.inCondition = oldNoErrExit, oldInCond
		if err != nil {
			return err
		}
		stop := (r.exit == 0) == c.Until
		r.exit = 0
		if stop {
			return nil
		}
		if err := r.meter.iteration(); err != nil {
			return err
		}
		brk, err := r.loopBody(ctx, c.DoStmts)
		if err != nil {
			return err
		}
		if brk {
			return nil
		}
	}
}

func (r *Runner) forClause(ctx context.Context, c *syntax.ForClause) error {
	switch y := c.Loop.(type) {
	case *syntax.WordIter:
		items := r.Params
		if y.Items != nil {
			var err error
			items, err = r.fieldsChecked(y.Items...)
			if err != nil {
				return err
			}
		}
		for _, field := range items {
			if err := r.checkCancel(ctx); err != nil {
				return err
			}
			r.setVarString(y.Name.Value, field)
			if err := r.meter.iteration(); err != nil {
				return err
			}
			brk, err := r.loopBody(ctx, c.DoStmts)
			if err != nil {
				return err
			}
			if brk {
				break
			}
		}
	case *syntax.CStyleLoop:
		if y.Init != nil {
			if _, err := r.arithmChecked(y.Init); err != nil {
				return err
			}
		}
		for {
			cond := 1
			if y.Cond != nil {
				var err error
				cond, err = r.arithmChecked(y.Cond)
				if err != nil {
					return err
				}
			}
			if cond == 0 {
				break
			}
			if err := r.meter.iteration(); err != nil {
				return err
			}
			brk, err := r.loopBody(ctx, c.DoStmts)
			if err != nil {
				return err
			}
			if brk {
				break
			}
			if y.Post != nil {
				if _, err := r.arithmChecked(y.Post); err != nil {
					return err
				}
			}
		}
	}
	r.exit = 0
	return nil
}

// loopBody runs one iteration's body, catching Break/Continue with Levels
// meant for this loop and translating deeper ones into the bool/error pair
// the caller uses to decide whether to keep iterating (§4.5 "break n").
func (r *Runner) loopBody(ctx context.Context, stmts []*syntax.Stmt) (brk bool, err error) {
	oldInLoop := r.inLoop
	r.inLoop = true
	defer func() { r.inLoop = oldInLoop }()

	err = r.stmts(ctx, stmts)
	if err == nil {
		return false, nil
	}
	switch e := err.(type) {
	case *BreakError:
		r.stdout.Write(e.Stdout)
		r.stderr.Write(e.Stderr)
		if e.Levels > 1 {
			return true, &BreakError{Levels: e.Levels - 1}
		}
		return true, nil
	case *ContinueError:
		r.stdout.Write(e.Stdout)
		r.stderr.Write(e.Stderr)
		if e.Levels > 1 {
			return true, &ContinueError{Levels: e.Levels - 1}
		}
		return false, nil
	default:
		return false, err
	}
}

func (r *Runner) caseClause(ctx context.Context, c *syntax.CaseClause) error {
	str, err := r.literalChecked(c.Word)
	if err != nil {
		return err
	}
	r.exit = 0
	for i := 0; i < len(c.Items); i++ {
		ci := c.Items[i]
		matched := false
		for _, w := range ci.Patterns {
			pat, err := r.patternChecked(w)
			if err != nil {
				return err
			}
			if caseMatch(pat, str, r.opts[optNocaseglob]) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if err := r.stmts(ctx, ci.Stmts); err != nil {
			return err
		}
		op := ci.Op
		// ";&" runs the following arm's body unconditionally, and keeps
		// cascading through as many further ";&" arms as appear in a row.
		for op == syntax.CaseFallthru {
			i++
			if i >= len(c.Items) {
				return nil
			}
			ci = c.Items[i]
			if err := r.stmts(ctx, ci.Stmts); err != nil {
				return err
			}
			op = ci.Op
		}
		switch op {
		case syntax.CaseBreak:
			return nil
		case syntax.CaseContinue:
			continue
		}
	}
	return nil
}

func (r *Runner) patternChecked(w *syntax.Word) (string, error) {
	s, err := expand.Pattern(r.ecfg, w)
	if err != nil {
		return "", r.wrapExpandErr(err)
	}
	return s, nil
}

func caseMatch(pat, name string, nocase bool) bool {
	mode := pattern.Mode(pattern.EntireString)
	if nocase {
		mode |= pattern.NoGlobCase
	}
	expr, err := pattern.Regexp(pat, mode)
	if err != nil {
		return false
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return rx.MatchString(name)
}

// redir opens one redirection (§3 Redirection, §4.5). Every read/write
// target goes through the host Filesystem; an fd-duplicate target only
// ever refers to 1 (stdout) or 2 (stderr), since the sandbox has no
// broader fd table.
func (r *Runner) redir(ctx context.Context, rd *syntax.Redirect) (io.Closer, error) {
	if rd.Hdoc != nil {
		body, err := r.hdocBody(rd)
		if err != nil {
			return nil, err
		}
		r.stdin = strings.NewReader(body)
		return nil, nil
	}

	orig := &r.stdout
	if rd.N != nil && rd.N.Value == "2" {
		orig = &r.stderr
	}

	switch rd.Op {
	case syntax.WordHdoc:
		arg, err := r.literalChecked(rd.Word)
		if err != nil {
			return nil, err
		}
		r.stdin = strings.NewReader(arg + "\n")
		return nil, nil
	case syntax.DplOut:
		arg, err := r.literalChecked(rd.Word)
		if err != nil {
			return nil, err
		}
		switch arg {
		case "1":
			*orig = r.stdout
		case "2":
			*orig = r.stderr
		}
		return nil, nil
	}

	arg, err := r.literalChecked(rd.Word)
	if err != nil {
		return nil, err
	}
	path := r.absPath(arg)

	switch rd.Op {
	case syntax.RdrIn, syntax.RdrInOut:
		if r.fs == nil {
			return nil, fmt.Errorf("%s: no filesystem configured", path)
		}
		data, err := r.fs.ReadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		r.stdin = bytes.NewReader(data)
		return nil, nil
	case syntax.RdrOut, syntax.AppOut, syntax.RdrAll, syntax.AppAll, syntax.ClobberOut:
		if r.fs == nil {
			return nil, fmt.Errorf("%s: no filesystem configured", path)
		}
		if rd.Op == syntax.RdrOut && r.opts[optNoClobber] && r.fs.Exists(ctx, path) {
			return nil, fmt.Errorf("%s: cannot overwrite existing file", path)
		}
		w := &fileWriter{ctx: ctx, fs: r.fs, path: path, append: rd.Op == syntax.AppOut || rd.Op == syntax.AppAll}
		switch rd.Op {
		case syntax.RdrOut, syntax.AppOut, syntax.ClobberOut:
			*orig = w
		case syntax.RdrAll, syntax.AppAll:
			r.stdout = w
			r.stderr = w
		}
		return w, nil
	default:
		return nil, fmt.Errorf("bash: internal error: unhandled redirect op %v", rd.Op)
	}
}

// fileWriter buffers writes in memory and flushes them to the Filesystem on
// Close, so every redirect target is written exactly once regardless of how
// many separate Write calls the command made.
type fileWriter struct {
	ctx    context.Context
	fs     Filesystem
	path   string
	append bool
	buf    bytes.Buffer
}

func (w *fileWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *fileWriter) Close() error {
	if w.append {
		return w.fs.AppendFile(w.ctx, w.path, w.buf.Bytes())
	}
	return w.fs.WriteFile(w.ctx, w.path, w.buf.Bytes(), 0o644)
}

// hdocBody expands a here-document body (§3 Redirection, §4.1, §9 "Here-doc
// capture"): quoted delimiters suppress expansion entirely, and "<<-"
// strips each line's leading tabs before (possibly) expanding it.
func (r *Runner) hdocBody(rd *syntax.Redirect) (string, error) {
	if rd.HdocQuoted {
		var buf strings.Builder
		for _, wp := range rd.Hdoc.Parts {
			if lit, ok := wp.(*syntax.Lit); ok {
				s := lit.Value
				if rd.Op == syntax.DashHdoc {
					s = stripLeadingTabsPerLine(s)
				}
				buf.WriteString(s)
			}
		}
		return buf.String(), nil
	}
	if rd.Op != syntax.DashHdoc {
		return expand.Document(r.ecfg, rd.Hdoc)
	}
	var cur []syntax.WordPart
	var out strings.Builder
	flush := func() error {
		s, err := expand.Document(r.ecfg, &syntax.Word{Parts: cur})
		if err != nil {
			return err
		}
		out.WriteString(s)
		cur = cur[:0]
		return nil
	}
	for _, wp := range rd.Hdoc.Parts {
		lit, ok := wp.(*syntax.Lit)
		if !ok {
			cur = append(cur, wp)
			continue
		}
		lines := strings.Split(lit.Value, "\n")
		for i, line := range lines {
			if i > 0 {
				out.WriteByte('\n')
				if err := flush(); err != nil {
					return "", err
				}
			}
			cur = append(cur, &syntax.Lit{Value: strings.TrimLeft(line, "\t")})
		}
	}
	if err := flush(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func stripLeadingTabsPerLine(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, "\t")
	}
	return strings.Join(lines, "\n")
}

// absPath resolves p (relative or absolute) against the current working
// directory. When a Filesystem is configured, resolution is delegated to it
// so a host enforcing a sandbox root gets a say over every redirect target,
// cd argument, and here-doc or command path; cleanPath is only a fallback
// for the no-Filesystem case.
func (r *Runner) absPath(p string) string {
	if p == "" {
		return r.Dir
	}
	if r.fs != nil {
		return r.fs.ResolvePath(r.Dir, p)
	}
	if strings.HasPrefix(p, "/") {
		return cleanPath(p)
	}
	return cleanPath(r.Dir + "/" + p)
}

func cleanPath(p string) string {
	segs := strings.Split(p, "/")
	var out []string
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	return "/" + strings.Join(out, "/")
}

