package interp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/boxsh/boxsh/expand"
	"github.com/boxsh/boxsh/syntax"
)

// isBuiltin reports whether name is one of the shell's built-in commands
// (§4.6), dispatched before any registered Command.
func isBuiltin(name string) bool {
	switch name {
	case ":", "true", "false", "exit", "set", "shift", "unset",
		"export", "readonly", "local", "declare", "let",
		"echo", "printf", "break", "continue", "pwd", "cd",
		"wait", "builtin", "trap", "type", "source", ".", "command",
		"dirs", "pushd", "popd", "alias", "unalias",
		"getopts", "eval", "test", "[", "exec",
		"return", "read", "mapfile", "readarray", "shopt":
		return true
	}
	return false
}

// builtin dispatches one builtin invocation. Its returned int is the exit
// code for builtins that complete normally; a non-nil error is always one
// of the control-flow errors in errors.go (exit/return/break/continue),
// which the caller must propagate rather than fold into an exit code.
func (r *Runner) builtin(ctx context.Context, name string, args []string) (int, error) {
	failf := func(code int, format string, a ...any) (int, error) {
		r.errf(format, a...)
		return code, nil
	}
	switch name {
	case ":", "true":
		return 0, nil
	case "false":
		return 1, nil

	case "exit":
		switch len(args) {
		case 0:
			return 0, &ExitError{Code: r.exit}
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return failf(2, "exit: invalid exit status code: %q\n", args[0])
			}
			return 0, &ExitError{Code: n & 0xff}
		default:
			return failf(1, "exit: too many arguments\n")
		}

	case "set":
		if _, err := r.applySetFlags(args); err != nil {
			return failf(2, "set: %v\n", err)
		}
		r.updateExpandOpts()
		return 0, nil

	case "shift":
		n := 1
		switch len(args) {
		case 0:
		case 1:
			n2, err := strconv.Atoi(args[0])
			if err != nil {
				return failf(2, "shift: usage: shift [n]\n")
			}
			n = n2
		default:
			return failf(2, "shift: usage: shift [n]\n")
		}
		if n < 0 || n > len(r.Params) {
			return failf(1, "shift: shift count out of range\n")
		}
		r.Params = r.Params[n:]
		return 0, nil

	case "unset":
		vars, funcs := true, true
		i := 0
		for ; i < len(args); i++ {
			switch args[i] {
			case "-v":
				funcs = false
			case "-f":
				vars = false
			default:
				goto doneFlags
			}
		}
	doneFlags:
		for _, arg := range args[i:] {
			if vars && r.lookupVar(arg).IsSet() {
				r.delVar(arg)
			} else if _, ok := r.Funcs[arg]; ok && funcs {
				delete(r.Funcs, arg)
			}
		}
		return 0, nil

	case "export", "readonly":
		return r.exportLike(name, args)

	case "local":
		return r.localBuiltin(args)

	case "declare":
		return r.declareBuiltin(args)

	case "let":
		return r.letBuiltin(args)

	case "echo":
		newline, doExpand := true, false
	echoOpts:
		for len(args) > 0 {
			switch args[0] {
			case "-n":
				newline = false
			case "-e":
				doExpand = true
			case "-E":
			default:
				break echoOpts
			}
			args = args[1:]
		}
		if r.xpgEcho {
			doExpand = true
		}
		for i, arg := range args {
			if i > 0 {
				r.out(" ")
			}
			if doExpand {
				arg, _, _ = expand.Format(r.ecfg, arg, nil)
			}
			r.out(arg)
		}
		if newline {
			r.out("\n")
		}
		return 0, nil

	case "printf":
		if len(args) == 0 {
			return failf(2, "printf: usage: printf format [arguments]\n")
		}
		format, fargs := args[0], args[1:]
		for {
			s, n, err := expand.Format(r.ecfg, format, fargs)
			if err != nil {
				return failf(1, "printf: %v\n", err)
			}
			r.out(s)
			fargs = fargs[n:]
			if n == 0 || len(fargs) == 0 {
				break
			}
		}
		return 0, nil

	case "break", "continue":
		if !r.inLoop {
			return failf(0, "%s: only meaningful in a `for', `while', or `until' loop\n", name)
		}
		levels := 1
		switch len(args) {
		case 0:
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return failf(2, "%s: usage: %s [n]\n", name, name)
			}
			levels = n
		default:
			return failf(2, "%s: usage: %s [n]\n", name, name)
		}
		if name == "break" {
			return 0, &BreakError{Levels: levels}
		}
		return 0, &ContinueError{Levels: levels}

	case "pwd":
		r.outf("%s\n", r.envGet("PWD"))
		return 0, nil

	case "cd":
		var path string
		switch len(args) {
		case 0:
			path = r.envGet("HOME")
		case 1:
			path = args[0]
			if path == "-" {
				path = r.envGet("OLDPWD")
				r.outf("%s\n", path)
			}
		default:
			return failf(2, "cd: usage: cd [dir]\n")
		}
		return r.changeDir(ctx, path), nil

	case "wait":
		// Backgrounding runs synchronously (§5, §9): by the time "wait" is
		// reached every "&" statement has already finished, so this is a
		// no-op that always succeeds.
		return 0, nil

	case "builtin":
		if len(args) == 0 {
			return 0, nil
		}
		if !isBuiltin(args[0]) {
			return 1, nil
		}
		return r.builtin(ctx, args[0], args[1:])

	case "type":
		return r.typeBuiltin(args)

	case "eval":
		src := strings.Join(args, " ")
		file, err := syntax.Parse("", []byte(src), 0)
		if err != nil {
			return failf(1, "eval: %v\n", err)
		}
		if err := r.stmts(ctx, file.Stmts); err != nil {
			return 0, err
		}
		return r.exit, nil

	case "source", ".":
		return r.sourceBuiltin(ctx, args)

	case "[":
		if len(args) == 0 || args[len(args)-1] != "]" {
			return failf(2, "[: missing matching ']'\n")
		}
		args = args[:len(args)-1]
		fallthrough
	case "test":
		ok, err := r.evalTest(ctx, args)
		if err != nil {
			return failf(2, "%v\n", err)
		}
		return oneIf(!ok), nil

	case "exec":
		if len(args) == 0 {
			r.keepRedirs = true
			return 0, nil
		}
		if err := r.call(ctx, args); err != nil {
			return 0, err
		}
		return 0, &ExitError{Code: r.exit}

	case "command":
		show := false
		i := 0
		for ; i < len(args); i++ {
			if args[i] == "-v" {
				show = true
				continue
			}
			break
		}
		args = args[i:]
		if len(args) == 0 {
			return 0, nil
		}
		if !show {
			if isBuiltin(args[0]) {
				return r.builtin(ctx, args[0], args[1:])
			}
			if err := r.call(ctx, args); err != nil {
				return 0, err
			}
			return r.exit, nil
		}
		last := 0
		for _, arg := range args {
			if r.Funcs[arg] != nil || isBuiltin(arg) || r.lookupCommand(arg) != nil {
				r.outf("%s\n", arg)
			} else {
				last = 1
			}
		}
		return last, nil

	case "dirs":
		for i, dir := range r.dirStack {
			if i > 0 {
				r.out(" ")
			}
			r.out(dir)
		}
		r.out("\n")
		return 0, nil

	case "pushd":
		return r.pushdBuiltin(ctx, args)
	case "popd":
		return r.popdBuiltin(ctx, args)

	case "return":
		if !r.inFunc && !r.inSource {
			return failf(1, "return: can only be done from a function or sourced script\n")
		}
		code := r.exit
		switch len(args) {
		case 0:
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return failf(2, "return: invalid return status code: %q\n", args[0])
			}
			code = n & 0xff
		default:
			return failf(2, "return: too many arguments\n")
		}
		return 0, &ReturnError{Code: code}

	case "read":
		return r.readBuiltin(args)

	case "getopts":
		return r.getoptsBuiltin(args)

	case "shopt":
		return r.shoptBuiltin(args)

	case "alias":
		return r.aliasBuiltin(args)
	case "unalias":
		for _, name := range args {
			delete(r.aliases, name)
		}
		return 0, nil

	case "trap":
		return r.trapBuiltin(args)

	case "readarray", "mapfile":
		return r.mapfileBuiltin(name, args)

	default:
		return failf(127, "%s: not a builtin\n", name)
	}
}

func (r *Runner) exportLike(name string, args []string) (int, error) {
	readonly := name == "readonly"
	for _, arg := range args {
		if arg == "-p" {
			r.vars.Each(func(n string, vr expand.Variable) bool {
				if (readonly && vr.ReadOnly) || (!readonly && vr.Exported) {
					r.outf("%s %s=%q\n", name, n, vr.String())
				}
				return true
			})
			continue
		}
		vname, val, hasVal := strings.Cut(arg, "=")
		vr := r.vars.Get(vname)
		if hasVal {
			vr = expand.Variable{Set: true, Kind: expand.String, Str: val}
		} else if !vr.Set {
			vr = expand.Variable{Set: true, Kind: expand.String}
		}
		if readonly {
			vr.ReadOnly = true
		} else {
			vr.Exported = true
		}
		r.vars.Set(vname, vr)
	}
	return 0, nil
}

func (r *Runner) localBuiltin(args []string) (int, error) {
	if !r.inFunc {
		r.errf("local: can only be used in a function\n")
		return 1, nil
	}
	for _, arg := range args {
		name, val, hasVal := strings.Cut(arg, "=")
		vr := expand.Variable{Set: true, Kind: expand.String}
		if hasVal {
			vr.Str = val
		}
		r.setLocalVar(name, vr)
	}
	return 0, nil
}

// declareBuiltin handles "declare"/"typeset" as an ordinary simple command
// (no dedicated AST node, per the AST-scope decision): it understands the
// attribute flags enough to set array/assoc/nameref kind and export/readonly
// bits, then delegates the assignment itself to setVar.
func (r *Runner) declareBuiltin(args []string) (int, error) {
	local := r.inFunc
	var kind string
	exported, readonly := false, false
	i := 0
	for ; i < len(args); i++ {
		switch args[i] {
		case "-a":
			kind = "-a"
		case "-A":
			kind = "-A"
		case "-n":
			kind = "-n"
		case "-x":
			exported = true
		case "-r":
			readonly = true
		case "-g":
			local = false
		case "-p":
			continue
		default:
			goto doneFlags
		}
	}
doneFlags:
	for _, arg := range args[i:] {
		name, val, hasVal := strings.Cut(arg, "=")
		vr := expand.Variable{Set: true, Kind: expand.String}
		switch kind {
		case "-a":
			vr.Kind = expand.Indexed
		case "-A":
			vr.Kind = expand.Associative
			vr.Map = map[string]string{}
		case "-n":
			vr.Kind = expand.NameRef
		}
		if hasVal {
			vr.Str = val
		}
		vr.Exported = exported
		vr.ReadOnly = readonly
		if local {
			r.setLocalVar(name, vr)
		} else {
			r.vars.Set(name, vr)
		}
	}
	return 0, nil
}

func (r *Runner) letBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		r.errf("let: usage: let expression\n")
		return 2, nil
	}
	last := 0
	for _, expr := range args {
		file, err := syntax.Parse("", []byte("((" + expr + "))"), 0)
		if err != nil || len(file.Stmts) == 0 {
			r.errf("let: %s: syntax error\n", expr)
			return 2, nil
		}
		ac, ok := file.Stmts[0].Cmd.(*syntax.ArithmCmd)
		if !ok {
			return 2, nil
		}
		n, err := r.arithmChecked(ac.X)
		if err != nil {
			return 0, err
		}
		last = oneIf(n == 0)
	}
	return last, nil
}

func (r *Runner) typeBuiltin(args []string) (int, error) {
	anyNotFound := false
	for _, arg := range args {
		switch {
		case syntax.IsKeyword(arg):
			r.outf("%s is a shell keyword\n", arg)
		case r.aliases[arg] != "":
			r.outf("%s is aliased to `%s'\n", arg, r.aliases[arg])
		case r.Funcs[arg] != nil:
			r.outf("%s is a function\n", arg)
		case isBuiltin(arg):
			r.outf("%s is a shell builtin\n", arg)
		case r.lookupCommand(arg) != nil:
			r.outf("%s is %s\n", arg, arg)
		default:
			r.errf("type: %s: not found\n", arg)
			anyNotFound = true
		}
	}
	return oneIf(anyNotFound), nil
}

func (r *Runner) sourceBuiltin(ctx context.Context, args []string) (int, error) {
	if len(args) < 1 {
		r.errf("source: filename argument required\n")
		return 2, nil
	}
	if r.fs == nil {
		r.errf("source: %v\n", "no filesystem configured")
		return 1, nil
	}
	path := r.absPath(args[0])
	data, err := r.fs.ReadFile(ctx, path)
	if err != nil {
		r.errf("source: %v\n", err)
		return 1, nil
	}
	file, err := syntax.Parse(path, data, 0)
	if err != nil {
		r.errf("source: %v\n", err)
		return 1, nil
	}
	oldParams, oldInSource := r.Params, r.inSource
	if len(args) > 1 {
		r.Params = args[1:]
	}
	r.inSource = true
	err = r.stmts(ctx, file.Stmts)
	r.inSource = oldInSource
	r.Params = oldParams
	if re, ok := err.(*ReturnError); ok {
		return re.Code, nil
	}
	if err != nil {
		return 0, err
	}
	return r.exit, nil
}

func (r *Runner) changeDir(ctx context.Context, path string) int {
	if path == "" {
		path = "."
	}
	path = r.absPath(path)
	if r.fs == nil {
		r.errf("cd: no filesystem configured\n")
		return 1
	}
	info, err := r.fs.Stat(ctx, path)
	if err != nil || !info.IsDir {
		r.errf("cd: %s: No such file or directory\n", path)
		return 1
	}
	r.setVarString("OLDPWD", r.envGet("PWD"))
	r.Dir = path
	r.setVarString("PWD", path)
	return 0
}

func (r *Runner) pushdBuiltin(ctx context.Context, args []string) (int, error) {
	change := true
	if len(args) > 0 && args[0] == "-n" {
		change = false
		args = args[1:]
	}
	switch len(args) {
	case 0:
		if !change || len(r.dirStack) < 2 {
			r.errf("pushd: no other directory\n")
			return 1, nil
		}
		top := r.dirStack[len(r.dirStack)-1]
		r.dirStack[len(r.dirStack)-1] = r.dirStack[len(r.dirStack)-2]
		r.dirStack[len(r.dirStack)-2] = top
		newtop := r.dirStack[len(r.dirStack)-1]
		if code := r.changeDir(ctx, newtop); code != 0 {
			return code, nil
		}
	case 1:
		if change {
			if code := r.changeDir(ctx, args[0]); code != 0 {
				return code, nil
			}
			r.dirStack = append(r.dirStack, r.Dir)
		} else {
			r.dirStack = append(r.dirStack, args[0])
		}
	default:
		r.errf("pushd: too many arguments\n")
		return 2, nil
	}
	return r.builtin(ctx, "dirs", nil)
}

func (r *Runner) popdBuiltin(ctx context.Context, args []string) (int, error) {
	change := true
	if len(args) > 0 && args[0] == "-n" {
		change = false
		args = args[1:]
	}
	if len(args) != 0 {
		r.errf("popd: invalid argument\n")
		return 2, nil
	}
	if len(r.dirStack) < 2 {
		r.errf("popd: directory stack empty\n")
		return 1, nil
	}
	oldtop := r.dirStack[len(r.dirStack)-1]
	r.dirStack = r.dirStack[:len(r.dirStack)-1]
	if change {
		newtop := r.dirStack[len(r.dirStack)-1]
		if code := r.changeDir(ctx, newtop); code != 0 {
			return code, nil
		}
	} else {
		r.dirStack[len(r.dirStack)-1] = oldtop
	}
	return r.builtin(ctx, "dirs", nil)
}

func (r *Runner) readBuiltin(args []string) (int, error) {
	var prompt string
	raw := false
	fp := &flagParser{remaining: args}
	for fp.more() {
		switch flag := fp.flag(); flag {
		case "-r":
			raw = true
		case "-s":
			// silent mode: no distinct terminal handling in the sandbox.
		case "-p":
			prompt = fp.value()
		default:
			r.errf("read: invalid option %q\n", flag)
			return 2, nil
		}
	}
	names := fp.args()
	for _, name := range names {
		if !syntax.ValidName(name) {
			r.errf("read: invalid identifier %q\n", name)
			return 2, nil
		}
	}
	if prompt != "" {
		r.out(prompt)
	}

	line, readErr := r.readLine()
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	values := r.ecfg.ReadFields(line, len(names), raw)
	for i, name := range names {
		val := ""
		if i < len(values) {
			val = values[i]
		}
		r.setVarString(name, val)
	}
	if readErr != nil {
		return 1, nil
	}
	return 0, nil
}

func (r *Runner) readLine() (string, error) {
	if r.stdin == nil {
		return "", fmt.Errorf("read: no stdin")
	}
	var line []byte
	buf := [1]byte{}
	for {
		n, err := r.stdin.Read(buf[:])
		if n > 0 {
			if buf[0] == '\n' {
				return string(line), nil
			}
			line = append(line, buf[0])
		}
		if err != nil {
			return string(line), err
		}
	}
}

func (r *Runner) getoptsBuiltin(args []string) (int, error) {
	if len(args) < 2 {
		r.errf("getopts: usage: getopts optstring name [arg ...]\n")
		return 2, nil
	}
	optind, _ := strconv.Atoi(r.envGet("OPTIND"))
	if optind-1 != r.optState.argidx {
		if optind < 1 {
			optind = 1
		}
		r.optState = getopts{argidx: optind - 1}
	}
	optstr, name := args[0], args[1]
	if !syntax.ValidName(name) {
		r.errf("getopts: invalid identifier: %q\n", name)
		return 2, nil
	}
	rest := args[2:]
	if len(rest) == 0 {
		rest = r.Params
	}
	diagnostics := !strings.HasPrefix(optstr, ":")

	opt, optarg, done := r.optState.next(optstr, rest)

	r.setVarString(name, string(opt))
	r.delVar("OPTARG")
	switch {
	case opt == '?' && diagnostics && !done:
		r.errf("getopts: illegal option -- %q\n", optarg)
	case opt == ':' && diagnostics:
		r.errf("getopts: option requires an argument -- %q\n", optarg)
	default:
		if optarg != "" {
			r.setVarString("OPTARG", optarg)
		}
	}
	if optind-1 != r.optState.argidx {
		r.setVarString("OPTIND", strconv.Itoa(r.optState.argidx+1))
	}
	return oneIf(done), nil
}

func (r *Runner) shoptBuiltin(args []string) (int, error) {
	mode := ""
	i := 0
	for ; i < len(args); i++ {
		switch args[i] {
		case "-s", "-u":
			mode = args[i]
		case "-o":
			// shell-options namespace is already unified with shopt's here.
		default:
			goto doneFlags
		}
	}
doneFlags:
	rest := args[i:]
	if len(rest) == 0 {
		names := make([]string, 0, len(shellOptNames))
		for name := range shellOptNames {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r.outf("%s\t%s\n", name, optStatusText(r.opts[shellOptNames[name]]))
		}
		return 0, nil
	}
	for _, arg := range rest {
		idx, ok := shellOptNames[arg]
		if !ok {
			r.errf("shopt: invalid option name %q\n", arg)
			return 1, nil
		}
		switch mode {
		case "-s", "-u":
			r.opts[idx] = mode == "-s"
		default:
			r.outf("%s\t%s\n", arg, optStatusText(r.opts[idx]))
		}
	}
	r.updateExpandOpts()
	return 0, nil
}

func optStatusText(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (r *Runner) aliasBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		names := make([]string, 0, len(r.aliases))
		for name := range r.aliases {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r.outf("alias %s='%s'\n", name, r.aliases[name])
		}
		return 0, nil
	}
	for _, arg := range args {
		name, val, hasVal := strings.Cut(arg, "=")
		if !hasVal {
			if val, ok := r.aliases[name]; ok {
				r.outf("alias %s='%s'\n", name, val)
			} else {
				r.errf("alias: %s: not found\n", name)
			}
			continue
		}
		if r.aliases == nil {
			r.aliases = make(map[string]string)
		}
		r.aliases[name] = val
	}
	return 0, nil
}

func (r *Runner) trapBuiltin(args []string) (int, error) {
	if len(args) == 0 {
		for name, action := range r.traps {
			r.outf("trap -- %q %s\n", action, name)
		}
		return 0, nil
	}
	action := args[0]
	for _, name := range args[1:] {
		r.setTrap(name, action)
	}
	return 0, nil
}

func (r *Runner) mapfileBuiltin(name string, args []string) (int, error) {
	dropDelim := false
	delim := byte('\n')
	fp := &flagParser{remaining: args}
	for fp.more() {
		switch flag := fp.flag(); flag {
		case "-t":
			dropDelim = true
		case "-d":
			v := fp.value()
			if v == "" {
				delim = 0
			} else {
				delim = v[0]
			}
		default:
			r.errf("%s: invalid option %q\n", name, flag)
			return 2, nil
		}
	}
	rest := fp.args()
	arrayName := "MAPFILE"
	if len(rest) == 1 {
		arrayName = rest[0]
	} else if len(rest) > 1 {
		r.errf("%s: only one array name may be specified\n", name)
		return 2, nil
	}
	var list []string
	scanner := bufio.NewScanner(r.stdin)
	scanner.Split(mapfileSplit(delim, dropDelim))
	for scanner.Scan() {
		list = append(list, scanner.Text())
	}
	r.vars.Set(arrayName, expand.Variable{Set: true, Kind: expand.Indexed, List: list})
	return 0, nil
}

// mapfileSplit returns a bufio.SplitFunc tokenizing on delim, grounded on
// bufio.ScanLines with a configurable delimiter.
func mapfileSplit(delim byte, dropDelim bool) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, delim); i >= 0 {
			if dropDelim {
				return i + 1, data[:i], nil
			}
			return i + 1, data[:i+1], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// flagParser parses a builtin's own flags with a small, Go-loop-friendly
// API, distinct from the argv-based "getopts" builtin it sits beside.
type flagParser struct {
	current   string
	remaining []string
}

func (p *flagParser) more() bool {
	if p.current != "" {
		return true
	}
	if len(p.remaining) == 0 {
		return false
	}
	arg := p.remaining[0]
	if arg == "--" {
		p.remaining = p.remaining[1:]
		return false
	}
	if len(arg) == 0 || (arg[0] != '-' && arg[0] != '+') {
		return false
	}
	return true
}

func (p *flagParser) flag() string {
	arg := p.current
	if arg == "" {
		arg = p.remaining[0]
		p.remaining = p.remaining[1:]
	} else {
		p.current = ""
	}
	if len(arg) > 2 {
		p.current = arg[:1] + arg[2:]
		arg = arg[:2]
	}
	return arg
}

func (p *flagParser) value() string {
	if len(p.remaining) == 0 {
		return ""
	}
	arg := p.remaining[0]
	p.remaining = p.remaining[1:]
	return arg
}

func (p *flagParser) args() []string { return p.remaining }

// getopts is the argv cursor the "getopts" builtin persists across calls
// (§4.6), tracking which positional argument and, within it, which short
// option character comes next.
type getopts struct {
	argidx  int
	runeidx int
}

func (g *getopts) next(optstr string, args []string) (opt rune, optarg string, done bool) {
	if len(args) == 0 || g.argidx >= len(args) {
		return '?', "", true
	}
	arg := []rune(args[g.argidx])
	if len(arg) < 2 || arg[0] != '-' || arg[1] == '-' {
		return '?', "", true
	}
	opts := arg[1:]
	opt = opts[g.runeidx]
	if g.runeidx+1 < len(opts) {
		g.runeidx++
	} else {
		g.argidx++
		g.runeidx = 0
	}
	i := strings.IndexRune(optstr, opt)
	if i < 0 {
		return '?', string(opt), false
	}
	if i+1 < len(optstr) && optstr[i+1] == ':' {
		if g.argidx >= len(args) {
			return ':', string(opt), false
		}
		optarg = args[g.argidx]
		g.argidx++
		g.runeidx = 0
	}
	return opt, optarg, false
}
