// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/boxsh/boxsh/expand"
	"github.com/boxsh/boxsh/syntax"
)

// scope is one frame of the variable scope stack (§3 Scope Stack). Frame 0
// is the global frame; a function call or "local" declaration pushes
// further frames, popped again on return.
type scope map[string]expand.Variable

// varStack implements the lookup/assignment rules of §3: lookup walks
// frames top-down and falls back to the host-seeded base environment; a
// plain assignment updates whichever frame a name is already bound in (or
// the global frame, if it is new), while a "local" declaration always binds
// in the current, innermost frame.
type varStack struct {
	base   expand.Environ
	frames []scope
}

func newVarStack(base expand.Environ) *varStack {
	if base == nil {
		base = expand.ListEnviron()
	}
	return &varStack{base: base, frames: []scope{make(scope)}}
}

func (vs *varStack) push()          { vs.frames = append(vs.frames, make(scope)) }
func (vs *varStack) pop()           { vs.frames = vs.frames[:len(vs.frames)-1] }
func (vs *varStack) depth() int     { return len(vs.frames) }
func (vs *varStack) truncate(n int) { vs.frames = vs.frames[:n] }

// clone deep-copies every frame, for a subshell snapshot (§3 Lifecycles):
// mutations the subshell makes to any frame never reach the original.
func (vs *varStack) clone() *varStack {
	frames := make([]scope, len(vs.frames))
	for i, f := range vs.frames {
		nf := make(scope, len(f))
		for k, v := range f {
			nf[k] = v
		}
		frames[i] = nf
	}
	return &varStack{base: vs.base, frames: frames}
}

func (vs *varStack) Get(name string) expand.Variable {
	for i := len(vs.frames) - 1; i >= 0; i-- {
		if vr, ok := vs.frames[i][name]; ok {
			return vr
		}
	}
	return vs.base.Get(name)
}

func (vs *varStack) Set(name string, vr expand.Variable) error {
	for i := len(vs.frames) - 1; i >= 0; i-- {
		if _, ok := vs.frames[i][name]; ok {
			vs.frames[i][name] = vr
			return nil
		}
	}
	vs.frames[0][name] = vr
	return nil
}

// setLocal binds name in the current innermost frame, shadowing any outer
// binding until that frame is popped.
func (vs *varStack) setLocal(name string, vr expand.Variable) {
	vr.Local = true
	vs.frames[len(vs.frames)-1][name] = vr
}

func (vs *varStack) delete(name string) {
	for i := len(vs.frames) - 1; i >= 0; i-- {
		if _, ok := vs.frames[i][name]; ok {
			delete(vs.frames[i], name)
			return
		}
	}
}

func (vs *varStack) Each(fn func(name string, vr expand.Variable) bool) {
	seen := make(map[string]bool)
	for i := len(vs.frames) - 1; i >= 0; i-- {
		for name, vr := range vs.frames[i] {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !fn(name, vr) {
				return
			}
		}
	}
	vs.base.Each(func(name string, vr expand.Variable) bool {
		if seen[name] {
			return true
		}
		return fn(name, vr)
	})
}

// runnerEnviron adapts a Runner to expand.WriteEnviron, resolving the
// special parameters (§6 "Environment variables with special meaning" plus
// the positional/status parameters of §3) that are never stored in the
// scope stack itself.
type runnerEnviron struct{ r *Runner }

var _ expand.WriteEnviron = runnerEnviron{}

func (e runnerEnviron) Get(name string) expand.Variable { return e.r.lookupVar(name) }
func (e runnerEnviron) Set(name string, vr expand.Variable) error {
	return e.r.setVar(name, nil, vr)
}
func (e runnerEnviron) Each(fn func(string, expand.Variable) bool) { e.r.vars.Each(fn) }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// lookupVar resolves a name to its Variable, handling the special
// parameters before falling back to the scope stack.
func (r *Runner) lookupVar(name string) expand.Variable {
	switch {
	case name == "#":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(len(r.Params))}
	case name == "@" || name == "*":
		return expand.Variable{Set: true, Kind: expand.Indexed, List: append([]string{}, r.Params...)}
	case name == "?":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(r.exit)}
	case name == "!":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(r.lastBgToken)}
	case name == "$":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(r.pid)}
	case name == "0":
		return expand.Variable{Set: true, Kind: expand.String, Str: r.filename}
	case isDigits(name):
		n, _ := strconv.Atoi(name)
		if n >= 1 && n <= len(r.Params) {
			return expand.Variable{Set: true, Kind: expand.String, Str: r.Params[n-1]}
		}
		return expand.Variable{}
	case name == "PIPESTATUS":
		list := make([]string, len(r.pipeStatus))
		for i, c := range r.pipeStatus {
			list[i] = strconv.Itoa(c)
		}
		return expand.Variable{Set: true, Kind: expand.Indexed, List: list}
	case name == "RANDOM":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(r.rng.Intn(32768))}
	case name == "FUNCNAME":
		list := append([]string{}, r.funcStack...)
		return expand.Variable{Set: true, Kind: expand.Indexed, List: list}
	case name == "LINENO":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(r.curLine)}
	}
	if val, ok := r.cmdVars[name]; ok {
		return expand.Variable{Set: true, Exported: true, Kind: expand.String, Str: val}
	}
	return r.vars.Get(name)
}

// setVar applies a plain or indexed assignment to name, honoring readonly
// and preserving the exported bit an existing binding already carried.
func (r *Runner) setVar(name string, index syntax.ArithmExpr, vr expand.Variable) error {
	prev := r.vars.Get(name)
	if prev.ReadOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	if index != nil {
		var err error
		vr, err = r.setIndexed(prev, index, vr)
		if err != nil {
			return err
		}
	}
	if !vr.Exported {
		vr.Exported = prev.Exported
	}
	if prev.ReadOnly {
		vr.ReadOnly = true
	}
	vr.Set = true
	if r.opts[optAllExport] {
		vr.Exported = true
	}
	return r.vars.Set(name, vr)
}

func (r *Runner) setIndexed(prev expand.Variable, index syntax.ArithmExpr, vr expand.Variable) (expand.Variable, error) {
	if w, ok := index.(*syntax.Word); ok {
		if lit := w.Lit(); lit != "" && prev.Kind != expand.Indexed {
			m := map[string]string{}
			if prev.Kind == expand.Associative {
				for k, v := range prev.Map {
					m[k] = v
				}
			}
			key, err := expand.Literal(r.ecfg, w)
			if err != nil {
				return expand.Variable{}, err
			}
			m[key] = vr.String()
			return expand.Variable{Kind: expand.Associative, Map: m}, nil
		}
	}
	n, err := expand.Arithm(r.ecfg, index)
	if err != nil {
		return expand.Variable{}, err
	}
	if n < 0 {
		return expand.Variable{}, fmt.Errorf("negative array index")
	}
	list := append([]string{}, prev.List...)
	for len(list) <= n {
		list = append(list, "")
	}
	list[n] = vr.String()
	return expand.Variable{Kind: expand.Indexed, List: list}, nil
}

func (r *Runner) setVarString(name, val string) {
	r.setVar(name, nil, expand.Variable{Set: true, Kind: expand.String, Str: val})
}

func (r *Runner) setLocalVar(name string, vr expand.Variable) {
	r.vars.setLocal(name, vr)
}

func (r *Runner) delVar(name string) {
	r.vars.delete(name)
	delete(r.cmdVars, name)
}

func (r *Runner) setFunc(name string, body *syntax.Stmt) {
	if r.Funcs == nil {
		r.Funcs = make(map[string]*syntax.Stmt)
	}
	r.Funcs[name] = body
}

func (r *Runner) envGet(name string) string { return r.lookupVar(name).String() }

// assignVal builds the expand.Variable an *syntax.Assign node describes.
// valType mirrors the "declare"/"local"/"export" flags that force a Kind:
// "-a" indexed, "-A" associative, "-n" nameref.
func (r *Runner) assignVal(as *syntax.Assign, valType string) (expand.Variable, error) {
	prev := r.vars.Get(as.Name.Value)
	if as.Array != nil {
		if valType == "-A" {
			m := make(map[string]string)
			for _, w := range as.Array {
				lit, err := expand.Literal(r.ecfg, w)
				if err != nil {
					return expand.Variable{}, err
				}
				if k, v, ok := strings.Cut(lit, "="); ok {
					m[k] = v
				} else {
					m[strconv.Itoa(len(m))] = lit
				}
			}
			return expand.Variable{Set: true, Kind: expand.Associative, Map: m}, nil
		}
		list, err := expand.Fields(r.ecfg, as.Array...)
		if err != nil {
			return expand.Variable{}, err
		}
		if as.Append && prev.Kind == expand.Indexed {
			list = append(append([]string{}, prev.List...), list...)
		}
		return expand.Variable{Set: true, Kind: expand.Indexed, List: list}, nil
	}
	if as.Value == nil {
		// Bare "declare x" / "export x": attributes only, no value change.
		if prev.Set {
			return prev, nil
		}
		return expand.Variable{Set: true, Kind: expand.String}, nil
	}
	val, err := expand.Literal(r.ecfg, as.Value)
	if err != nil {
		return expand.Variable{}, err
	}
	switch valType {
	case "-a":
		return expand.Variable{Set: true, Kind: expand.Indexed, List: []string{val}}, nil
	case "-A":
		return expand.Variable{Set: true, Kind: expand.Associative, Map: map[string]string{"0": val}}, nil
	case "-n":
		return expand.Variable{Set: true, Kind: expand.NameRef, Str: val}, nil
	}
	if as.Append {
		switch prev.Kind {
		case expand.Indexed:
			list := append(append([]string{}, prev.List...), val)
			return expand.Variable{Set: true, Kind: expand.Indexed, List: list}, nil
		default:
			val = prev.String() + val
		}
	}
	return expand.Variable{Set: true, Kind: expand.String, Str: val}, nil
}
