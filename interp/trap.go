package interp

import (
	"context"

	"github.com/boxsh/boxsh/syntax"
)

// trapTable holds the shell source registered against each trap name
// (§4.5 Traps: EXIT, ERR, DEBUG, RETURN; signal names are accepted too, but
// kept only for bookkeeping since real signal delivery is a non-goal). EXIT
// runs once as Run unwinds; ERR runs from stmtSync right after a simple
// command's exit status goes nonzero, under the same suppression rules as
// errexit (condition, negated, compound command).
type trapTable map[string]string

func (r *Runner) setTrap(name, action string) {
	if r.traps == nil {
		r.traps = make(trapTable)
	}
	if action == "" || action == "-" {
		delete(r.traps, name)
		return
	}
	r.traps[name] = action
}

// runTrap executes the action registered for name, guarded against
// re-entrancy: a trap body that itself triggers the same trap does not
// recurse (§9 design note, grounded in the teacher's handlingTrap guard).
func (r *Runner) runTrap(ctx context.Context, name string) {
	action, ok := r.traps[name]
	if !ok || action == "" {
		return
	}
	if r.handlingTrap == nil {
		r.handlingTrap = make(map[string]bool)
	}
	if r.handlingTrap[name] {
		return
	}
	r.handlingTrap[name] = true
	defer delete(r.handlingTrap, name)

	file, err := syntax.Parse("", []byte(action), 0)
	if err != nil {
		return
	}
	r.stmts(ctx, file.Stmts)
}
