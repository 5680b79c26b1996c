package interp

// Limits bounds the execution counters spec §4.7 requires. A zero field
// means that counter is unbounded. The host sets these via the WithLimits
// option (or the root package's Options.Limits) before the first Run.
type Limits struct {
	MaxRecursionDepth int // nesting of function calls; source, eval and command substitution are not counted
	MaxIterations     int // loop iterations, across the whole run
	MaxCommands       int // total simple commands dispatched
	MaxExpansionLen   int // byte length of any single expansion
	MaxGlobOps        int // directory scans performed by pathname expansion
	MaxSubstDepth     int // nesting of command/process substitution
}

// meter tracks live counts against a Limits budget for one Runner tree; it
// is shared (by pointer) between a Runner and every Runner it spawns via
// sub, so recursion through subshells and command substitutions is metered
// against the same budget as the top-level run.
type meter struct {
	limits Limits

	recursionDepth int
	iterations     int
	commands       int
	globOps        int
	substDepth     int
}

func (m *meter) enterRecursion() error {
	m.recursionDepth++
	if m.limits.MaxRecursionDepth > 0 && m.recursionDepth > m.limits.MaxRecursionDepth {
		return &ExecutionLimitError{Limit: "recursion depth"}
	}
	return nil
}

func (m *meter) leaveRecursion() { m.recursionDepth-- }

func (m *meter) iteration() error {
	m.iterations++
	if m.limits.MaxIterations > 0 && m.iterations > m.limits.MaxIterations {
		return &ExecutionLimitError{Limit: "iteration count"}
	}
	return nil
}

func (m *meter) command() error {
	m.commands++
	if m.limits.MaxCommands > 0 && m.commands > m.limits.MaxCommands {
		return &ExecutionLimitError{Limit: "commands executed"}
	}
	return nil
}

func (m *meter) expansion(n int) error {
	if m.limits.MaxExpansionLen > 0 && n > m.limits.MaxExpansionLen {
		return &ExecutionLimitError{Limit: "expansion length"}
	}
	return nil
}

func (m *meter) glob() error {
	m.globOps++
	if m.limits.MaxGlobOps > 0 && m.globOps > m.limits.MaxGlobOps {
		return &ExecutionLimitError{Limit: "glob operations"}
	}
	return nil
}

func (m *meter) enterSubst() error {
	m.substDepth++
	if m.limits.MaxSubstDepth > 0 && m.substDepth > m.limits.MaxSubstDepth {
		return &ExecutionLimitError{Limit: "substitution depth"}
	}
	return nil
}

func (m *meter) leaveSubst() { m.substDepth-- }
