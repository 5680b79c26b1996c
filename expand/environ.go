package expand

import (
	"cmp"
	"runtime"
	"slices"
	"strings"
)

// Environ is the read side of a shell's variable table: look a name up, or
// walk every variable currently set.
type Environ interface {
	// Get retrieves a variable by its name. To check if the variable is
	// set, use Variable.IsSet.
	Get(name string) Variable

	// Each iterates over all the currently set variables, calling the
	// supplied function on each variable. Iteration is stopped if the
	// function returns false.
	//
	// The names used in the calls aren't required to be unique or sorted.
	// If a variable name appears twice, the latest occurrence takes
	// priority.
	//
	// Each is required to forward exported variables when executing
	// programs.
	Each(func(name string, vr Variable) bool)
}

// WriteEnviron extends Environ with the ability to assign or unset a
// variable.
type WriteEnviron interface {
	Environ
	// Set sets a variable by name. If !vr.IsSet(), the variable is being
	// unset; otherwise, the variable is being replaced.
	//
	// The given variable can have the kind [KeepValue] to replace an existing
	// variable's attributes without changing its value at all.
	// This is helpful to implement `readonly foo=bar; export foo`,
	// as the second declaration needs to clearly signal that the value is not modified.
	//
	// An error may be returned if the operation is invalid, such as if the
	// name is empty or if we're trying to overwrite a read-only variable.
	Set(name string, vr Variable) error
}

// ValueKind describes which kind of value a Variable holds. An unset
// variable usually carries [Unknown], but `declare -a foo` gives an unset
// variable the [Indexed] kind ahead of any assignment.
type ValueKind uint8

const (
	// Unknown marks a variable that has no kind assigned yet.
	Unknown ValueKind = iota
	// String describes plain scalar variables, such as `foo=bar`.
	String
	// NameRef describes a variable that refers to another by name, such as `declare -n foo=foo2`.
	NameRef
	// Indexed describes indexed array variables, such as `foo=(bar baz)`.
	Indexed
	// Associative describes associative array variables, such as `foo=([bar]=x [baz]=y)`.
	Associative

	// KeepValue tells [WriteEnviron.Set] to change a variable's attributes
	// (export, readonly, ...) without touching its value.
	KeepValue

	// Unset is an alias for [Unknown], kept for variables whose "set or
	// not" state is tracked separately via [Variable.Set].
	Unset = Unknown
)

// Variable describes a shell variable: its attributes, and the value field
// selected by Kind.
type Variable struct {
	// Set is true when the variable has been assigned a value, possibly
	// the empty string.
	Set bool

	Local    bool
	Exported bool
	ReadOnly bool

	// Kind selects which of Str, List, or Map holds the value.
	Kind ValueKind

	Str  string            // used when Kind is String or NameRef
	List []string          // used when Kind is Indexed
	Map  map[string]string // used when Kind is Associative
}

// IsSet reports whether the variable has been assigned a value. The zero
// Variable is unset.
func (v Variable) IsSet() bool {
	return v.Set
}

// Declared reports whether the variable has been declared at all: either
// assigned, or given attributes or a kind without a value, as with
// `export foo` or `declare -a foo`.
func (v Variable) Declared() bool {
	return v.Set || v.Local || v.Exported || v.ReadOnly || v.Kind != Unknown
}

// String renders the variable's value as a string. This is only meaningful
// for a scalar, an indexed array (its first element), or an unset variable.
func (v Variable) String() string {
	switch v.Kind {
	case String:
		return v.Str
	case Indexed:
		if len(v.List) > 0 {
			return v.List[0]
		}
	case Associative:
		// no single scalar representation
	}
	return ""
}

// maxNameRefDepth bounds how many nameref hops [Variable.Resolve] will
// follow, so that a reference cycle can't loop forever.
const maxNameRefDepth = 100

// Resolve follows a chain of NameRef variables and returns the final name
// looked up along with the variable it points to.
func (v Variable) Resolve(env Environ) (string, Variable) {
	name := ""
	for range maxNameRefDepth {
		if v.Kind != NameRef {
			return name, v
		}
		name = v.Str
		v = env.Get(name)
	}
	return name, Variable{}
}

// FuncEnviron adapts a name-to-value lookup function into an [Environ]. A
// name that maps to the empty string is reported as unset. Every variable it
// returns is marked exported, and Each never visits anything since the
// backing function can't be enumerated.
func FuncEnviron(fn func(string) string) Environ {
	return callbackEnviron(fn)
}

type callbackEnviron func(string) string

func (f callbackEnviron) Get(name string) Variable {
	value := f(name)
	if value == "" {
		return Variable{}
	}
	return Variable{Set: true, Exported: true, Kind: String, Str: value}
}

func (f callbackEnviron) Each(func(name string, vr Variable) bool) {}

// ListEnviron builds an [Environ] from "key=value" pairs, as found in
// os.Environ or a subprocess's envp. Every variable is exported. When a name
// appears more than once, the last pair wins.
//
// On Windows, where environment variable names are case-insensitive, every
// resulting name is uppercased.
func ListEnviron(pairs ...string) Environ {
	return newSortedPairsEnviron(runtime.GOOS == "windows", pairs...)
}

// newSortedPairsEnviron builds a [sortedPairsEnviron], letting tests pin the
// uppercasing behavior independently of the host OS.
func newSortedPairsEnviron(upper bool, pairs ...string) Environ {
	list := slices.Clone(pairs)
	if upper {
		// Uppercase before sorting, so duplicates can be collapsed with a
		// single pass rather than a linear search.
		for i, s := range list {
			if name, val, ok := strings.Cut(s, "="); ok {
				list[i] = strings.ToUpper(name) + "=" + val
			}
		}
	}

	slices.SortStableFunc(list, func(a, b string) int {
		ia := strings.IndexByte(a, '=')
		ib := strings.IndexByte(b, '=')
		if ia < 0 {
			ia = 0
		} else {
			ia++
		}
		if ib < 0 {
			ib = 0
		} else {
			ib++
		}
		return strings.Compare(a[:ia], b[:ib])
	})

	last := ""
	for i := 0; i < len(list); {
		name, _, ok := strings.Cut(list[i], "=")
		if name == "" || !ok {
			list = slices.Delete(list, i, i+1)
			continue
		}
		if last == name {
			list = slices.Delete(list, i-1, i)
			continue
		}
		last = name
		i++
	}
	return sortedPairsEnviron(list)
}

// sortedPairsEnviron is a sorted slice of "name=value" strings, looked up by
// binary search.
type sortedPairsEnviron []string

func (l sortedPairsEnviron) Get(name string) Variable {
	eqpos := len(name)
	endpos := len(name) + 1
	i, ok := slices.BinarySearchFunc(l, name, func(entry, name string) int {
		if len(entry) < endpos {
			return strings.Compare(entry, name)
		}
		c := strings.Compare(entry[:eqpos], name)
		if c == 0 {
			return cmp.Compare(entry[eqpos], '=')
		}
		return c
	})
	if ok {
		return Variable{Set: true, Exported: true, Kind: String, Str: l[i][endpos:]}
	}
	return Variable{}
}

func (l sortedPairsEnviron) Each(fn func(name string, vr Variable) bool) {
	for _, pair := range l {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			panic("expand.sortedPairsEnviron: malformed name-value pair: " + pair)
		}
		if !fn(name, Variable{Set: true, Exported: true, Kind: String, Str: value}) {
			return
		}
	}
}
