package expand

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/boxsh/boxsh/syntax"
)

// mapEnviron is a minimal WriteEnviron backed by a map, for tests that need
// to both read and assign variables (e.g. arithmetic's "a=1" sub-expression).
type mapEnviron map[string]Variable

func (m mapEnviron) Get(name string) Variable { return m[name] }
func (m mapEnviron) Each(fn func(name string, vr Variable) bool) {
	for name, vr := range m {
		if !fn(name, vr) {
			return
		}
	}
}
func (m mapEnviron) Set(name string, vr Variable) error {
	if !vr.IsSet() {
		delete(m, name)
		return nil
	}
	m[name] = vr
	return nil
}

func newConfig(env mapEnviron) *Config {
	if env == nil {
		env = mapEnviron{}
	}
	return &Config{Ctx: context.Background(), Env: env}
}

func parseWords(t *testing.T, src string) []*syntax.Word {
	t.Helper()
	f, err := syntax.Parse("", []byte("echo "+src), 0)
	qt.Assert(t, err, qt.IsNil)
	ce := f.Stmts[0].Cmd.(*syntax.CallExpr)
	return ce.Args[1:]
}

func TestFieldsIFSSplitting(t *testing.T) {
	env := mapEnviron{"x": {Set: true, Kind: String, Str: "a  b   c"}}
	cfg := newConfig(env)
	words := parseWords(t, `$x`)
	fields, err := Fields(cfg, words...)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, fields, qt.DeepEquals, []string{"a", "b", "c"})
}

func TestFieldsQuotedEmptyYieldsOneField(t *testing.T) {
	env := mapEnviron{"x": {Set: true, Kind: String, Str: ""}}
	cfg := newConfig(env)
	words := parseWords(t, `"$x"`)
	fields, err := Fields(cfg, words...)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, fields, qt.DeepEquals, []string{""})
}

func TestFieldsUnquotedEmptyYieldsZeroFields(t *testing.T) {
	env := mapEnviron{"x": {Set: true, Kind: String, Str: ""}}
	cfg := newConfig(env)
	words := parseWords(t, `$x`)
	fields, err := Fields(cfg, words...)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, fields, qt.DeepEquals, []string{})
}

func TestLiteralDoesNotSplit(t *testing.T) {
	env := mapEnviron{"x": {Set: true, Kind: String, Str: "a b c"}}
	cfg := newConfig(env)
	words := parseWords(t, `$x`)
	got, err := Literal(cfg, words[0])
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "a b c")
}

func TestArithmBasic(t *testing.T) {
	cfg := newConfig(nil)
	f, err := syntax.Parse("", []byte("echo $((2+3*4))"), 0)
	qt.Assert(t, err, qt.IsNil)
	ce := f.Stmts[0].Cmd.(*syntax.CallExpr)
	ae := ce.Args[1].Parts[0].(*syntax.ArithmExp)
	n, err := Arithm(cfg, ae.X)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, n, qt.Equals, 14)
}

func TestArithmAssignment(t *testing.T) {
	env := mapEnviron{}
	cfg := newConfig(env)
	f, err := syntax.Parse("", []byte("echo $((a=5))"), 0)
	qt.Assert(t, err, qt.IsNil)
	ce := f.Stmts[0].Cmd.(*syntax.CallExpr)
	ae := ce.Args[1].Parts[0].(*syntax.ArithmExp)
	n, err := Arithm(cfg, ae.X)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, n, qt.Equals, 5)
	qt.Assert(t, env.Get("a").String(), qt.Equals, "5")
}

func TestArithmDivisionByZero(t *testing.T) {
	cfg := newConfig(nil)
	f, err := syntax.Parse("", []byte("echo $((1/0))"), 0)
	qt.Assert(t, err, qt.IsNil)
	ce := f.Stmts[0].Cmd.(*syntax.CallExpr)
	ae := ce.Args[1].Parts[0].(*syntax.ArithmExp)
	_, err = Arithm(cfg, ae.X)
	qt.Assert(t, err, qt.Not(qt.IsNil))
}

func TestParamExpDefaultUnset(t *testing.T) {
	cfg := newConfig(nil)
	words := parseWords(t, `${undefined:-fallback}`)
	got, err := Literal(cfg, words[0])
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "fallback")
}

func TestParamExpLength(t *testing.T) {
	env := mapEnviron{"x": {Set: true, Kind: String, Str: "hello"}}
	cfg := newConfig(env)
	words := parseWords(t, `${#x}`)
	got, err := Literal(cfg, words[0])
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "5")
}
