package syntax

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestQuoteRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"simple",
		"has spaces",
		"has'quote",
		"has\nnewline",
		"has\ttab",
		"\xff\xfe", // raw non-UTF-8 bytes must survive
	}
	for _, s := range cases {
		quoted := Quote(s)
		f, err := Parse("", []byte("printf %s "+quoted), 0)
		qt.Assert(t, err, qt.IsNil)
		ce := f.Stmts[0].Cmd.(*CallExpr)
		qt.Assert(t, len(ce.Args), qt.Equals, 3)
	}
}

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"foo":    true,
		"_foo":   true,
		"foo123": true,
		"":       false,
		"1foo":   false,
		"foo-bar": false,
		"foo bar": false,
	}
	for name, want := range cases {
		qt.Assert(t, ValidName(name), qt.Equals, want, qt.Commentf("name %q", name))
	}
}

func TestIsKeyword(t *testing.T) {
	qt.Assert(t, IsKeyword("if"), qt.IsTrue)
	qt.Assert(t, IsKeyword("done"), qt.IsTrue)
	qt.Assert(t, IsKeyword("notakeyword"), qt.IsFalse)
}
