package pattern

import (
	"regexp"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRegexpBasic(t *testing.T) {
	cases := []struct {
		pat, str string
		match    bool
	}{
		{"foo*bar", "foobar", true},
		{"foo*bar", "fooXYZbar", true},
		{"foo*bar", "foo", false},
		{"foo?bar", "fooxbar", true},
		{"foo?bar", "foobar", false},
		{"[abc]*", "apple", true},
		{"[abc]*", "dog", false},
		{"[!abc]*", "dog", true},
	}
	for _, tc := range cases {
		expr, err := Regexp(tc.pat, EntireString)
		qt.Assert(t, err, qt.IsNil, qt.Commentf("pattern %q", tc.pat))
		re, err := regexp.Compile(expr)
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, re.MatchString(tc.str), qt.Equals, tc.match,
			qt.Commentf("pattern %q vs %q", tc.pat, tc.str))
	}
}

func TestRegexpCaseInsensitive(t *testing.T) {
	expr, err := Regexp("FOO", EntireString|NoGlobCase)
	qt.Assert(t, err, qt.IsNil)
	re := regexp.MustCompile(expr)
	qt.Assert(t, re.MatchString("foo"), qt.IsTrue)
	qt.Assert(t, re.MatchString("FOO"), qt.IsTrue)
}

func TestRegexpUnclosedBracket(t *testing.T) {
	_, err := Regexp("[abc", EntireString)
	qt.Assert(t, err, qt.Not(qt.IsNil))
}

func TestHasMeta(t *testing.T) {
	qt.Assert(t, HasMeta("foo*bar", 0), qt.IsTrue)
	qt.Assert(t, HasMeta(`foo\*bar`, 0), qt.IsFalse)
	qt.Assert(t, HasMeta("plain", 0), qt.IsFalse)
}

func TestQuoteMeta(t *testing.T) {
	qt.Assert(t, QuoteMeta("foo*bar?", 0), qt.Equals, `foo\*bar\?`)
	qt.Assert(t, QuoteMeta("plain", 0), qt.Equals, "plain")
}
