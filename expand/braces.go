package expand

import (
	"strconv"
	"strings"

	"github.com/boxsh/boxsh/syntax"
)

// Braces resolves every brace expansion in word into the concrete words it
// stands for, in left-to-right, depth-first order matching bash: a comma
// list yields one word per element, a sequence yields one word per step, and
// multiple brace expansions in the same word combine as a cartesian product.
// A word with no brace expansion is returned as its single unchanged self.
func Braces(word *syntax.Word) []*syntax.Word {
	return braceWords(word.Parts)
}

func braceWords(parts []syntax.WordPart) []*syntax.Word {
	idx := -1
	for i, p := range parts {
		if _, ok := p.(*syntax.BraceExp); ok {
			idx = i
			break
		}
	}
	if idx < 0 {
		return []*syntax.Word{{Parts: parts}}
	}
	be := parts[idx].(*syntax.BraceExp)
	var elems []*syntax.Word
	if be.Sequence {
		elems = expandSequence(be)
	} else {
		for _, e := range be.Elems {
			elems = append(elems, Braces(e)...)
		}
	}
	var out []*syntax.Word
	for _, elem := range elems {
		newParts := make([]syntax.WordPart, 0, len(parts)-1+len(elem.Parts))
		newParts = append(newParts, parts[:idx]...)
		newParts = append(newParts, elem.Parts...)
		newParts = append(newParts, parts[idx+1:]...)
		out = append(out, braceWords(newParts)...)
	}
	return out
}

func litWord(s string) *syntax.Word {
	return &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
}

func expandSequence(be *syntax.BraceExp) []*syntax.Word {
	a := be.Elems[0].Lit()
	b := be.Elems[1].Lit()
	incr := 1
	if len(be.Elems) > 2 {
		if n, err := strconv.Atoi(be.Elems[2].Lit()); err == nil && n != 0 {
			if n < 0 {
				n = -n
			}
			incr = n
		}
	}
	if be.Chars {
		return charSeq(int(a[0]), int(b[0]), incr)
	}
	ai, erra := strconv.Atoi(a)
	bi, errb := strconv.Atoi(b)
	if erra != nil || errb != nil {
		return []*syntax.Word{litWord(a), litWord(b)}
	}
	return numSeq(ai, bi, incr, numWidth(a, b))
}

func charSeq(a, b, incr int) []*syntax.Word {
	var out []*syntax.Word
	if a <= b {
		for c := a; c <= b; c += incr {
			out = append(out, litWord(string(rune(c))))
		}
	} else {
		for c := a; c >= b; c -= incr {
			out = append(out, litWord(string(rune(c))))
		}
	}
	return out
}

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0'
}

func numWidth(a, b string) int {
	w := 0
	if hasLeadingZero(a) {
		w = len(strings.TrimPrefix(a, "-"))
	}
	if hasLeadingZero(b) {
		if bw := len(strings.TrimPrefix(b, "-")); bw > w {
			w = bw
		}
	}
	return w
}

func numSeq(a, b, incr, width int) []*syntax.Word {
	fmtN := func(n int) string {
		s := strconv.Itoa(n)
		neg := strings.HasPrefix(s, "-")
		digits := s
		if neg {
			digits = s[1:]
		}
		for len(digits) < width {
			digits = "0" + digits
		}
		if neg {
			return "-" + digits
		}
		return digits
	}
	var out []*syntax.Word
	if a <= b {
		for n := a; n <= b; n += incr {
			out = append(out, litWord(fmtN(n)))
		}
	} else {
		for n := a; n >= b; n -= incr {
			out = append(out, litWord(fmtN(n)))
		}
	}
	return out
}
