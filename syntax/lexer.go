package syntax

import (
	"fmt"
	"strings"
)

// ParserMode is a bitmask of optional parsing behaviors.
type ParserMode uint

const (
	// ParseComments keeps comment text attached nowhere in the AST by
	// default; reserved for a future Comment-collecting mode.
	ParseComments ParserMode = 1 << iota
)

// parser is a combined hand-written scanner and recursive-descent parser:
// it reads bytes directly rather than materializing a separate token
// stream, the same way the small parsers in the retrieved pack (justone-sh,
// eukaryote-sh) work. Speculative parses (assignments, brace expansions,
// function declarations) rewind to a saved byte offset when they fail.
type parser struct {
	src  []byte
	pos  int // next unread byte offset, 0-based
	name string
	mode ParserMode

	f *File

	err     error
	bash    bool // always true: this dialect is bash-family, not strict POSIX
	extGlob bool // whether shopt -s extglob is in effect for *this* parse

	pendingHeredocs []*Redirect // <<, <<- redirects awaiting their body
}

func newParser(name string, src []byte, mode ParserMode) *parser {
	return &parser{
		src:  src,
		name: name,
		mode: mode,
		bash: true,
		f:    &File{Name: name, Lines: []int{0}},
	}
}

func (p *parser) curPos() Pos { return Pos(p.pos + 1) }

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peekByte() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) advance() byte {
	b := p.src[p.pos]
	p.pos++
	if b == '\n' {
		p.f.Lines = append(p.f.Lines, p.pos)
	}
	return b
}

// at reports whether the upcoming bytes equal s, without consuming.
func (p *parser) at(s string) bool {
	return strings.HasPrefix(string(p.src[p.pos:]), s)
}

// consume advances past s, which must already be confirmed present via at.
func (p *parser) consume(s string) {
	for range s {
		p.advance()
	}
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }

// skipBlanks consumes spaces, tabs, comments, and backslash-newline
// continuations, but stops at a real newline.
func (p *parser) skipBlanks() {
	for !p.eof() {
		b := p.peekByte()
		switch {
		case isBlank(b):
			p.advance()
		case b == '\\' && p.peekAt(1) == '\n':
			p.advance()
			p.advance()
		case b == '#':
			for !p.eof() && p.peekByte() != '\n' {
				p.advance()
			}
		default:
			return
		}
	}
}

// skipBlankLines additionally consumes newlines and blank-line separators,
// used between statements where a line break carries no meaning.
func (p *parser) skipBlankLines() {
	for {
		p.skipBlanks()
		if !p.eof() && p.peekByte() == '\n' {
			p.advance()
			continue
		}
		return
	}
}

// isWordBreak reports whether b ends an unquoted literal run.
func isWordBreak(b byte) bool {
	switch b {
	case 0, ' ', '\t', '\n', '\r', ';', '&', '|', '(', ')', '<', '>':
		return true
	}
	return false
}

func isNameStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameCont(b byte) bool {
	return isNameStart(b) || (b >= '0' && b <= '9')
}

// peekWord returns the next literal word (without consuming it): the raw
// bytes up to the next word break. With no arguments it returns that word
// as is; given words, it returns the one it equals, or "" if none.
func (p *parser) peekWord(words ...string) string {
	save := p.pos
	defer func() { p.pos = save }()
	start := p.pos
	for !p.eof() && !isWordBreak(p.peekByte()) {
		p.advance()
	}
	lit := string(p.src[start:p.pos])
	if len(words) == 0 {
		return lit
	}
	for _, w := range words {
		if lit == w {
			return w
		}
	}
	return ""
}

// errorf records the first parse error encountered; later calls are no-ops
// so the earliest, most relevant error wins.
func (p *parser) errorf(pos Pos, format string, args ...any) {
	if p.err != nil {
		return
	}
	p.err = &ParseError{Filename: p.name, Pos: p.f.Position(pos), Text: sprintf(format, args...)}
}

// ParseError describes a syntax error with source position.
type ParseError struct {
	Filename string
	Pos      Position
	Text     string
}

func (e *ParseError) Error() string {
	name := e.Filename
	if name == "" {
		name = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d: %s", name, e.Pos.Line, e.Pos.Column, e.Text)
}

func sprintf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
