// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/boxsh/boxsh/pattern"
	"github.com/boxsh/boxsh/syntax"
)

// Config groups together everything the expansion pipeline needs to turn
// unexpanded syntax.Word values into shell fields: the variable environment,
// and the host-provided hooks for command substitution, process
// substitution and directory listing, each of which is implemented in terms
// of the host Filesystem/Command collaborators rather than the real OS.
type Config struct {
	// Ctx bounds command and process substitution run as part of
	// expansion; it defaults to context.Background() if left nil.
	Ctx context.Context

	// Env is consulted for every variable read and write, including
	// arithmetic assignment and parameter expansion.
	Env WriteEnviron

	// ReadDir lists a directory's entries for pathname expansion. A nil
	// ReadDir disables globbing entirely, as if NoGlob were set.
	ReadDir func(dir string) ([]fs.DirEntry, error)

	// CmdSubst runs the statements inside "$(...)" or "`...`", writing
	// their standard output to w.
	CmdSubst func(ctx context.Context, w io.Writer, cs *syntax.CmdSubst) error

	// ProcSubst resolves "<(...)"/">(...)" into a path-like string the
	// host Filesystem can read from or write to.
	ProcSubst func(ctx context.Context, ps *syntax.ProcSubst) (string, error)

	NoGlob     bool // "set -f": pathname expansion is a no-op
	GlobStar   bool // "shopt -s globstar": "**" matches across directories
	NoCaseGlob bool // "shopt -s nocaseglob": case-insensitive matching
	NullGlob   bool // "shopt -s nullglob": no match yields zero fields
	FailGlob   bool // "shopt -s failglob": no match returns NoGlobMatchError

	// OnGlobOp, if set, is called once per directory scanned during
	// pathname expansion, letting the host meter glob operations against
	// an execution-limit budget. A non-nil error aborts the expansion.
	OnGlobOp func() error

	// OnExpansion, if set, is called with the byte length of every
	// fully-expanded literal string and of every field Fields returns,
	// letting the host enforce a cap on
	// the size of any single expansion. A non-nil error aborts it.
	OnExpansion func(n int) error

	bufferAlloc bytes.Buffer
	fieldAlloc  [4]fieldPart
	fieldsAlloc [4][]fieldPart

	ifs string
	// curParam points at the parameter expansion node currently being
	// evaluated, if any; needed so that "${LINENO}" can report the line
	// the expansion appears on.
	curParam *syntax.ParamExp
}

func (cfg *Config) prepareIFS() {
	vr := cfg.Env.Get("IFS")
	if !vr.IsSet() {
		cfg.ifs = " \t\n"
	} else {
		cfg.ifs = vr.String()
	}
}

func (cfg *Config) ifsRune(r rune) bool {
	for _, r2 := range cfg.ifs {
		if r == r2 {
			return true
		}
	}
	return false
}

func (cfg *Config) ifsJoin(strs []string) string {
	sep := ""
	if cfg.ifs != "" {
		sep = cfg.ifs[:1]
	}
	return strings.Join(strs, sep)
}

func (cfg *Config) strBuilder() *bytes.Buffer {
	b := &cfg.bufferAlloc
	b.Reset()
	return b
}

func (cfg *Config) envGet(name string) string {
	return cfg.Env.Get(name).String()
}

func (cfg *Config) envSet(name, value string) error {
	return cfg.Env.Set(name, Variable{Set: true, Kind: String, Str: value})
}

func (cfg *Config) ctx() context.Context {
	if cfg.Ctx == nil {
		return context.Background()
	}
	return cfg.Ctx
}

// Literal expands a word with quote removal but without field splitting or
// pathname expansion; used for assignment right-hand sides, here-document
// delimiters, and anywhere else a single resulting string is wanted.
func Literal(cfg *Config, word *syntax.Word) (string, error) {
	if word == nil {
		return "", nil
	}
	cfg.prepareIFS()
	field, err := cfg.wordField(cfg.ctx(), word.Parts, quoteDouble)
	if err != nil {
		return "", err
	}
	str := cfg.fieldJoin(field)
	if cfg.OnExpansion != nil {
		if err := cfg.OnExpansion(len(str)); err != nil {
			return "", err
		}
	}
	return str, nil
}

// Document expands a word the way a here-document body is: parameter,
// command and arithmetic expansion happen, but the result is never field
// split or glob-expanded.
func Document(cfg *Config, word *syntax.Word) (string, error) {
	return Literal(cfg, word)
}

// Pattern expands a word for use as a glob/case pattern: quote removal
// happens, but characters that came from a quoted source are escaped so
// they can never be re-interpreted as pattern metacharacters.
func Pattern(cfg *Config, word *syntax.Word) (string, error) {
	cfg.prepareIFS()
	field, err := cfg.wordField(cfg.ctx(), word.Parts, quoteSingle)
	if err != nil {
		return "", err
	}
	buf := cfg.strBuilder()
	for _, part := range field {
		if part.quote > quoteNone {
			buf.WriteString(pattern.QuoteMeta(part.val, 0))
		} else {
			buf.WriteString(part.val)
		}
	}
	return buf.String(), nil
}

// Format implements printf/echo-style "%"-escape and backslash processing.
// It returns the formatted string and the number of args consumed.
func Format(cfg *Config, format string, args []string) (string, int, error) {
	buf := cfg.strBuilder()
	esc := false
	var fmts []rune
	initialArgs := len(args)

	for _, c := range format {
		switch {
		case esc:
			esc = false
			switch c {
			case 'n':
				buf.WriteRune('\n')
			case 'r':
				buf.WriteRune('\r')
			case 't':
				buf.WriteRune('\t')
			case '\\':
				buf.WriteRune('\\')
			default:
				buf.WriteRune('\\')
				buf.WriteRune(c)
			}

		case len(fmts) > 0:
			switch c {
			case '%':
				buf.WriteByte('%')
				fmts = nil
			case 'c':
				var b byte
				if len(args) > 0 {
					arg := ""
					arg, args = args[0], args[1:]
					if len(arg) > 0 {
						b = arg[0]
					}
				}
				buf.WriteByte(b)
				fmts = nil
			case '+', '-', ' ':
				if len(fmts) > 1 {
					return "", 0, fmt.Errorf("invalid format char: %c", c)
				}
				fmts = append(fmts, c)
			case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
				fmts = append(fmts, c)
			case 's', 'd', 'i', 'u', 'o', 'x':
				arg := ""
				if len(args) > 0 {
					arg, args = args[0], args[1:]
				}
				var farg any = arg
				if c != 's' {
					n, _ := strconv.ParseInt(arg, 0, 0)
					if c == 'i' || c == 'd' {
						farg = int(n)
					} else {
						farg = uint(n)
					}
					if c == 'i' || c == 'u' {
						c = 'd'
					}
				}
				fmts = append(fmts, c)
				fmt.Fprintf(buf, string(fmts), farg)
				fmts = nil
			default:
				return "", 0, fmt.Errorf("invalid format char: %c", c)
			}
		case c == '\\':
			esc = true
		case args != nil && c == '%':
			fmts = []rune{c}
		default:
			buf.WriteRune(c)
		}
	}
	if len(fmts) > 0 {
		return "", 0, fmt.Errorf("missing format char")
	}
	return buf.String(), initialArgs - len(args), nil
}

func (cfg *Config) fieldJoin(parts []fieldPart) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0].val
	}
	buf := cfg.strBuilder()
	for _, part := range parts {
		buf.WriteString(part.val)
	}
	return buf.String()
}

func (cfg *Config) escapedGlobField(parts []fieldPart) (escaped string, glob bool) {
	buf := cfg.strBuilder()
	for _, part := range parts {
		if part.quote > quoteNone {
			buf.WriteString(pattern.QuoteMeta(part.val, 0))
			continue
		}
		buf.WriteString(part.val)
		if pattern.HasMeta(part.val, 0) {
			glob = true
		}
	}
	if glob {
		escaped = buf.String()
	}
	return escaped, glob
}

// NoGlobMatchError is returned by Fields when FailGlob is set and a field
// containing glob metacharacters matched no path in the filesystem.
type NoGlobMatchError struct{ Pattern string }

func (e *NoGlobMatchError) Error() string { return fmt.Sprintf("no match: %s", e.Pattern) }

// Fields expands a list of words into the final, field-split,
// pathname-expanded list of shell arguments: brace expansion, then per-word
// field splitting, then (unless NoGlob) pathname expansion of any field
// that still contains glob metacharacters.
func Fields(cfg *Config, words ...*syntax.Word) ([]string, error) {
	cfg.prepareIFS()

	fields := make([]string, 0, len(words))
	dir := cfg.envGet("PWD")
	baseDir := pattern.QuoteMeta(dir, 0)
	for _, word := range words {
		for _, expWord := range Braces(word) {
			wfields, err := cfg.wordFields(cfg.ctx(), expWord.Parts)
			if err != nil {
				return nil, err
			}
			for _, field := range wfields {
				p, doGlob := cfg.escapedGlobField(field)
				var matches []string
				abs := path.IsAbs(p)
				if doGlob && !cfg.NoGlob && cfg.ReadDir != nil {
					if !abs {
						p = path.Join(baseDir, p)
					}
					var err error
					matches, err = cfg.glob(p)
					if err != nil {
						return nil, err
					}
				}
				if len(matches) == 0 {
					if doGlob && !cfg.NoGlob && cfg.ReadDir != nil {
						if cfg.FailGlob {
							return nil, &NoGlobMatchError{Pattern: p}
						}
						if cfg.NullGlob {
							continue
						}
					}
					fields = append(fields, cfg.fieldJoin(field))
					continue
				}
				for _, match := range matches {
					if !abs {
						endSep := strings.HasSuffix(match, "/")
						rel, err := relPath(dir, match)
						if err == nil {
							match = rel
						}
						if endSep && !strings.HasSuffix(match, "/") {
							match += "/"
						}
					}
					fields = append(fields, match)
				}
			}
		}
	}
	if cfg.OnExpansion != nil {
		for _, f := range fields {
			if err := cfg.OnExpansion(len(f)); err != nil {
				return nil, err
			}
		}
	}
	return fields, nil
}

func relPath(base, target string) (string, error) {
	base = path.Clean(base)
	target = path.Clean(target)
	if !strings.HasPrefix(target, base+"/") {
		if target == base {
			return ".", nil
		}
		return "", fmt.Errorf("not relative")
	}
	return target[len(base)+1:], nil
}

type fieldPart struct {
	val   string
	quote quoteLevel
}

type quoteLevel uint

const (
	quoteNone quoteLevel = iota
	quoteDouble
	quoteSingle
)

func (cfg *Config) tildeExpand(t *syntax.TildePrefix) string {
	switch t.User {
	case "":
		return cfg.envGet("HOME")
	case "+":
		return cfg.envGet("PWD")
	case "-":
		return cfg.envGet("OLDPWD")
	default:
		// There is no host user database in the sandbox, so a
		// "~name" prefix for any user other than the current one is
		// left untouched, matching what bash does when the name is
		// unknown.
		return "~" + t.User
	}
}

func extGlobText(e *syntax.ExtGlob) string {
	return string(e.Op) + "(" + e.Pattern + ")"
}

func (cfg *Config) wordField(ctx context.Context, wps []syntax.WordPart, ql quoteLevel) ([]fieldPart, error) {
	var field []fieldPart
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if ql == quoteDouble && strings.Contains(s, "\\") {
				buf := cfg.strBuilder()
				for i := 0; i < len(s); i++ {
					b := s[i]
					if b == '\\' && i+1 < len(s) {
						switch s[i+1] {
						case '\n':
							i++
							continue
						case '"', '\\', '$', '`':
							continue
						}
					}
					buf.WriteByte(b)
				}
				s = buf.String()
			}
			field = append(field, fieldPart{val: s})
		case *syntax.TildePrefix:
			if i == 0 {
				field = append(field, fieldPart{val: cfg.tildeExpand(x)})
			}
		case *syntax.SglQuoted:
			field = append(field, fieldPart{quote: quoteSingle, val: x.Value})
		case *syntax.Escaped:
			field = append(field, fieldPart{quote: quoteSingle, val: string([]byte{x.Char})})
		case *syntax.ANSIBytes:
			field = append(field, fieldPart{quote: quoteSingle, val: string(x.Bytes)})
		case *syntax.ExtGlob:
			field = append(field, fieldPart{val: extGlobText(x)})
		case *syntax.BraceExp:
			// Already resolved at a higher stage; any survivor (e.g.
			// inside a double-quoted word, where bash does not brace
			// expand) is rendered back literally.
			for _, e := range x.Elems {
				lit, _ := Literal(cfg, e)
				field = append(field, fieldPart{val: lit})
			}
		case *syntax.DblQuoted:
			inner, err := cfg.wordField(ctx, x.Parts, quoteDouble)
			if err != nil {
				return nil, err
			}
			for _, part := range inner {
				part.quote = quoteDouble
				field = append(field, part)
			}
		case *syntax.ParamExp:
			s, err := cfg.paramExp(x)
			if err != nil {
				return nil, err
			}
			field = append(field, fieldPart{val: s})
		case *syntax.CmdSubst:
			s, err := cfg.cmdSubst(ctx, x)
			if err != nil {
				return nil, err
			}
			field = append(field, fieldPart{val: s})
		case *syntax.ProcSubst:
			s, err := cfg.procSubst(ctx, x)
			if err != nil {
				return nil, err
			}
			field = append(field, fieldPart{val: s})
		case *syntax.ArithmExp:
			n, err := Arithm(cfg, x.X)
			if err != nil {
				return nil, err
			}
			field = append(field, fieldPart{val: strconv.Itoa(n)})
		default:
			return nil, fmt.Errorf("unhandled word part: %T", x)
		}
	}
	return field, nil
}

func (cfg *Config) cmdSubst(ctx context.Context, cs *syntax.CmdSubst) (string, error) {
	if cfg.CmdSubst == nil {
		return "", nil
	}
	buf := cfg.strBuilder()
	if err := cfg.CmdSubst(ctx, buf, cs); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func (cfg *Config) procSubst(ctx context.Context, ps *syntax.ProcSubst) (string, error) {
	if cfg.ProcSubst == nil {
		return "", nil
	}
	return cfg.ProcSubst(ctx, ps)
}

func (cfg *Config) wordFields(ctx context.Context, wps []syntax.WordPart) ([][]fieldPart, error) {
	fields := cfg.fieldsAlloc[:0]
	curField := cfg.fieldAlloc[:0]
	allowEmpty := false
	flush := func() {
		if len(curField) == 0 {
			return
		}
		fields = append(fields, curField)
		curField = nil
	}
	splitAdd := func(val string) {
		for i, field := range strings.FieldsFunc(val, cfg.ifsRune) {
			if i > 0 {
				flush()
			}
			curField = append(curField, fieldPart{val: field})
		}
	}
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if strings.Contains(s, "\\") {
				buf := cfg.strBuilder()
				for i := 0; i < len(s); i++ {
					b := s[i]
					if b == '\\' && i+1 < len(s) {
						i++
						b = s[i]
					}
					buf.WriteByte(b)
				}
				s = buf.String()
			}
			curField = append(curField, fieldPart{val: s})
		case *syntax.TildePrefix:
			if i == 0 {
				curField = append(curField, fieldPart{val: cfg.tildeExpand(x)})
			}
		case *syntax.SglQuoted:
			allowEmpty = true
			curField = append(curField, fieldPart{quote: quoteSingle, val: x.Value})
		case *syntax.Escaped:
			allowEmpty = true
			curField = append(curField, fieldPart{quote: quoteSingle, val: string([]byte{x.Char})})
		case *syntax.ANSIBytes:
			allowEmpty = true
			curField = append(curField, fieldPart{quote: quoteSingle, val: string(x.Bytes)})
		case *syntax.ExtGlob:
			curField = append(curField, fieldPart{val: extGlobText(x)})
		case *syntax.BraceExp:
			for _, e := range x.Elems {
				lit, _ := Literal(cfg, e)
				curField = append(curField, fieldPart{val: lit})
			}
		case *syntax.DblQuoted:
			allowEmpty = true
			if len(x.Parts) == 1 {
				if pe, ok := x.Parts[0].(*syntax.ParamExp); ok {
					elems, ok, err := cfg.quotedElems(pe)
					if err != nil {
						return nil, err
					}
					if ok {
						for i, elem := range elems {
							if i > 0 {
								flush()
							}
							curField = append(curField, fieldPart{quote: quoteDouble, val: elem})
						}
						continue
					}
				}
			}
			inner, err := cfg.wordField(ctx, x.Parts, quoteDouble)
			if err != nil {
				return nil, err
			}
			for _, part := range inner {
				part.quote = quoteDouble
				curField = append(curField, part)
			}
		case *syntax.ParamExp:
			s, err := cfg.paramExp(x)
			if err != nil {
				return nil, err
			}
			splitAdd(s)
		case *syntax.CmdSubst:
			s, err := cfg.cmdSubst(ctx, x)
			if err != nil {
				return nil, err
			}
			splitAdd(s)
		case *syntax.ProcSubst:
			s, err := cfg.procSubst(ctx, x)
			if err != nil {
				return nil, err
			}
			curField = append(curField, fieldPart{val: s})
		case *syntax.ArithmExp:
			n, err := Arithm(cfg, x.X)
			if err != nil {
				return nil, err
			}
			curField = append(curField, fieldPart{val: strconv.Itoa(n)})
		default:
			return nil, fmt.Errorf("unhandled word part: %T", x)
		}
	}
	flush()
	if allowEmpty && len(fields) == 0 {
		fields = append(fields, curField)
	}
	return fields, nil
}

// quotedElems checks if a parameter expansion is exactly "${@}" or
// "${name[@]}", which inside double quotes split into one field per
// element rather than joining on IFS.
func (cfg *Config) quotedElems(pe *syntax.ParamExp) ([]string, bool, error) {
	if pe == nil || pe.Indirect || pe.Length {
		return nil, false, nil
	}
	name := pe.Param.Value
	if name == "@" {
		vr := cfg.Env.Get("@")
		return vr.List, true, nil
	}
	if anyOfLit(pe.Index, "@") == "" {
		return nil, false, nil
	}
	vr := cfg.Env.Get(name)
	if vr.Kind == Indexed {
		return vr.List, true, nil
	}
	return nil, false, nil
}

func patternRegexp(s string, large bool) (string, error) {
	mode := pattern.Mode(0)
	if !large {
		mode |= pattern.Shortest
	}
	return pattern.Regexp(s, mode)
}

func findAllIndex(patStr, name string, n int) [][]int {
	expr, err := patternRegexp(patStr, true)
	if err != nil {
		return nil
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return rx.FindAllStringIndex(name, n)
}

func (cfg *Config) glob(pat string) ([]string, error) {
	parts := strings.Split(pat, "/")
	matches := []string{"."}
	if path.IsAbs(pat) {
		matches[0] = "/"
		parts = parts[1:]
	}
	for _, part := range parts {
		if part == "" {
			continue
		}
		if part == "**" && cfg.GlobStar {
			for i := range matches {
				matches[i] += "/"
			}
			latest := matches
			for {
				var newMatches []string
				for _, dir := range latest {
					nm, err := cfg.globDir(dir, rxGlobStarAny)
					if err != nil {
						return nil, err
					}
					newMatches = append(newMatches, nm...)
				}
				if len(newMatches) == 0 {
					break
				}
				matches = append(matches, newMatches...)
				latest = newMatches
			}
			continue
		}
		mode := pattern.Mode(0)
		if cfg.NoCaseGlob {
			mode |= pattern.NoGlobCase
		}
		expr, err := pattern.Regexp(part, mode)
		if err != nil {
			return nil, nil
		}
		rx, err := regexp.Compile("^" + expr + "$")
		if err != nil {
			return nil, nil
		}
		var newMatches []string
		for _, dir := range matches {
			nm, err := cfg.globDir(dir, rx)
			if err != nil {
				return nil, err
			}
			newMatches = append(newMatches, nm...)
		}
		matches = newMatches
	}
	return matches, nil
}

var rxGlobStarAny = regexp.MustCompile(".*")

func (cfg *Config) globDir(dir string, rx *regexp.Regexp) ([]string, error) {
	if cfg.OnGlobOp != nil {
		if err := cfg.OnGlobOp(); err != nil {
			return nil, err
		}
	}
	entries, err := cfg.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)

	var matches []string
	for _, name := range names {
		if !strings.HasPrefix(rx.String(), `^\.`) && strings.HasPrefix(name, ".") {
			continue
		}
		if rx.MatchString(name) {
			matches = append(matches, path.Join(dir, name))
		}
	}
	return matches, nil
}

// ReadFields splits s on IFS the way the "read" builtin does, returning at
// most n fields (n == -1 means unlimited); when raw is true, backslashes do
// not escape IFS characters.
func (cfg *Config) ReadFields(s string, n int, raw bool) []string {
	cfg.prepareIFS()
	type posRange struct{ start, end int }
	var fpos []posRange

	runes := make([]rune, 0, len(s))
	infield := false
	esc := false
	for _, r := range s {
		if infield {
			if cfg.ifsRune(r) && (raw || !esc) {
				fpos[len(fpos)-1].end = len(runes)
				infield = false
			}
		} else {
			if !cfg.ifsRune(r) && (raw || !esc) {
				fpos = append(fpos, posRange{start: len(runes), end: -1})
				infield = true
			}
		}
		if r == '\\' {
			if raw || esc {
				runes = append(runes, r)
			}
			esc = !esc
			continue
		}
		runes = append(runes, r)
		esc = false
	}
	if len(fpos) == 0 {
		return nil
	}
	if infield {
		fpos[len(fpos)-1].end = len(runes)
	}

	switch {
	case n == 1:
		fpos[0].start, fpos[0].end = 0, len(runes)
		fpos = fpos[:1]
	case n != -1 && n < len(fpos):
		fpos[n-1].end = fpos[len(fpos)-1].end
		fpos = fpos[:n]
	}

	out := make([]string, len(fpos))
	for i, p := range fpos {
		out[i] = string(runes[p.start:p.end])
	}
	return out
}
