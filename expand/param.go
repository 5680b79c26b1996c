// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/boxsh/boxsh/syntax"
)

// UnsetParameterError is returned when a "${name?message}"-style expansion
// is triggered on an unset (or, with the ":" variant, empty) parameter.
type UnsetParameterError struct {
	Expr    *syntax.ParamExp
	Message string
}

func (u UnsetParameterError) Error() string { return u.Message }

// anyOfLit returns the literal value of idx if idx is a bare word matching
// one of candidates (used to recognize the "@"/"*" array indices), or "".
func anyOfLit(idx syntax.ArithmExpr, candidates ...string) string {
	w, ok := idx.(*syntax.Word)
	if !ok {
		return ""
	}
	lit := w.Lit()
	for _, c := range candidates {
		if lit == c {
			return lit
		}
	}
	return ""
}

func sortedMapValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = m[k]
	}
	return vals
}

func (cfg *Config) paramExp(pe *syntax.ParamExp) (string, error) {
	oldParam := cfg.curParam
	cfg.curParam = pe
	defer func() { cfg.curParam = oldParam }()

	name := pe.Param.Value
	vr := cfg.Env.Get(name)

	// "${!ref}" uses ref's value as the name of the variable to actually
	// expand; there is no AST representation for the separate bash
	// "${!prefix*}"/"${!prefix@}" names-by-prefix form, so a trailing "*"
	// or "@" right after the name is simply treated as part of an
	// (unset) variable name rather than specially recognized.
	if pe.Indirect {
		name = vr.String()
		vr = cfg.Env.Get(name)
	}
	if vr.Kind == NameRef {
		_, vr = vr.Resolve(cfg.Env)
	}

	if pe.Length {
		return cfg.paramLength(vr, pe.Index)
	}

	str, err := cfg.paramValue(vr, pe.Index)
	if err != nil {
		return "", err
	}

	if pe.Slice != nil {
		str, err = cfg.paramSlice(str, pe.Slice)
		if err != nil {
			return "", err
		}
	}
	if pe.Repl != nil {
		str, err = cfg.paramReplace(str, pe.Repl)
		if err != nil {
			return "", err
		}
	}
	if pe.Exp != nil {
		return cfg.paramExpandOp(pe, name, vr, str, pe.Exp)
	}
	return str, nil
}

func (cfg *Config) paramValue(vr Variable, idx syntax.ArithmExpr) (string, error) {
	if idx == nil {
		switch vr.Kind {
		case Indexed:
			return cfg.ifsJoin(vr.List), nil
		case Associative:
			return cfg.ifsJoin(sortedMapValues(vr.Map)), nil
		default:
			return vr.String(), nil
		}
	}
	return cfg.varInd(vr, idx)
}

func (cfg *Config) varInd(vr Variable, idx syntax.ArithmExpr) (string, error) {
	if anyOfLit(idx, "@", "*") != "" {
		switch vr.Kind {
		case Indexed:
			return cfg.ifsJoin(vr.List), nil
		case Associative:
			return cfg.ifsJoin(sortedMapValues(vr.Map)), nil
		default:
			return vr.String(), nil
		}
	}
	if vr.Kind == Associative {
		if w, ok := idx.(*syntax.Word); ok {
			key, err := Literal(cfg, w)
			if err != nil {
				return "", err
			}
			return vr.Map[key], nil
		}
	}
	n, err := Arithm(cfg, idx)
	if err != nil {
		return "", err
	}
	switch vr.Kind {
	case Indexed:
		if n < 0 {
			n += len(vr.List)
		}
		if n < 0 || n >= len(vr.List) {
			return "", nil
		}
		return vr.List[n], nil
	case Associative:
		return vr.Map[strconv.Itoa(n)], nil
	default:
		if n == 0 {
			return vr.String(), nil
		}
		return "", nil
	}
}

func (cfg *Config) paramLength(vr Variable, idx syntax.ArithmExpr) (string, error) {
	if idx != nil {
		if anyOfLit(idx, "@", "*") != "" {
			switch vr.Kind {
			case Indexed:
				return strconv.Itoa(len(vr.List)), nil
			case Associative:
				return strconv.Itoa(len(vr.Map)), nil
			default:
				if vr.IsSet() {
					return "1", nil
				}
				return "0", nil
			}
		}
		s, err := cfg.varInd(vr, idx)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(utf8.RuneCountInString(s)), nil
	}
	switch vr.Kind {
	case Indexed:
		return strconv.Itoa(len(vr.List)), nil
	case Associative:
		return strconv.Itoa(len(vr.Map)), nil
	default:
		return strconv.Itoa(utf8.RuneCountInString(vr.String())), nil
	}
}

func (cfg *Config) paramSlice(str string, slice *syntax.Slice) (string, error) {
	runes := []rune(str)
	offset, err := Arithm(cfg, slice.Offset)
	if err != nil {
		return "", err
	}
	if offset < 0 {
		offset += len(runes)
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(runes) {
		offset = len(runes)
	}
	length := len(runes) - offset
	if slice.Length != nil {
		length, err = Arithm(cfg, slice.Length)
		if err != nil {
			return "", err
		}
		if length < 0 {
			length += len(runes) - offset
		}
		if length < 0 {
			length = 0
		}
	}
	end := offset + length
	if end > len(runes) {
		end = len(runes)
	}
	if end < offset {
		end = offset
	}
	return string(runes[offset:end]), nil
}

func (cfg *Config) paramReplace(str string, repl *syntax.Replace) (string, error) {
	patStr, err := Pattern(cfg, repl.Orig)
	if err != nil {
		return "", err
	}
	with := ""
	if repl.With != nil {
		with, err = Literal(cfg, repl.With)
		if err != nil {
			return "", err
		}
	}
	expr, err := patternRegexp(patStr, true)
	if err != nil {
		return str, nil
	}
	switch repl.Anchor {
	case '#':
		expr = "^(?:" + expr + ")"
	case '%':
		expr = "(?:" + expr + ")$"
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return str, nil
	}
	if repl.All {
		return rx.ReplaceAllStringFunc(str, func(string) string { return with }), nil
	}
	loc := rx.FindStringIndex(str)
	if loc == nil {
		return str, nil
	}
	return str[:loc[0]] + with + str[loc[1]:], nil
}

// removePattern implements the "#"/"##"/"%"/"%%" prefix/suffix trim
// operators: large selects the greedy (##, %%) match, fromEnd selects a
// suffix (%, %%) instead of a prefix (#, ##).
func removePattern(str, patStr string, fromEnd, large bool) string {
	expr, err := patternRegexp(patStr, large)
	if err != nil {
		return str
	}
	if fromEnd && !large {
		// The shortest suffix starts at the rightmost offset whose
		// remainder matches the whole pattern.
		rx, err := regexp.Compile("^(?:" + expr + ")$")
		if err != nil {
			return str
		}
		for i := len(str); i >= 0; i-- {
			if (i == len(str) || utf8.RuneStart(str[i])) && rx.MatchString(str[i:]) {
				return str[:i]
			}
		}
		return str
	}
	switch {
	case fromEnd:
		expr = "(?:" + expr + ")$"
	default:
		expr = "^(?:" + expr + ")"
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return str
	}
	loc := rx.FindStringIndex(str)
	if loc == nil {
		return str
	}
	return str[:loc[0]] + str[loc[1]:]
}

func (cfg *Config) caseOp(str string, word *syntax.Word, upper, all bool) (string, error) {
	patStr := "?"
	if word != nil {
		lit, err := Pattern(cfg, word)
		if err != nil {
			return "", err
		}
		if lit != "" {
			patStr = lit
		}
	}
	expr, err := patternRegexp(patStr, true)
	if err != nil {
		return str, nil
	}
	rx, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return str, nil
	}
	runes := []rune(str)
	for i, r := range runes {
		if !all && i > 0 {
			break
		}
		if !rx.MatchString(string(r)) {
			continue
		}
		if upper {
			runes[i] = unicode.ToUpper(r)
		} else {
			runes[i] = unicode.ToLower(r)
		}
	}
	return string(runes), nil
}

func (cfg *Config) paramExpandOp(pe *syntax.ParamExp, name string, vr Variable, str string, exp *syntax.Expansion) (string, error) {
	unset := !vr.IsSet()
	trigger := unset || (exp.ColonOK && str == "")

	switch exp.Op {
	case syntax.AlternateUnset:
		if trigger {
			return "", nil
		}
		return Literal(cfg, exp.Word)
	case syntax.DefaultUnset:
		if trigger {
			return Literal(cfg, exp.Word)
		}
		return str, nil
	case syntax.AssignUnset:
		if !trigger {
			return str, nil
		}
		val, err := Literal(cfg, exp.Word)
		if err != nil {
			return "", err
		}
		if !syntax.ValidName(name) {
			return "", fmt.Errorf("cannot assign to %q: not a valid variable name", name)
		}
		if err := cfg.envSet(name, val); err != nil {
			return "", err
		}
		return val, nil
	case syntax.ErrorUnset:
		if !trigger {
			return str, nil
		}
		msg, _ := Literal(cfg, exp.Word)
		if msg == "" {
			if unset {
				msg = "unbound variable"
			} else {
				msg = "parameter null or not set"
			}
		}
		return "", UnsetParameterError{Expr: pe, Message: name + ": " + msg}
	case syntax.RemSmallPrefix, syntax.RemLargePrefix, syntax.RemSmallSuffix, syntax.RemLargeSuffix:
		pat, err := Pattern(cfg, exp.Word)
		if err != nil {
			return "", err
		}
		large := exp.Op == syntax.RemLargePrefix || exp.Op == syntax.RemLargeSuffix
		fromEnd := exp.Op == syntax.RemSmallSuffix || exp.Op == syntax.RemLargeSuffix
		return removePattern(str, pat, fromEnd, large), nil
	case syntax.UpperFirst:
		return cfg.caseOp(str, exp.Word, true, false)
	case syntax.UpperAll:
		return cfg.caseOp(str, exp.Word, true, true)
	case syntax.LowerFirst:
		return cfg.caseOp(str, exp.Word, false, false)
	case syntax.LowerAll:
		return cfg.caseOp(str, exp.Word, false, true)
	default:
		return str, nil
	}
}
