package syntax

import "strconv"

// Parse reads a shell program from src and returns its AST. name is used
// only for diagnostics (ParseError.Filename).
func Parse(name string, src []byte, mode ParserMode) (*File, error) {
	p := newParser(name, src, mode)
	p.f.Stmts = p.parseStmts()
	p.skipBlankLines()
	if p.err == nil && !p.eof() {
		p.errorf(p.curPos(), "unexpected token %q", string(p.peekByte()))
	}
	if p.err != nil {
		return p.f, p.err
	}
	return p.f, nil
}

var stopWordSet = map[string]bool{
	"then": true, "elif": true, "else": true, "fi": true,
	"do": true, "done": true, "esac": true, "}": true,
}

// parseStmts parses statements until EOF or a bare reserved stop word.
func (p *parser) parseStmts() []*Stmt {
	var stmts []*Stmt
	for {
		p.skipBlankLines()
		if p.err != nil || p.eof() {
			return stmts
		}
		if w := p.peekWord(); stopWordSet[w] {
			return stmts
		}
		if p.peekByte() == ')' {
			return stmts
		}
		st, ok := p.parseStmt()
		if !ok {
			return stmts
		}
		stmts = append(stmts, st)
		p.drainHeredocs()
	}
}

// drainHeredocs consumes the newline ending the current line (if any
// heredocs are pending) and reads each pending heredoc's body in order.
func (p *parser) drainHeredocs() {
	if len(p.pendingHeredocs) == 0 {
		return
	}
	p.skipBlanks()
	if !p.eof() && p.peekByte() == '\n' {
		p.advance()
	}
	pending := p.pendingHeredocs
	p.pendingHeredocs = nil
	for _, r := range pending {
		p.readHeredocBody(r)
	}
}

// parseStmt parses one statement, including its trailing ";", "&" or
// newline, and folds "&&"/"||"/"|" chaining into the returned Stmt's Cmd.
func (p *parser) parseStmt() (*Stmt, bool) {
	st := p.parseAndOr()
	if st == nil {
		return nil, false
	}
	p.skipBlanks()
	switch p.peekByte() {
	case ';':
		st.SemiPos = p.curPos()
		p.advance()
	case '&':
		if p.peekAt(1) != '&' {
			st.SemiPos = p.curPos()
			st.Background = true
			p.advance()
		}
	}
	return st, true
}

// parseAndOr parses a pipeline chain joined by "&&"/"||" into nested
// BinaryList statements.
func (p *parser) parseAndOr() *Stmt {
	x := p.parsePipelineStmt()
	if x == nil {
		return nil
	}
	for {
		p.skipBlanks()
		var op BinCmdOperator
		switch {
		case p.at("&&"):
			op = AndStmt
		case p.at("||"):
			op = OrStmt
		default:
			return x
		}
		opPos := p.curPos()
		if op == AndStmt {
			p.consume("&&")
		} else {
			p.consume("||")
		}
		p.skipBlankLines()
		y := p.parsePipelineStmt()
		if y == nil {
			p.errorf(opPos, "expected command after operator")
			return x
		}
		x = &Stmt{Position: x.Pos(), Cmd: &BinaryList{OpPos: opPos, Op: op, X: x, Y: y}}
	}
}

// parsePipelineStmt parses "cmd | cmd | cmd", optionally preceded by "!".
func (p *parser) parsePipelineStmt() *Stmt {
	p.skipBlanks()
	negated := false
	startPos := p.curPos()
	if p.peekWord() == "!" {
		negated = true
		p.advance()
		p.skipBlanks()
	}
	first := p.parseStmtNoChain()
	if first == nil {
		if negated {
			p.errorf(startPos, "expected command after !")
		}
		return nil
	}
	stmts := []*Stmt{first}
	all := false
	for {
		p.skipBlanks()
		pipeAll := false
		switch {
		case p.at("|&"):
			pipeAll = true
		case p.peekByte() == '|' && p.peekAt(1) != '|':
		default:
			goto done
		}
		if pipeAll {
			all = true
			p.consume("|&")
		} else {
			p.advance()
		}
		p.skipBlankLines()
		next := p.parseStmtNoChain()
		if next == nil {
			p.errorf(p.curPos(), "expected command after |")
			goto done
		}
		stmts = append(stmts, next)
	}
done:
	if len(stmts) == 1 && !negated {
		return stmts[0]
	}
	return &Stmt{Position: startPos, Cmd: &Pipeline{Negated: negated, All: all, Stmts: stmts}}
}

// parseStmtNoChain parses a single command with its assignments/redirects,
// without consuming "&&", "||" or "|".
func (p *parser) parseStmtNoChain() *Stmt {
	p.skipBlanks()
	if p.eof() {
		return nil
	}
	pos := p.curPos()
	st := &Stmt{Position: pos}

	for {
		p.skipBlanks()
		if p.lookingAtRedirect() {
			r := p.parseRedirect()
			if r == nil {
				break
			}
			st.Redirs = append(st.Redirs, r)
			continue
		}
		if a, ok := p.tryParseAssign(); ok {
			st.Assigns = append(st.Assigns, a)
			continue
		}
		break
	}

	cmd := p.parseCommand()
	if cmd == nil {
		if len(st.Assigns) == 0 && len(st.Redirs) == 0 {
			return nil
		}
		return st
	}
	st.Cmd = cmd

	for {
		p.skipBlanks()
		if !p.lookingAtRedirect() {
			break
		}
		r := p.parseRedirect()
		if r == nil {
			break
		}
		st.Redirs = append(st.Redirs, r)
	}
	return st
}

func (p *parser) lookingAtRedirect() bool {
	i := p.pos
	for i < len(p.src) && p.src[i] >= '0' && p.src[i] <= '9' {
		i++
	}
	if i >= len(p.src) {
		return false
	}
	switch p.src[i] {
	case '<', '>':
		return true
	case '&':
		return i+1 < len(p.src) && p.src[i+1] == '>'
	}
	return false
}

// tryParseAssign parses a leading "name=word" or "name+=word" assignment
// prefix; returns ok=false and rewinds if the upcoming text isn't one.
func (p *parser) tryParseAssign() (*Assign, bool) {
	save := p.pos
	if !isNameStart(p.peekByte()) {
		return nil, false
	}
	start := p.pos
	for !p.eof() && isNameCont(p.peekByte()) {
		p.advance()
	}
	name := string(p.src[start:p.pos])
	appendAssign := false
	if p.peekByte() == '+' && p.peekAt(1) == '=' {
		appendAssign = true
		p.advance()
		p.advance()
	} else if p.peekByte() == '=' {
		p.advance()
	} else {
		p.pos = save
		return nil, false
	}
	a := &Assign{Append: appendAssign, Name: &Lit{ValuePos: Pos(start + 1), Value: name}}
	if !p.eof() && p.peekByte() == '(' {
		p.advance()
		for {
			p.skipBlankLines()
			if p.eof() || p.peekByte() == ')' {
				break
			}
			w := p.parseWord()
			if w == nil {
				break
			}
			a.Array = append(a.Array, w)
		}
		if p.peekByte() == ')' {
			p.advance()
		}
		return a, true
	}
	if !p.eof() && !isWordBreak(p.peekByte()) {
		a.Value = p.parseWord()
	}
	return a, true
}

func (p *parser) parseRedirect() *Redirect {
	pos := p.curPos()
	start := p.pos
	for !p.eof() && p.peekByte() >= '0' && p.peekByte() <= '9' {
		p.advance()
	}
	var n *Lit
	if p.pos > start {
		n = &Lit{ValuePos: pos, Value: string(p.src[start:p.pos])}
	}
	opPos := p.curPos()
	var op RedirOperator
	switch {
	case p.at("<<-"):
		op = DashHdoc
		p.consume("<<-")
	case p.at("<<<"):
		op = WordHdoc
		p.consume("<<<")
	case p.at("<<"):
		op = Hdoc
		p.consume("<<")
	case p.at("<&"):
		op = DplIn
		p.consume("<&")
	case p.at("<>"):
		op = RdrInOut
		p.consume("<>")
	case p.at("<"):
		op = RdrIn
		p.consume("<")
	case p.at("&>>"):
		op = AppAll
		p.consume("&>>")
	case p.at("&>"):
		op = RdrAll
		p.consume("&>")
	case p.at(">>"):
		op = AppOut
		p.consume(">>")
	case p.at(">&"):
		op = DplOut
		p.consume(">&")
	case p.at(">|"):
		op = ClobberOut
		p.consume(">|")
	case p.at(">"):
		op = RdrOut
		p.consume(">")
	default:
		p.pos = start
		return nil
	}
	r := &Redirect{OpPos: opPos, Op: op, N: n}
	p.skipBlanks()
	switch op {
	case Hdoc, DashHdoc:
		r.Word = p.parseHeredocDelim(&r.HdocQuoted)
		p.pendingHeredocs = append(p.pendingHeredocs, r)
	default:
		r.Word = p.parseWord()
	}
	return r
}

// parseHeredocDelim reads the delimiter word of a "<<"/"<<-" redirect and
// records whether it was quoted (quoting suppresses expansion in the body).
func (p *parser) parseHeredocDelim(quoted *bool) *Word {
	start := p.pos
	var lit []byte
	for !p.eof() && !isBlank(p.peekByte()) && p.peekByte() != '\n' {
		b := p.peekByte()
		if b == '\'' || b == '"' {
			*quoted = true
			p.advance()
			for !p.eof() && p.peekByte() != b {
				lit = append(lit, p.advance())
			}
			if !p.eof() {
				p.advance()
			}
			continue
		}
		if b == '\\' {
			*quoted = true
			p.advance()
			if !p.eof() {
				lit = append(lit, p.advance())
			}
			continue
		}
		lit = append(lit, p.advance())
	}
	pos := Pos(start + 1)
	return &Word{Parts: []WordPart{&Lit{ValuePos: pos, Value: string(lit)}}}
}

// readHeredocBody consumes the heredoc body for r immediately after the
// current line ends, per POSIX here-document semantics.
func (p *parser) readHeredocBody(r *Redirect) {
	delim := r.Word.Lit()
	stripTabs := r.Op == DashHdoc
	var body []byte
	pos := p.curPos()
	for {
		lineStart := p.pos
		for !p.eof() && p.peekByte() != '\n' {
			p.advance()
		}
		line := p.src[lineStart:p.pos]
		if !p.eof() {
			p.advance() // consume newline
		}
		check := line
		if stripTabs {
			i := 0
			for i < len(check) && check[i] == '\t' {
				i++
			}
			check = check[i:]
		}
		if string(check) == delim {
			break
		}
		if stripTabs {
			i := 0
			for i < len(line) && line[i] == '\t' {
				i++
			}
			line = line[i:]
		}
		body = append(body, line...)
		body = append(body, '\n')
		if p.eof() {
			break
		}
	}
	if r.HdocQuoted {
		r.Hdoc = &Word{Parts: []WordPart{&Lit{ValuePos: pos, Value: string(body)}}}
		return
	}
	sub := newParser(p.name, body, p.mode)
	r.Hdoc = sub.parseDoubleQuoteLikeWord(pos)
	if sub.err != nil && p.err == nil {
		p.err = sub.err
	}
}

// parseDoubleQuoteLikeWord expands a heredoc body the way double-quote
// contents expand: parameter/command/arithmetic substitution, no splitting.
func (p *parser) parseDoubleQuoteLikeWord(pos Pos) *Word {
	var parts []WordPart
	for !p.eof() {
		part := p.parseWordPart(dblQuoted)
		if part == nil {
			break
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		parts = []WordPart{&Lit{ValuePos: pos, Value: ""}}
	}
	return &Word{Parts: parts}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
