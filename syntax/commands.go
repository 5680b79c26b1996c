package syntax

// parseCommand dispatches on the next reserved word or punctuation to
// parse one compound command, a function declaration, or falls back to a
// simple command (CallExpr). Returns nil if there is nothing to parse
// (e.g. the cursor is at a stop word or redirection-only line).
func (p *parser) parseCommand() Command {
	p.skipBlanks()
	if p.eof() {
		return nil
	}
	if p.at("((") {
		return p.parseArithmCmd()
	}
	switch p.peekByte() {
	case '(':
		return p.parseSubshell()
	case '{':
		if w := p.peekWord(); w == "{" {
			return p.parseGroup()
		}
	}
	switch p.peekWord() {
	case "if":
		return p.parseIf()
	case "while":
		return p.parseWhile(false)
	case "until":
		return p.parseWhile(true)
	case "for":
		return p.parseFor()
	case "case":
		return p.parseCase()
	case "function":
		return p.parseFuncDecl(true)
	}
	if fd := p.tryParseFuncDeclPosix(); fd != nil {
		return fd
	}
	return p.parseSimpleCmd()
}

func (p *parser) consumeReserved(word string) Pos {
	pos := p.curPos()
	for range word {
		p.advance()
	}
	return pos
}

func (p *parser) parseSimpleCmd() Command {
	var args []*Word
	for {
		p.skipBlanks()
		if p.eof() || isCommandBreak(p.peekByte()) {
			break
		}
		if p.lookingAtRedirect() {
			break
		}
		w := p.parseWord()
		if w == nil {
			break
		}
		args = append(args, w)
	}
	if len(args) == 0 {
		return nil
	}
	return &CallExpr{Args: args}
}

func isCommandBreak(b byte) bool {
	switch b {
	case 0, ';', '&', '|', '(', ')', '\n':
		return true
	}
	return false
}

func (p *parser) parseSubshell() *Subshell {
	lp := p.curPos()
	p.advance()
	stmts := p.parseStmts()
	p.skipBlankLines()
	rp := p.curPos()
	if p.peekByte() == ')' {
		p.advance()
	} else {
		p.errorf(lp, "reached EOF without matching )")
	}
	return &Subshell{Lparen: lp, Rparen: rp, Stmts: stmts}
}

func (p *parser) parseGroup() *Group {
	lb := p.consumeReserved("{")
	stmts := p.parseStmts()
	p.skipBlankLines()
	rb := p.curPos()
	if p.peekWord() == "}" {
		p.advance()
	} else {
		p.errorf(lb, "reached EOF without matching }")
	}
	return &Group{Lbrace: lb, Rbrace: rb, Stmts: stmts}
}

func (p *parser) parseArithmCmd() *ArithmCmd {
	left := p.curPos()
	p.consume("((")
	x := p.parseArithmExpr(0)
	p.arithSkip()
	right := p.curPos()
	if p.at("))") {
		p.consume("))")
	} else {
		p.errorf(left, "reached EOF without matching ))")
	}
	return &ArithmCmd{Left: left, Right: right, X: x}
}

func (p *parser) parseIf() *IfClause {
	ic := &IfClause{If: p.consumeReserved("if")}
	ic.CondStmts = p.parseStmts()
	p.expectWord("then")
	ic.ThenStmts = p.parseStmts()
	for p.peekWord() == "elif" {
		p.advance()
		e := &Elif{}
		e.CondStmts = p.parseStmts()
		p.expectWord("then")
		e.ThenStmts = p.parseStmts()
		ic.Elifs = append(ic.Elifs, e)
	}
	if p.peekWord() == "else" {
		p.advance()
		ic.ElseStmts = p.parseStmts()
	}
	ic.Fi = p.curPos()
	p.expectWord("fi")
	return ic
}

func (p *parser) parseWhile(until bool) *WhileClause {
	pos := p.curPos()
	if until {
		p.consumeReserved("until")
	} else {
		p.consumeReserved("while")
	}
	wc := &WhileClause{Pos_: pos, Until: until}
	wc.CondStmts = p.parseStmts()
	p.expectWord("do")
	wc.DoStmts = p.parseStmts()
	wc.Done = p.curPos()
	p.expectWord("done")
	return wc
}

func (p *parser) parseFor() *ForClause {
	fc := &ForClause{For: p.consumeReserved("for")}
	p.skipBlanks()
	if p.at("((") {
		lp := p.curPos()
		p.consume("((")
		init := p.parseArithmExpr(0)
		p.arithSkip()
		if p.peekByte() == ';' {
			p.advance()
		}
		cond := p.parseArithmExpr(0)
		p.arithSkip()
		if p.peekByte() == ';' {
			p.advance()
		}
		post := p.parseArithmExpr(0)
		p.arithSkip()
		rp := p.curPos()
		if p.at("))") {
			p.consume("))")
		}
		fc.Loop = &CStyleLoop{Lparen: lp, Rparen: rp, Init: init, Cond: cond, Post: post}
	} else {
		p.skipBlanks()
		pos := p.curPos()
		start := p.pos
		for !p.eof() && isNameCont(p.peekByte()) {
			p.advance()
		}
		name := string(p.src[start:p.pos])
		wi := &WordIter{Name: Lit{ValuePos: pos, Value: name}}
		p.skipBlanks()
		if p.peekWord() == "in" {
			p.advance()
			for {
				p.skipBlanks()
				if p.eof() || p.peekByte() == ';' || p.peekByte() == '\n' {
					break
				}
				w := p.parseWord()
				if w == nil {
					break
				}
				wi.Items = append(wi.Items, w)
			}
		}
		fc.Loop = wi
	}
	p.skipBlanks()
	if p.peekByte() == ';' {
		p.advance()
	}
	p.skipBlankLines()
	p.expectWord("do")
	fc.DoStmts = p.parseStmts()
	fc.Done = p.curPos()
	p.expectWord("done")
	return fc
}

func (p *parser) parseCase() *CaseClause {
	cc := &CaseClause{Case: p.consumeReserved("case")}
	p.skipBlanks()
	cc.Word = p.parseWord()
	p.skipBlankLines()
	p.expectWord("in")
	for {
		p.skipBlankLines()
		if p.peekWord() == "esac" {
			break
		}
		if p.eof() {
			break
		}
		item := &CaseItem{}
		hadParen := false
		if p.peekByte() == '(' {
			hadParen = true
			p.advance()
		}
		for {
			p.skipBlanks()
			pat := p.parseWord()
			if pat != nil {
				item.Patterns = append(item.Patterns, pat)
			}
			p.skipBlanks()
			if p.peekByte() == '|' {
				p.advance()
				continue
			}
			break
		}
		_ = hadParen
		p.skipBlanks()
		if p.peekByte() == ')' {
			p.advance()
		}
		item.Stmts = p.parseStmts()
		p.skipBlankLines()
		switch {
		case p.at(";;&"):
			item.Op = CaseContinue
			p.consume(";;&")
		case p.at(";&"):
			item.Op = CaseFallthru
			p.consume(";&")
		case p.at(";;"):
			item.Op = CaseBreak
			p.consume(";;")
		}
		cc.Items = append(cc.Items, item)
	}
	cc.Esac = p.curPos()
	p.expectWord("esac")
	return cc
}

func (p *parser) parseFuncDecl(bashStyle bool) *FuncDecl {
	pos := p.consumeReserved("function")
	p.skipBlanks()
	start := p.pos
	for !p.eof() && isNameCont(p.peekByte()) {
		p.advance()
	}
	name := string(p.src[start:p.pos])
	p.skipBlanks()
	if p.at("()") {
		p.consume("()")
	}
	p.skipBlankLines()
	body, _ := p.parseStmt()
	return &FuncDecl{Position: pos, BashStyle: bashStyle, Name: Lit{ValuePos: Pos(start + 1), Value: name}, Body: body}
}

// tryParseFuncDeclPosix recognizes "name() { ...; }" without the "function"
// keyword.
func (p *parser) tryParseFuncDeclPosix() *FuncDecl {
	save := p.pos
	if !isNameStart(p.peekByte()) {
		return nil
	}
	pos := p.curPos()
	start := p.pos
	for !p.eof() && isNameCont(p.peekByte()) {
		p.advance()
	}
	name := string(p.src[start:p.pos])
	if !p.at("()") {
		p.pos = save
		return nil
	}
	p.consume("()")
	p.skipBlankLines()
	body, ok := p.parseStmt()
	if !ok {
		p.pos = save
		return nil
	}
	return &FuncDecl{Position: pos, Name: Lit{ValuePos: pos, Value: name}, Body: body}
}

func (p *parser) expectWord(word string) {
	p.skipBlankLines()
	if p.peekWord() == word {
		p.consume(word)
		return
	}
	p.errorf(p.curPos(), "expected %q", word)
}
