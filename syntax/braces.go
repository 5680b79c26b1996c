package syntax

// tryParseBraceExp attempts to parse a brace expansion starting at the
// current '{': either a comma list "{a,b,c}" or a numeric/character
// sequence "{1..10}"/"{1..10..2}"/"{a..z}". On failure it rewinds the
// cursor and returns nil, so the caller falls back to treating '{' as an
// ordinary literal byte.
func (p *parser) tryParseBraceExp() *BraceExp {
	save := p.pos
	if seq := p.trySequenceBraceExp(); seq != nil {
		return seq
	}
	p.pos = save
	if list := p.tryListBraceExp(); list != nil {
		return list
	}
	p.pos = save
	return nil
}

// trySequenceBraceExp parses "{start..end}" or "{start..end..incr}" where
// start/end are both integers or both single letters.
func (p *parser) trySequenceBraceExp() *BraceExp {
	if p.peekByte() != '{' {
		return nil
	}
	start := p.pos
	p.advance()
	a, ok := p.readSeqEndpoint()
	if !ok || !p.at("..") {
		p.pos = start
		return nil
	}
	p.consume("..")
	b, ok := p.readSeqEndpoint()
	if !ok {
		p.pos = start
		return nil
	}
	incr := ""
	if p.at("..") {
		p.consume("..")
		n, ok := p.readSeqEndpoint()
		if !ok {
			p.pos = start
			return nil
		}
		incr = n
	}
	if p.peekByte() != '}' {
		p.pos = start
		return nil
	}
	p.advance()
	chars := isAlphaSeq(a) && isAlphaSeq(b)
	pos := Pos(start + 1)
	mk := func(s string) *Word { return &Word{Parts: []WordPart{&Lit{ValuePos: pos, Value: s}}} }
	elems := []*Word{mk(a), mk(b)}
	if incr != "" {
		elems = append(elems, mk(incr))
	}
	return &BraceExp{Sequence: true, Chars: chars, Elems: elems}
}

func (p *parser) readSeqEndpoint() (string, bool) {
	start := p.pos
	if p.peekByte() == '-' || p.peekByte() == '+' {
		p.advance()
	}
	n := 0
	for !p.eof() && (isDigit(p.peekByte()) || isAsciiAlpha(p.peekByte())) {
		p.advance()
		n++
	}
	if n == 0 {
		p.pos = start
		return "", false
	}
	return string(p.src[start:p.pos]), true
}

func isAsciiAlpha(b byte) bool { return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' }

func isAlphaSeq(s string) bool { return len(s) == 1 && isAsciiAlpha(s[0]) }

// tryListBraceExp parses "{elem,elem,...}" where each elem is itself a
// word (possibly containing nested brace expansions); at least one comma
// is required, otherwise "{word}" is ordinary literal text.
func (p *parser) tryListBraceExp() *BraceExp {
	if p.peekByte() != '{' {
		return nil
	}
	start := p.pos
	p.advance()
	var elems []*Word
	sawComma := false
	for {
		w := p.parseBraceElemWord()
		elems = append(elems, w)
		switch p.peekByte() {
		case ',':
			sawComma = true
			p.advance()
			continue
		case '}':
			p.advance()
			goto finish
		default:
			p.pos = start
			return nil
		}
	}
finish:
	if !sawComma {
		p.pos = start
		return nil
	}
	return &BraceExp{Elems: elems}
}

// parseBraceElemWord parses one comma/brace-list element: a run of word
// parts stopping at an unescaped ',' or the matching '}'.
func (p *parser) parseBraceElemWord() *Word {
	var parts []WordPart
	depth := 0
	for !p.eof() {
		b := p.peekByte()
		if depth == 0 && (b == ',' || b == '}') {
			break
		}
		if b == '{' {
			if be := p.tryParseBraceExp(); be != nil {
				parts = append(parts, be)
				continue
			}
			depth++
		}
		if b == '}' && depth > 0 {
			depth--
		}
		part := p.parseWordPart(unquoted)
		if part == nil {
			// parseWordPart saw a byte it treats as a break (e.g. the
			// comma/brace handled above); consume it raw to make progress.
			pos := p.curPos()
			parts = append(parts, &Lit{ValuePos: pos, Value: string(p.advance())})
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		pos := p.curPos()
		parts = []WordPart{&Lit{ValuePos: pos, Value: ""}}
	}
	return &Word{Parts: parts}
}
