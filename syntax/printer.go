package syntax

import (
	"fmt"
	"io"
	"strings"
)

// Printer renders an AST node back into shell source. Its one user is the
// xtrace tracer in package interp, not a source formatter: the output is a readable,
// re-parseable approximation, not a byte-for-byte round trip.
type Printer struct {
	sb strings.Builder
}

// NewPrinter returns a ready to use Printer.
func NewPrinter() *Printer { return &Printer{} }

// Print writes a rendering of node to w.
func (pr *Printer) Print(w io.Writer, node Node) error {
	pr.sb.Reset()
	pr.node(node)
	_, err := io.WriteString(w, pr.sb.String())
	return err
}

func (pr *Printer) node(n Node) {
	switch x := n.(type) {
	case *File:
		pr.stmts(x.Stmts)
	case *Stmt:
		pr.stmt(x)
	case *CallExpr:
		pr.words(x.Args)
	case *Word:
		pr.word(x)
	case *Pipeline:
		for i, s := range x.Stmts {
			if i > 0 {
				if x.All {
					pr.sb.WriteString(" |& ")
				} else {
					pr.sb.WriteString(" | ")
				}
			}
			pr.stmt(s)
		}
	case *BinaryList:
		pr.stmt(x.X)
		if x.Op == AndStmt {
			pr.sb.WriteString(" && ")
		} else {
			pr.sb.WriteString(" || ")
		}
		pr.stmt(x.Y)
	case *Subshell:
		pr.sb.WriteString("( ")
		pr.stmts(x.Stmts)
		pr.sb.WriteString(" )")
	case *Group:
		pr.sb.WriteString("{ ")
		pr.stmts(x.Stmts)
		pr.sb.WriteString("; }")
	case *IfClause:
		pr.sb.WriteString("if ")
		pr.stmts(x.CondStmts)
		pr.sb.WriteString("; then ")
		pr.stmts(x.ThenStmts)
		pr.sb.WriteString("; fi")
	case *WhileClause:
		if x.Until {
			pr.sb.WriteString("until ")
		} else {
			pr.sb.WriteString("while ")
		}
		pr.stmts(x.CondStmts)
		pr.sb.WriteString("; do ")
		pr.stmts(x.DoStmts)
		pr.sb.WriteString("; done")
	case *ForClause:
		pr.sb.WriteString("for ")
		pr.stmts(x.DoStmts)
	case *CaseClause:
		pr.sb.WriteString("case ")
		pr.word(x.Word)
		pr.sb.WriteString(" in ... esac")
	case *FuncDecl:
		fmt.Fprintf(&pr.sb, "%s ()", x.Name.Value)
	case *ArithmCmd:
		pr.sb.WriteString("((...))")
	default:
		fmt.Fprintf(&pr.sb, "%v", n)
	}
}

func (pr *Printer) stmts(stmts []*Stmt) {
	for i, s := range stmts {
		if i > 0 {
			pr.sb.WriteString("; ")
		}
		pr.stmt(s)
	}
}

func (pr *Printer) stmt(s *Stmt) {
	if s.Negated {
		pr.sb.WriteString("! ")
	}
	for _, as := range s.Assigns {
		pr.sb.WriteString(as.Name.Value)
		pr.sb.WriteString("=")
		if as.Value != nil {
			pr.word(as.Value)
		}
		pr.sb.WriteString(" ")
	}
	if s.Cmd != nil {
		pr.node(s.Cmd)
	}
	if s.Background {
		pr.sb.WriteString(" &")
	}
}

func (pr *Printer) words(ws []*Word) {
	for i, w := range ws {
		if i > 0 {
			pr.sb.WriteString(" ")
		}
		pr.word(w)
	}
}

func (pr *Printer) word(w *Word) {
	pr.sb.WriteString(wordApprox(w))
}

// wordApprox renders a Word as readable-enough shell source for tracing: it
// reproduces literal text and quoting faithfully, and falls back to the
// unexpanded source shape for anything with live expansions.
func wordApprox(w *Word) string {
	var sb strings.Builder
	for _, p := range w.Parts {
		switch x := p.(type) {
		case *Lit:
			sb.WriteString(x.Value)
		case *SglQuoted:
			sb.WriteByte('\'')
			sb.WriteString(x.Value)
			sb.WriteByte('\'')
		case *DblQuoted:
			sb.WriteByte('"')
			for _, pp := range x.Parts {
				if lit, ok := pp.(*Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
			sb.WriteByte('"')
		case *ParamExp:
			sb.WriteString("${")
			sb.WriteString(x.Param.Value)
			sb.WriteByte('}')
		case *CmdSubst:
			sb.WriteString("$(...)")
		case *ArithmExp:
			sb.WriteString("$((...))")
		default:
			sb.WriteString("...")
		}
	}
	return sb.String()
}
