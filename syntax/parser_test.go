package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ignorePositions drops every Pos-typed field from a diff, since this suite
// only cares about shape, not byte offsets.
var ignorePositions = cmpopts.IgnoreTypes(Pos(0))

func parseOne(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse("", []byte(src), 0)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return f
}

func TestParseSimpleCommand(t *testing.T) {
	f := parseOne(t, "echo hello world\n")
	if len(f.Stmts) != 1 {
		t.Fatalf("want 1 stmt, got %d", len(f.Stmts))
	}
	ce, ok := f.Stmts[0].Cmd.(*CallExpr)
	if !ok {
		t.Fatalf("want *CallExpr, got %T", f.Stmts[0].Cmd)
	}
	if len(ce.Args) != 3 {
		t.Fatalf("want 3 args, got %d", len(ce.Args))
	}
	for i, want := range []string{"echo", "hello", "world"} {
		if got := ce.Args[i].Lit(); got != want {
			t.Errorf("arg %d: got %q, want %q", i, got, want)
		}
	}
}

func TestParseAssignPrefix(t *testing.T) {
	f := parseOne(t, "FOO=bar echo $FOO\n")
	st := f.Stmts[0]
	if len(st.Assigns) != 1 {
		t.Fatalf("want 1 assign, got %d", len(st.Assigns))
	}
	if st.Assigns[0].Name.Value != "FOO" {
		t.Errorf("assign name = %q", st.Assigns[0].Name.Value)
	}
	if st.Assigns[0].Value.Lit() != "bar" {
		t.Errorf("assign value = %q", st.Assigns[0].Value.Lit())
	}
}

func TestParsePipeline(t *testing.T) {
	f := parseOne(t, "a | b | c\n")
	pl, ok := f.Stmts[0].Cmd.(*Pipeline)
	if !ok {
		t.Fatalf("want *Pipeline, got %T", f.Stmts[0].Cmd)
	}
	if len(pl.Stmts) != 3 {
		t.Fatalf("want 3 stages, got %d", len(pl.Stmts))
	}
}

func TestParseIfElifElse(t *testing.T) {
	f := parseOne(t, `
if a; then
	b
elif c; then
	d
else
	e
fi
`)
	ic, ok := f.Stmts[0].Cmd.(*IfClause)
	if !ok {
		t.Fatalf("want *IfClause, got %T", f.Stmts[0].Cmd)
	}
	if len(ic.Elifs) != 1 {
		t.Fatalf("want 1 elif, got %d", len(ic.Elifs))
	}
	if len(ic.ElseStmts) != 1 {
		t.Fatalf("want 1 else stmt, got %d", len(ic.ElseStmts))
	}
}

func TestParseForWordList(t *testing.T) {
	f := parseOne(t, "for i in 1 2 3; do echo $i; done\n")
	fc, ok := f.Stmts[0].Cmd.(*ForClause)
	if !ok {
		t.Fatalf("want *ForClause, got %T", f.Stmts[0].Cmd)
	}
	wi, ok := fc.Loop.(*WordIter)
	if !ok {
		t.Fatalf("want *WordIter, got %T", fc.Loop)
	}
	if wi.Name.Value != "i" {
		t.Errorf("loop var = %q", wi.Name.Value)
	}
	if len(wi.Items) != 3 {
		t.Fatalf("want 3 items, got %d", len(wi.Items))
	}
}

func TestParseCaseClause(t *testing.T) {
	f := parseOne(t, `
case $x in
a|b) echo ab ;;
*) echo other ;;
esac
`)
	cc, ok := f.Stmts[0].Cmd.(*CaseClause)
	if !ok {
		t.Fatalf("want *CaseClause, got %T", f.Stmts[0].Cmd)
	}
	if len(cc.Items) != 2 {
		t.Fatalf("want 2 arms, got %d", len(cc.Items))
	}
	if len(cc.Items[0].Patterns) != 2 {
		t.Fatalf("want 2 patterns on first arm, got %d", len(cc.Items[0].Patterns))
	}
}

func TestParseFuncDecl(t *testing.T) {
	f := parseOne(t, "f() { echo hi; }\n")
	fd, ok := f.Stmts[0].Cmd.(*FuncDecl)
	if !ok {
		t.Fatalf("want *FuncDecl, got %T", f.Stmts[0].Cmd)
	}
	if fd.Name.Value != "f" {
		t.Errorf("func name = %q", fd.Name.Value)
	}
	if fd.BashStyle {
		t.Errorf("want POSIX-style decl, got BashStyle")
	}
}

func TestParseRedirects(t *testing.T) {
	f := parseOne(t, "cmd < in.txt > out.txt 2>> err.txt\n")
	st := f.Stmts[0]
	if len(st.Redirs) != 3 {
		t.Fatalf("want 3 redirs, got %d", len(st.Redirs))
	}
	wantOps := []RedirOperator{RdrIn, RdrOut, AppOut}
	for i, op := range wantOps {
		if st.Redirs[i].Op != op {
			t.Errorf("redir %d op = %v, want %v", i, st.Redirs[i].Op, op)
		}
	}
	if v := st.Redirs[2].N.Value; v != "2" {
		t.Errorf("redir fd = %q, want 2", v)
	}
}

func TestParseHeredoc(t *testing.T) {
	f := parseOne(t, "cat <<EOF\nhello\nEOF\n")
	st := f.Stmts[0]
	if len(st.Redirs) != 1 {
		t.Fatalf("want 1 redir, got %d", len(st.Redirs))
	}
	rd := st.Redirs[0]
	if rd.Op != Hdoc {
		t.Fatalf("want Hdoc, got %v", rd.Op)
	}
	if got := rd.Hdoc.Lit(); got != "hello\n" {
		t.Errorf("heredoc body = %q", got)
	}
}

func TestParseBackground(t *testing.T) {
	f := parseOne(t, "sleep 1 &\necho done\n")
	if len(f.Stmts) != 2 {
		t.Fatalf("want 2 stmts, got %d", len(f.Stmts))
	}
	if !f.Stmts[0].Background {
		t.Error("first stmt should be backgrounded")
	}
	if f.Stmts[1].Background {
		t.Error("second stmt should not be backgrounded")
	}
}

func TestParseDblQuotedParts(t *testing.T) {
	f := parseOne(t, `echo "hi $name"` + "\n")
	ce := f.Stmts[0].Cmd.(*CallExpr)
	dq, ok := ce.Args[1].Parts[0].(*DblQuoted)
	if !ok {
		t.Fatalf("want *DblQuoted, got %T", ce.Args[1].Parts[0])
	}
	if len(dq.Parts) != 2 {
		t.Fatalf("want 2 parts, got %d", len(dq.Parts))
	}
	if _, ok := dq.Parts[1].(*ParamExp); !ok {
		t.Errorf("second part want *ParamExp, got %T", dq.Parts[1])
	}
}

func TestParseErrorUnclosedIf(t *testing.T) {
	_, err := Parse("", []byte("if true; then echo hi"), 0)
	if err == nil {
		t.Fatal("want parse error for unclosed if, got nil")
	}
}

func TestParseDeterministic(t *testing.T) {
	const src = "for i in a b c; do if [ \"$i\" = b ]; then echo mid; fi; done\n"
	f1 := parseOne(t, src)
	f2 := parseOne(t, src)
	if diff := cmp.Diff(f1, f2, ignorePositions); diff != "" {
		t.Errorf("two parses of the same source differ:\n%s", diff)
	}
}
