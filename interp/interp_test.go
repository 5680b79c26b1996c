package interp

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/boxsh/boxsh/syntax"
)

func run(t *testing.T, src string, opts ...RunnerOption) *Runner {
	t.Helper()
	r, err := New(opts...)
	qt.Assert(t, err, qt.IsNil)
	file, err := syntax.Parse("", []byte(src), 0)
	qt.Assert(t, err, qt.IsNil)
	err = r.Run(context.Background(), file)
	qt.Assert(t, err, qt.IsNil)
	return r
}

func TestPipelinePipeStatus(t *testing.T) {
	c := qt.New(t)
	r := run(t, `false | true | false`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "")
	c.Assert(r.ExitCode(), qt.Equals, 1)
	c.Assert(r.lookupVar("PIPESTATUS").String(), qt.Equals, "1")
}

func TestPipefailPropagatesNonzeroStage(t *testing.T) {
	c := qt.New(t)
	r := run(t, `set -o pipefail; false | true`)
	c.Assert(r.ExitCode(), qt.Equals, 1)
}

func TestBreakLevels(t *testing.T) {
	c := qt.New(t)
	r := run(t, `for i in 1 2 3; do for j in a b c; do if [ "$j" = b ]; then break 2; fi; echo "$i$j"; done; done`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "1a\n")
	c.Assert(r.ExitCode(), qt.Equals, 0)
}

func TestSubshellIsolation(t *testing.T) {
	c := qt.New(t)
	r := run(t, `x=outer; (x=inner; echo "$x"); echo "$x"`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "inner\nouter\n")
}

func TestNounsetErrors(t *testing.T) {
	c := qt.New(t)
	r := run(t, `set -u; echo "$undefined"`)
	c.Assert(r.ExitCode(), qt.Equals, 1)
}

func TestWordSplittingEmptyFields(t *testing.T) {
	c := qt.New(t)
	r := run(t, `set -- "" a "" b; echo "$#"`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "4\n")
}

func TestGetoptsBundledShortOptions(t *testing.T) {
	c := qt.New(t)
	r := run(t, `
set -- -ab val
while getopts ab: opt "$@"; do
	case $opt in
	a) echo "a" ;;
	b) echo "b=$OPTARG" ;;
	esac
done
`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "a\nb=val\n")
}

func TestExecutionLimitRecursion(t *testing.T) {
	c := qt.New(t)
	r := run(t, `f(){ f; }; f`, WithLimits(Limits{MaxRecursionDepth: 5}))
	c.Assert(r.ExitCode(), qt.Equals, 126)
}

func TestTrapExitRuns(t *testing.T) {
	c := qt.New(t)
	r := run(t, `trap 'echo bye' EXIT; echo hi`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "hi\nbye\n")
}

func TestErrTrapFires(t *testing.T) {
	c := qt.New(t)
	r := run(t, `trap 'echo caught' ERR; false; echo after`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "caught\nafter\n")
}

func TestTrapReentrancyGuard(t *testing.T) {
	c := qt.New(t)
	// The ERR trap body itself fails; that must not re-trigger ERR.
	r := run(t, `trap 'echo caught; false' ERR; false; echo after`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "caught\nafter\n")
}

func TestCustomCommandDispatch(t *testing.T) {
	c := qt.New(t)
	called := false
	cmd := Command(commandFunc(func(ctx context.Context, argv []string, cctx *CommandContext) (ExecResult, error) {
		called = true
		return ExecResult{Stdout: []byte("ok\n"), ExitCode: 0}, nil
	}))
	r := run(t, `mytool foo bar`, Commands(map[string]Command{"mytool": cmd}, nil))
	c.Assert(called, qt.IsTrue)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "ok\n")
	c.Assert(r.ExitCode(), qt.Equals, 0)
}

type commandFunc func(ctx context.Context, argv []string, cctx *CommandContext) (ExecResult, error)

func (f commandFunc) Execute(ctx context.Context, argv []string, cctx *CommandContext) (ExecResult, error) {
	return f(ctx, argv, cctx)
}

func TestCommandNotFound(t *testing.T) {
	c := qt.New(t)
	r := run(t, `nonexistent-thing`)
	c.Assert(r.ExitCode(), qt.Equals, 127)
}

func TestCaseFallthroughCascades(t *testing.T) {
	c := qt.New(t)
	r := run(t, `case 1 in 1) echo A;& 2) echo B;& 3) echo C;; esac`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "A\nB\nC\n")
	c.Assert(r.ExitCode(), qt.Equals, 0)
}

func TestCaseContinueRetestsFollowingPattern(t *testing.T) {
	c := qt.New(t)
	r := run(t, `case 1 in 1) echo A;;& 2) echo B;; *) echo C;; esac`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "A\nC\n")
}

func TestBackgroundStatementSetsExitAndContinues(t *testing.T) {
	c := qt.New(t)
	r := run(t, `echo start; false & echo "bg=$?"`)
	c.Assert(string(r.StdoutBytes()), qt.Equals, "start\nbg=0\n")
}
