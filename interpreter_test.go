package boxsh

import (
	"context"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

// End-to-end scenarios, one per case in spec.md §8.

func TestExecuteScenarios(t *testing.T) {
	cases := []struct {
		name     string
		src      string
		stdout   string
		exitCode int
	}{
		{"if-true", "if true; then echo yes; fi", "yes\n", 0},
		{"arith", "a=1; b=2; echo $((a+b))", "3\n", 0},
		{"for-pipe-tr", "for i in 1 2 3; do echo $i; done | tr '\\n' ','", "1,2,3,", 0},
		{"local-scope", "f(){ local x=inner; echo $x; }; x=outer; f; echo $x", "inner\nouter\n", 0},
		{"errexit", "set -e; false; echo nope", "", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)
			res, err := Execute(context.Background(), []byte(tc.src), Options{})
			c.Assert(err, qt.IsNil)
			c.Assert(string(res.Stdout), qt.Equals, tc.stdout)
			c.Assert(res.ExitCode, qt.Equals, tc.exitCode)
		})
	}
}

// TestExecuteAnsiCByteRoundTrip pins spec.md §8 scenario 6: a raw, non-UTF-8
// byte produced by ANSI-C quoting ($'\xff') must survive unchanged through
// expansion, the pipeline, and a downstream reader's stdin.
func TestExecuteAnsiCByteRoundTrip(t *testing.T) {
	c := qt.New(t)
	res, err := Execute(context.Background(), []byte(`echo $'\xff' | wc -c`), Options{
		CustomCommands: map[string]Command{
			"wc": commandFunc(func(ctx context.Context, argv []string, cctx *CommandContext) (ExecResult, error) {
				return ExecResult{Stdout: []byte(fmt.Sprintf("%d\n", len(cctx.Stdin))), ExitCode: 0}, nil
			}),
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(string(res.Stdout), qt.Equals, "2\n")
	c.Assert(res.ExitCode, qt.Equals, 0)
}

func TestExecuteParseError(t *testing.T) {
	c := qt.New(t)
	res, err := Execute(context.Background(), []byte("if true; then"), Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(res.ExitCode, qt.Equals, 2)
	c.Assert(len(res.Stderr) > 0, qt.IsTrue)
}

func TestExecuteEnvSeed(t *testing.T) {
	c := qt.New(t)
	res, err := Execute(context.Background(), []byte("echo $GREETING"), Options{
		Env: map[string]string{"GREETING": "hello"},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(string(res.Stdout), qt.Equals, "hello\n")
	c.Assert(res.ExitCode, qt.Equals, 0)
}

func TestExecuteFilesystemRead(t *testing.T) {
	c := qt.New(t)
	res, err := Execute(context.Background(), []byte("read -r line < /greeting.txt; echo \"$line\""), Options{
		Files: map[string][]byte{"/greeting.txt": []byte("hi there\n")},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(string(res.Stdout), qt.Equals, "hi there\n")
	c.Assert(res.ExitCode, qt.Equals, 0)
}

func TestExecuteFilesystemWrite(t *testing.T) {
	c := qt.New(t)
	fsys := newMemFilesystem(nil)
	_, err := Execute(context.Background(), []byte("echo hi > /out.txt"), Options{
		Filesystem: fsys,
	})
	c.Assert(err, qt.IsNil)
	data, rerr := fsys.ReadFile(context.Background(), "/out.txt")
	c.Assert(rerr, qt.IsNil)
	c.Assert(string(data), qt.Equals, "hi\n")
}

func TestExecuteCustomCommand(t *testing.T) {
	c := qt.New(t)
	calls := 0
	res, err := Execute(context.Background(), []byte("greet world"), Options{
		CustomCommands: map[string]Command{
			"greet": commandFunc(func(ctx context.Context, argv []string, cctx *CommandContext) (ExecResult, error) {
				calls++
				return ExecResult{Stdout: []byte("hello " + argv[1] + "\n"), ExitCode: 0}, nil
			}),
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(string(res.Stdout), qt.Equals, "hello world\n")
	c.Assert(res.ExitCode, qt.Equals, 0)
	c.Assert(calls, qt.Equals, 1)
}

// commandFunc adapts a plain func to the Command interface, the same way the
// teacher's ExecHandlerFunc adapts a func to its handler interface.
type commandFunc func(ctx context.Context, argv []string, cctx *CommandContext) (ExecResult, error)

func (f commandFunc) Execute(ctx context.Context, argv []string, cctx *CommandContext) (ExecResult, error) {
	return f(ctx, argv, cctx)
}
