// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/boxsh/boxsh/syntax"
)

// Arithm evaluates an arithmetic expression as found inside $((...)), ((...))
// or an array index, using cfg to resolve and assign variables.
func Arithm(cfg *Config, expr syntax.ArithmExpr) (int, error) {
	switch expr := expr.(type) {
	case *syntax.Word:
		str, err := Literal(cfg, expr)
		if err != nil {
			return 0, err
		}
		// A bare name in arithmetic context is that variable's value,
		// recursively, up to maxNameRefDepth hops.
		i := 0
		for syntax.ValidName(str) {
			val := cfg.envGet(str)
			if val == "" {
				break
			}
			if i++; i >= maxNameRefDepth {
				break
			}
			str = val
		}
		return int(atoi(str)), nil
	case *syntax.ParenArithm:
		return Arithm(cfg, expr.X)
	case *syntax.TernaryArithm:
		cond, err := Arithm(cfg, expr.Cond)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return Arithm(cfg, expr.Then)
		}
		return Arithm(cfg, expr.Else)
	case *syntax.UnaryArithm:
		switch expr.Op {
		case syntax.ArithIncr, syntax.ArithDecr:
			name := expr.X.(*syntax.Word).Lit()
			old := atoi(cfg.envGet(name))
			val := old
			if expr.Op == syntax.ArithIncr {
				val++
			} else {
				val--
			}
			if err := cfg.envSet(name, strconv.FormatInt(val, 10)); err != nil {
				return 0, err
			}
			if expr.Post {
				return int(old), nil
			}
			return int(val), nil
		}
		val, err := Arithm(cfg, expr.X)
		if err != nil {
			return 0, err
		}
		switch expr.Op {
		case syntax.ArithNot:
			return oneIf(val == 0), nil
		case syntax.ArithBitNeg:
			return ^val, nil
		case syntax.ArithPlus:
			return val, nil
		default: // syntax.ArithMinus
			return -val, nil
		}
	case *syntax.BinaryArithm:
		switch expr.Op {
		case syntax.ArithAssign, syntax.ArithAddAssign, syntax.ArithSubAssign,
			syntax.ArithMulAssign, syntax.ArithQuoAssign, syntax.ArithRemAssign,
			syntax.ArithAndAssign, syntax.ArithOrAssign, syntax.ArithXorAssign,
			syntax.ArithShlAssign, syntax.ArithShrAssign:
			return cfg.assgnArit(expr)
		}
		left, err := Arithm(cfg, expr.X)
		if err != nil {
			return 0, err
		}
		// Short-circuit && and ||, matching bash: the right side is only
		// evaluated (and only then can raise e.g. a division by zero) when
		// it can affect the result.
		switch expr.Op {
		case syntax.ArithLAnd:
			if left == 0 {
				return 0, nil
			}
			right, err := Arithm(cfg, expr.Y)
			if err != nil {
				return 0, err
			}
			return oneIf(right != 0), nil
		case syntax.ArithLOr:
			if left != 0 {
				return 1, nil
			}
			right, err := Arithm(cfg, expr.Y)
			if err != nil {
				return 0, err
			}
			return oneIf(right != 0), nil
		}
		right, err := Arithm(cfg, expr.Y)
		if err != nil {
			return 0, err
		}
		return binArit(expr.Op, left, right)
	default:
		panic(fmt.Sprintf("unexpected arithm expr: %T", expr))
	}
}

func oneIf(b bool) int {
	if b {
		return 1
	}
	return 0
}

// atoi is like strconv.ParseInt(s, 10, 64), but it ignores errors and trims
// whitespace, matching bash's "0 on garbage" arithmetic semantics.
func atoi(s string) int64 {
	s = strings.TrimSpace(s)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func (cfg *Config) assgnArit(b *syntax.BinaryArithm) (int, error) {
	name := b.X.(*syntax.Word).Lit()
	val := atoi(cfg.envGet(name))
	arg_, err := Arithm(cfg, b.Y)
	if err != nil {
		return 0, err
	}
	arg := int64(arg_)
	switch b.Op {
	case syntax.ArithAssign:
		val = arg
	case syntax.ArithAddAssign:
		val += arg
	case syntax.ArithSubAssign:
		val -= arg
	case syntax.ArithMulAssign:
		val *= arg
	case syntax.ArithQuoAssign:
		if arg == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		val /= arg
	case syntax.ArithRemAssign:
		if arg == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		val %= arg
	case syntax.ArithAndAssign:
		val &= arg
	case syntax.ArithOrAssign:
		val |= arg
	case syntax.ArithXorAssign:
		val ^= arg
	case syntax.ArithShlAssign:
		val <<= uint(arg)
	case syntax.ArithShrAssign:
		val >>= uint(arg)
	}
	if err := cfg.envSet(name, strconv.FormatInt(val, 10)); err != nil {
		return 0, err
	}
	return int(val), nil
}

func intPow(a, b int) int {
	p := 1
	for b > 0 {
		if b&1 != 0 {
			p *= a
		}
		b >>= 1
		a *= a
	}
	return p
}

func binArit(op syntax.ArithOperator, x, y int) (int, error) {
	switch op {
	case syntax.ArithAdd:
		return x + y, nil
	case syntax.ArithSub:
		return x - y, nil
	case syntax.ArithMul:
		return x * y, nil
	case syntax.ArithQuo:
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x / y, nil
	case syntax.ArithRem:
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x % y, nil
	case syntax.ArithPow:
		return intPow(x, y), nil
	case syntax.ArithEql:
		return oneIf(x == y), nil
	case syntax.ArithGtr:
		return oneIf(x > y), nil
	case syntax.ArithLss:
		return oneIf(x < y), nil
	case syntax.ArithNeq:
		return oneIf(x != y), nil
	case syntax.ArithLeq:
		return oneIf(x <= y), nil
	case syntax.ArithGeq:
		return oneIf(x >= y), nil
	case syntax.ArithAnd:
		return x & y, nil
	case syntax.ArithOr:
		return x | y, nil
	case syntax.ArithXor:
		return x ^ y, nil
	case syntax.ArithShr:
		return x >> uint(y), nil
	case syntax.ArithShl:
		return x << uint(y), nil
	default: // syntax.ArithComma
		// x is executed but its result discarded
		return y, nil
	}
}
