package rules

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// EvalError reports a trigger that parsed but could not be evaluated
// against a particular set of selections.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string { return e.Msg }

// ErrMissingKey is wrapped by strict references to keys that were not submitted.
var ErrMissingKey = errors.New("key not submitted")

func evalErrorf(format string, args ...any) error {
	return &EvalError{Msg: fmt.Sprintf(format, args...)}
}

// Raw maps factor keys to the values the applicant submitted. Values are
// nil, bool, int64, float64 or string.
type Raw map[string]any

// Eval evaluates n against raw. The result is one of the Raw value types,
// a []any for list displays, or Raw itself for a bare `raw` reference.
func Eval(n Node, raw Raw) (any, error) {
	switch n := n.(type) {
	case Literal:
		return n.Value, nil
	case RawRef:
		return raw, nil
	case FieldRef:
		return evalField(n, raw)
	case List:
		items := make([]any, len(n.Items))
		for i, item := range n.Items {
			v, err := Eval(item, raw)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case Compare:
		l, err := Eval(n.Left, raw)
		if err != nil {
			return nil, err
		}
		r, err := Eval(n.Right, raw)
		if err != nil {
			return nil, err
		}
		return compare(n.Op, l, r)
	case In:
		item, err := Eval(n.Item, raw)
		if err != nil {
			return nil, err
		}
		container, err := Eval(n.Container, raw)
		if err != nil {
			return nil, err
		}
		found, err := contains(container, item)
		if err != nil {
			return nil, err
		}
		return found != n.Negated, nil
	case And:
		l, err := Eval(n.Left, raw)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return l, nil
		}
		return Eval(n.Right, raw)
	case Or:
		l, err := Eval(n.Left, raw)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return l, nil
		}
		return Eval(n.Right, raw)
	case Not:
		v, err := Eval(n.Operand, raw)
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	}
	return nil, evalErrorf("unsupported node %T", n)
}

func evalField(n FieldRef, raw Raw) (any, error) {
	k, err := Eval(n.Key, raw)
	if err != nil {
		return nil, err
	}
	key, isString := k.(string)
	if isString {
		if v, ok := raw[key]; ok {
			return v, nil
		}
	}
	if !n.Strict {
		if n.Default == nil {
			return nil, nil
		}
		return Eval(n.Default, raw)
	}
	return nil, fmt.Errorf("%w: %v", ErrMissingKey, k)
}

// Truthy reports the boolean value of v: nil, false, zero, "" and empty
// lists are false.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case Raw:
		return len(v) > 0
	}
	return true
}

func numeric(v any) (float64, bool) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func equal(a, b any) bool {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return x == y
		}
	}
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Raw:
		_, ok := b.(Raw)
		return ok
	}
	return false
}

func compare(op CompareOp, l, r any) (any, error) {
	switch op {
	case OpEq:
		return equal(l, r), nil
	case OpNe:
		return !equal(l, r), nil
	}

	var c int
	x, lok := numeric(l)
	y, rok := numeric(r)
	switch {
	case lok && rok:
		// NaN never orders
		if math.IsNaN(x) || math.IsNaN(y) {
			return false, nil
		}
		c = cmpFloat(x, y)
	default:
		ls, lok := l.(string)
		rs, rok := r.(string)
		if !lok || !rok {
			return nil, evalErrorf("'%s' not supported between %s and %s", op, typeName(l), typeName(r))
		}
		c = strings.Compare(ls, rs)
	}

	switch op {
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	case OpGe:
		return c >= 0, nil
	}
	return nil, evalErrorf("unknown operator %q", op)
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func contains(container, item any) (bool, error) {
	switch c := container.(type) {
	case []any:
		for _, v := range c {
			if equal(v, item) {
				return true, nil
			}
		}
		return false, nil
	case string:
		s, ok := item.(string)
		if !ok {
			return false, evalErrorf("'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case Raw:
		switch k := item.(type) {
		case string:
			_, ok := c[k]
			return ok, nil
		case []any:
			return false, evalErrorf("unhashable type: 'list'")
		}
		return false, nil
	}
	return false, evalErrorf("argument of type %s is not iterable", typeName(container))
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []any:
		return "list"
	case Raw:
		return "mapping"
	}
	return fmt.Sprintf("%T", v)
}
