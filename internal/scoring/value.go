package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/Bursary/internal/canon"
)

// ValueKind is the JSON type an applicant used for a factor value.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueString
	ValueInt
	ValueFloat
)

// Value is a factor value as submitted: a string, an integer or a float.
// The zero Value means nothing was submitted.
type Value struct {
	kind ValueKind
	text string
	num  float64
}

// ErrValueType is returned when a factor value is not a string or number.
var ErrValueType = errors.New("value must be a string, integer or number")

func StringValue(s string) Value { return Value{kind: ValueString, text: s} }

func IntValue(n int64) Value {
	return Value{kind: ValueInt, text: strconv.FormatInt(n, 10), num: float64(n)}
}

func FloatValue(f float64) Value { return Value{kind: ValueFloat, num: f} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNone() bool { return v.kind == ValueNone }

// Text is the lookup form of v for select factors. Integers and their
// string spelling agree ("3" for both 3 and "3"); floats always carry a
// fractional part ("3.0").
func (v Value) Text() string {
	switch v.kind {
	case ValueString, ValueInt:
		return v.text
	case ValueFloat:
		return canon.Float(v.num)
	}
	return ""
}

// Number coerces v for numeric factors. Strings are parsed after trimming
// surrounding whitespace.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case ValueInt, ValueFloat:
		return v.num, true
	case ValueString:
		s := strings.TrimSpace(v.text)
		if strings.ContainsAny(s, "xX") {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Raw is the form rule triggers see: nil, int64, float64 or string.
// Integers too large for int64 are seen as floats.
func (v Value) Raw() any {
	switch v.kind {
	case ValueString:
		return v.text
	case ValueInt:
		if n, err := strconv.ParseInt(v.text, 10, 64); err == nil {
			return n
		}
		return v.num
	case ValueFloat:
		return v.num
	}
	return nil
}

func (v Value) String() string {
	if v.kind == ValueNone {
		return "<none>"
	}
	return v.Text()
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.text)
	case ValueInt:
		return []byte(v.text), nil
	case ValueFloat:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return []byte(canon.Float(v.num)), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON keeps the distinction between 3 and 3.0: a number literal
// with a fraction or exponent is a float, otherwise an integer.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrValueType
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		if !json.Valid(data) {
			return fmt.Errorf("invalid number %q", data)
		}
		lit := string(data)
		if strings.ContainsAny(lit, ".eE") {
			f, err := strconv.ParseFloat(lit, 64)
			if err != nil && !errors.Is(err, strconv.ErrRange) {
				return err
			}
			*v = FloatValue(f)
			return nil
		}
		if lit == "-0" {
			lit = "0"
		}
		f, _ := strconv.ParseFloat(lit, 64)
		*v = Value{kind: ValueInt, text: lit, num: f}
		return nil
	}
	return ErrValueType
}
