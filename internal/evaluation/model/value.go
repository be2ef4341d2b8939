package model

import (
	"cmp"
	"strconv"
	"strings"
	"time"
)

type VariableType string

const (
	VarString  VariableType = "String"
	VarBoolean VariableType = "Boolean"
	VarShort   VariableType = "Short"
	VarInteger VariableType = "Integer"
	VarLong    VariableType = "Long"
	VarDouble  VariableType = "Double"
	VarDate    VariableType = "Date"
)

func (t VariableType) IsNumeric() bool {
	switch t {
	case VarShort, VarInteger, VarLong, VarDouble:
		return true
	}
	return false
}

// IsIntegral reports whether values of t are whole numbers kept exactly as int64.
func (t VariableType) IsIntegral() bool {
	return t == VarShort || t == VarInteger || t == VarLong
}

func (t VariableType) Valid() bool {
	return t.IsNumeric() || t == VarString || t == VarBoolean || t == VarDate
}

// TypedValue is a variable value interpreted through its declared type.
type TypedValue struct {
	Type VariableType
	str  string
	num  float64
	i    int64
	b    bool
	t    time.Time
}

// ParseValue interprets raw as typ. It fails for null values and values that do not parse.
func ParseValue(raw *string, typ VariableType) (TypedValue, bool) {
	if raw == nil {
		return TypedValue{}, false
	}
	v := TypedValue{Type: typ}
	switch typ {
	case VarString:
		v.str = *raw
	case VarBoolean:
		b, err := strconv.ParseBool(*raw)
		if err != nil {
			return TypedValue{}, false
		}
		v.b = b
	case VarShort, VarInteger, VarLong:
		n, err := strconv.ParseInt(strings.TrimSpace(*raw), 10, 64)
		if err != nil {
			return TypedValue{}, false
		}
		v.i = n
		v.num = float64(n)
	case VarDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		if err != nil {
			return TypedValue{}, false
		}
		v.num = f
	case VarDate:
		t, err := time.Parse(time.RFC3339Nano, *raw)
		if err != nil {
			return TypedValue{}, false
		}
		v.t = t
	default:
		return TypedValue{}, false
	}
	return v, true
}

// TypedVariable returns the instance variable as the requested type. A variable stored with a
// different type counts as absent.
func (i *Instance) TypedVariable(ref VariableRef) (TypedValue, bool) {
	v, ok := i.Variable(ref.Name)
	if !ok || v.Type != ref.Type {
		return TypedValue{}, false
	}
	return ParseValue(v.Value, ref.Type)
}

// Number is the value as float64. Integers beyond 2^53 lose precision; use Int for them.
func (v TypedValue) Number() float64 { return v.num }

func (v TypedValue) Int() int64 { return v.i }

func (v TypedValue) Time() time.Time { return v.t }

func (v TypedValue) String() string { return v.str }

func (v TypedValue) Bool() bool { return v.b }

// Key is the deterministic bucket key of the value.
func (v TypedValue) Key() string {
	switch v.Type {
	case VarString:
		return v.str
	case VarBoolean:
		return strconv.FormatBool(v.b)
	case VarShort, VarInteger, VarLong:
		return strconv.FormatInt(v.i, 10)
	case VarDouble:
		return FormatDouble(v.num)
	case VarDate:
		return v.t.UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// FormatDouble always renders a fractional part, so 1 becomes "1.0".
func FormatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}

// Compare orders two values of the same type.
func Compare(a, b TypedValue) int {
	switch a.Type {
	case VarString:
		return cmp.Compare(a.str, b.str)
	case VarBoolean:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case VarDate:
		return a.t.Compare(b.t)
	case VarShort, VarInteger, VarLong:
		return cmp.Compare(a.i, b.i)
	default:
		return cmp.Compare(a.num, b.num)
	}
}
