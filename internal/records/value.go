package records

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind tags the content of a cell.
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "absent"
	}
}

// Value is a single parsed cell. The zero Value is Absent.
type Value struct {
	kind Kind
	raw  string
	num  float64
}

// Absent returns the value of an empty or missing cell.
func Absent() Value { return Value{} }

// String returns a present, non-numeric value.
func String(s string) Value { return Value{kind: KindString, raw: s} }

// Number returns a numeric value. raw keeps the original cell text.
func Number(f float64, raw string) Value {
	if raw == "" {
		raw = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return Value{kind: KindNumber, raw: raw, num: f}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

func (v Value) IsNumber() bool { return v.kind == KindNumber }

// Raw returns the original cell text; empty for Absent.
func (v Value) Raw() string { return v.raw }

// Float returns the numeric content and whether the value is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Key is a canonical identity used for distinct counting. Numbers compare by
// value, so "5" and "5.0" share a key.
func (v Value) Key() string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return "s:" + v.raw
	default:
		return "a:"
	}
}

var floatPattern = regexp.MustCompile(`^\s*-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?\s*$`)

// Coerce converts raw cell text into a Value. Blank cells are Absent.
func Coerce(raw string, decimalComma bool) Value {
	if strings.TrimSpace(raw) == "" {
		return Absent()
	}
	candidate := raw
	if decimalComma && strings.Count(candidate, ",") == 1 && !strings.Contains(candidate, ".") {
		candidate = strings.Replace(candidate, ",", ".", 1)
	}
	if floatPattern.MatchString(candidate) {
		f, err := strconv.ParseFloat(strings.TrimSpace(candidate), 64)
		if err == nil {
			return Number(f, raw)
		}
	}
	return String(raw)
}

// Record is one data row keyed by header name.
type Record map[string]Value

// Get returns the cell for col, or Absent when the row has no such column.
func (r Record) Get(col string) Value {
	if r == nil {
		return Absent()
	}
	return r[col]
}

// Has reports whether the row defines col with a present value.
func (r Record) Has(col string) bool {
	return !r.Get(col).IsAbsent()
}
