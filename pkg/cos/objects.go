package cos

import (
	"fmt"
	"strconv"
	"strings"
)

// Object is any COS value.
type Object interface {
	String() string
}

// Null is the PDF null object.
type Null struct{}

func (Null) String() string { return "null" }

// Boolean is a PDF boolean.
type Boolean bool

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

// Integer is a PDF integer.
type Integer int64

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// Real is a PDF real number.
type Real float64

func (r Real) String() string { return strconv.FormatFloat(float64(r), 'g', -1, 64) }

// String is a PDF string. Literal and hex strings both decode to raw bytes.
type String string

func (s String) String() string { return "(" + string(s) + ")" }

// Name is a PDF name without its leading slash.
type Name string

func (n Name) String() string { return "/" + string(n) }

// Array is a PDF array.
type Array []Object

func (a Array) String() string {
	parts := make([]string, len(a))
	for i, o := range a {
		parts[i] = str(o)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Dict is a PDF dictionary.
type Dict map[Name]Object

func (d Dict) String() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for k, v := range d {
		fmt.Fprintf(&sb, " %s %s", k, str(v))
	}
	sb.WriteString(" >>")
	return sb.String()
}

// Get returns the raw value for key, or nil.
func (d Dict) Get(key Name) Object { return d[key] }

// Name returns the value for key when it is a name.
func (d Dict) Name(key Name) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

// Int returns the value for key when it is an integer.
func (d Dict) Int(key Name) (int, bool) {
	n, ok := d[key].(Integer)
	return int(n), ok
}

// Number returns the value for key when it is an integer or a real.
func (d Dict) Number(key Name) (float64, bool) {
	return Number(d[key])
}

// Array returns the value for key when it is a direct array.
func (d Dict) Array(key Name) (Array, bool) {
	a, ok := d[key].(Array)
	return a, ok
}

// Dict returns the value for key when it is a direct dictionary.
func (d Dict) Dict(key Name) (Dict, bool) {
	v, ok := d[key].(Dict)
	return v, ok
}

// Ref returns the value for key when it is an indirect reference.
func (d Dict) Ref(key Name) (Reference, bool) {
	r, ok := d[key].(Reference)
	return r, ok
}

// Number converts an Integer or Real to float64.
func Number(o Object) (float64, bool) {
	switch v := o.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// Numbers converts an array of numbers. It fails if any element is not numeric.
func Numbers(a Array) ([]float64, bool) {
	out := make([]float64, len(a))
	for i, o := range a {
		f, ok := Number(o)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// Reference is an indirect reference such as "5 0 R".
type Reference struct {
	Num int
	Gen int
}

func (r Reference) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Stream is a dictionary followed by raw, still encoded bytes.
type Stream struct {
	Dict Dict
	Data []byte
}

func (s *Stream) String() string {
	return fmt.Sprintf("%s stream[%d bytes]", s.Dict, len(s.Data))
}

// Keyword is a bare word that is not part of the object syntax. It only
// appears when lexing content streams, where operators are keywords.
type Keyword string

func (k Keyword) String() string { return string(k) }

func str(o Object) string {
	if o == nil {
		return "null"
	}
	return o.String()
}
