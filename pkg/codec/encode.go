// Package codec converts between the bridge's typed values and the loosely
// typed strings exchanged with the JavaScript SDK.
//
// Outbound payloads are single-line object literals built from ordered
// key/scalar pairs. Inbound responses are envelopes of the form
// `<kind>[<id>]=<body>` whose body is decoded according to the kind.
package codec

import (
	"strconv"
	"strings"
)

type scalarKind uint8

const (
	scalarString scalarKind = iota
	scalarBool
	scalarInt
	scalarFloat
)

// Scalar is one encodable value: a string, a boolean or a number.
type Scalar struct {
	kind scalarKind
	s    string
	b    bool
	i    int64
	f    float64
}

func String(s string) Scalar    { return Scalar{kind: scalarString, s: s} }
func Bool(b bool) Scalar        { return Scalar{kind: scalarBool, b: b} }
func Int(i int64) Scalar        { return Scalar{kind: scalarInt, i: i} }
func Float(f float64) Scalar    { return Scalar{kind: scalarFloat, f: f} }

// Pair is a key and its value. Pairs are encoded in the order given.
type Pair struct {
	Key   string
	Value Scalar
}

// Encode renders pairs as `{ "k1":v1, "k2":v2 }`. Nil or empty input yields the
// empty string, which the SDK reads as "no payload".
func Encode(pairs []Pair) string {
	if len(pairs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("{ ")
	for i, p := range pairs {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeQuoted(&sb, p.Key)
		sb.WriteByte(':')
		writeScalar(&sb, p.Value)
	}
	sb.WriteString(" }")
	return sb.String()
}

func writeScalar(sb *strings.Builder, v Scalar) {
	switch v.kind {
	case scalarBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case scalarInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case scalarFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'f', -1, 64))
	default:
		writeQuoted(sb, v.s)
	}
}

func writeQuoted(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
}
