package codec

import (
	"strconv"
	"strings"

	"github.com/wilhg/y8bridge/pkg/errmodel"
	"github.com/wilhg/y8bridge/pkg/protocol"
)

// Envelope is a parsed domain response.
type Envelope struct {
	Kind protocol.RequestKind
	ID   int64
	Body string
}

// ParseEnvelope splits `<kind>[<id>]=<body>` positionally: the kind ends at the
// first '[', the id ends at the first ']' after it. The body may itself contain
// brackets. An empty body is accepted only when the envelope ends right after
// the closing bracket.
func ParseEnvelope(raw string) (Envelope, error) {
	open := strings.IndexByte(raw, '[')
	if open <= 0 {
		return Envelope{}, malformed(raw, "missing request kind")
	}
	rel := strings.IndexByte(raw[open+1:], ']')
	if rel < 0 {
		return Envelope{}, malformed(raw, "missing closing bracket")
	}
	closeAt := open + 1 + rel
	id, err := strconv.ParseInt(strings.TrimSpace(raw[open+1:closeAt]), 10, 64)
	if err != nil {
		return Envelope{}, errmodel.Protocol(errmodel.CodeMalformedEnvelope, "call id is not an integer",
			map[string]any{"raw": raw}, err)
	}
	rest := raw[closeAt+1:]
	switch {
	case rest == "":
	case rest[0] == '=':
		rest = rest[1:]
	default:
		return Envelope{}, malformed(raw, "missing '=' separator")
	}
	return Envelope{Kind: protocol.RequestKind(raw[:open]), ID: id, Body: rest}, nil
}

func malformed(raw, msg string) error {
	return errmodel.Protocol(errmodel.CodeMalformedEnvelope, msg, map[string]any{"raw": raw}, nil)
}
