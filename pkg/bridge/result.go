package bridge

import (
	"fmt"

	"github.com/wilhg/y8bridge/pkg/codec"
	"github.com/wilhg/y8bridge/pkg/errmodel"
)

// Result is the outcome of a bridge operation. Err is nil when Success is true
// and carries an *errmodel.Error otherwise. Data may be set on failure when the
// SDK returned a parseable body, for example the error message of a rejected save.
type Result[T any] struct {
	Success bool
	Data    T
	Err     error
}

// typed narrows an outcome to the payload type of the operation. A successful
// outcome carrying another type, which happens when the SDK answers an id with
// a different kind, becomes a failure.
func typed[T any](out codec.Outcome) Result[T] {
	r := Result[T]{Success: out.Success, Err: out.Err}
	if v, ok := out.Payload.(T); ok {
		r.Data = v
	} else if out.Success {
		r.Success = false
		r.Err = unexpectedPayload(out)
	}
	return r
}

func unexpectedPayload(out codec.Outcome) error {
	return errmodel.Protocol(errmodel.CodeUnexpectedPayload, "response payload does not fit the operation",
		map[string]any{"kind": string(out.Kind), "payload": fmt.Sprintf("%T", out.Payload)}, nil)
}
