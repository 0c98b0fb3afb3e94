package errmodel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Category values for compact errors.
const (
	CategoryReadiness    = "readiness"
	CategoryPrecondition = "precondition"
	CategoryProtocol     = "protocol"
	CategoryDomain       = "domain"
	CategoryTransport    = "transport"
	CategoryValidation   = "validation"
	CategorySystem       = "system"
)

// Codes shared across packages.
const (
	CodeNotReady           = "not_ready"
	CodeNotLoggedIn        = "not_logged_in"
	CodeFullscreen         = "fullscreen"
	CodeAdsDisabled        = "ads_disabled"
	CodeMalformedEnvelope  = "malformed_envelope"
	CodeUnknownRequestKind = "unknown_request_kind"
	CodeStaleResolution    = "stale_resolution"
	CodeInvalidPayload     = "invalid_payload"
	CodeDomainFailure      = "domain_failure"
	CodeSDKUnavailable     = "sdk_unavailable"
	CodeCanceled           = "canceled"
	CodeThrottled          = "throttled"
	CodeUnexpectedPayload  = "unexpected_payload"
)

// Error is the compact error payload carried by failed results and HTTP replies.
// It implements the error interface.
type Error struct {
	Category string         `json:"category"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
	Causes   []Error        `json:"causes,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// New constructs a new compact error.
func New(category, code, message string, ctx map[string]any, causes ...error) *Error {
	ce := &Error{Category: category, Code: code, Message: truncate(message, 512)}
	if len(ctx) > 0 {
		ce.Context = truncateContext(ctx)
	}
	for _, c := range causes {
		if c == nil {
			continue
		}
		ce.Causes = append(ce.Causes, *From(c))
	}
	return ce
}

// From converts any error into a compact Error. If err is already *Error, it's returned as-is.
func From(err error) *Error {
	var ce *Error
	if err == nil {
		return nil
	}
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Category: CategorySystem, Code: "internal", Message: truncate(err.Error(), 512)}
}

// Convenience constructors.
func NotReady(message string, ctx map[string]any, causes ...error) *Error {
	return New(CategoryReadiness, CodeNotReady, message, ctx, causes...)
}

func Precondition(code, message string, ctx map[string]any) *Error {
	return New(CategoryPrecondition, code, message, ctx)
}

func Protocol(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategoryProtocol, code, message, ctx, cause)
	}
	return New(CategoryProtocol, code, message, ctx)
}

func Domain(message string, ctx map[string]any) *Error {
	return New(CategoryDomain, CodeDomainFailure, message, ctx)
}

func Transport(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategoryTransport, code, message, ctx, cause)
	}
	return New(CategoryTransport, code, message, ctx)
}

func Validation(code, message string, ctx map[string]any) *Error {
	return New(CategoryValidation, code, message, ctx)
}

func System(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategorySystem, code, message, ctx, cause)
	}
	return New(CategorySystem, code, message, ctx)
}

// HTTPStatus maps category/code to HTTP status.
func HTTPStatus(e *Error) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Category {
	case CategoryValidation:
		switch e.Code {
		case "not_found":
			return http.StatusNotFound
		case "method_not_allowed":
			return http.StatusMethodNotAllowed
		default:
			return http.StatusBadRequest
		}
	case CategoryProtocol:
		// The SDK broke the envelope contract for this delivery only.
		return http.StatusBadRequest
	case CategoryPrecondition:
		if e.Code == CodeNotLoggedIn {
			return http.StatusUnauthorized
		}
		return http.StatusPreconditionFailed
	case CategoryReadiness:
		return http.StatusServiceUnavailable
	case CategoryDomain:
		return http.StatusUnprocessableEntity
	case CategoryTransport:
		return http.StatusBadGateway
	case CategorySystem:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTP writes a compact error envelope to the response writer.
// It attempts to include the trace_id if present in ctx.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	ce := From(err)
	if ce == nil {
		ce = &Error{Category: CategorySystem, Code: "internal", Message: "unknown error"}
	}
	status := HTTPStatus(ce)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	traceID := ""
	if r != nil {
		if span := trace.SpanFromContext(r.Context()); span != nil {
			sc := span.SpanContext()
			if sc.HasTraceID() {
				traceID = sc.TraceID().String()
			}
		}
	}
	// Envelope { error: Error, trace_id?: string }
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":    ce,
		"trace_id": traceID,
	})
}

// truncate trims a string to max characters.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// truncateContext trims long string values in the context map.
func truncateContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch t := v.(type) {
		case string:
			out[k] = truncate(t, 256)
		case bool, int, int64, float64:
			out[k] = t
		default:
			b, err := json.Marshal(t)
			if err == nil && len(b) > 0 {
				out[k] = truncate(string(b), 256)
			} else {
				out[k] = t
			}
		}
	}
	return out
}

// IsCategory checks if err belongs to a specific category.
func IsCategory(err error, category string) bool {
	ce := From(err)
	return ce != nil && strings.EqualFold(ce.Category, category)
}

// HasCode checks if err carries the given code.
func HasCode(err error, code string) bool {
	ce := From(err)
	return ce != nil && ce.Code == code
}
