package bridge

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/y8bridge/pkg/codec"
	"github.com/wilhg/y8bridge/pkg/errmodel"
	"github.com/wilhg/y8bridge/pkg/protocol"
)

// Ready is the SDK's readiness signal. It opens the gate for every parked and
// future call; repeated signals are ignored.
func (b *Bridge) Ready() {
	if !b.gate.IsReady() {
		b.log.Info("sdk ready")
	}
	b.gate.Signal()
}

// DeliverResponse routes a `<kind>[<id>]=<body>` envelope to the waiting call.
// A malformed envelope is returned as an error and affects only this delivery.
// Responses for ids with no waiter are logged and dropped.
func (b *Bridge) DeliverResponse(ctx context.Context, raw string) error {
	ctx, span := b.tracer.Start(ctx, "Bridge.Deliver")
	defer span.End()

	env, err := codec.ParseEnvelope(raw)
	if err != nil {
		b.metrics.Malformed()
		b.log.Warn("malformed envelope", "raw", raw, "error", err)
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int64("call.id", env.ID), attribute.String("request.kind", string(env.Kind)))

	if !b.codec.Knows(env.Kind) {
		b.log.Warn("unknown request kind", "kind", string(env.Kind), "call_id", env.ID)
	}
	out := b.codec.Decode(env.Kind, env.Body)
	if env.Kind.IsAuth() {
		b.installAuth(ctx, out)
	}
	b.complete(ctx, CallID(env.ID), out, span)
	return nil
}

// DeliverAuth routes a bare authorisation object. The snapshot replaces the
// session state, then the response completes the oldest in-flight auth call.
// It never completes a non-auth call. A body that is not an authorisation
// object still completes that call, with a failed outcome, and is returned as
// an error.
func (b *Bridge) DeliverAuth(ctx context.Context, raw string) error {
	ctx, span := b.tracer.Start(ctx, "Bridge.Deliver")
	defer span.End()

	id, kind, ok := b.oldestAuth()
	if !ok {
		kind = protocol.KindAutoLogin
	}
	out := b.codec.Decode(kind, raw)
	b.installAuth(ctx, out)

	if !ok {
		b.stale(ctx, 0, kind, "auth response with no auth call in flight")
	} else {
		span.SetAttributes(attribute.Int64("call.id", int64(id)), attribute.String("request.kind", string(kind)))
		b.complete(ctx, id, out, span)
	}
	if errmodel.HasCode(out.Err, errmodel.CodeInvalidPayload) {
		return out.Err
	}
	return nil
}

func (b *Bridge) installAuth(ctx context.Context, out codec.Outcome) {
	a, ok := out.Payload.(*protocol.Authorisation)
	if !ok {
		return
	}
	b.session.Install(a)
	b.journal.snapshot(ctx, a)
	b.log.Info("session updated", "logged_in", b.session.IsLoggedIn(), "status", a.Status)
}

func (b *Bridge) complete(ctx context.Context, id CallID, out codec.Outcome, span trace.Span) {
	fl, tracked := b.untrack(id)
	if !b.pending.Resolve(int64(id), out) {
		b.stale(ctx, id, out.Kind, "no call waiting for this id")
		return
	}
	if tracked && fl.kind != out.Kind {
		b.log.Warn("response kind differs from request kind", "call_id", int64(id),
			"request_kind", string(fl.kind), "response_kind", string(out.Kind))
	}
	var took time.Duration
	if tracked {
		took = time.Since(fl.start)
	}
	b.metrics.Resolved(string(out.Kind), out.Success, took)
	b.metrics.SetPending(b.pending.Len())
	b.journal.resolved(ctx, id, out)
	if out.Err != nil {
		span.RecordError(out.Err)
	}
}

func (b *Bridge) stale(ctx context.Context, id CallID, kind protocol.RequestKind, msg string) {
	b.metrics.Stale(string(kind))
	b.journal.stale(ctx, id, kind)
	b.log.Warn("stale resolution", "call_id", int64(id), "kind", string(kind), "reason", msg,
		"code", errmodel.CodeStaleResolution)
}
