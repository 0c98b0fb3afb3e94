// Package bridge lets a Go host call the Y8 JavaScript SDK and receive typed,
// correlated results.
//
// A call and its completion happen in two runtimes with no shared stack: the
// bridge mints a call id, hands the encoded request to the SDK, and parks the
// caller until the SDK delivers a response tagged with the same id. Responses
// arrive through Ready, DeliverResponse and DeliverAuth, typically from a
// transport goroutine such as the HTTP host in pkg/webhost.
package bridge

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/wilhg/y8bridge/pkg/codec"
	"github.com/wilhg/y8bridge/pkg/errmodel"
	"github.com/wilhg/y8bridge/pkg/metrics"
	"github.com/wilhg/y8bridge/pkg/protocol"
	"github.com/wilhg/y8bridge/pkg/readiness"
	"github.com/wilhg/y8bridge/pkg/registry"
	"github.com/wilhg/y8bridge/pkg/session"
	"github.com/wilhg/y8bridge/pkg/store"
)

// CallID correlates a dispatched call with its response.
type CallID int64

// firstCallID is the counter's starting value; the first minted id is one above it.
const firstCallID = 10000

// SDK is the JavaScript side of the bridge. Init starts the SDK's own
// asynchronous initialisation, which completes with a call to Bridge.Ready.
// Call is fire-and-forget; the response is delivered later through the router.
type SDK interface {
	Init(appID, adsID string) error
	Call(id CallID, kind protocol.RequestKind, payload string) error
}

type inflight struct {
	kind  protocol.RequestKind
	start time.Time
}

// Bridge owns the pending-call registry, the session state and the readiness
// gate for one SDK instance. It is safe for concurrent use.
type Bridge struct {
	sdk   SDK
	appID string
	adsID string

	codec   *codec.Codec
	pending *registry.Registry[codec.Outcome]
	session *session.State
	gate    *readiness.Gate
	nextID  atomic.Int64

	mu     sync.Mutex
	calls  map[CallID]inflight
	authQ  []CallID
	hostLn language.Tag

	log         *slog.Logger
	metrics     *metrics.Metrics
	journal     *journal
	tracer      trace.Tracer
	fullscreen  func() bool
	saveLimiter *rate.Limiter
}

// Option configures a Bridge at construction time.
type Option func(*Bridge)

// WithIDs sets the application and ads identifiers passed to SDK.Init.
// Surrounding whitespace is removed. An empty ads id disables ShowAd.
func WithIDs(appID, adsID string) Option {
	return func(b *Bridge) {
		b.appID = strings.TrimSpace(appID)
		b.adsID = strings.TrimSpace(adsID)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(b *Bridge) { b.metrics = m } }

// WithCodec replaces the default codec, for example with one built with
// codec.WithSchemaValidation.
func WithCodec(c *codec.Codec) Option {
	return func(b *Bridge) {
		if c != nil {
			b.codec = c
		}
	}
}

// WithJournal records call lifecycle events and session snapshots in st under
// journalID. An empty journalID gets a random one.
func WithJournal(st store.Store, journalID string) Option {
	return func(b *Bridge) {
		if st != nil {
			b.journal = newJournal(st, journalID)
		}
	}
}

// WithFullscreen installs the display-mode probe consulted by ShowAd.
func WithFullscreen(probe func() bool) Option { return func(b *Bridge) { b.fullscreen = probe } }

// WithSaveLimiter throttles set_data and clear_data. The platform rejects
// saves submitted too frequently.
func WithSaveLimiter(l *rate.Limiter) Option { return func(b *Bridge) { b.saveLimiter = l } }

// WithHostLanguage sets the language reported when the player has none.
func WithHostLanguage(tag language.Tag) Option { return func(b *Bridge) { b.hostLn = tag } }

// New returns a Bridge driving sdk. SDK.Init runs on the first call that has
// to wait for readiness.
func New(sdk SDK, opts ...Option) *Bridge {
	b := &Bridge{
		sdk:     sdk,
		pending: registry.New[codec.Outcome](),
		calls:   make(map[CallID]inflight),
		hostLn:  language.AmericanEnglish,
		log:     slog.Default(),
		tracer:  otel.Tracer("bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.codec == nil {
		b.codec = codec.New()
	}
	b.session = session.New(b.hostLn)
	b.gate = readiness.New(b.initSDK)
	b.nextID.Store(firstCallID)
	b.log = b.log.With("component", "bridge")
	if b.journal != nil {
		b.journal.log = b.log.With("journal_id", b.journal.id)
	}
	return b
}

func (b *Bridge) initSDK() {
	b.log.Info("initialising sdk", "app_id", b.appID, "ads_enabled", b.adsID != "")
	if err := b.sdk.Init(b.appID, b.adsID); err != nil {
		b.log.Error("sdk init failed", "error", err)
	}
}

// Session exposes the player's session state.
func (b *Bridge) Session() *session.State { return b.session }

// IsReady reports whether the SDK has signalled readiness.
func (b *Bridge) IsReady() bool { return b.gate.IsReady() }

// Pending returns the number of calls waiting for a response.
func (b *Bridge) Pending() int { return b.pending.Len() }

// JournalID returns the id this bridge journals under, or "" without a journal.
func (b *Bridge) JournalID() string {
	if b.journal == nil {
		return ""
	}
	return b.journal.id
}

// Submit dispatches kind with pairs and returns as soon as the call is handed
// to the SDK. cb runs once, on the delivering goroutine, when the response
// arrives. Submit waits for readiness like every other call; the returned
// error is non-nil only when the call was never dispatched.
func (b *Bridge) Submit(ctx context.Context, kind protocol.RequestKind, pairs []codec.Pair, cb func(CallID, codec.Outcome)) (CallID, error) {
	ctx, span := b.tracer.Start(ctx, "Bridge.Submit", trace.WithAttributes(attribute.String("request.kind", string(kind))))
	defer span.End()
	if cb == nil {
		return 0, errmodel.Validation("nil_callback", "submit needs a callback", map[string]any{"kind": string(kind)})
	}
	if !kind.Known() {
		b.log.Warn("submitting kind outside the sdk catalogue", "kind", string(kind))
	}
	if err := b.gate.Wait(ctx); err != nil {
		return 0, notReady(kind, err)
	}
	id := b.mint()
	span.SetAttributes(attribute.Int64("call.id", int64(id)))
	w := registry.Callback[codec.Outcome](func(out codec.Outcome) { cb(id, out) })
	if err := b.send(ctx, id, kind, pairs, w); err != nil {
		span.RecordError(err)
		return id, err
	}
	return id, nil
}

// call runs the dispatch sequence for a gated operation and waits for its outcome.
func (b *Bridge) call(ctx context.Context, kind protocol.RequestKind, pairs []codec.Pair) codec.Outcome {
	ctx, span := b.tracer.Start(ctx, "Bridge.Dispatch", trace.WithAttributes(attribute.String("request.kind", string(kind))))
	defer span.End()

	if err := b.gate.Wait(ctx); err != nil {
		out := failed(kind, notReady(kind, err))
		span.SetStatus(codes.Error, "not ready")
		return out
	}
	id := b.mint()
	span.SetAttributes(attribute.Int64("call.id", int64(id)))
	fut := registry.NewFuture[codec.Outcome]()
	if err := b.send(ctx, id, kind, pairs, fut); err != nil {
		span.RecordError(err)
		return failed(kind, err)
	}
	out, err := fut.Wait(ctx)
	if err != nil {
		if !b.abandon(ctx, id) {
			// The router already took the entry; its result is on the way.
			out, _ = fut.Wait(context.WithoutCancel(ctx))
		} else {
			span.SetStatus(codes.Error, "abandoned")
			return failed(kind, errmodel.New(errmodel.CategorySystem, errmodel.CodeCanceled, "caller stopped waiting for the response",
				map[string]any{"kind": string(kind), "call_id": int64(id)}, err))
		}
	}
	if out.Err != nil {
		span.SetStatus(codes.Error, errmodel.From(out.Err).Code)
	}
	return out
}

func (b *Bridge) mint() CallID { return CallID(b.nextID.Add(1)) }

func (b *Bridge) send(ctx context.Context, id CallID, kind protocol.RequestKind, pairs []codec.Pair, w registry.Waiter[codec.Outcome]) error {
	payload := codec.Encode(pairs)
	b.track(id, kind)
	// Registered before Call so a response delivered synchronously finds its waiter.
	b.pending.Register(int64(id), w)
	b.metrics.Dispatched(string(kind))
	b.metrics.SetPending(b.pending.Len())
	b.journal.dispatched(ctx, id, kind, payload)
	b.log.Debug("dispatch", "call_id", int64(id), "kind", string(kind), "payload", payload)

	if err := b.sdk.Call(id, kind, payload); err != nil {
		b.untrack(id)
		b.pending.Forget(int64(id))
		b.metrics.SetPending(b.pending.Len())
		b.journal.abandoned(ctx, id)
		return errmodel.Transport(errmodel.CodeSDKUnavailable, "sdk call failed",
			map[string]any{"kind": string(kind), "call_id": int64(id)}, err)
	}
	return nil
}

func (b *Bridge) track(id CallID, kind protocol.RequestKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[id] = inflight{kind: kind, start: time.Now()}
	if kind.IsAuth() {
		b.authQ = append(b.authQ, id)
	}
}

func (b *Bridge) untrack(id CallID) (inflight, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fl, ok := b.calls[id]
	if !ok {
		return inflight{}, false
	}
	delete(b.calls, id)
	if fl.kind.IsAuth() {
		for i, qid := range b.authQ {
			if qid == id {
				b.authQ = append(b.authQ[:i], b.authQ[i+1:]...)
				break
			}
		}
	}
	return fl, true
}

// oldestAuth returns the longest-waiting auth call, if any.
func (b *Bridge) oldestAuth() (CallID, protocol.RequestKind, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.authQ) == 0 {
		return 0, "", false
	}
	id := b.authQ[0]
	return id, b.calls[id].kind, true
}

// abandon forgets a call whose caller stopped waiting. It returns false when
// the call was resolved first.
func (b *Bridge) abandon(ctx context.Context, id CallID) bool {
	if !b.pending.Forget(int64(id)) {
		return false
	}
	b.untrack(id)
	b.metrics.SetPending(b.pending.Len())
	b.journal.abandoned(ctx, id)
	b.log.Debug("call abandoned", "call_id", int64(id))
	return true
}

func (b *Bridge) precondition(kind protocol.RequestKind, code, msg string) codec.Outcome {
	b.metrics.PreconditionFailed(string(kind), code)
	b.log.Debug("precondition failed", "kind", string(kind), "code", code)
	return failed(kind, errmodel.Precondition(code, msg, map[string]any{"kind": string(kind)}))
}

func (b *Bridge) requireLogin(kind protocol.RequestKind) (codec.Outcome, bool) {
	if b.session.IsLoggedIn() {
		return codec.Outcome{}, true
	}
	return b.precondition(kind, errmodel.CodeNotLoggedIn, "player is not logged in"), false
}

func failed(kind protocol.RequestKind, err error) codec.Outcome {
	return codec.Outcome{Kind: kind, Err: err}
}

func notReady(kind protocol.RequestKind, cause error) error {
	return errmodel.NotReady("sdk did not become ready", map[string]any{"kind": string(kind)}, cause)
}
