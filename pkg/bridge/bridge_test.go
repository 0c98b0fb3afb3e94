package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/wilhg/y8bridge/pkg/bridge"
	"github.com/wilhg/y8bridge/pkg/bridge/bridgetest"
	"github.com/wilhg/y8bridge/pkg/codec"
	"github.com/wilhg/y8bridge/pkg/errmodel"
	"github.com/wilhg/y8bridge/pkg/protocol"
	"github.com/wilhg/y8bridge/pkg/store"
)

const loggedIn = `{"authResponse":{"access_token":"tok","details":{"pid":"p1","nickname":"nick","locale":"en-GB"}},"status":"ok"}`

// newBridge wires a fake SDK that becomes ready as soon as it is initialised.
func newBridge(t *testing.T, opts ...bridge.Option) (*bridge.Bridge, *bridgetest.SDK) {
	t.Helper()
	sdk := bridgetest.NewSDK()
	b := bridge.New(sdk, opts...)
	sdk.OnInit = func(string, string) { b.Ready() }
	return b, sdk
}

// login installs a logged-in session through an auth round trip.
func login(t *testing.T, b *bridge.Bridge, sdk *bridgetest.SDK) {
	t.Helper()
	prev := sdk.OnCall
	sdk.OnCall = func(c bridgetest.Call) {
		if err := b.DeliverAuth(context.Background(), loggedIn); err != nil {
			t.Errorf("deliver auth: %v", err)
		}
	}
	defer func() { sdk.OnCall = prev }()
	if r := b.Login(context.Background()); !r.Success {
		t.Fatalf("login failed: %v", r.Err)
	}
	<-sdk.Calls
}

func respond(b *bridge.Bridge, c bridgetest.Call, body string) error {
	return b.DeliverResponse(context.Background(), fmt.Sprintf("%s[%d]=%s", c.Kind, c.ID, body))
}

func TestFirstCallIDAndPayload(t *testing.T) {
	b, sdk := newBridge(t)
	sdk.OnCall = func(c bridgetest.Call) { _ = respond(b, c, `{"errorcode":0,"scores":[],"numscores":0}`) }

	r := b.CustomScore(context.Background(), "Leaderboard", bridge.WithPlayerID("p9"))
	if !r.Success || r.Data == nil {
		t.Fatalf("custom score: %+v", r)
	}
	seen := sdk.Seen()
	if len(seen) != 1 || seen[0].ID != 10001 {
		t.Fatalf("first call id: %+v", seen)
	}
	want := `{ "table":"Leaderboard", "mode":"alltime", "perPage":20, "page":1, "highest":true, "playerid":"p9" }`
	if seen[0].Payload != want {
		t.Fatalf("payload:\n got %s\nwant %s", seen[0].Payload, want)
	}
}

func TestOutOfOrderResolution(t *testing.T) {
	b, sdk := newBridge(t)
	b.Ready()
	ctx := context.Background()

	var wg sync.WaitGroup
	var tables bridge.Result[*protocol.ScoreTables]
	var flag bridge.Result[bool]
	wg.Add(2)
	go func() { defer wg.Done(); tables = b.Tables(ctx) }()
	c1 := <-sdk.Calls
	go func() { defer wg.Done(); flag = b.IsSponsor(ctx) }()
	c2 := <-sdk.Calls

	// Answer the second call first.
	if err := respond(b, c2, "true"); err != nil {
		t.Fatal(err)
	}
	if err := respond(b, c1, `{"tables":["a","b"],"errorcode":0}`); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	if !flag.Success || !flag.Data {
		t.Fatalf("sponsor: %+v", flag)
	}
	if !tables.Success || len(tables.Data.Tables) != 2 {
		t.Fatalf("tables: %+v", tables)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending=%d", b.Pending())
	}
}

func TestStaleAndMalformedDeliveriesAreIsolated(t *testing.T) {
	b, sdk := newBridge(t)
	b.Ready()
	ctx := context.Background()

	done := make(chan bridge.Result[bool], 1)
	go func() { done <- b.IsBlacklisted(ctx) }()
	c := <-sdk.Calls

	if err := b.DeliverResponse(ctx, "blacklist[99999]=true"); err != nil {
		t.Fatalf("stale delivery should be dropped quietly: %v", err)
	}
	err := b.DeliverResponse(ctx, "garbage without brackets")
	if !errmodel.HasCode(err, errmodel.CodeMalformedEnvelope) {
		t.Fatalf("err=%v want malformed_envelope", err)
	}
	if b.Pending() != 1 {
		t.Fatalf("in-flight call disturbed: pending=%d", b.Pending())
	}
	if err := respond(b, c, "false"); err != nil {
		t.Fatal(err)
	}
	if r := <-done; !r.Success || r.Data {
		t.Fatalf("blacklist: %+v", r)
	}
	// A second response for the same id is stale.
	if err := respond(b, c, "true"); err != nil {
		t.Fatal(err)
	}
}

func TestGetDataUnquotesValue(t *testing.T) {
	b, sdk := newBridge(t)
	login(t, b, sdk)
	sdk.OnCall = func(c bridgetest.Call) {
		_ = respond(b, c, `{"error":"","key":"k","jsondata":"\"hello\""}`)
	}
	r := b.GetData(context.Background(), "k")
	if !r.Success || r.Data != "hello" {
		t.Fatalf("get_data: %+v", r)
	}
}

func TestCallsBlockUntilReady(t *testing.T) {
	sdk := bridgetest.NewSDK()
	b := bridge.New(sdk, bridge.WithIDs("  app ", " ads\n"))
	ctx := context.Background()

	results := make(chan bridge.Result[bool], 2)
	go func() { results <- b.IsSponsor(ctx) }()
	go func() { results <- b.IsBlacklisted(ctx) }()

	deadline := time.After(2 * time.Second)
	for sdk.Inits() == 0 {
		select {
		case <-deadline:
			t.Fatal("init never triggered")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	if len(sdk.Seen()) != 0 {
		t.Fatal("calls dispatched before readiness")
	}
	if app, ads := sdk.InitIDs(); app != "app" || ads != "ads" {
		t.Fatalf("ids not trimmed: %q %q", app, ads)
	}

	b.Ready()
	for i := 0; i < 2; i++ {
		select {
		case c := <-sdk.Calls:
			_ = respond(b, c, "true")
		case <-deadline:
			t.Fatal("calls not dispatched after ready")
		}
	}
	for i := 0; i < 2; i++ {
		if r := <-results; !r.Success {
			t.Fatalf("result: %+v", r)
		}
	}
	if sdk.Inits() != 1 {
		t.Fatalf("init ran %d times", sdk.Inits())
	}
}

func TestNotReadyWhenContextEnds(t *testing.T) {
	sdk := bridgetest.NewSDK()
	b := bridge.New(sdk)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r := b.Tables(ctx)
	if r.Success || !errmodel.HasCode(r.Err, errmodel.CodeNotReady) {
		t.Fatalf("result=%+v", r)
	}
	if len(sdk.Seen()) != 0 {
		t.Fatal("nothing should reach the sdk")
	}
}

func TestPreconditionsShortCircuit(t *testing.T) {
	b, sdk := newBridge(t, bridge.WithIDs("app", ""))
	ctx := context.Background()

	if r := b.SaveScore(ctx, "t", 10); r.Success || !errmodel.HasCode(r.Err, errmodel.CodeNotLoggedIn) {
		t.Fatalf("save score: %+v", r)
	}
	if r := b.SetData(ctx, "k", "v"); !errmodel.HasCode(r.Err, errmodel.CodeNotLoggedIn) {
		t.Fatalf("set data: %+v", r)
	}
	if r := b.SaveScreenshot(ctx, []byte{1}); !errmodel.HasCode(r.Err, errmodel.CodeNotLoggedIn) {
		t.Fatalf("screenshot: %+v", r)
	}
	if r := b.ShowAd(ctx); !errmodel.HasCode(r.Err, errmodel.CodeAdsDisabled) {
		t.Fatalf("show ad: %+v", r)
	}
	if sdk.Inits() != 0 || len(sdk.Seen()) != 0 {
		t.Fatal("preconditions must not reach the sdk")
	}

	// No id was minted by the rejected calls.
	sdk.OnCall = func(c bridgetest.Call) { _ = respond(b, c, "") }
	b.ShowAchievementList(ctx)
	if seen := sdk.Seen(); len(seen) != 1 || seen[0].ID != 10001 {
		t.Fatalf("seen=%+v", seen)
	}
}

func TestShowAdFullscreen(t *testing.T) {
	full := true
	b, sdk := newBridge(t, bridge.WithIDs("app", "ads"), bridge.WithFullscreen(func() bool { return full }))
	if r := b.ShowAd(context.Background()); !errmodel.HasCode(r.Err, errmodel.CodeFullscreen) {
		t.Fatalf("fullscreen: %+v", r)
	}
	full = false
	sdk.OnCall = func(c bridgetest.Call) { _ = respond(b, c, "") }
	if r := b.ShowAd(context.Background()); !r.Success {
		t.Fatalf("windowed: %+v", r)
	}
}

func TestSaveScoreUsesNickname(t *testing.T) {
	b, sdk := newBridge(t)
	login(t, b, sdk)
	sdk.OnCall = func(c bridgetest.Call) { _ = respond(b, c, `{"success":false,"errorcode":4,"errormessage":"too low"}`) }

	r := b.SaveScore(context.Background(), "Leaderboard", 1500)
	if r.Success || r.Data == nil || r.Data.ErrorMessage != "too low" {
		t.Fatalf("save score: %+v", r)
	}
	if !errmodel.IsCategory(r.Err, errmodel.CategoryDomain) {
		t.Fatalf("err=%v", r.Err)
	}
	c := <-sdk.Calls
	want := `{ "table":"Leaderboard", "points":1500, "allowduplicates":false, "highest":true, "playername":"nick" }`
	if c.Payload != want {
		t.Fatalf("payload:\n got %s\nwant %s", c.Payload, want)
	}
}

func TestDeliverAuthCorrelatesOldestAuthCall(t *testing.T) {
	b, sdk := newBridge(t)
	b.Ready()
	ctx := context.Background()

	auth := make(chan bridge.Result[*protocol.Authorisation], 1)
	go func() { auth <- b.AutoLogin(ctx) }()
	authCall := <-sdk.Calls

	other := make(chan bridge.Result[bool], 1)
	go func() { other <- b.IsSponsor(ctx) }()
	sponsorCall := <-sdk.Calls

	// The auth response arrives after a non-auth call was minted.
	if err := b.DeliverAuth(ctx, loggedIn); err != nil {
		t.Fatal(err)
	}
	r := <-auth
	if !r.Success || r.Data.AuthResponse.Details.PID != "p1" {
		t.Fatalf("auto login: %+v", r)
	}
	if !b.Session().IsLoggedIn() || b.Session().Nickname() != "nick" {
		t.Fatal("session not installed")
	}
	if b.Pending() != 1 {
		t.Fatalf("sponsor call should still be pending, pending=%d", b.Pending())
	}
	if authCall.ID >= sponsorCall.ID {
		t.Fatalf("ids out of order: %d %d", authCall.ID, sponsorCall.ID)
	}
	_ = respond(b, sponsorCall, "true")
	if r := <-other; !r.Success || !r.Data {
		t.Fatalf("sponsor: %+v", r)
	}

	// With no auth call in flight the snapshot is still installed.
	if err := b.DeliverAuth(ctx, `{"status":"not_linked"}`); err != nil {
		t.Fatal(err)
	}
	if b.Session().IsLoggedIn() {
		t.Fatal("logged-out snapshot should replace the session")
	}
}

func TestDeliverAuthInvalidBodyFailsCall(t *testing.T) {
	b, sdk := newBridge(t)
	sdk.OnCall = func(bridgetest.Call) {
		err := b.DeliverAuth(context.Background(), "{not json")
		if !errmodel.HasCode(err, errmodel.CodeInvalidPayload) {
			t.Errorf("err=%v", err)
		}
	}
	r := b.Register(context.Background())
	if r.Success || !errmodel.HasCode(r.Err, errmodel.CodeInvalidPayload) {
		t.Fatalf("register: %+v", r)
	}
}

func TestEchoedAuthEnvelopeUpdatesSession(t *testing.T) {
	b, sdk := newBridge(t)
	sdk.OnCall = func(c bridgetest.Call) { _ = respond(b, c, loggedIn) }
	if r := b.Login(context.Background()); !r.Success {
		t.Fatalf("login: %+v", r)
	}
	if b.Session().PID() != "p1" {
		t.Fatal("session not updated from envelope")
	}
}

func TestSubmitInvokesCallback(t *testing.T) {
	b, sdk := newBridge(t)
	got := make(chan codec.Outcome, 1)
	var gotID bridge.CallID
	id, err := b.Submit(context.Background(), protocol.KindTables, nil, func(id bridge.CallID, out codec.Outcome) {
		gotID = id
		got <- out
	})
	if err != nil {
		t.Fatal(err)
	}
	c := <-sdk.Calls
	if c.ID != id {
		t.Fatalf("dispatched id %d, returned %d", c.ID, id)
	}
	_ = respond(b, c, `{"tables":[],"errorcode":0}`)
	out := <-got
	if !out.Success || gotID != id {
		t.Fatalf("callback: id=%d out=%+v", gotID, out)
	}
}

func TestUnknownKindPassesRawBody(t *testing.T) {
	b, sdk := newBridge(t)
	got := make(chan codec.Outcome, 1)
	if _, err := b.Submit(context.Background(), "future_kind", []codec.Pair{{Key: "x", Value: codec.Int(1)}},
		func(_ bridge.CallID, out codec.Outcome) { got <- out }); err != nil {
		t.Fatal(err)
	}
	c := <-sdk.Calls
	_ = respond(b, c, `{"anything":[1]}`)
	out := <-got
	if out.Success || out.Raw != `{"anything":[1]}` || !errmodel.HasCode(out.Err, errmodel.CodeUnknownRequestKind) {
		t.Fatalf("outcome=%+v", out)
	}
}

func TestCancelledCallerForgetsItsCall(t *testing.T) {
	b, sdk := newBridge(t)
	b.Ready()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bridge.Result[bool], 1)
	go func() { done <- b.IsSponsor(ctx) }()
	c := <-sdk.Calls
	cancel()
	r := <-done
	if r.Success || !errmodel.HasCode(r.Err, errmodel.CodeCanceled) {
		t.Fatalf("result=%+v", r)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending=%d", b.Pending())
	}
	// The late response is stale and harmless.
	if err := respond(b, c, "true"); err != nil {
		t.Fatal(err)
	}
}

func TestSDKCallErrorFailsImmediately(t *testing.T) {
	st := openJournal(t, "bridge_sdkerr")
	b, sdk := newBridge(t, bridge.WithJournal(st, "j-sdkerr"))
	sdk.Err = errors.New("page closed")
	r := b.Tables(context.Background())
	if r.Success || !errmodel.HasCode(r.Err, errmodel.CodeSDKUnavailable) {
		t.Fatalf("result=%+v", r)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending=%d", b.Pending())
	}
	// The journal closes the call it opened.
	sum, err := store.Replay(context.Background(), st, "j-sdkerr")
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Outstanding) != 0 || sum.Abandoned != 1 || sum.Dispatched["tables"] != 1 {
		t.Fatalf("replay summary: %+v", sum)
	}
}

func TestResolvedResultSurvivesCancelledContext(t *testing.T) {
	b, sdk := newBridge(t)
	b.Ready()
	// The SDK answers inside Call, so the result is resolved before the
	// caller starts waiting on a context that is already done.
	sdk.OnCall = func(c bridgetest.Call) { _ = respond(b, c, "true") }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 200; i++ {
		if r := b.IsSponsor(ctx); !r.Success || !r.Data {
			t.Fatalf("attempt %d: result=%+v", i, r)
		}
	}
	if b.Pending() != 0 {
		t.Fatalf("pending=%d", b.Pending())
	}
}

func TestSubmitRejectsNilCallback(t *testing.T) {
	b, sdk := newBridge(t)
	b.Ready()
	id, err := b.Submit(context.Background(), protocol.KindSponsor, nil, nil)
	if id != 0 || !errmodel.HasCode(err, "nil_callback") {
		t.Fatalf("id=%d err=%v", id, err)
	}
	if !errmodel.IsCategory(err, errmodel.CategoryValidation) {
		t.Fatalf("err=%v want a validation error", err)
	}
	if len(sdk.Seen()) != 0 || b.Pending() != 0 {
		t.Fatalf("nothing should be dispatched: seen=%v pending=%d", sdk.Seen(), b.Pending())
	}
	// A late envelope for the next id must not reach a nil callback.
	if err := b.DeliverResponse(context.Background(), "sponsor[10001]=true"); err != nil {
		t.Fatal(err)
	}
}

func TestResponseOfAnotherKindFailsTheCall(t *testing.T) {
	b, sdk := newBridge(t)
	sdk.OnCall = func(c bridgetest.Call) {
		_ = b.DeliverResponse(context.Background(), fmt.Sprintf("sponsor[%d]=true", c.ID))
	}
	r := b.Tables(context.Background())
	if r.Success || r.Data != nil || !errmodel.HasCode(r.Err, errmodel.CodeUnexpectedPayload) {
		t.Fatalf("result=%+v", r)
	}
}

func TestSaveLimiterThrottles(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	b, sdk := newBridge(t, bridge.WithSaveLimiter(lim))
	login(t, b, sdk)
	sdk.OnCall = func(c bridgetest.Call) { _ = respond(b, c, `{"status":"ok","key":"k"}`) }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if r := b.SetData(ctx, "k", "v"); !r.Success {
		t.Fatalf("first save: %+v", r)
	}
	if r := b.ClearData(ctx, "k"); r.Success || !errmodel.HasCode(r.Err, errmodel.CodeThrottled) {
		t.Fatalf("second save should be throttled: %+v", r)
	}
}

func TestSaveScreenshotSendsDataURL(t *testing.T) {
	b, sdk := newBridge(t)
	login(t, b, sdk)
	sdk.OnCall = func(c bridgetest.Call) { _ = respond(b, c, `{"image":"https://img.example/1.png"}`) }
	r := b.SaveScreenshot(context.Background(), []byte("png"))
	if !r.Success || r.Data != "https://img.example/1.png" {
		t.Fatalf("screenshot: %+v", r)
	}
	c := <-sdk.Calls
	if want := `{ "image":"data:image/png;base64,cG5n" }`; c.Payload != want {
		t.Fatalf("payload=%s", c.Payload)
	}
}
