package webhost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wilhg/y8bridge/pkg/bridge"
)

const authBody = `{"authResponse":{"access_token":"t","details":{"pid":"p7","nickname":"neo"}},"status":"ok"}`

// fakePage plays the browser side: it polls for commands and answers them.
func fakePage(t *testing.T, ctx context.Context, base string) {
	t.Helper()
	go func() {
		for ctx.Err() == nil {
			req, _ := http.NewRequestWithContext(ctx, "GET", base+"/sdk/commands?wait=200ms", nil)
			res, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			var body struct {
				Commands []Command `json:"commands"`
			}
			_ = json.NewDecoder(res.Body).Decode(&body)
			res.Body.Close()
			for _, c := range body.Commands {
				switch {
				case c.Op == "init":
					post(ctx, base+"/sdk/ready", "")
				case c.Request == "login":
					post(ctx, base+"/sdk/auth", authBody)
				case c.Request == "get_data":
					post(ctx, base+"/sdk/response", fmt.Sprintf(`get_data[%d]={"error":"","key":"k","jsondata":"\"v1\""}`, c.ID))
				}
			}
		}
	}()
}

func post(ctx context.Context, url, body string) {
	req, _ := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(body))
	if res, err := http.DefaultClient.Do(req); err == nil {
		res.Body.Close()
	}
}

func newHost(t *testing.T, opts ...bridge.Option) (*bridge.Bridge, *Outbox, *Display, *httptest.Server) {
	t.Helper()
	out := NewOutbox()
	display := &Display{}
	opts = append(opts, bridge.WithFullscreen(display.Fullscreen))
	b := bridge.New(out, opts...)
	srv := httptest.NewServer(NewServer(b, out, display, WithPollWait(time.Second)).Handler())
	t.Cleanup(func() {
		out.Close()
		srv.Close()
	})
	return b, out, display, srv
}

func TestEndToEndLoginAndGetData(t *testing.T) {
	b, _, _, srv := newHost(t, bridge.WithIDs("app", "ads"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fakePage(t, ctx, srv.URL)

	if r := b.Login(ctx); !r.Success {
		t.Fatalf("login: %+v", r)
	}
	r := b.GetData(ctx, "k")
	if !r.Success || r.Data != "v1" {
		t.Fatalf("get data: %+v", r)
	}

	res, err := http.Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var view SessionView
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if !view.Ready || !view.Profile.LoggedIn || view.Profile.Nickname != "neo" {
		t.Fatalf("session view: %+v", view)
	}
}

func TestMalformedResponseIs400(t *testing.T) {
	_, _, _, srv := newHost(t)
	res, err := http.Post(srv.URL+"/sdk/response", "text/plain", strings.NewReader("nonsense"))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", res.StatusCode)
	}
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.NewDecoder(res.Body).Decode(&env)
	if env.Error.Code != "malformed_envelope" {
		t.Fatalf("code=%q", env.Error.Code)
	}
}

func TestDisplayModeFeedsShowAd(t *testing.T) {
	b, _, display, srv := newHost(t, bridge.WithIDs("app", "ads"))
	res, err := http.Post(srv.URL+"/sdk/display", "application/json", strings.NewReader(`{"fullscreen":true}`))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent || !display.Fullscreen() {
		t.Fatalf("status=%d fullscreen=%v", res.StatusCode, display.Fullscreen())
	}
	if r := b.ShowAd(context.Background()); r.Success {
		t.Fatal("ad shown in fullscreen")
	}

	res, err = http.Post(srv.URL+"/sdk/display", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", res.StatusCode)
	}
}

func TestCommandsLongPollAndValidation(t *testing.T) {
	_, out, _, srv := newHost(t)
	start := time.Now()
	res, err := http.Get(srv.URL + "/sdk/commands?wait=50ms")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := readAll(res)
	if res.StatusCode != http.StatusOK || !strings.Contains(body, `"commands":[]`) {
		t.Fatalf("status=%d body=%s", res.StatusCode, body)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatal("poll returned before the wait elapsed")
	}

	_ = out.Call(10001, "tables", "")
	res, err = http.Get(srv.URL + "/sdk/commands?wait=1s")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = readAll(res)
	if !strings.Contains(body, `"id":10001`) || !strings.Contains(body, `"request":"tables"`) {
		t.Fatalf("body=%s", body)
	}

	res, err = http.Get(srv.URL + "/sdk/commands?wait=soon")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", res.StatusCode)
	}
}

func TestOutboxClosedRejectsCalls(t *testing.T) {
	out := NewOutbox()
	out.Close()
	if err := out.Call(1, "tables", ""); err != ErrClosed {
		t.Fatalf("err=%v", err)
	}
	if _, err := out.Drain(context.Background(), time.Second); err != ErrClosed {
		t.Fatalf("drain err=%v", err)
	}
}

func TestSessionViewCountsQueuedCommands(t *testing.T) {
	_, out, _, srv := newHost(t)
	session := func() SessionView {
		t.Helper()
		res, err := http.Get(srv.URL + "/api/session")
		if err != nil {
			t.Fatal(err)
		}
		defer res.Body.Close()
		var v SessionView
		if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
			t.Fatal(err)
		}
		return v
	}
	_ = out.Call(10001, "tables", "")
	_ = out.Call(10002, "sponsor", "")
	if v := session(); v.Queued != 2 || v.Ready {
		t.Fatalf("session=%+v want 2 queued", v)
	}
	if _, err := out.Drain(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}
	if v := session(); v.Queued != 0 {
		t.Fatalf("session=%+v want nothing queued after the page collected", v)
	}
}

func TestHealthz(t *testing.T) {
	_, _, _, srv := newHost(t)
	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", res.StatusCode)
	}
}

func readAll(res *http.Response) (string, error) {
	defer res.Body.Close()
	var sb strings.Builder
	_, err := io.Copy(&sb, res.Body)
	return sb.String(), err
}
