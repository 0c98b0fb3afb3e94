// Package webhost exposes the bridge to a browser page that runs the Y8
// JavaScript SDK. The page long-polls for commands and posts the SDK's
// callbacks back over HTTP.
package webhost

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wilhg/y8bridge/pkg/bridge"
	"github.com/wilhg/y8bridge/pkg/protocol"
)

// ErrClosed is returned by the SDK methods once the outbox is closed.
var ErrClosed = errors.New("webhost: outbox closed")

// Command is one instruction for the page: "init" carries the ids for the
// SDK's init, "call" a request to run.
type Command struct {
	Op      string `json:"op"`
	ID      int64  `json:"id,omitempty"`
	Request string `json:"request,omitempty"`
	Data    string `json:"data,omitempty"`
	AppID   string `json:"app_id,omitempty"`
	AdsID   string `json:"ads_id,omitempty"`
}

// Outbox queues commands until the page collects them. It implements bridge.SDK.
type Outbox struct {
	mu     sync.Mutex
	queue  []Command
	notify chan struct{}
	closed bool
}

var _ bridge.SDK = (*Outbox)(nil)

func NewOutbox() *Outbox { return &Outbox{notify: make(chan struct{})} }

func (o *Outbox) Init(appID, adsID string) error {
	return o.push(Command{Op: "init", AppID: appID, AdsID: adsID})
}

func (o *Outbox) Call(id bridge.CallID, kind protocol.RequestKind, payload string) error {
	return o.push(Command{Op: "call", ID: int64(id), Request: string(kind), Data: payload})
}

func (o *Outbox) push(c Command) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.queue = append(o.queue, c)
	close(o.notify)
	o.notify = make(chan struct{})
	return nil
}

// Close rejects further commands and releases waiting pollers.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.notify)
}

// Len returns the number of queued commands.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Drain returns every queued command, waiting up to wait for one to arrive.
// An empty result means the wait elapsed.
func (o *Outbox) Drain(ctx context.Context, wait time.Duration) ([]Command, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		o.mu.Lock()
		if len(o.queue) > 0 {
			out := o.queue
			o.queue = nil
			o.mu.Unlock()
			return out, nil
		}
		if o.closed {
			o.mu.Unlock()
			return nil, ErrClosed
		}
		ch := o.notify
		o.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
