// Package bridgetest provides an in-memory SDK for tests of code built on the bridge.
package bridgetest

import (
	"sync"

	"github.com/wilhg/y8bridge/pkg/bridge"
	"github.com/wilhg/y8bridge/pkg/protocol"
)

// Call is one request seen by the SDK.
type Call struct {
	ID      bridge.CallID
	Kind    protocol.RequestKind
	Payload string
}

// SDK records every Init and Call. Hooks run synchronously inside the SDK
// methods, so a hook may deliver a response before Call returns.
type SDK struct {
	// OnInit runs on Init. Typically it calls Bridge.Ready.
	OnInit func(appID, adsID string)
	// OnCall runs on Call. Typically it answers with Bridge.DeliverResponse.
	OnCall func(c Call)
	// Err, when set, is returned from Call.
	Err error

	// Calls receives every call; it is buffered and drops when full.
	Calls chan Call

	mu    sync.Mutex
	inits int
	seen  []Call
	ids   [2]string
}

// NewSDK returns a fake SDK with a buffered Calls channel.
func NewSDK() *SDK { return &SDK{Calls: make(chan Call, 64)} }

func (s *SDK) Init(appID, adsID string) error {
	s.mu.Lock()
	s.inits++
	s.ids = [2]string{appID, adsID}
	hook := s.OnInit
	s.mu.Unlock()
	if hook != nil {
		hook(appID, adsID)
	}
	return nil
}

func (s *SDK) Call(id bridge.CallID, kind protocol.RequestKind, payload string) error {
	c := Call{ID: id, Kind: kind, Payload: payload}
	s.mu.Lock()
	s.seen = append(s.seen, c)
	hook, err := s.OnCall, s.Err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case s.Calls <- c:
	default:
	}
	if hook != nil {
		hook(c)
	}
	return nil
}

// Inits returns how many times Init ran.
func (s *SDK) Inits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

// InitIDs returns the app and ads ids passed to the last Init.
func (s *SDK) InitIDs() (appID, adsID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[0], s.ids[1]
}

// Seen returns a copy of every call made so far.
func (s *SDK) Seen() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.seen...)
}
