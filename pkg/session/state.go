// Package session keeps the most recent authorisation snapshot delivered by the
// SDK and exposes read-only views of the player profile.
package session

import (
	"sync/atomic"

	"golang.org/x/text/language"

	"github.com/wilhg/y8bridge/pkg/protocol"
)

// State holds the current snapshot. Install replaces it wholesale; readers
// never observe a partially updated snapshot.
type State struct {
	snap     atomic.Pointer[protocol.Authorisation]
	hostLang language.Tag
}

// New returns an empty state. hostLang is reported by LanguageTag when the
// snapshot carries no usable locale.
func New(hostLang language.Tag) *State {
	return &State{hostLang: hostLang}
}

// Install stores a as the current snapshot. A nil snapshot clears the state.
func (s *State) Install(a *protocol.Authorisation) { s.snap.Store(a) }

// Snapshot returns the current snapshot or nil.
func (s *State) Snapshot() *protocol.Authorisation { return s.snap.Load() }

func (s *State) details() *protocol.Details {
	a := s.snap.Load()
	if a == nil || a.AuthResponse == nil {
		return nil
	}
	return a.AuthResponse.Details
}

func (s *State) IsLoggedIn() bool {
	d := s.details()
	return d != nil && d.PID != ""
}

func (s *State) SessionToken() string {
	a := s.snap.Load()
	if a == nil || a.AuthResponse == nil {
		return ""
	}
	return a.AuthResponse.AccessToken
}

func (s *State) PID() string         { return s.field(func(d *protocol.Details) string { return d.PID }) }
func (s *State) FirstName() string   { return s.field(func(d *protocol.Details) string { return d.FirstName }) }
func (s *State) Nickname() string    { return s.field(func(d *protocol.Details) string { return d.Nickname }) }
func (s *State) DateOfBirth() string { return s.field(func(d *protocol.Details) string { return d.DOB }) }
func (s *State) Gender() string      { return s.field(func(d *protocol.Details) string { return d.Gender }) }
func (s *State) Language() string    { return s.field(func(d *protocol.Details) string { return d.Language }) }
func (s *State) Locale() string      { return s.field(func(d *protocol.Details) string { return d.Locale }) }

func (s *State) field(get func(*protocol.Details) string) string {
	d := s.details()
	if d == nil {
		return ""
	}
	return get(d)
}

// LanguageTag parses the player's locale, then language, falling back to the
// host language.
func (s *State) LanguageTag() language.Tag {
	for _, v := range []string{s.Locale(), s.Language()} {
		if v == "" {
			continue
		}
		if tag, err := language.Parse(v); err == nil {
			return tag
		}
	}
	return s.hostLang
}

// Profile is a flat copy of the logged-in player's details.
type Profile struct {
	LoggedIn    bool   `json:"logged_in"`
	PID         string `json:"pid,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	DateOfBirth string `json:"dob,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Language    string `json:"language,omitempty"`
	Locale      string `json:"locale,omitempty"`
	Tag         string `json:"language_tag"`
	Level       int    `json:"level,omitempty"`
}

// Profile reads every field from one snapshot.
func (s *State) Profile() Profile {
	p := Profile{}
	a := s.snap.Load()
	if a != nil && a.AuthResponse != nil && a.AuthResponse.Details != nil {
		d := a.AuthResponse.Details
		p = Profile{
			LoggedIn:    d.PID != "",
			PID:         d.PID,
			Nickname:    d.Nickname,
			FirstName:   d.FirstName,
			DateOfBirth: d.DOB,
			Gender:      d.Gender,
			Language:    d.Language,
			Locale:      d.Locale,
			Level:       d.Level,
		}
	}
	p.Tag = s.LanguageTag().String()
	return p
}
