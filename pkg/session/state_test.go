package session

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"

	"github.com/wilhg/y8bridge/pkg/protocol"
)

func snapshot(pid, nick, locale string) *protocol.Authorisation {
	return &protocol.Authorisation{
		Status: "ok",
		AuthResponse: &protocol.AuthResponse{
			AccessToken: "tok-" + pid,
			Details:     &protocol.Details{PID: pid, Nickname: nick, Locale: locale, Level: 3},
		},
	}
}

func TestEmptyStateReadsBlank(t *testing.T) {
	s := New(language.AmericanEnglish)
	if s.IsLoggedIn() || s.PID() != "" || s.SessionToken() != "" || s.Nickname() != "" {
		t.Fatal("empty state should read as logged out with blank fields")
	}
	if s.LanguageTag() != language.AmericanEnglish {
		t.Fatalf("tag=%v", s.LanguageTag())
	}
	s.Install(&protocol.Authorisation{Status: "not_linked"})
	if s.IsLoggedIn() || s.Gender() != "" {
		t.Fatal("snapshot without details is not a login")
	}
}

func TestInstallReplacesWholesale(t *testing.T) {
	s := New(language.English)
	s.Install(snapshot("p1", "alice", "fr-FR"))
	if !s.IsLoggedIn() || s.PID() != "p1" || s.SessionToken() != "tok-p1" {
		t.Fatalf("unexpected state: pid=%q token=%q", s.PID(), s.SessionToken())
	}
	s.Install(snapshot("", "", ""))
	if s.IsLoggedIn() || s.Nickname() != "" {
		t.Fatal("second snapshot must fully replace the first")
	}
}

func TestProfileAndLanguageTag(t *testing.T) {
	s := New(language.English)
	s.Install(snapshot("p2", "bob", "pt-BR"))
	want := Profile{LoggedIn: true, PID: "p2", Nickname: "bob", Locale: "pt-BR", Tag: "pt-BR", Level: 3}
	if diff := cmp.Diff(want, s.Profile()); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}

	s.Install(snapshot("p3", "eve", "not a locale!"))
	if s.LanguageTag() != language.English {
		t.Fatalf("bad locale should fall back to host, got %v", s.LanguageTag())
	}
}
