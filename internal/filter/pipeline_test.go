package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/firehose-io/firehose/internal/store"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// fakeStore answers suppression checks from a blocked-account set.
type fakeStore struct {
	blocked     map[string]bool
	blockedDoms map[string]bool
	fail        bool

	lastTargets []string
	lastDomain  string
}

func (f *fakeStore) IdentityFromToken(context.Context, string) (*store.Identity, error) {
	return nil, store.ErrInvalidToken
}

func (f *fakeStore) ListOwner(context.Context, string) (string, error) {
	return "", store.ErrListNotFound
}

func (f *fakeStore) Suppresses(_ context.Context, _ string, targetIDs []string, domain string) (bool, error) {
	f.lastTargets = targetIDs
	f.lastDomain = domain
	if f.fail {
		return false, errors.New("db down")
	}
	for _, id := range targetIDs {
		if f.blocked[id] {
			return true, nil
		}
	}
	return domain != "" && f.blockedDoms[domain], nil
}

func viewer(langs ...string) *store.Identity {
	return &store.Identity{AccountID: "1", ChosenLanguages: langs}
}

func status(t *testing.T, raw string) *Status {
	t.Helper()
	s, err := ParseStatus([]byte(raw))
	if err != nil {
		t.Fatalf("parse status: %v", err)
	}
	return s
}

func TestAllowAnonymousSkipsAllChecks(t *testing.T) {
	st := &fakeStore{fail: true} // would fail closed if consulted
	p := New(st, logpkg.NewNopLogger())
	s := status(t, `{"id":"1","language":"fr","account":{"id":"2","acct":"bob"}}`)
	if !p.Allow(context.Background(), nil, s) {
		t.Fatalf("anonymous viewer must receive the unfiltered firehose")
	}
	if st.lastTargets != nil {
		t.Fatalf("store must not be consulted for anonymous viewers")
	}
}

func TestAllowLanguagePreference(t *testing.T) {
	p := New(&fakeStore{}, logpkg.NewNopLogger())
	ctx := context.Background()

	fr := status(t, `{"id":"1","language":"fr","account":{"id":"2","acct":"bob"}}`)
	if p.Allow(ctx, viewer("en"), fr) {
		t.Fatalf("fr status must be dropped for an en-only viewer")
	}

	nullLang := status(t, `{"id":"2","language":null,"account":{"id":"2","acct":"bob"}}`)
	if !p.Allow(ctx, viewer("en"), nullLang) {
		t.Fatalf("null-language status must be delivered")
	}

	en := status(t, `{"id":"3","language":"en","account":{"id":"2","acct":"bob"}}`)
	if !p.Allow(ctx, viewer("en"), en) {
		t.Fatalf("matching language must be delivered")
	}
}

func TestAllowBlockedAuthor(t *testing.T) {
	st := &fakeStore{blocked: map[string]bool{"2": true}}
	p := New(st, logpkg.NewNopLogger())
	ctx := context.Background()

	blocked := status(t, `{"id":"1","account":{"id":"2","acct":"bob"}}`)
	if p.Allow(ctx, viewer(), blocked) {
		t.Fatalf("status by a blocked author must be dropped")
	}

	fine := status(t, `{"id":"2","account":{"id":"3","acct":"carol"}}`)
	if !p.Allow(ctx, viewer(), fine) {
		t.Fatalf("status by a non-blocked author must be delivered")
	}
}

func TestAllowChecksMentionsAndBoost(t *testing.T) {
	st := &fakeStore{}
	p := New(st, logpkg.NewNopLogger())
	s := status(t, `{"id":"1","account":{"id":"2","acct":"bob@remote.example"},
		"mentions":[{"id":"5"},{"id":"6"}],
		"reblog":{"account":{"id":"9"}}}`)
	p.Allow(context.Background(), viewer(), s)

	want := []string{"2", "5", "6", "9"}
	if len(st.lastTargets) != len(want) {
		t.Fatalf("targets: want %v got %v", want, st.lastTargets)
	}
	for i := range want {
		if st.lastTargets[i] != want[i] {
			t.Fatalf("targets: want %v got %v", want, st.lastTargets)
		}
	}
	if st.lastDomain != "remote.example" {
		t.Fatalf("domain: want remote.example got %q", st.lastDomain)
	}
}

func TestAllowLocalAuthorSkipsDomainCheck(t *testing.T) {
	st := &fakeStore{blockedDoms: map[string]bool{"": true}}
	p := New(st, logpkg.NewNopLogger())
	s := status(t, `{"id":"1","account":{"id":"2","acct":"bob"}}`)
	if !p.Allow(context.Background(), viewer(), s) {
		t.Fatalf("local author must not trip a domain block")
	}
	if st.lastDomain != "" {
		t.Fatalf("expected empty domain for local author, got %q", st.lastDomain)
	}
}

func TestAllowFailsClosedOnStoreError(t *testing.T) {
	p := New(&fakeStore{fail: true}, logpkg.NewNopLogger())
	s := status(t, `{"id":"1","account":{"id":"2","acct":"bob"}}`)
	if p.Allow(context.Background(), viewer(), s) {
		t.Fatalf("store failure must drop the message, not deliver it")
	}
}
