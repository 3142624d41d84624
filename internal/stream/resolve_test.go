package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/firehose-io/firehose/internal/store"
)

// fakeStore serves list-ownership lookups from a map.
type fakeStore struct {
	listOwners map[string]string
	failLists  bool
}

func (f *fakeStore) IdentityFromToken(context.Context, string) (*store.Identity, error) {
	return nil, store.ErrInvalidToken
}

func (f *fakeStore) ListOwner(_ context.Context, listID string) (string, error) {
	if f.failLists {
		return "", errors.New("db down")
	}
	owner, ok := f.listOwners[listID]
	if !ok {
		return "", store.ErrListNotFound
	}
	return owner, nil
}

func (f *fakeStore) Suppresses(context.Context, string, []string, string) (bool, error) {
	return false, nil
}

func identityWith(scopes ...string) *store.Identity {
	return &store.Identity{AccountID: "42", AccessTokenID: "7", Scopes: scopes}
}

func TestResolveUserStreamChannels(t *testing.T) {
	r := NewResolver(&fakeStore{})
	ctx := context.Background()

	ident := identityWith("read")
	ident.DeviceID = "dev-1"
	res, err := r.Resolve(ctx, KindUser, ident, Params{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"timeline:42", "timeline:42:notifications"}
	if len(res.ChannelIDs) != len(want) {
		t.Fatalf("channels: want %v got %v", want, res.ChannelIDs)
	}
	for i := range want {
		if res.ChannelIDs[i] != want[i] {
			t.Fatalf("channels: want %v got %v", want, res.ChannelIDs)
		}
	}
	if res.NeedsFiltering {
		t.Fatalf("user stream must not need filtering")
	}
}

func TestResolveUserStreamWithDeviceChannel(t *testing.T) {
	r := NewResolver(&fakeStore{})
	ident := identityWith("read", "crypto")
	ident.DeviceID = "dev-1"
	res, err := r.Resolve(context.Background(), KindUser, ident, Params{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	found := false
	for _, ch := range res.ChannelIDs {
		if ch == "timeline:42:dev-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected device channel, got %v", res.ChannelIDs)
	}
}

func TestResolvePublicNeedsFiltering(t *testing.T) {
	r := NewResolver(&fakeStore{})
	res, err := r.Resolve(context.Background(), KindPublic, nil, Params{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.ChannelIDs[0] != "timeline:public" || !res.NeedsFiltering {
		t.Fatalf("unexpected resolution %+v", res)
	}
}

func TestResolveHashtagRequiresTag(t *testing.T) {
	r := NewResolver(&fakeStore{})
	// Tags that normalize to nothing must be rejected too, not resolve to
	// the degenerate "timeline:hashtag:" channel.
	for _, tag := range []string{"", " ", "#", " # "} {
		_, err := r.Resolve(context.Background(), KindHashtag, nil, Params{Tag: tag})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("tag %q: want ValidationError, got %v", tag, err)
		}
	}
}

func TestResolveHashtagNormalizesTag(t *testing.T) {
	r := NewResolver(&fakeStore{})
	res, err := r.Resolve(context.Background(), KindHashtagLocal, nil, Params{Tag: "#GoLang"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.ChannelIDs[0] != "timeline:hashtag:golang:local" {
		t.Fatalf("unexpected channel %q", res.ChannelIDs[0])
	}
	if len(res.StreamName) != 2 || res.StreamName[1] != "#GoLang" {
		t.Fatalf("stream name should echo the raw tag, got %v", res.StreamName)
	}
}

func TestResolveListOwnership(t *testing.T) {
	r := NewResolver(&fakeStore{listOwners: map[string]string{"7": "42", "8": "99"}})
	ctx := context.Background()
	ident := identityWith("read")

	res, err := r.Resolve(ctx, KindList, ident, Params{List: "7"})
	if err != nil {
		t.Fatalf("own list: %v", err)
	}
	if res.ChannelIDs[0] != "timeline:list:7" || res.NeedsFiltering {
		t.Fatalf("unexpected resolution %+v", res)
	}

	var aerr *AuthorizationError
	if _, err := r.Resolve(ctx, KindList, ident, Params{List: "8"}); !errors.As(err, &aerr) {
		t.Fatalf("foreign list: want AuthorizationError, got %v", err)
	}
	if _, err := r.Resolve(ctx, KindList, ident, Params{List: "404"}); !errors.As(err, &aerr) {
		t.Fatalf("unknown list: want AuthorizationError, got %v", err)
	}
}

func TestResolveListFailsClosedOnStoreError(t *testing.T) {
	r := NewResolver(&fakeStore{failLists: true})
	var aerr *AuthorizationError
	if _, err := r.Resolve(context.Background(), KindList, identityWith("read"), Params{List: "7"}); !errors.As(err, &aerr) {
		t.Fatalf("want AuthorizationError on store failure, got %v", err)
	}
}

func TestCheckScopes(t *testing.T) {
	cases := []struct {
		name     string
		kind     Kind
		identity *store.Identity
		allowed  bool
	}{
		{"public anonymous", KindPublic, nil, true},
		{"hashtag anonymous", KindHashtag, nil, true},
		{"user anonymous", KindUser, nil, false},
		{"user with read", KindUser, identityWith("read"), true},
		{"user with read:statuses", KindUser, identityWith("read:statuses"), true},
		{"user with write only", KindUser, identityWith("write"), false},
		{"notifications with read:notifications", KindUserNotification, identityWith("read:notifications"), true},
		{"notifications with read:statuses", KindUserNotification, identityWith("read:statuses"), false},
		{"allow_local_only needs scope", KindPublicAllowLocalOnly, nil, false},
		{"list with read", KindList, identityWith("read"), true},
	}
	for _, tc := range cases {
		err := CheckScopes(tc.kind, tc.identity)
		if tc.allowed && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.allowed && err == nil {
			t.Fatalf("%s: expected scope rejection", tc.name)
		}
	}
}

func TestKindRoundTrip(t *testing.T) {
	for k, name := range kindNames {
		got, ok := KindFromName(name)
		if !ok || got != k {
			t.Fatalf("round trip failed for %q", name)
		}
	}
	if _, ok := KindFromName("nope"); ok {
		t.Fatalf("unknown name must not resolve")
	}
}
