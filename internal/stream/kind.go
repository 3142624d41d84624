package stream

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies one client-facing stream type.
type Kind int

// Stream kinds. The zero value is invalid.
const (
	KindInvalid Kind = iota
	KindUser
	KindUserNotification
	KindPublic
	KindPublicMedia
	KindPublicAllowLocalOnly
	KindPublicAllowLocalOnlyMedia
	KindPublicLocal
	KindPublicLocalMedia
	KindPublicRemote
	KindPublicRemoteMedia
	KindHashtag
	KindHashtagLocal
	KindDirect
	KindList
)

var kindNames = map[Kind]string{
	KindUser:                      "user",
	KindUserNotification:          "user:notification",
	KindPublic:                    "public",
	KindPublicMedia:               "public:media",
	KindPublicAllowLocalOnly:      "public:allow_local_only",
	KindPublicAllowLocalOnlyMedia: "public:allow_local_only:media",
	KindPublicLocal:               "public:local",
	KindPublicLocalMedia:          "public:local:media",
	KindPublicRemote:              "public:remote",
	KindPublicRemoteMedia:         "public:remote:media",
	KindHashtag:                   "hashtag",
	KindHashtagLocal:              "hashtag:local",
	KindDirect:                    "direct",
	KindList:                      "list",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// KindFromName looks up a stream kind by its client-facing name.
func KindFromName(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// String returns the client-facing stream name.
func (k Kind) String() string { return kindNames[k] }

// IsPublic reports whether the kind is on the fixed allow-list of streams
// that require no OAuth scope. Note public:allow_local_only is not on it.
func (k Kind) IsPublic() bool {
	switch k {
	case KindPublic, KindPublicMedia, KindPublicLocal, KindPublicLocalMedia,
		KindPublicRemote, KindPublicRemoteMedia, KindHashtag, KindHashtagLocal:
		return true
	}
	return false
}

// Params carries the per-stream request parameters.
type Params struct {
	// Tag is required for hashtag streams.
	Tag string
	// List is required for list streams.
	List string
	// AllowLocalOnly opts a logged-in viewer of the public firehose into
	// local-only statuses.
	AllowLocalOnly bool
}

// NormalizeHashtag canonicalizes a tag the same way the publisher does:
// strip a leading '#', NFKC-normalize, lowercase.
func NormalizeHashtag(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	return strings.ToLower(norm.NFKC.String(tag))
}
