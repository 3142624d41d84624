package stream

import (
	"context"

	"github.com/firehose-io/firehose/internal/store"
)

// Resolution is the outcome of resolving one stream request: the upstream
// channels to subscribe, the wire-visible stream name, and the delivery
// options attached to the stream kind.
type Resolution struct {
	// ChannelIDs are the upstream channels backing this stream.
	ChannelIDs []string
	// StreamName is the name echoed in WebSocket frames: the stream kind
	// plus, for list and hashtag streams, the request parameter.
	StreamName []string
	// NeedsFiltering marks channels whose update events pass through the
	// block/mute/language pipeline before delivery.
	NeedsFiltering bool
	// AllowLocalOnly permits local-only statuses through to this stream.
	AllowLocalOnly bool
}

// Resolver turns stream kinds into channel ids, consulting the collaborator
// store for ownership checks.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver.
func NewResolver(st store.Store) *Resolver { return &Resolver{store: st} }

// CheckScopes enforces the OAuth scope rules for a stream kind: the public
// allow-list needs none, the notification stream needs read or
// read:notifications, everything else read or read:statuses.
func CheckScopes(kind Kind, identity *store.Identity) error {
	if kind.IsPublic() {
		return nil
	}
	required := []string{"read"}
	if kind == KindUserNotification {
		required = append(required, "read:notifications")
	} else {
		required = append(required, "read:statuses")
	}
	if identity.HasScope(required...) {
		return nil
	}
	return &AuthorizationError{Reason: "access token does not cover required scopes"}
}

// Resolve maps a stream kind plus parameters to upstream channel ids. It is
// called on every (re)subscribe and never caches: authorization reflects
// scopes and ownership as of subscribe time.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, identity *store.Identity, params Params) (Resolution, error) {
	switch kind {
	case KindUser:
		if identity == nil {
			return Resolution{}, &AuthorizationError{Reason: "stream requires authentication"}
		}
		channels := []string{"timeline:" + identity.AccountID}
		if identity.HasScope("crypto") && identity.DeviceID != "" {
			channels = append(channels, "timeline:"+identity.AccountID+":"+identity.DeviceID)
		}
		if identity.HasScope("read", "read:notifications") {
			channels = append(channels, "timeline:"+identity.AccountID+":notifications")
		}
		return Resolution{
			ChannelIDs:     channels,
			StreamName:     []string{kind.String()},
			AllowLocalOnly: true,
		}, nil

	case KindUserNotification:
		if identity == nil {
			return Resolution{}, &AuthorizationError{Reason: "stream requires authentication"}
		}
		return Resolution{
			ChannelIDs:     []string{"timeline:" + identity.AccountID + ":notifications"},
			StreamName:     []string{kind.String()},
			AllowLocalOnly: true,
		}, nil

	case KindPublic:
		return publicResolution(kind, "timeline:public", params.AllowLocalOnly), nil
	case KindPublicMedia:
		return publicResolution(kind, "timeline:public:media", params.AllowLocalOnly), nil
	case KindPublicAllowLocalOnly:
		return publicResolution(kind, "timeline:public", true), nil
	case KindPublicAllowLocalOnlyMedia:
		return publicResolution(kind, "timeline:public:media", true), nil
	case KindPublicLocal:
		return publicResolution(kind, "timeline:public:local", true), nil
	case KindPublicLocalMedia:
		return publicResolution(kind, "timeline:public:local:media", true), nil
	case KindPublicRemote:
		return publicResolution(kind, "timeline:public:remote", false), nil
	case KindPublicRemoteMedia:
		return publicResolution(kind, "timeline:public:remote:media", false), nil

	case KindHashtag, KindHashtagLocal:
		tag := NormalizeHashtag(params.Tag)
		if tag == "" {
			return Resolution{}, &ValidationError{Reason: "no tag for stream provided"}
		}
		channel := "timeline:hashtag:" + tag
		if kind == KindHashtagLocal {
			channel += ":local"
		}
		return Resolution{
			ChannelIDs:     []string{channel},
			StreamName:     []string{kind.String(), params.Tag},
			NeedsFiltering: true,
			AllowLocalOnly: true,
		}, nil

	case KindDirect:
		if identity == nil {
			return Resolution{}, &AuthorizationError{Reason: "stream requires authentication"}
		}
		return Resolution{
			ChannelIDs:     []string{"timeline:direct:" + identity.AccountID},
			StreamName:     []string{kind.String()},
			AllowLocalOnly: true,
		}, nil

	case KindList:
		if params.List == "" {
			return Resolution{}, &ValidationError{Reason: "no list id for stream provided"}
		}
		owner, err := r.store.ListOwner(ctx, params.List)
		if err != nil || identity == nil || owner != identity.AccountID {
			return Resolution{}, &AuthorizationError{Reason: "not authorized to stream this list"}
		}
		return Resolution{
			ChannelIDs:     []string{"timeline:list:" + params.List},
			StreamName:     []string{kind.String(), params.List},
			AllowLocalOnly: true,
		}, nil

	default:
		return Resolution{}, &UnknownStreamError{Name: kind.String()}
	}
}

func publicResolution(kind Kind, channel string, allowLocalOnly bool) Resolution {
	return Resolution{
		ChannelIDs:     []string{channel},
		StreamName:     []string{kind.String()},
		NeedsFiltering: true,
		AllowLocalOnly: allowLocalOnly,
	}
}
