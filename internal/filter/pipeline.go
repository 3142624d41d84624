package filter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/firehose-io/firehose/internal/store"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Status is the slice of an update payload the pipeline inspects.
type Status struct {
	ID        string  `json:"id"`
	Language  *string `json:"language"`
	LocalOnly bool    `json:"local_only"`
	Account   struct {
		ID   string `json:"id"`
		Acct string `json:"acct"`
	} `json:"account"`
	Mentions []struct {
		ID string `json:"id"`
	} `json:"mentions"`
	Reblog *struct {
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
	} `json:"reblog"`
}

// ParseStatus decodes the status fields out of a raw update payload.
func ParseStatus(payload json.RawMessage) (*Status, error) {
	var s Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TargetAccountIDs returns the author first, then mentioned accounts and,
// for a boost, the boosted author.
func (s *Status) TargetAccountIDs() []string {
	ids := make([]string, 0, len(s.Mentions)+2)
	ids = append(ids, s.Account.ID)
	for _, m := range s.Mentions {
		ids = append(ids, m.ID)
	}
	if s.Reblog != nil && s.Reblog.Account.ID != "" {
		ids = append(ids, s.Reblog.Account.ID)
	}
	return ids
}

// AuthorDomain returns the author's domain, or "" for a local author.
func (s *Status) AuthorDomain() string {
	if _, domain, ok := strings.Cut(s.Account.Acct, "@"); ok {
		return domain
	}
	return ""
}

// Pipeline runs the per-viewer suppression checks.
type Pipeline struct {
	store  store.Store
	logger logpkg.Logger
}

// New creates a Pipeline.
func New(st store.Store, logger logpkg.Logger) *Pipeline {
	return &Pipeline{store: st, logger: logger.WithComponent("filter")}
}

// Allow reports whether the status may be delivered to the viewer.
//
// Anonymous viewers see the unfiltered firehose. For authenticated viewers
// the language preference is checked first (no external lookup), then one
// store round trip covers blocks, mutes, and the author's domain.
func (p *Pipeline) Allow(ctx context.Context, viewer *store.Identity, status *Status) bool {
	if viewer == nil {
		return true
	}
	if len(viewer.ChosenLanguages) > 0 && status.Language != nil {
		if !contains(viewer.ChosenLanguages, *status.Language) {
			return false
		}
	}
	suppressed, err := p.store.Suppresses(ctx, viewer.AccountID, status.TargetAccountIDs(), status.AuthorDomain())
	if err != nil {
		p.logger.Error("suppression check failed, dropping message",
			logpkg.Str("status", status.ID),
			logpkg.Str("viewer", viewer.AccountID),
			logpkg.Err(err))
		return false
	}
	return !suppressed
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
