package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Postgres implements Store against the web application's database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger logpkg.Logger
}

// NewPostgres opens a connection pool using a pgx connection string.
func NewPostgres(ctx context.Context, connString string, logger logpkg.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, logger: logger.WithComponent("store")}, nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// Ping verifies database connectivity for the health probe.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

const identityQuery = `
SELECT oauth_access_tokens.id,
       users.account_id,
       oauth_access_tokens.scopes,
       COALESCE(users.chosen_languages, '{}'),
       COALESCE(devices.device_id, '')
FROM oauth_access_tokens
INNER JOIN users ON oauth_access_tokens.resource_owner_id = users.id
LEFT OUTER JOIN devices ON oauth_access_tokens.id = devices.access_token_id
WHERE oauth_access_tokens.token = $1 AND oauth_access_tokens.revoked_at IS NULL
LIMIT 1`

// IdentityFromToken resolves a bearer token against oauth_access_tokens.
func (p *Postgres) IdentityFromToken(ctx context.Context, token string) (*Identity, error) {
	var (
		tokenID   int64
		accountID int64
		scopes    string
		languages []string
		deviceID  string
	)
	err := p.pool.QueryRow(ctx, identityQuery, token).Scan(&tokenID, &accountID, &scopes, &languages, &deviceID)
	if err == pgx.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &Identity{
		AccountID:       itoa(accountID),
		AccessTokenID:   itoa(tokenID),
		Scopes:          strings.Fields(scopes),
		ChosenLanguages: languages,
		DeviceID:        deviceID,
	}, nil
}

// ListOwner returns the owning account of a list.
func (p *Postgres) ListOwner(ctx context.Context, listID string) (string, error) {
	var owner int64
	err := p.pool.QueryRow(ctx, `SELECT account_id FROM lists WHERE id = $1::bigint LIMIT 1`, listID).Scan(&owner)
	if err == pgx.ErrNoRows {
		return "", ErrListNotFound
	}
	if err != nil {
		return "", err
	}
	return itoa(owner), nil
}

const suppressQuery = `
SELECT EXISTS (
  SELECT 1 FROM blocks
  WHERE (account_id = $1::bigint AND target_account_id = ANY($2::bigint[]))
     OR (account_id = $3::bigint AND target_account_id = $1::bigint)
  UNION
  SELECT 1 FROM mutes
  WHERE account_id = $1::bigint AND target_account_id = ANY($2::bigint[])
)`

const suppressWithDomainQuery = `
SELECT EXISTS (
  SELECT 1 FROM blocks
  WHERE (account_id = $1::bigint AND target_account_id = ANY($2::bigint[]))
     OR (account_id = $3::bigint AND target_account_id = $1::bigint)
  UNION
  SELECT 1 FROM mutes
  WHERE account_id = $1::bigint AND target_account_id = ANY($2::bigint[])
  UNION
  SELECT 1 FROM account_domain_blocks
  WHERE account_id = $1::bigint AND domain = $4
)`

// Suppresses runs the combined block/mute/domain-block existence check.
// The author is targetIDs[0]; the reverse-block arm uses it.
func (p *Postgres) Suppresses(ctx context.Context, viewerID string, targetIDs []string, domain string) (bool, error) {
	if len(targetIDs) == 0 {
		return false, nil
	}
	author := targetIDs[0]
	var suppressed bool
	var err error
	if domain == "" {
		err = p.pool.QueryRow(ctx, suppressQuery, viewerID, targetIDs, author).Scan(&suppressed)
	} else {
		err = p.pool.QueryRow(ctx, suppressWithDomainQuery, viewerID, targetIDs, author, domain).Scan(&suppressed)
	}
	if err != nil {
		return false, err
	}
	return suppressed, nil
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
