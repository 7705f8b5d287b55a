package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/portalo/portalo/internal/model"
)

var (
	ErrAPIKeyNotFound = errors.New("API key not found")
	ErrInvalidAPIKey  = errors.New("invalid API key")
)

// lastUsedResolution bounds how often a hot key rewrites last_used_at.
const lastUsedResolution = time.Minute

const apiKeyColumns = `id, user_id, key_hash, key_prefix, env, scopes, rate_limit_tier, name, revoked_at, last_used_at, created_at`

// CreateAPIKey stores a dashboard key. Scopes, tier and env must be known
// values; an empty tier is derived from the owner's plan.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if key.Env != model.KeyEnvLive && key.Env != model.KeyEnvTest {
		return fmt.Errorf("%w: env %q", ErrInvalidAPIKey, key.Env)
	}
	for _, s := range key.Scopes {
		if !model.IsValidScope(s) {
			return fmt.Errorf("%w: scope %q", ErrInvalidAPIKey, s)
		}
	}
	if key.RateLimitTier != "" && !model.IsValidTier(key.RateLimitTier) {
		return fmt.Errorf("%w: tier %q", ErrInvalidAPIKey, key.RateLimitTier)
	}

	if key.RateLimitTier == "" {
		var plan string
		err := r.pool.QueryRow(ctx, `SELECT plan FROM users WHERE id = $1`, key.UserID).Scan(&plan)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve key owner plan: %w", err)
		}
		key.RateLimitTier = model.TierForPlan(plan)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, env, scopes, rate_limit_tier, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID,
		key.UserID,
		key.KeyHash,
		key.KeyPrefix,
		key.Env,
		pq.Array(key.Scopes),
		key.RateLimitTier,
		key.Name,
		key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create API key: %w", err)
	}
	return nil
}

// GetAPIKeyByID retrieves an API key by its ID, revoked or not.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	key, err := scanAPIKey(r.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get API key: %w", err)
	}
	return key, nil
}

// GetAPIKeysByPrefix returns the active keys sharing a lookup prefix; the
// caller verifies the secret against each.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	return r.listAPIKeys(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND revoked_at IS NULL`, prefix)
}

// ListActiveAPIKeys returns a user's unrevoked keys, newest first.
func (r *Repository) ListActiveAPIKeys(ctx context.Context, userID string) ([]*model.APIKey, error) {
	return r.listAPIKeys(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE user_id = $1 AND revoked_at IS NULL
		 ORDER BY created_at DESC`, userID)
}

func (r *Repository) listAPIKeys(ctx context.Context, query string, arg any) ([]*model.APIKey, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list API keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.APIKey, error) {
		return scanAPIKey(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan API keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey revokes an active key. Revoking twice is ErrAPIKeyNotFound.
func (r *Repository) RevokeAPIKey(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke API key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed stamps last_used_at, at most once per minute per key
// so dashboards polling every few seconds do not rewrite the row each time.
func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE api_keys SET last_used_at = now()
		WHERE id = $1
		  AND (last_used_at IS NULL OR last_used_at < now() - make_interval(secs => $2))`,
		id, lastUsedResolution.Seconds())
	if err != nil {
		return fmt.Errorf("update API key last used: %w", err)
	}
	return nil
}

// syncAPIKeyTiers moves a user's metered keys onto the tier of plan.
// Internal keys keep their tier.
func syncAPIKeyTiers(ctx context.Context, tx pgx.Tx, userID, plan string) error {
	_, err := tx.Exec(ctx, `
		UPDATE api_keys SET rate_limit_tier = $2
		WHERE user_id = $1 AND revoked_at IS NULL AND rate_limit_tier <> $3`,
		userID, model.TierForPlan(plan), model.TierInternal)
	if err != nil {
		return fmt.Errorf("sync API key tiers: %w", err)
	}
	return nil
}

func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var key model.APIKey
	if err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.Env,
		pq.Array(&key.Scopes),
		&key.RateLimitTier,
		&key.Name,
		&key.RevokedAt,
		&key.LastUsedAt,
		&key.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &key, nil
}
