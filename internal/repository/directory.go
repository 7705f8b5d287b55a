package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/portalo/portalo/internal/model"
)

// Common errors for directory lookups.
var (
	ErrPageNotFound = errors.New("page not found")
)

// DirectoryRepository reads page ownership, link metadata and user plans.
type DirectoryRepository struct {
	repo *Repository
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(repo *Repository) *DirectoryRepository {
	return &DirectoryRepository{repo: repo}
}

// OwnedPage returns the page if it exists and belongs to userID.
// A page owned by someone else is reported as ErrPageNotFound.
func (r *DirectoryRepository) OwnedPage(ctx context.Context, userID, pageID string) (*model.Page, error) {
	query := `
		SELECT id::text, user_id, title, slug, share_token::text
		FROM pages
		WHERE id = $1::uuid AND user_id = $2
	`

	return scanPage(r.repo.pool.QueryRow(ctx, query, pageID, userID))
}

// PageIDsByOwner lists the ids of every page owned by userID.
func (r *DirectoryRepository) PageIDsByOwner(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT id::text
		FROM pages
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.repo.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list page ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan page id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page ids: %w", err)
	}

	return ids, nil
}

// LinksByIDs returns metadata for the given link ids. Unknown ids are absent
// from the result.
func (r *DirectoryRepository) LinksByIDs(ctx context.Context, ids []string) (map[string]model.LinkMeta, error) {
	result := make(map[string]model.LinkMeta, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT id::text, title, url
		FROM links
		WHERE id = ANY($1::text[]::uuid[])
	`

	rows, err := r.repo.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list links by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.LinkMeta
		if err := rows.Scan(&l.ID, &l.Title, &l.URL); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		result[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}

	return result, nil
}

// SetShareToken sets or clears (nil) the analytics share token of a page.
func (r *DirectoryRepository) SetShareToken(ctx context.Context, pageID string, token *string) error {
	query := `
		UPDATE pages
		SET share_token = $2::uuid
		WHERE id = $1::uuid
	`

	result, err := r.repo.pool.Exec(ctx, query, pageID, token)
	if err != nil {
		return fmt.Errorf("set share token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPageNotFound
	}

	return nil
}

// PageByShareToken resolves a public analytics share token.
func (r *DirectoryRepository) PageByShareToken(ctx context.Context, token string) (*model.Page, error) {
	query := `
		SELECT id::text, user_id, title, slug, share_token::text
		FROM pages
		WHERE share_token = $1::uuid
	`

	return scanPage(r.repo.pool.QueryRow(ctx, query, token))
}

// UserPlan returns the plan name of a user.
func (r *DirectoryRepository) UserPlan(ctx context.Context, userID string) (string, error) {
	var plan string
	err := r.repo.pool.QueryRow(ctx, `SELECT plan FROM users WHERE id = $1`, userID).Scan(&plan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("get user plan: %w", err)
	}

	return plan, nil
}

// CreatePage inserts a page. Used by the bootstrap tool and tests.
func (r *DirectoryRepository) CreatePage(ctx context.Context, page *model.Page) error {
	query := `
		INSERT INTO pages (id, user_id, title, slug)
		VALUES ($1::uuid, $2, $3, $4)
	`

	_, err := r.repo.pool.Exec(ctx, query, page.ID, page.UserID, page.Title, page.Slug)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}

	return nil
}

// CreateLink inserts a link under a page. Used by the bootstrap tool and tests.
func (r *DirectoryRepository) CreateLink(ctx context.Context, pageID string, link *model.LinkMeta) error {
	query := `
		INSERT INTO links (id, page_id, title, url)
		VALUES ($1::uuid, $2::uuid, $3, $4)
	`

	_, err := r.repo.pool.Exec(ctx, query, link.ID, pageID, link.Title, link.URL)
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}

	return nil
}

func scanPage(row pgx.Row) (*model.Page, error) {
	var p model.Page
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Slug, &p.ShareToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("scan page: %w", err)
	}

	return &p, nil
}
