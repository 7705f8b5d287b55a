//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/portalo/portalo/internal/model"
	"github.com/portalo/portalo/internal/testutil"
)

// newIntegrationEnv connects to Postgres, serializes on the advisory lock and
// resets the schema from the embedded migrations.
func newIntegrationEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()

	ctx := context.Background()
	dbURL := testutil.PostgresURL(t)

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(dbURL); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

func seedUser(ctx context.Context, t *testing.T, repo *Repository, plan string) string {
	t.Helper()
	user := testutil.NewTestUser(t, plan)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user.ID
}

func seedPage(ctx context.Context, t *testing.T, dir *DirectoryRepository, userID string) *model.Page {
	t.Helper()
	page := testutil.NewTestPage(t, userID)
	if err := dir.CreatePage(ctx, page); err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	return page
}
