package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portalo/portalo/internal/model"
	"github.com/portalo/portalo/migrations"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// PostgresURL returns a database URL for integration tests. DATABASE_URL wins
// when set; otherwise a single postgres container is started for the test
// binary. Tests are skipped under -short or when no container runtime exists.
func PostgresURL(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	containerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		provider, err := testcontainers.ProviderDocker.GetProvider()
		if err != nil {
			containerErr = fmt.Errorf("container runtime unavailable: %w", err)
			return
		}
		defer provider.Close()

		// The container is reaped by testcontainers' ryuk sidecar when the
		// test binary exits.
		pg, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("portalo_test"),
			postgres.WithUsername("portalo"),
			postgres.WithPassword("portalo_test_password"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			containerErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		containerURL, containerErr = pg.ConnectionString(ctx, "sslmode=disable")
	})

	if containerErr != nil {
		t.Skipf("postgres unavailable: %v", containerErr)
	}
	return containerURL
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls every embedded migration down and back up, leaving an
// empty, current schema.
func ResetSchema(databaseURL string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user on the given plan.
func NewTestUser(t testing.TB, plan string) *model.User {
	t.Helper()
	id := UniqueID("user")
	return &model.User{
		ID:        id,
		Email:     id + "@example.com",
		Plan:      plan,
		CreatedAt: time.Now().UTC(),
	}
}

// NewTestPage creates a test page owned by userID.
func NewTestPage(t testing.TB, userID string) *model.Page {
	t.Helper()
	id := uuid.NewString()
	return &model.Page{
		ID:     id,
		UserID: userID,
		Title:  "Test Page",
		Slug:   "page-" + id[:8],
	}
}

// NewTestAPIKey creates a live dashboard key with a unique 8-char prefix.
// RateLimitTier is left empty so CreateAPIKey derives it from the owner's plan.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	id := uuid.NewString()
	return &model.APIKey{
		ID:        "key-" + id,
		UserID:    userID,
		KeyHash:   "hash-" + id,
		KeyPrefix: strings.ReplaceAll(id, "-", "")[:8],
		Env:       model.KeyEnvLive,
		Scopes:    slices.Clone(model.DefaultScopes),
		Name:      "Test Key",
		CreatedAt: time.Now().UTC(),
	}
}

// NewTestAPIKeyWithTier creates a test API key with an explicit tier.
func NewTestAPIKeyWithTier(t testing.TB, userID string, tier string) *model.APIKey {
	t.Helper()
	key := NewTestAPIKey(t, userID)
	key.RateLimitTier = tier
	return key
}

// NewTestEvent creates an event of the given type for pageID.
func NewTestEvent(pageID string, eventType model.EventType) *model.NewEvent {
	return &model.NewEvent{
		PageID:    pageID,
		EventType: eventType,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
