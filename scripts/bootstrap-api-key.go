// Command bootstrap-api-key seeds a user, optionally a page, and an API key
// for local development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/portalo/portalo/internal/auth"
	"github.com/portalo/portalo/internal/model"
	"github.com/portalo/portalo/internal/repository"
)

type output struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	Plan      string   `json:"plan"`
	PageID    string   `json:"page_id,omitempty"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	KeyEnv    string   `json:"key_env"`
	Tier      string   `json:"rate_limit_tier"`
	Scopes    []string `json:"scopes"`
	Revoked   []string `json:"revoked_key_ids,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		userID      = flag.String("user-id", "system", "User ID to own the API key")
		email       = flag.String("email", "system@portalo.local", "User email")
		plan        = flag.String("plan", model.PlanPro, "Plan to seed on the user (free,pro,business)")
		pageSlug    = flag.String("page-slug", "", "Also create a page with this slug")
		name        = flag.String("name", "bootstrap", "API key name")
		scopesInput = flag.String("scopes", strings.Join(model.DefaultScopes, ","), "Comma-separated scopes ("+strings.Join(model.ValidScopes, ",")+")")
		keyEnv      = flag.String("env", model.KeyEnvLive, "Key environment: live or test")
		internal    = flag.Bool("internal", false, "Issue an unmetered internal-tier key instead of the plan's tier")
		rotate      = flag.Bool("rotate", false, "Revoke the user's existing keys first")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	scopes, err := model.ParseScopes(*scopesInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if _, ok := model.Plans[*plan]; !ok {
		fmt.Fprintln(os.Stderr, "invalid plan:", *plan)
		os.Exit(1)
	}

	err = ensureUser(ctx, repo, *userID, *email)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err := repo.UpdateUserPlan(ctx, *userID, *plan); err != nil {
		fmt.Fprintln(os.Stderr, "set plan:", err)
		os.Exit(1)
	}

	var pageID string
	if *pageSlug != "" {
		page := &model.Page{
			ID:     uuid.NewString(),
			UserID: *userID,
			Title:  *pageSlug,
			Slug:   *pageSlug,
		}
		if err := repository.NewDirectoryRepository(repo).CreatePage(ctx, page); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		pageID = page.ID
	}

	var revoked []string
	if *rotate {
		revoked, err = revokeAll(ctx, repo, *userID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}

	generated, err := auth.GenerateAPIKey(*keyEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}

	apiKey := &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    *userID,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Env:       generated.Env,
		Scopes:    scopes,
		Name:      *name,
		CreatedAt: time.Now().UTC(),
	}
	if *internal {
		apiKey.RateLimitTier = model.TierInternal
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		fmt.Fprintln(os.Stderr, "create api key:", err)
		os.Exit(1)
	}

	out := output{
		UserID:    *userID,
		Email:     *email,
		Plan:      *plan,
		PageID:    pageID,
		KeyID:     apiKey.ID,
		Key:       generated.Plaintext,
		KeyPrefix: apiKey.KeyPrefix,
		KeyEnv:    apiKey.Env,
		Tier:      apiKey.RateLimitTier,
		Scopes:    scopes,
		Revoked:   revoked,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func revokeAll(ctx context.Context, repo *repository.Repository, userID string) ([]string, error) {
	keys, err := repo.ListActiveAPIKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := repo.RevokeAPIKey(ctx, k.ID); err != nil && !errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ids, fmt.Errorf("revoke key %s: %w", k.ID, err)
		}
		ids = append(ids, k.ID)
	}
	return ids, nil
}

func ensureUser(ctx context.Context, repo *repository.Repository, userID, email string) error {
	existing, err := repo.GetUserByID(ctx, userID)
	if err == nil {
		if existing.Email != email {
			return fmt.Errorf("user %s exists with different email: %s", userID, existing.Email)
		}
		return nil
	}

	byEmail, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		if byEmail.ID != userID {
			return fmt.Errorf("email %s already used by user %s", email, byEmail.ID)
		}
		return nil
	}

	user := &model.User{
		ID:        userID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
