// Package main issues API keys for the meshcover write and maintenance
// endpoints. The raw key is printed once; only its bcrypt hash is stored.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/meshcover/internal/config"
	"github.com/kiranshivaraju/meshcover/internal/store"
	"github.com/kiranshivaraju/meshcover/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "mc_"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("apikey failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("apikey", flag.ContinueOnError)
	name := fs.String("name", "", "human readable key name")
	scopes := fs.String("scopes", models.ScopeWrite, "comma separated scopes (write, maintenance)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scopeList, err := parseScopes(*scopes)
	if err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	raw, key, err := issue(ctx, store.NewPostgresStore(pool), *name, scopeList)
	if err != nil {
		return err
	}

	slog.Info("api key created", "id", key.ID, "prefix", key.KeyPrefix, "scopes", key.Scopes)
	_, err = fmt.Fprintln(out, raw)
	return err
}

type keyCreator interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
}

// issue generates a random key, stores its hash and returns the raw key.
func issue(ctx context.Context, s keyCreator, name string, scopes []string) (string, *models.APIKey, error) {
	raw, err := generateKey()
	if err != nil {
		return "", nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:8],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		return "", nil, fmt.Errorf("create api key: %w", err)
	}
	return raw, key, nil
}

func generateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(b), nil
}

func parseScopes(s string) ([]string, error) {
	var scopes []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case models.ScopeWrite, models.ScopeMaintenance:
			scopes = append(scopes, part)
		default:
			return nil, fmt.Errorf("unknown scope %q", part)
		}
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	return scopes, nil
}
