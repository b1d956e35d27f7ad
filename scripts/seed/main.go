// Command seed applies the schema and loads development fixtures.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	"github.com/calibra-qa/calibra/internal/platform/db"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(context.Background(), logger); err != nil {
		logger.Error("seed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed complete")
}

func run(ctx context.Context, logger *slog.Logger) error {
	dsn := os.Getenv("CALIBRA_DATABASE_URL")
	if dsn == "" {
		return fmt.Errorf("CALIBRA_DATABASE_URL is required")
	}

	pool, err := db.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	schema, err := os.ReadFile(filepath.Join("scripts", "seed", "schema.sql"))
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("schema applied")

	users := []struct {
		email, name, role, password string
	}{
		{"admin@calibra.local", "Platform Admin", "Admin", "admin-dev-password"},
		{"manager@calibra.local", "QA Manager", "Manager", "manager-dev-password"},
		{"qa@calibra.local", "Quality Analyst", "Quality Analyst", "qa-dev-password"},
		{"auditor@calibra.local", "QA Auditor", "Auditor", "auditor-dev-password"},
		{"agent@calibra.local", "Support Agent", "Agent", "agent-dev-password"},
	}
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `INSERT INTO users (email, full_name, role, password_hash) VALUES ($1, $2, $3, $4) ON CONFLICT (email) DO NOTHING`,
			u.email, u.name, u.role, string(hash))
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.email, err)
		}
	}
	logger.Info("users seeded", slog.Int("count", len(users)))

	rules := []struct {
		resource, ruleType string
		roles              []string
		minLevel           string
	}{
		{"dashboard", "page", []string{"*"}, ""},
		{"audits", "page", []string{"*"}, ""},
		{"audits", "api_endpoint", []string{"*"}, ""},
		{"scorecards", "api_endpoint", []string{"Auditor", "Quality Analyst", "Admin"}, ""},
		{"audit-schedules", "api_endpoint", nil, "2"},
		{"user-management", "page", nil, "3"},
		{"user-management", "api_endpoint", nil, "3"},
		{"reports-export", "feature", []string{"Manager", "Admin"}, ""},
	}
	for _, r := range rules {
		_, err := pool.Exec(ctx, `INSERT INTO access_rules (resource_name, rule_type, allowed_roles, min_role_level) VALUES ($1, $2, $3, NULLIF($4, '')) ON CONFLICT (resource_name, rule_type) DO NOTHING`,
			r.resource, r.ruleType, r.roles, r.minLevel)
		if err != nil {
			return fmt.Errorf("seed rule %s/%s: %w", r.resource, r.ruleType, err)
		}
	}
	logger.Info("access rules seeded", slog.Int("count", len(rules)))

	_, err = pool.Exec(ctx, `INSERT INTO scorecards (name, description, max_score) VALUES ('Standard Support Call', 'Default grading template for support calls', 100) ON CONFLICT (name) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("seed scorecards: %w", err)
	}

	return nil
}
