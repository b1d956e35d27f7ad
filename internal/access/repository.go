package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calibra-qa/calibra/internal/shared"
)

// Repository provides PostgreSQL backed rule persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindIndividualRule fetches the active override for the exact tuple.
func (r *Repository) FindIndividualRule(ctx context.Context, email, resource string, ruleType RuleType, accessType AccessType) (*IndividualRule, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_email, resource_name, rule_type, access_type, is_active FROM individual_access_rules WHERE user_email = $1 AND resource_name = $2 AND rule_type = $3 AND access_type = $4 AND is_active = TRUE LIMIT 1`, email, resource, string(ruleType), string(accessType))
	var rule IndividualRule
	if err := row.Scan(&rule.ID, &rule.UserEmail, &rule.ResourceName, &rule.RuleType, &rule.AccessType, &rule.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// FindRoleRule fetches the single active role-based rule for the pair.
func (r *Repository) FindRoleRule(ctx context.Context, resource string, ruleType RuleType) (*AccessRule, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, resource_name, rule_type, allowed_roles, COALESCE(min_role_level, ''), is_active FROM access_rules WHERE resource_name = $1 AND rule_type = $2 AND is_active = TRUE LIMIT 1`, resource, string(ruleType))
	var rule AccessRule
	if err := row.Scan(&rule.ID, &rule.ResourceName, &rule.RuleType, &rule.AllowedRoles, &rule.MinRoleLevel, &rule.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// ListRuleResources returns distinct (resource, type) pairs with active role rules.
func (r *Repository) ListRuleResources(ctx context.Context) ([]Resource, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT resource_name, rule_type FROM access_rules WHERE is_active = TRUE ORDER BY resource_name, rule_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResources(rows)
}

// ListUserRuleResources returns distinct (resource, type) pairs with active
// individual rules for the user.
func (r *Repository) ListUserRuleResources(ctx context.Context, email string) ([]Resource, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT resource_name, rule_type FROM individual_access_rules WHERE user_email = $1 AND is_active = TRUE ORDER BY resource_name, rule_type`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResources(rows)
}

// ListRoleRules returns all role-based rules for management listings.
func (r *Repository) ListRoleRules(ctx context.Context) ([]AccessRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, resource_name, rule_type, allowed_roles, COALESCE(min_role_level, ''), is_active FROM access_rules ORDER BY resource_name, rule_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []AccessRule
	for rows.Next() {
		var rule AccessRule
		if err := rows.Scan(&rule.ID, &rule.ResourceName, &rule.RuleType, &rule.AllowedRoles, &rule.MinRoleLevel, &rule.IsActive); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CreateRoleRule inserts a role-based rule. The unique index on
// (resource_name, rule_type) keeps a single consultable rule per pair.
func (r *Repository) CreateRoleRule(ctx context.Context, rule AccessRule) (AccessRule, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO access_rules (resource_name, rule_type, allowed_roles, min_role_level, is_active) VALUES ($1, $2, $3, NULLIF($4, ''), $5) RETURNING id`, rule.ResourceName, string(rule.RuleType), rule.AllowedRoles, rule.MinRoleLevel, rule.IsActive)
	if err := row.Scan(&rule.ID); err != nil {
		return AccessRule{}, mapPGError(err)
	}
	return rule, nil
}

// UpdateRoleRule updates a role-based rule by ID.
func (r *Repository) UpdateRoleRule(ctx context.Context, rule AccessRule) (AccessRule, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE access_rules SET resource_name = $2, rule_type = $3, allowed_roles = $4, min_role_level = NULLIF($5, ''), is_active = $6, updated_at = NOW() WHERE id = $1`, rule.ID, rule.ResourceName, string(rule.RuleType), rule.AllowedRoles, rule.MinRoleLevel, rule.IsActive)
	if err != nil {
		return AccessRule{}, mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return AccessRule{}, shared.ErrNotFound
	}
	return rule, nil
}

// DeleteRoleRule removes a role-based rule by ID.
func (r *Repository) DeleteRoleRule(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListIndividualRules returns a user's individual rules, or all when email is empty.
func (r *Repository) ListIndividualRules(ctx context.Context, email string) ([]IndividualRule, error) {
	query := `SELECT id, user_email, resource_name, rule_type, access_type, is_active FROM individual_access_rules`
	args := []any{}
	if email != "" {
		query += ` WHERE user_email = $1`
		args = append(args, email)
	}
	query += ` ORDER BY user_email, resource_name, rule_type`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []IndividualRule
	for rows.Next() {
		var rule IndividualRule
		if err := rows.Scan(&rule.ID, &rule.UserEmail, &rule.ResourceName, &rule.RuleType, &rule.AccessType, &rule.IsActive); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CreateIndividualRule inserts a per-user override rule.
func (r *Repository) CreateIndividualRule(ctx context.Context, rule IndividualRule) (IndividualRule, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO individual_access_rules (user_email, resource_name, rule_type, access_type, is_active) VALUES ($1, $2, $3, $4, $5) RETURNING id`, rule.UserEmail, rule.ResourceName, string(rule.RuleType), string(rule.AccessType), rule.IsActive)
	if err := row.Scan(&rule.ID); err != nil {
		return IndividualRule{}, mapPGError(err)
	}
	return rule, nil
}

// DeleteIndividualRule removes an override rule by ID.
func (r *Repository) DeleteIndividualRule(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM individual_access_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanResources(rows pgx.Rows) ([]Resource, error) {
	var resources []Resource
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.Name, &res.Type); err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

var (
	_ RuleStore = (*Repository)(nil)
	_ RuleAdmin = (*Repository)(nil)
)
