package access

import "context"

// RuleStore is the exact-match lookup interface the resolver consumes. All
// queries are exact-field conjunctions, never range or pattern matches. A
// missing rule is (nil, nil), not an error.
type RuleStore interface {
	// FindIndividualRule returns the active override for (email, resource,
	// type, accessType), or nil when none exists.
	FindIndividualRule(ctx context.Context, email, resource string, ruleType RuleType, accessType AccessType) (*IndividualRule, error)
	// FindRoleRule returns the single active role-based rule for (resource,
	// type), or nil when none exists.
	FindRoleRule(ctx context.Context, resource string, ruleType RuleType) (*AccessRule, error)
	// ListRuleResources returns the distinct (resource, type) pairs that have
	// an active role-based rule.
	ListRuleResources(ctx context.Context) ([]Resource, error)
	// ListUserRuleResources returns the distinct (resource, type) pairs that
	// have an active individual rule for the user.
	ListUserRuleResources(ctx context.Context, email string) ([]Resource, error)
}

// RuleAdmin extends the store with the mutations exposed on the rule
// management endpoints.
type RuleAdmin interface {
	ListRoleRules(ctx context.Context) ([]AccessRule, error)
	CreateRoleRule(ctx context.Context, rule AccessRule) (AccessRule, error)
	UpdateRoleRule(ctx context.Context, rule AccessRule) (AccessRule, error)
	DeleteRoleRule(ctx context.Context, id int64) error
	ListIndividualRules(ctx context.Context, email string) ([]IndividualRule, error)
	CreateIndividualRule(ctx context.Context, rule IndividualRule) (IndividualRule, error)
	DeleteIndividualRule(ctx context.Context, id int64) error
}
