// Package access resolves whether a user may reach a page, feature, API
// endpoint or action. Decisions combine hard-coded gates, per-user override
// rules and role-based rules, in that order, with a TTL result cache in
// between. The resolver never returns an error to callers: every internal
// failure degrades to a deny.
package access

import "strings"

// RuleType classifies the kind of resource a rule guards.
type RuleType string

// Supported rule types.
const (
	RuleTypePage        RuleType = "page"
	RuleTypeFeature     RuleType = "feature"
	RuleTypeAPIEndpoint RuleType = "api_endpoint"
	RuleTypeAction      RuleType = "action"
)

// AccessType distinguishes individual allow and deny overrides.
type AccessType string

// Individual rule access types.
const (
	AccessAllow AccessType = "allow"
	AccessDeny  AccessType = "deny"
)

// Wildcard in allowed_roles grants every role.
const Wildcard = "*"

// AccessRule is a role-based rule for a (resource, type) pair. At most one
// active rule per pair is consulted; the store enforces uniqueness and the
// resolver never merges rules.
type AccessRule struct {
	ID           int64    `json:"id"`
	ResourceName string   `json:"resource_name"`
	RuleType     RuleType `json:"rule_type"`
	AllowedRoles []string `json:"allowed_roles"`
	// MinRoleLevel is carried as text from the legacy store; a value that
	// fails integer parsing is treated as not satisfied.
	MinRoleLevel string `json:"min_role_level,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// IndividualRule is a per-user override. Deny overrides win over every allow
// path, including wildcard role rules.
type IndividualRule struct {
	ID           int64      `json:"id"`
	UserEmail    string     `json:"user_email"`
	ResourceName string     `json:"resource_name"`
	RuleType     RuleType   `json:"rule_type"`
	AccessType   AccessType `json:"access_type"`
	IsActive     bool       `json:"is_active"`
}

// CheckedRules records which stored rules participated in a decision.
type CheckedRules struct {
	Individual *IndividualRule `json:"individual,omitempty"`
	Role       *AccessRule     `json:"role,omitempty"`
}

// CheckResult is the outcome of a permission check. It is a value and must
// never be mutated after construction. Reason is human-readable diagnostics;
// callers must not parse it as part of the decision contract.
type CheckResult struct {
	HasAccess bool          `json:"has_access"`
	Reason    string        `json:"reason"`
	Checked   *CheckedRules `json:"checked_rules,omitempty"`
}

// Resource names a (resource, type) pair for batch checks.
type Resource struct {
	Name string   `json:"name"`
	Type RuleType `json:"type"`
}

// CacheKey builds the cache key for a check. The email prefix is what makes
// per-user invalidation a prefix scan.
func CacheKey(email, resource string, ruleType RuleType) string {
	return email + ":" + resource + ":" + string(ruleType)
}

// NormalizeEmail lower-cases and trims an email for rule lookups and cache
// keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
