package access

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCacheTTL bounds how long a resolved decision is served from cache.
const DefaultCacheTTL = 5 * time.Minute

type gateKey struct {
	resource string
	ruleType string
}

// hardGates bypass every stored rule. A gated check is a plain role-equality
// test against the required role and is never cached, so it always reflects
// the caller's current role and cannot be satisfied by a stale entry written
// before the gate existed.
var hardGates = map[gateKey]string{
	{"access-rules", "page"}:         RoleAdmin,
	{"access-rules", "api_endpoint"}: RoleAdmin,
}

// Resolver evaluates resource access for (user, resource, type) triples.
// Construct it with NewResolver; it carries its own cache and injected
// store and clock, so tests can substitute deterministic time and stub
// stores.
type Resolver struct {
	store  RuleStore
	logger *slog.Logger
	cache  *resultCache
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithCacheTTL overrides the result cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithClock injects a time source; tests use this to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver constructs a Resolver backed by the given rule store.
func NewResolver(store RuleStore, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		logger: logger,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = newResultCache(r.now)
	return r
}

// Check resolves access for a single (user, resource, type) triple. It never
// returns an error: rule-store failures degrade to a deny with the error
// embedded in Reason, and such results are not cached so transient failures
// self-heal on the next call.
func (r *Resolver) Check(ctx context.Context, email, role, resource string, ruleType RuleType) CheckResult {
	email = NormalizeEmail(email)

	if result, gated := r.checkHardGate(role, resource, ruleType); gated {
		return result
	}

	key := CacheKey(email, resource, ruleType)
	if result, ok := r.cache.get(key); ok {
		return result
	}

	result, err := r.evaluate(ctx, email, role, resource, ruleType)
	if err != nil {
		r.logger.Error("permission check failed",
			slog.String("email", email),
			slog.String("resource", resource),
			slog.String("rule_type", string(ruleType)),
			slog.Any("error", err))
		return CheckResult{HasAccess: false, Reason: "Permission check failed: " + err.Error()}
	}

	r.cache.put(key, result, r.ttl)
	return result
}

// checkHardGate terminates the check immediately for gated resources.
func (r *Resolver) checkHardGate(role, resource string, ruleType RuleType) (CheckResult, bool) {
	required, ok := hardGates[gateKey{normalizeToken(resource), normalizeToken(string(ruleType))}]
	if !ok {
		return CheckResult{}, false
	}
	if normalizeToken(role) == normalizeToken(required) {
		return CheckResult{HasAccess: true, Reason: "Restricted resource allowed for role " + required}, true
	}
	return CheckResult{HasAccess: false, Reason: "Restricted resource requires role " + required}, true
}

// evaluate walks the stored-rule precedence chain: individual deny,
// individual allow, role rule, default deny.
func (r *Resolver) evaluate(ctx context.Context, email, role, resource string, ruleType RuleType) (CheckResult, error) {
	deny, err := r.store.FindIndividualRule(ctx, email, resource, ruleType, AccessDeny)
	if err != nil {
		return CheckResult{}, err
	}
	if deny != nil {
		return CheckResult{
			HasAccess: false,
			Reason:    "Individual deny rule found",
			Checked:   &CheckedRules{Individual: deny},
		}, nil
	}

	allow, err := r.store.FindIndividualRule(ctx, email, resource, ruleType, AccessAllow)
	if err != nil {
		return CheckResult{}, err
	}
	if allow != nil {
		return CheckResult{
			HasAccess: true,
			Reason:    "Individual allow rule found",
			Checked:   &CheckedRules{Individual: allow},
		}, nil
	}

	rule, err := r.store.FindRoleRule(ctx, resource, ruleType)
	if err != nil {
		return CheckResult{}, err
	}
	if rule != nil {
		if result, matched := matchRoleRule(rule, role); matched {
			return result, nil
		}
		// Rule exists but nothing matched: explicit deny, distinguished from
		// "no rule found" only by the reason string.
		return CheckResult{
			HasAccess: false,
			Reason:    "Role-based rule exists but user does not match",
			Checked:   &CheckedRules{Role: rule},
		}, nil
	}

	return CheckResult{HasAccess: false, Reason: "No matching permission rule found"}, nil
}

// matchRoleRule applies the wildcard, exact-role and minimum-level branches.
func matchRoleRule(rule *AccessRule, role string) (CheckResult, bool) {
	for _, allowed := range rule.AllowedRoles {
		if allowed == Wildcard {
			return CheckResult{
				HasAccess: true,
				Reason:    "Wildcard rule allows all users",
				Checked:   &CheckedRules{Role: rule},
			}, true
		}
	}
	for _, allowed := range rule.AllowedRoles {
		if normalizeToken(allowed) == normalizeToken(role) {
			return CheckResult{
				HasAccess: true,
				Reason:    "Role-based rule allows role " + role,
				Checked:   &CheckedRules{Role: rule},
			}, true
		}
	}
	if rule.MinRoleLevel != "" {
		minLevel, err := strconv.Atoi(rule.MinRoleLevel)
		// A level that fails parsing is treated as not satisfied, never an error.
		if err == nil && RoleLevel(role) >= minLevel {
			return CheckResult{
				HasAccess: true,
				Reason:    "Role level meets minimum requirement",
				Checked:   &CheckedRules{Role: rule},
			}, true
		}
	}
	return CheckResult{}, false
}

// CheckAll resolves every listed resource concurrently and maps resource
// name to result. The only shared state is the cache, which is safe for
// concurrent reads and lazy per-key writes.
func (r *Resolver) CheckAll(ctx context.Context, email, role string, resources []Resource) map[string]CheckResult {
	results := make([]CheckResult, len(resources))
	g, ctx := errgroup.WithContext(ctx)
	for i, res := range resources {
		i, res := i, res
		g.Go(func() error {
			results[i] = r.Check(ctx, email, role, res.Name, res.Type)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]CheckResult, len(resources))
	for i, res := range resources {
		out[res.Name] = results[i]
	}
	return out
}

// HasAny reports whether at least one of the resources is accessible.
func (r *Resolver) HasAny(ctx context.Context, email, role string, resources []Resource) bool {
	for _, result := range r.CheckAll(ctx, email, role, resources) {
		if result.HasAccess {
			return true
		}
	}
	return false
}

// HasAll reports whether every resource is accessible.
func (r *Resolver) HasAll(ctx context.Context, email, role string, resources []Resource) bool {
	results := r.CheckAll(ctx, email, role, resources)
	if len(results) == 0 {
		return true
	}
	for _, result := range results {
		if !result.HasAccess {
			return false
		}
	}
	return true
}

// ClearUserCache removes every cached entry for the user; other users'
// entries remain readable.
func (r *Resolver) ClearUserCache(email string) {
	r.cache.clearPrefix(NormalizeEmail(email) + ":")
}

// ClearCache removes every cached entry.
func (r *Resolver) ClearCache() {
	r.cache.clear()
}

// GrantedPermission is one accessible resource in a user summary.
type GrantedPermission struct {
	Resource string   `json:"resource"`
	Type     RuleType `json:"type"`
	Reason   string   `json:"reason"`
}

// UserPermissions summarises everything a user can currently access.
type UserPermissions struct {
	Email     string              `json:"email"`
	Role      string              `json:"role"`
	RoleLevel int                 `json:"role_level"`
	Granted   []GrantedPermission `json:"granted"`
}

// UserPermissions aggregates the union of resources named by role rules and
// the user's individual rules, resolves each through Check (same algorithm,
// no shortcut) and returns only the granted ones plus the resolved level.
func (r *Resolver) UserPermissions(ctx context.Context, email, role string) (UserPermissions, error) {
	email = NormalizeEmail(email)

	roleScoped, err := r.store.ListRuleResources(ctx)
	if err != nil {
		return UserPermissions{}, err
	}
	userScoped, err := r.store.ListUserRuleResources(ctx, email)
	if err != nil {
		return UserPermissions{}, err
	}

	seen := make(map[Resource]struct{}, len(roleScoped)+len(userScoped))
	union := make([]Resource, 0, len(roleScoped)+len(userScoped))
	for _, res := range append(roleScoped, userScoped...) {
		if _, ok := seen[res]; ok {
			continue
		}
		seen[res] = struct{}{}
		union = append(union, res)
	}

	summary := UserPermissions{
		Email:     email,
		Role:      role,
		RoleLevel: RoleLevel(role),
	}
	for _, res := range union {
		result := r.Check(ctx, email, role, res.Name, res.Type)
		if result.HasAccess {
			summary.Granted = append(summary.Granted, GrantedPermission{
				Resource: res.Name,
				Type:     res.Type,
				Reason:   result.Reason,
			})
		}
	}
	return summary, nil
}
