package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

type ruleQuery struct {
	email      string
	resource   string
	ruleType   RuleType
	accessType AccessType
}

type stubStore struct {
	individual map[ruleQuery]*IndividualRule
	roleRules  map[Resource]*AccessRule
	resources  []Resource
	userRes    map[string][]Resource

	individualCalls int
	roleCalls       int
	failWith        error
}

func newStubStore() *stubStore {
	return &stubStore{
		individual: make(map[ruleQuery]*IndividualRule),
		roleRules:  make(map[Resource]*AccessRule),
		userRes:    make(map[string][]Resource),
	}
}

func (s *stubStore) FindIndividualRule(ctx context.Context, email, resource string, ruleType RuleType, accessType AccessType) (*IndividualRule, error) {
	s.individualCalls++
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.individual[ruleQuery{email, resource, ruleType, accessType}], nil
}

func (s *stubStore) FindRoleRule(ctx context.Context, resource string, ruleType RuleType) (*AccessRule, error) {
	s.roleCalls++
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.roleRules[Resource{resource, ruleType}], nil
}

func (s *stubStore) ListRuleResources(ctx context.Context) ([]Resource, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.resources, nil
}

func (s *stubStore) ListUserRuleResources(ctx context.Context, email string) ([]Resource, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.userRes[email], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	at time.Time
}

func (c *fakeClock) Now() time.Time { return c.at }

func (c *fakeClock) Advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestResolver(store RuleStore, opts ...Option) (*Resolver, *fakeClock) {
	clock := &fakeClock{at: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewResolver(store, testLogger(), opts...), clock
}

func TestIndividualDenyBeatsWildcard(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"dashboard", RuleTypePage}] = &AccessRule{
		ResourceName: "dashboard", RuleType: RuleTypePage,
		AllowedRoles: []string{Wildcard}, IsActive: true,
	}
	store.individual[ruleQuery{"bob@example.com", "dashboard", RuleTypePage, AccessDeny}] = &IndividualRule{
		UserEmail: "bob@example.com", ResourceName: "dashboard", RuleType: RuleTypePage,
		AccessType: AccessDeny, IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	result := resolver.Check(context.Background(), "Bob@Example.com", RoleAdmin, "dashboard", RuleTypePage)
	if result.HasAccess {
		t.Fatalf("expected deny, got allow: %+v", result)
	}
	if result.Reason != "Individual deny rule found" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestRoleMatchIgnoresCaseAndWhitespace(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"team-reports", RuleTypePage}] = &AccessRule{
		ResourceName: "team-reports", RuleType: RuleTypePage,
		AllowedRoles: []string{"Manager"}, IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	// Role names arrive from session values and legacy rows with mixed
	// casing, so membership is compared after the same normalization the
	// hierarchy lookup uses.
	result := resolver.Check(context.Background(), "lena@example.com", " manager ", "team-reports", RuleTypePage)
	if !result.HasAccess {
		t.Fatalf("expected case-insensitive role match, got %+v", result)
	}

	result = resolver.Check(context.Background(), "omar@example.com", "Agent", "team-reports", RuleTypePage)
	if result.HasAccess {
		t.Fatalf("expected deny for unlisted role, got %+v", result)
	}
	if result.Reason != "Role-based rule exists but user does not match" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestIndividualAllowWithoutRoleRule(t *testing.T) {
	store := newStubStore()
	store.individual[ruleQuery{"ana@example.com", "exports", RuleTypeFeature, AccessAllow}] = &IndividualRule{
		UserEmail: "ana@example.com", ResourceName: "exports", RuleType: RuleTypeFeature,
		AccessType: AccessAllow, IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	result := resolver.Check(context.Background(), "ana@example.com", RoleAgent, "exports", RuleTypeFeature)
	if !result.HasAccess {
		t.Fatalf("expected allow, got %+v", result)
	}
	if result.Checked == nil || result.Checked.Individual == nil {
		t.Fatalf("expected checked individual rule in result")
	}
}

func TestWildcardAllowsUnknownRole(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"announcements", RuleTypePage}] = &AccessRule{
		ResourceName: "announcements", RuleType: RuleTypePage,
		AllowedRoles: []string{Wildcard}, IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	result := resolver.Check(context.Background(), "new@example.com", "Contractor", "announcements", RuleTypePage)
	if !result.HasAccess {
		t.Fatalf("expected wildcard allow, got %+v", result)
	}
	if result.Reason != "Wildcard rule allows all users" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestRoleMatchIsExactNotHierarchical(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"reports", RuleTypePage}] = &AccessRule{
		ResourceName: "reports", RuleType: RuleTypePage,
		AllowedRoles: []string{RoleManager}, IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	// Admin (level 4) outranks Manager but is not literally "Manager";
	// without min_role_level the rule must not match.
	result := resolver.Check(context.Background(), "ceo@example.com", RoleAdmin, "reports", RuleTypePage)
	if result.HasAccess {
		t.Fatalf("expected deny for non-listed role, got allow")
	}
	if result.Reason != "Role-based rule exists but user does not match" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestMinRoleLevelGrantsAtEqualLevel(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"reports", RuleTypePage}] = &AccessRule{
		ResourceName: "reports", RuleType: RuleTypePage,
		AllowedRoles: []string{RoleManager}, MinRoleLevel: "2", IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	result := resolver.Check(context.Background(), "qa@example.com", RoleQualityAnalyst, "reports", RuleTypePage)
	if !result.HasAccess {
		t.Fatalf("expected min-level allow for level 2 caller, got %+v", result)
	}
}

func TestMalformedMinRoleLevelNeverSatisfied(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"reports", RuleTypePage}] = &AccessRule{
		ResourceName: "reports", RuleType: RuleTypePage,
		AllowedRoles: []string{RoleManager}, MinRoleLevel: "two", IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	result := resolver.Check(context.Background(), "boss@example.com", RoleAdmin, "reports", RuleTypePage)
	if result.HasAccess {
		t.Fatalf("malformed min_role_level must not grant access")
	}
	if result.Reason != "Role-based rule exists but user does not match" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestDefaultDenyWhenNoRuleExists(t *testing.T) {
	resolver, _ := newTestResolver(newStubStore())

	result := resolver.Check(context.Background(), "x@example.com", RoleAdmin, "unknown-thing", RuleTypeAction)
	if result.HasAccess {
		t.Fatalf("expected default deny")
	}
	if result.Reason != "No matching permission rule found" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestCacheHitSkipsStore(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"dashboard", RuleTypePage}] = &AccessRule{
		ResourceName: "dashboard", RuleType: RuleTypePage,
		AllowedRoles: []string{Wildcard}, IsActive: true,
	}
	resolver, clock := newTestResolver(store)

	first := resolver.Check(context.Background(), "ana@example.com", RoleAgent, "dashboard", RuleTypePage)
	individualCalls, roleCalls := store.individualCalls, store.roleCalls

	second := resolver.Check(context.Background(), "ana@example.com", RoleAgent, "dashboard", RuleTypePage)
	if store.individualCalls != individualCalls || store.roleCalls != roleCalls {
		t.Fatalf("cached check must not re-query rules")
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}

	// After TTL the rules are consulted again.
	clock.Advance(DefaultCacheTTL + time.Second)
	_ = resolver.Check(context.Background(), "ana@example.com", RoleAgent, "dashboard", RuleTypePage)
	if store.roleCalls == roleCalls {
		t.Fatalf("expired entry must trigger re-evaluation")
	}
}

func TestHardGateBypassesRulesAndCache(t *testing.T) {
	store := newStubStore()
	// A stored wildcard rule must be irrelevant for the gated resource.
	store.roleRules[Resource{"access-rules", RuleTypePage}] = &AccessRule{
		ResourceName: "access-rules", RuleType: RuleTypePage,
		AllowedRoles: []string{Wildcard}, IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	// Poison the cache for the exact key a non-gated path would use.
	resolver.cache.put(CacheKey("mgr@example.com", "access-rules", RuleTypePage), CheckResult{HasAccess: true, Reason: "stale"}, time.Hour)

	denied := resolver.Check(context.Background(), "mgr@example.com", RoleManager, "access-rules", RuleTypePage)
	if denied.HasAccess {
		t.Fatalf("gate must ignore stored rules and stale cache entries")
	}
	if store.roleCalls != 0 || store.individualCalls != 0 {
		t.Fatalf("gate must not consult the store")
	}

	allowed := resolver.Check(context.Background(), "root@example.com", RoleAdmin, " Access-Rules ", RuleTypePage)
	if !allowed.HasAccess {
		t.Fatalf("gate must allow the required role after normalization")
	}
}

func TestStoreFailureDeniesAndIsNotCached(t *testing.T) {
	store := newStubStore()
	store.failWith = errors.New("connection refused")
	resolver, _ := newTestResolver(store)

	result := resolver.Check(context.Background(), "ana@example.com", RoleAgent, "dashboard", RuleTypePage)
	if result.HasAccess {
		t.Fatalf("store failure must fail closed")
	}
	if !strings.Contains(result.Reason, "connection refused") {
		t.Fatalf("reason should embed the failure: %q", result.Reason)
	}

	// Once the store recovers the next call re-evaluates instead of serving
	// the failure result from cache.
	store.failWith = nil
	store.roleRules[Resource{"dashboard", RuleTypePage}] = &AccessRule{
		ResourceName: "dashboard", RuleType: RuleTypePage,
		AllowedRoles: []string{Wildcard}, IsActive: true,
	}
	healed := resolver.Check(context.Background(), "ana@example.com", RoleAgent, "dashboard", RuleTypePage)
	if !healed.HasAccess {
		t.Fatalf("transient failure must self-heal on next call, got %+v", healed)
	}
}

func TestCheckAllMatchesIndividualChecks(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"dashboard", RuleTypePage}] = &AccessRule{
		ResourceName: "dashboard", RuleType: RuleTypePage,
		AllowedRoles: []string{Wildcard}, IsActive: true,
	}
	store.roleRules[Resource{"reports", RuleTypePage}] = &AccessRule{
		ResourceName: "reports", RuleType: RuleTypePage,
		AllowedRoles: []string{RoleManager}, IsActive: true,
	}
	resolver, _ := newTestResolver(store)
	resources := []Resource{
		{"dashboard", RuleTypePage},
		{"reports", RuleTypePage},
		{"nothing", RuleTypeFeature},
	}

	results := resolver.CheckAll(context.Background(), "ana@example.com", RoleAgent, resources)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	wantAny, wantAll := false, true
	for _, res := range resources {
		single := resolver.Check(context.Background(), "ana@example.com", RoleAgent, res.Name, res.Type)
		if results[res.Name].HasAccess != single.HasAccess {
			t.Fatalf("batch result for %s diverges from single check", res.Name)
		}
		wantAny = wantAny || single.HasAccess
		wantAll = wantAll && single.HasAccess
	}
	if got := resolver.HasAny(context.Background(), "ana@example.com", RoleAgent, resources); got != wantAny {
		t.Fatalf("HasAny = %v, want %v", got, wantAny)
	}
	if got := resolver.HasAll(context.Background(), "ana@example.com", RoleAgent, resources); got != wantAll {
		t.Fatalf("HasAll = %v, want %v", got, wantAll)
	}
}

func TestClearUserCacheIsPrefixScoped(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"dashboard", RuleTypePage}] = &AccessRule{
		ResourceName: "dashboard", RuleType: RuleTypePage,
		AllowedRoles: []string{Wildcard}, IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	_ = resolver.Check(context.Background(), "ana@example.com", RoleAgent, "dashboard", RuleTypePage)
	_ = resolver.Check(context.Background(), "bob@example.com", RoleAgent, "dashboard", RuleTypePage)
	if resolver.cache.size() != 2 {
		t.Fatalf("expected 2 cached entries, got %d", resolver.cache.size())
	}

	resolver.ClearUserCache("Ana@Example.com")

	roleCalls := store.roleCalls
	_ = resolver.Check(context.Background(), "bob@example.com", RoleAgent, "dashboard", RuleTypePage)
	if store.roleCalls != roleCalls {
		t.Fatalf("bob's entry should have survived ana's invalidation")
	}
	_ = resolver.Check(context.Background(), "ana@example.com", RoleAgent, "dashboard", RuleTypePage)
	if store.roleCalls == roleCalls {
		t.Fatalf("ana's entry should have been invalidated")
	}
}

func TestUserPermissionsUsesFullResolution(t *testing.T) {
	store := newStubStore()
	store.resources = []Resource{
		{"dashboard", RuleTypePage},
		{"reports", RuleTypePage},
	}
	store.userRes["ana@example.com"] = []Resource{
		{"exports", RuleTypeFeature},
		{"dashboard", RuleTypePage}, // duplicate must collapse
	}
	store.roleRules[Resource{"dashboard", RuleTypePage}] = &AccessRule{
		ResourceName: "dashboard", RuleType: RuleTypePage,
		AllowedRoles: []string{Wildcard}, IsActive: true,
	}
	store.roleRules[Resource{"reports", RuleTypePage}] = &AccessRule{
		ResourceName: "reports", RuleType: RuleTypePage,
		AllowedRoles: []string{RoleManager}, IsActive: true,
	}
	store.individual[ruleQuery{"ana@example.com", "exports", RuleTypeFeature, AccessAllow}] = &IndividualRule{
		UserEmail: "ana@example.com", ResourceName: "exports", RuleType: RuleTypeFeature,
		AccessType: AccessAllow, IsActive: true,
	}
	// Deny override on a wildcard-allowed resource must drop it from the summary.
	store.individual[ruleQuery{"ana@example.com", "dashboard", RuleTypePage, AccessDeny}] = &IndividualRule{
		UserEmail: "ana@example.com", ResourceName: "dashboard", RuleType: RuleTypePage,
		AccessType: AccessDeny, IsActive: true,
	}
	resolver, _ := newTestResolver(store)

	summary, err := resolver.UserPermissions(context.Background(), "ana@example.com", RoleQualityAnalyst)
	if err != nil {
		t.Fatalf("user permissions: %v", err)
	}
	if summary.RoleLevel != 2 {
		t.Fatalf("expected role level 2, got %d", summary.RoleLevel)
	}
	if len(summary.Granted) != 1 || summary.Granted[0].Resource != "exports" {
		t.Fatalf("expected only exports granted, got %+v", summary.Granted)
	}
}

func TestRepeatedCheckWithinTTLIsValueIdentical(t *testing.T) {
	store := newStubStore()
	store.roleRules[Resource{"reports", RuleTypePage}] = &AccessRule{
		ResourceName: "reports", RuleType: RuleTypePage,
		AllowedRoles: []string{RoleManager}, MinRoleLevel: "2", IsActive: true,
	}
	resolver, clock := newTestResolver(store)

	first := resolver.Check(context.Background(), "qa@example.com", RoleQualityAnalyst, "reports", RuleTypePage)
	clock.Advance(time.Minute)
	second := resolver.Check(context.Background(), "qa@example.com", RoleQualityAnalyst, "reports", RuleTypePage)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("round-trip within TTL must be value-identical: %+v vs %+v", first, second)
	}
}
