package apitest

import (
	"context"
	"sync"

	"github.com/calibra-qa/calibra/internal/access"
	"github.com/calibra-qa/calibra/internal/audits"
	"github.com/calibra-qa/calibra/internal/schedules"
	"github.com/calibra-qa/calibra/internal/scorecards"
	"github.com/calibra-qa/calibra/internal/shared"
	"github.com/calibra-qa/calibra/internal/users"
)

// memRuleStore implements access.RuleStore and access.RuleAdmin in memory.
type memRuleStore struct {
	mu         sync.Mutex
	nextID     int64
	roleRules  []access.AccessRule
	individual []access.IndividualRule
}

func newMemRuleStore() *memRuleStore {
	return &memRuleStore{nextID: 1}
}

func (s *memRuleStore) FindIndividualRule(ctx context.Context, email, resource string, ruleType access.RuleType, accessType access.AccessType) (*access.IndividualRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rule := range s.individual {
		if rule.IsActive && rule.UserEmail == email && rule.ResourceName == resource && rule.RuleType == ruleType && rule.AccessType == accessType {
			r := rule
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memRuleStore) FindRoleRule(ctx context.Context, resource string, ruleType access.RuleType) (*access.AccessRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rule := range s.roleRules {
		if rule.IsActive && rule.ResourceName == resource && rule.RuleType == ruleType {
			r := rule
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memRuleStore) ListRuleResources(ctx context.Context) ([]access.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.Resource
	for _, rule := range s.roleRules {
		if rule.IsActive {
			out = append(out, access.Resource{Name: rule.ResourceName, Type: rule.RuleType})
		}
	}
	return out, nil
}

func (s *memRuleStore) ListUserRuleResources(ctx context.Context, email string) ([]access.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.Resource
	for _, rule := range s.individual {
		if rule.IsActive && rule.UserEmail == email {
			out = append(out, access.Resource{Name: rule.ResourceName, Type: rule.RuleType})
		}
	}
	return out, nil
}

func (s *memRuleStore) ListRoleRules(ctx context.Context) ([]access.AccessRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]access.AccessRule(nil), s.roleRules...), nil
}

func (s *memRuleStore) CreateRoleRule(ctx context.Context, rule access.AccessRule) (access.AccessRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule.ID = s.nextID
	s.nextID++
	s.roleRules = append(s.roleRules, rule)
	return rule, nil
}

func (s *memRuleStore) UpdateRoleRule(ctx context.Context, rule access.AccessRule) (access.AccessRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.roleRules {
		if s.roleRules[i].ID == rule.ID {
			s.roleRules[i] = rule
			return rule, nil
		}
	}
	return access.AccessRule{}, shared.ErrNotFound
}

func (s *memRuleStore) DeleteRoleRule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.roleRules {
		if s.roleRules[i].ID == id {
			s.roleRules = append(s.roleRules[:i], s.roleRules[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (s *memRuleStore) ListIndividualRules(ctx context.Context, email string) ([]access.IndividualRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.IndividualRule
	for _, rule := range s.individual {
		if email == "" || rule.UserEmail == email {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *memRuleStore) CreateIndividualRule(ctx context.Context, rule access.IndividualRule) (access.IndividualRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule.ID = s.nextID
	s.nextID++
	s.individual = append(s.individual, rule)
	return rule, nil
}

func (s *memRuleStore) DeleteIndividualRule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.individual {
		if s.individual[i].ID == id {
			s.individual = append(s.individual[:i], s.individual[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

// memUserStore implements users.Store in memory.
type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]users.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{nextID: 1, users: map[int64]users.User{}}
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == users.NormalizeEmail(email) {
			return user, nil
		}
	}
	return users.User{}, shared.ErrNotFound
}

func (s *memUserStore) Get(ctx context.Context, id int64) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return user, nil
}

func (s *memUserStore) List(ctx context.Context) ([]users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []users.User
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *memUserStore) Create(ctx context.Context, user users.User) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = user
	return user, nil
}

func (s *memUserStore) Update(ctx context.Context, user users.User) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	user.PasswordHash = stored.PasswordHash
	s.users[user.ID] = user
	return user, nil
}

func (s *memUserStore) SetRole(ctx context.Context, id int64, role string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	user.Role = role
	s.users[id] = user
	return user, nil
}

func (s *memUserStore) SetPassword(ctx context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	user.PasswordHash = hash
	s.users[id] = user
	return nil
}

// memAuditStore implements audits.Store in memory.
type memAuditStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]audits.Record
}

func newMemAuditStore() *memAuditStore {
	return &memAuditStore{nextID: 1, records: map[int64]audits.Record{}}
}

func (s *memAuditStore) Get(ctx context.Context, id int64) (audits.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return audits.Record{}, shared.ErrNotFound
	}
	return rec, nil
}

func (s *memAuditStore) List(ctx context.Context, filter audits.ListFilter) ([]audits.Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audits.Record
	for _, rec := range s.records {
		if filter.EmployeeEmail != "" && rec.EmployeeEmail != filter.EmployeeEmail {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (s *memAuditStore) Create(ctx context.Context, rec audits.Record) (audits.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	rec.AcknowledgementStatus = "pending"
	s.nextID++
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *memAuditStore) Update(ctx context.Context, rec audits.Record) (audits.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *memAuditStore) Acknowledge(ctx context.Context, id int64) (audits.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	rec.AcknowledgementStatus = "acknowledged"
	s.records[id] = rec
	return rec, nil
}

func (s *memAuditStore) RequestReversal(ctx context.Context, id int64, reason string) (audits.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	now := nowUTC()
	rec.ReversalRequestedAt = &now
	rec.ReversalReason = reason
	s.records[id] = rec
	return rec, nil
}

func (s *memAuditStore) RespondReversal(ctx context.Context, id int64, approved bool, response string) (audits.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	now := nowUTC()
	rec.ReversalRespondedAt = &now
	rec.ReversalApproved = &approved
	rec.ReversalResponse = response
	s.records[id] = rec
	return rec, nil
}

func (s *memAuditStore) Rate(ctx context.Context, id int64, rating float64) (audits.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	rec.Rating = &rating
	s.records[id] = rec
	return rec, nil
}

// memScorecardStore implements scorecards.Store in memory.
type memScorecardStore struct {
	mu     sync.Mutex
	nextID int64
	cards  map[int64]scorecards.Scorecard
}

func newMemScorecardStore() *memScorecardStore {
	return &memScorecardStore{nextID: 1, cards: map[int64]scorecards.Scorecard{}}
}

func (s *memScorecardStore) Get(ctx context.Context, id int64) (scorecards.Scorecard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[id]
	if !ok {
		return scorecards.Scorecard{}, shared.ErrNotFound
	}
	return card, nil
}

func (s *memScorecardStore) List(ctx context.Context) ([]scorecards.Scorecard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scorecards.Scorecard
	for _, card := range s.cards {
		out = append(out, card)
	}
	return out, nil
}

func (s *memScorecardStore) Create(ctx context.Context, card scorecards.Scorecard) (scorecards.Scorecard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card.ID = s.nextID
	s.nextID++
	s.cards[card.ID] = card
	return card, nil
}

func (s *memScorecardStore) Update(ctx context.Context, card scorecards.Scorecard) (scorecards.Scorecard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[card.ID]; !ok {
		return scorecards.Scorecard{}, shared.ErrNotFound
	}
	s.cards[card.ID] = card
	return card, nil
}

func (s *memScorecardStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.cards, id)
	return nil
}

// memScheduleStore implements schedules.Store in memory.
type memScheduleStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]schedules.Schedule
}

func newMemScheduleStore() *memScheduleStore {
	return &memScheduleStore{nextID: 1, rows: map[int64]schedules.Schedule{}}
}

func (s *memScheduleStore) Get(ctx context.Context, id int64) (schedules.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return schedules.Schedule{}, shared.ErrNotFound
	}
	return row, nil
}

func (s *memScheduleStore) ListUpcoming(ctx context.Context, auditorEmail string) ([]schedules.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedules.Schedule
	for _, row := range s.rows {
		if row.Status != schedules.StatusScheduled {
			continue
		}
		if auditorEmail != "" && row.AuditorEmail != auditorEmail {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *memScheduleStore) Create(ctx context.Context, sched schedules.Schedule) (schedules.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched.ID = s.nextID
	sched.Status = schedules.StatusScheduled
	s.nextID++
	s.rows[sched.ID] = sched
	return sched, nil
}

func (s *memScheduleStore) SetStatus(ctx context.Context, id int64, status string) (schedules.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return schedules.Schedule{}, shared.ErrNotFound
	}
	row.Status = status
	s.rows[id] = row
	return row, nil
}
