package audits

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/calibra-qa/calibra/internal/shared"
)

// ErrNotAllowed signals that the caller's derived permissions forbid the
// attempted workflow action.
var ErrNotAllowed = errors.New("you do not have permission to perform this action on this audit")

// CreateInput is the payload for a new audit record.
type CreateInput struct {
	Reference     string
	EmployeeEmail string
	ScorecardID   *int64
	Score         *float64
	Summary       string
}

// UpdateInput is the payload for editing an existing audit.
type UpdateInput struct {
	ScorecardID *int64
	Score       *float64
	Summary     string
}

// Service enforces the workflow permission model in front of the store.
// Every mutation re-derives the caller's permission set from the current
// database state; the derived set a client saw earlier is advisory only.
type Service struct {
	store  Store
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewService builds an audit workflow service.
func NewService(store Store, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	return &Service{store: store, logger: logger, audit: audit}
}

// Get fetches an audit together with the caller's derived permission set.
func (s *Service) Get(ctx context.Context, caller Caller, id int64) (Record, PermissionSet, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, PermissionSet{}, err
	}
	return rec, Permissions(rec, caller), nil
}

// List returns a page of audits. Agents only ever see their own audits; other
// roles see everything the filter allows.
func (s *Service) List(ctx context.Context, caller Caller, filter ListFilter) ([]Record, shared.Pagination, error) {
	if !caller.IsAuditor && !caller.IsQualityAnalyst && !caller.IsAdmin {
		filter.EmployeeEmail = caller.Email
	}
	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Create records a new audit authored by the caller.
func (s *Service) Create(ctx context.Context, caller Caller, input CreateInput) (Record, error) {
	if !caller.IsAuditor && !caller.IsQualityAnalyst && !caller.IsAdmin {
		return Record{}, ErrNotAllowed
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		reference = "QA-" + uuid.NewString()[:8]
	}
	rec := Record{
		Reference:     reference,
		AuditorEmail:  normalizeEmail(caller.Email),
		EmployeeEmail: normalizeEmail(input.EmployeeEmail),
		ScorecardID:   input.ScorecardID,
		Score:         input.Score,
		Summary:       input.Summary,
	}
	created, err := s.store.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, caller, "audit.create", created.ID, nil)
	return created, nil
}

// Update edits an audit's reviewable fields, gated on canEdit.
func (s *Service) Update(ctx context.Context, caller Caller, id int64, input UpdateInput) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !Permissions(rec, caller).CanEdit {
		return Record{}, ErrNotAllowed
	}
	rec.ScorecardID = input.ScorecardID
	rec.Score = input.Score
	rec.Summary = input.Summary
	updated, err := s.store.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, caller, "audit.update", id, nil)
	return updated, nil
}

// Acknowledge marks the audit acknowledged, gated on canAcknowledge.
func (s *Service) Acknowledge(ctx context.Context, caller Caller, id int64) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !Permissions(rec, caller).CanAcknowledge {
		return Record{}, ErrNotAllowed
	}
	updated, err := s.store.Acknowledge(ctx, id)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, caller, "audit.acknowledge", id, nil)
	return updated, nil
}

// RequestReversal opens a reversal request, gated on canRequestReversal.
func (s *Service) RequestReversal(ctx context.Context, caller Caller, id int64, reason string) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !Permissions(rec, caller).CanRequestReversal {
		return Record{}, ErrNotAllowed
	}
	updated, err := s.store.RequestReversal(ctx, id, reason)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, caller, "audit.reversal_request", id, map[string]any{"reason": reason})
	return updated, nil
}

// RespondReversal resolves a pending reversal, gated on canRespondToReversal.
func (s *Service) RespondReversal(ctx context.Context, caller Caller, id int64, approved bool, response string) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !Permissions(rec, caller).CanRespondToReversal {
		return Record{}, ErrNotAllowed
	}
	updated, err := s.store.RespondReversal(ctx, id, approved, response)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, caller, "audit.reversal_respond", id, map[string]any{"approved": approved})
	return updated, nil
}

// Rate stores the employee's rating of an acknowledged audit, gated on canRate.
func (s *Service) Rate(ctx context.Context, caller Caller, id int64, rating float64) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !Permissions(rec, caller).CanRate {
		return Record{}, ErrNotAllowed
	}
	updated, err := s.store.Rate(ctx, id, rating)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, caller, "audit.rate", id, nil)
	return updated, nil
}

// PermissionsFor derives the caller's permission set for one audit.
func (s *Service) PermissionsFor(ctx context.Context, caller Caller, id int64) (PermissionSet, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return PermissionSet{}, err
	}
	return Permissions(rec, caller), nil
}

func (s *Service) record(ctx context.Context, caller Caller, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorEmail: caller.Email,
		Action:     action,
		Entity:     "audits",
		EntityID:   strconv.FormatInt(id, 10),
		Meta:       meta,
	}); err != nil {
		s.logger.Warn("audit log", slog.Any("error", err))
	}
}
