package audits

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calibra-qa/calibra/internal/access"
	"github.com/calibra-qa/calibra/internal/shared"
)

type stubStore struct {
	record          Record
	getErr          error
	lastFilter      ListFilter
	acknowledgeHits int
	reversalHits    int
	respondHits     int
	rateHits        int
	updateHits      int
}

func (s *stubStore) Get(ctx context.Context, id int64) (Record, error) {
	if s.getErr != nil {
		return Record{}, s.getErr
	}
	return s.record, nil
}

func (s *stubStore) List(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	s.lastFilter = filter
	return []Record{s.record}, 1, nil
}

func (s *stubStore) Create(ctx context.Context, rec Record) (Record, error) {
	rec.ID = 99
	return rec, nil
}

func (s *stubStore) Update(ctx context.Context, rec Record) (Record, error) {
	s.updateHits++
	return rec, nil
}

func (s *stubStore) Acknowledge(ctx context.Context, id int64) (Record, error) {
	s.acknowledgeHits++
	rec := s.record
	rec.AcknowledgementStatus = "acknowledged"
	return rec, nil
}

func (s *stubStore) RequestReversal(ctx context.Context, id int64, reason string) (Record, error) {
	s.reversalHits++
	rec := s.record
	rec.ReversalReason = reason
	return rec, nil
}

func (s *stubStore) RespondReversal(ctx context.Context, id int64, approved bool, response string) (Record, error) {
	s.respondHits++
	rec := s.record
	rec.ReversalApproved = &approved
	return rec, nil
}

func (s *stubStore) Rate(ctx context.Context, id int64, rating float64) (Record, error) {
	s.rateHits++
	rec := s.record
	rec.Rating = &rating
	return rec, nil
}

func newTestService(store *stubStore) *Service {
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestAcknowledgeRequiresEmployee(t *testing.T) {
	store := &stubStore{record: baseRecord()}
	svc := newTestService(store)

	_, err := svc.Acknowledge(context.Background(), NewCaller("auditor@example.com", access.RoleAuditor), 41)
	require.ErrorIs(t, err, ErrNotAllowed)
	require.Zero(t, store.acknowledgeHits)

	rec, err := svc.Acknowledge(context.Background(), NewCaller("agent@example.com", access.RoleAgent), 41)
	require.NoError(t, err)
	require.Equal(t, "acknowledged", rec.AcknowledgementStatus)
	require.Equal(t, 1, store.acknowledgeHits)
}

func TestUpdateBlockedOnceAcknowledged(t *testing.T) {
	rec := baseRecord()
	rec.AcknowledgementStatus = "acknowledged"
	store := &stubStore{record: rec}
	svc := newTestService(store)

	_, err := svc.Update(context.Background(), NewCaller("auditor@example.com", access.RoleAuditor), 41, UpdateInput{Summary: "revised"})
	require.ErrorIs(t, err, ErrNotAllowed)
	require.Zero(t, store.updateHits)
}

func TestRespondReversalGatedOnPendingRequest(t *testing.T) {
	rec := baseRecord()
	store := &stubStore{record: rec}
	svc := newTestService(store)

	// No pending reversal: even the owning auditor cannot respond.
	_, err := svc.RespondReversal(context.Background(), NewCaller("auditor@example.com", access.RoleAuditor), 41, true, "ok")
	require.ErrorIs(t, err, ErrNotAllowed)

	rec.ReversalRequestedAt = timePtr(reviewTime)
	store.record = rec
	_, err = svc.RespondReversal(context.Background(), NewCaller("qa@example.com", access.RoleQualityAnalyst), 41, false, "stands")
	require.NoError(t, err)
	require.Equal(t, 1, store.respondHits)
}

func TestRateRequiresAcknowledgedAndEmployee(t *testing.T) {
	rec := baseRecord()
	store := &stubStore{record: rec}
	svc := newTestService(store)

	_, err := svc.Rate(context.Background(), NewCaller("agent@example.com", access.RoleAgent), 41, 5)
	require.ErrorIs(t, err, ErrNotAllowed, "rating before acknowledgement must fail")

	rec.AcknowledgementStatus = "acknowledged"
	store.record = rec
	_, err = svc.Rate(context.Background(), NewCaller("agent@example.com", access.RoleAgent), 41, 5)
	require.NoError(t, err)
	require.Equal(t, 1, store.rateHits)
}

func TestCreateRestrictedToReviewerRoles(t *testing.T) {
	svc := newTestService(&stubStore{})

	_, err := svc.Create(context.Background(), NewCaller("agent@example.com", access.RoleAgent), CreateInput{Reference: "QA-1", EmployeeEmail: "agent@example.com"})
	require.ErrorIs(t, err, ErrNotAllowed)

	created, err := svc.Create(context.Background(), NewCaller("Auditor@Example.com", access.RoleAuditor), CreateInput{Reference: "QA-1", EmployeeEmail: "Agent@Example.com"})
	require.NoError(t, err)
	require.Equal(t, "auditor@example.com", created.AuditorEmail, "author email must be normalized")
	require.Equal(t, "agent@example.com", created.EmployeeEmail)
}

func TestListScopesAgentsToTheirOwnAudits(t *testing.T) {
	store := &stubStore{record: baseRecord()}
	svc := newTestService(store)

	_, pagination, err := svc.List(context.Background(), NewCaller("agent@example.com", access.RoleAgent), ListFilter{EmployeeEmail: "someone-else@example.com"})
	require.NoError(t, err)
	require.Equal(t, "agent@example.com", store.lastFilter.EmployeeEmail, "agent filter must be forced to the caller")
	require.Equal(t, 1, pagination.Total)

	_, _, err = svc.List(context.Background(), NewCaller("qa@example.com", access.RoleQualityAnalyst), ListFilter{EmployeeEmail: "someone-else@example.com"})
	require.NoError(t, err)
	require.Equal(t, "someone-else@example.com", store.lastFilter.EmployeeEmail)
}

func TestGetPropagatesNotFound(t *testing.T) {
	store := &stubStore{getErr: shared.ErrNotFound}
	svc := newTestService(store)

	_, _, err := svc.Get(context.Background(), NewCaller("agent@example.com", access.RoleAgent), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
