package audits

import (
	"strings"

	"github.com/calibra-qa/calibra/internal/access"
)

// Caller describes the authenticated user from the workflow resolver's point
// of view. Ownership is never stored here; it is derived per call by
// comparing emails against the record.
type Caller struct {
	Email            string
	IsAuditor        bool
	IsQualityAnalyst bool
	IsAdmin          bool
}

// NewCaller derives the role flags from a role name.
func NewCaller(email, role string) Caller {
	normalized := strings.ToLower(strings.TrimSpace(role))
	return Caller{
		Email:            email,
		IsAuditor:        normalized == strings.ToLower(access.RoleAuditor),
		IsQualityAnalyst: normalized == strings.ToLower(access.RoleQualityAnalyst),
		IsAdmin:          normalized == strings.ToLower(access.RoleAdmin),
	}
}

// PermissionSet is the derived action surface for one (record, caller) pair.
type PermissionSet struct {
	CanEdit              bool `json:"can_edit"`
	CanAcknowledge       bool `json:"can_acknowledge"`
	CanRequestReversal   bool `json:"can_request_reversal"`
	CanViewReversal      bool `json:"can_view_reversal"`
	CanRespondToReversal bool `json:"can_respond_to_reversal"`
	CanRate              bool `json:"can_rate"`
	IsOwner              bool `json:"is_owner"`
	IsAuditor            bool `json:"is_auditor"`
}

// acknowledgedStatuses are the statuses that lock an audit.
var acknowledgedStatuses = map[string]struct{}{
	"acknowledged":      {},
	"auto-acknowledged": {},
	"closed":            {},
}

// reversalStatusHints mark an in-flight reversal when the workflow state is
// carried textually instead of via timestamps; both historical encodings
// must be honored.
var reversalStatusHints = []string{
	"reversal requested",
	"reversal pending",
	"pending reversal",
}

// IsAcknowledgedStatus reports whether the status locks the audit.
func IsAcknowledgedStatus(status string) bool {
	_, ok := acknowledgedStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// HasPendingReversal reports whether a reversal request is awaiting a
// response, via the timestamp fields or the textual status fallback.
func HasPendingReversal(rec Record) bool {
	if rec.ReversalRequestedAt != nil && rec.ReversalRespondedAt == nil && rec.ReversalApproved == nil {
		return true
	}
	status := strings.ToLower(strings.TrimSpace(rec.AcknowledgementStatus))
	for _, hint := range reversalStatusHints {
		if strings.Contains(status, hint) {
			return true
		}
	}
	return false
}

// HasReversalRequest reports whether a reversal was ever requested,
// regardless of resolution. It gates visibility of reversal history only,
// never actions.
func HasReversalRequest(rec Record) bool {
	return rec.ReversalRequestedAt != nil
}

// Permissions derives the action surface for a record and caller. It is a
// pure function: no I/O, no caching, no mutation. The record's state can
// legitimately change between calls within one page session, so every call
// re-derives from scratch. A caller without an email (unauthenticated)
// receives the zero set.
func Permissions(rec Record, caller Caller) PermissionSet {
	email := normalizeEmail(caller.Email)
	if email == "" {
		return PermissionSet{}
	}

	isOwner := rec.AuditorEmail != "" && email == normalizeEmail(rec.AuditorEmail)
	isEmployee := rec.EmployeeEmail != "" && email == normalizeEmail(rec.EmployeeEmail)
	acknowledged := IsAcknowledgedStatus(rec.AcknowledgementStatus)
	pending := HasPendingReversal(rec)
	requested := HasReversalRequest(rec)

	return PermissionSet{
		CanEdit:              !acknowledged && (caller.IsAuditor || (caller.IsQualityAnalyst && pending)),
		CanAcknowledge:       !acknowledged && !pending && isEmployee,
		CanRequestReversal:   !acknowledged && !pending && !requested && isEmployee,
		CanViewReversal:      requested,
		CanRespondToReversal: pending && (isOwner || caller.IsQualityAnalyst),
		// Rating stays available after a rating exists so employees can
		// correct it.
		CanRate:   acknowledged && isEmployee,
		IsOwner:   isOwner,
		IsAuditor: caller.IsAuditor,
	}
}
