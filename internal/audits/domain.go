// Package audits manages QA audit records and derives the per-record action
// permissions (edit, acknowledge, reversal, rating) from workflow state.
package audits

import (
	"strings"
	"time"
)

// Record is the canonical audit record shape. Every predicate and service
// method consumes this form; tolerance for the two historical field-naming
// conventions lives solely in NormalizeRecord.
type Record struct {
	ID                    int64      `json:"id"`
	Reference             string     `json:"reference"`
	AuditorEmail          string     `json:"auditor_email"`
	EmployeeEmail         string     `json:"employee_email"`
	ScorecardID           *int64     `json:"scorecard_id,omitempty"`
	Score                 *float64   `json:"score,omitempty"`
	Summary               string     `json:"summary,omitempty"`
	AcknowledgementStatus string     `json:"acknowledgement_status"`
	AcknowledgedAt        *time.Time `json:"acknowledged_at,omitempty"`
	ReversalRequestedAt   *time.Time `json:"reversal_requested_at,omitempty"`
	ReversalReason        string     `json:"reversal_reason,omitempty"`
	ReversalRespondedAt   *time.Time `json:"reversal_responded_at,omitempty"`
	ReversalApproved      *bool      `json:"reversal_approved,omitempty"`
	ReversalResponse      string     `json:"reversal_response,omitempty"`
	Rating                *float64   `json:"audit_rating,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NormalizeRecord converts a loosely shaped record into the canonical form.
// Legacy clients send either snake_case or camelCase fields; snake_case wins
// when both are present.
func NormalizeRecord(raw map[string]any) Record {
	return Record{
		AuditorEmail:          stringField(raw, "auditor_email", "auditorEmail"),
		EmployeeEmail:         stringField(raw, "employee_email", "employeeEmail"),
		AcknowledgementStatus: stringField(raw, "acknowledgement_status", "acknowledgementStatus"),
		AcknowledgedAt:        timeField(raw, "acknowledged_at", "acknowledgedAt"),
		ReversalRequestedAt:   timeField(raw, "reversal_requested_at", "reversalRequestedAt"),
		ReversalReason:        stringField(raw, "reversal_reason", "reversalReason"),
		ReversalRespondedAt:   timeField(raw, "reversal_responded_at", "reversalRespondedAt"),
		ReversalApproved:      boolField(raw, "reversal_approved", "reversalApproved"),
		ReversalResponse:      stringField(raw, "reversal_response", "reversalResponse"),
		Rating:                numberField(raw, "audit_rating", "auditRating"),
	}
}

func stringField(raw map[string]any, snake, camel string) string {
	for _, key := range []string{snake, camel} {
		if value, ok := raw[key]; ok {
			if s, ok := value.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func timeField(raw map[string]any, snake, camel string) *time.Time {
	for _, key := range []string{snake, camel} {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case time.Time:
			return &v
		case string:
			if v == "" {
				continue
			}
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, v); err == nil {
					return &t
				}
			}
		}
	}
	return nil
}

func boolField(raw map[string]any, snake, camel string) *bool {
	for _, key := range []string{snake, camel} {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		if b, ok := value.(bool); ok {
			return &b
		}
	}
	return nil
}

func numberField(raw map[string]any, snake, camel string) *float64 {
	for _, key := range []string{snake, camel} {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
