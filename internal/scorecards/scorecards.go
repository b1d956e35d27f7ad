// Package scorecards manages the grading templates audits are scored
// against.
package scorecards

import (
	"context"
	"time"
)

// Scorecard is a grading template.
type Scorecard struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	MaxScore    float64   `json:"max_score"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is the persistence surface for scorecards.
type Store interface {
	Get(ctx context.Context, id int64) (Scorecard, error)
	List(ctx context.Context) ([]Scorecard, error)
	Create(ctx context.Context, card Scorecard) (Scorecard, error)
	Update(ctx context.Context, card Scorecard) (Scorecard, error)
	Delete(ctx context.Context, id int64) error
}
