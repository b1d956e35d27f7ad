package audits

import "context"

// ListFilter narrows audit listings. Zero values mean "no filter".
type ListFilter struct {
	AuditorEmail  string
	EmployeeEmail string
	Status        string
	Page          int
	PerPage       int
}

// Store is the persistence surface for audit records. Lookup misses return
// shared.ErrNotFound.
type Store interface {
	Get(ctx context.Context, id int64) (Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, int, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Acknowledge(ctx context.Context, id int64) (Record, error)
	RequestReversal(ctx context.Context, id int64, reason string) (Record, error)
	RespondReversal(ctx context.Context, id int64, approved bool, response string) (Record, error)
	Rate(ctx context.Context, id int64, rating float64) (Record, error)
}
