// Package tier answers subscription-tier lookups for admission decisions.
// The billing system itself is an external collaborator; this package only
// defines the port the pipeline consults once per upload request.
package tier

import "context"

// Service reports whether a user is on a paid plan. The answer is consulted
// once at admission time and never re-checked during processing: a job's
// priority is fixed at creation.
type Service interface {
	IsPaidTier(ctx context.Context, userID string) (bool, error)
}

// Compile-time check that Static implements Service.
var _ Service = (*Static)(nil)

// Static is a Service backed by a fixed set of paid user IDs, seeded from
// configuration. It stands in for the billing service in development and
// tests.
type Static struct {
	paid map[string]struct{}
}

// NewStatic creates a Static tier service from a list of paid user IDs.
func NewStatic(paidUserIDs []string) *Static {
	paid := make(map[string]struct{}, len(paidUserIDs))
	for _, id := range paidUserIDs {
		if id != "" {
			paid[id] = struct{}{}
		}
	}
	return &Static{paid: paid}
}

// IsPaidTier reports whether the user ID is in the paid set.
func (s *Static) IsPaidTier(_ context.Context, userID string) (bool, error) {
	_, ok := s.paid[userID]
	return ok, nil
}
