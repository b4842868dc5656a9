package engine

import (
	"context"

	grantdomain "school-admin/backend/internal/grant/domain"
)

// AccessResult holds the result of one service access evaluation.
type AccessResult struct {
	HasFlag             bool
	HierarchySufficient bool
	CanAccess           bool
}

// Evaluator decides service access from a grant and a catalog entry using OPA
// or other engines.
type Evaluator interface {
	// EvaluateAccess evaluates whether the grant permits the service. grant
	// may be nil (no permissions assigned), which always denies.
	EvaluateAccess(
		ctx context.Context,
		grant *grantdomain.AccessGrant,
		service *grantdomain.ServiceDefinition,
	) (AccessResult, error)
}
