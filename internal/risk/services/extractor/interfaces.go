package extractor

import (
	"context"

	"github.com/haukened/risklists/internal/risk/domain"
)

// ApplicationSource reads the App Discovery inventory.
type ApplicationSource interface {
	ListApplications(ctx context.Context) ([]domain.Application, error)
	ApplicationDetail(ctx context.Context, id int64) (domain.Application, error)
}

// Exclusions decides whether a host is excluded.
type Exclusions interface {
	Decide(name string) domain.ExclusionDecision
}

// RecordWriter persists the records of one tier and returns where they went.
type RecordWriter interface {
	Write(tier domain.RiskTier, records []domain.ApplicationRecord) (string, error)
}

// ConnectFunc opens an ApplicationSource. It is called only after the
// request has been validated, so credentials are never touched for bad input.
type ConnectFunc func(ctx context.Context) (ApplicationSource, error)
