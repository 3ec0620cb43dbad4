package listmanager

import (
	"context"

	"github.com/haukened/risklists/internal/risk/domain"
)

// DestinationStore is the Policies API surface the list manager needs.
type DestinationStore interface {
	ListDestinationLists(ctx context.Context) ([]domain.DestinationList, error)
	CreateDestinationList(ctx context.Context, name, access string) (domain.DestinationList, error)
	ListDestinations(ctx context.Context, id int64) ([]string, error)
	AddDestinations(ctx context.Context, id int64, entries []domain.DestinationEntry) (int, error)
}

// RecordReader loads and validates an extractor artifact.
type RecordReader interface {
	Read(path string) (domain.RiskTier, []domain.ApplicationRecord, error)
}

// Exclusions reports hosts that must never be pushed to a list.
type Exclusions interface {
	IsExcluded(name string) bool
}

// ConnectFunc opens a DestinationStore once the input has been validated.
type ConnectFunc func(ctx context.Context) (DestinationStore, error)
