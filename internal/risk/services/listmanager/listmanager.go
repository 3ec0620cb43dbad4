// Package listmanager reconciles an extractor artifact with the remote
// destination list named after its risk tier. Entries are only ever added.
package listmanager

import (
	"context"
	"fmt"

	"github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/common/utils"
	"github.com/haukened/risklists/internal/risk/domain"
)

const defaultAccess = "block"

// Options configures a Service.
type Options struct {
	Connect ConnectFunc
	Reader  RecordReader
	// Exclusions, when set, drops entries the exclusion set covers. A hand
	// edited file may carry high-volume domains the API would reject.
	Exclusions Exclusions
	// Access of lists created by Sync; "block" when empty.
	Access string
	Logger log.Logger
}

// Service runs the list manager step.
type Service struct {
	connect    ConnectFunc
	reader     RecordReader
	exclusions Exclusions
	access     string
	logger     log.Logger
}

// Result summarizes one sync.
type Result struct {
	Tier       domain.RiskTier
	ListName   string
	ListID     int64
	Created    bool
	Candidates int // unique entries derived from the file
	Skipped    int // entries dropped by the exclusion set
	Existing   int // entries already in the list
	Added      int
	NoOp       bool
}

// New returns a Service. Connect and Reader are required.
func New(opts Options) (*Service, error) {
	if opts.Connect == nil {
		return nil, fmt.Errorf("destination store is required")
	}
	if opts.Reader == nil {
		return nil, fmt.Errorf("record reader is required")
	}
	if opts.Access == "" {
		opts.Access = defaultAccess
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Service{
		connect:    opts.Connect,
		reader:     opts.Reader,
		exclusions: opts.Exclusions,
		access:     opts.Access,
		logger:     opts.Logger,
	}, nil
}

// Sync makes sure the destination list for the artifact at path exists and
// holds every domain in it. The file is fully validated before the first
// remote call, and nothing is written when the list is already complete.
func (s *Service) Sync(ctx context.Context, path string) (Result, error) {
	tier, records, err := s.reader.Read(path)
	if err != nil {
		return Result{}, err
	}
	res := Result{Tier: tier, ListName: tier.ListName()}

	candidates, err := BuildEntries(tier, records)
	if err != nil {
		return res, err
	}
	candidates, res.Skipped = s.dropExcluded(candidates)
	res.Candidates = len(domain.MissingEntries(candidates, nil))
	if len(candidates) == 0 {
		s.logger.Warn(map[string]any{"path": path, "list": res.ListName}, "no_destinations_in_file")
		res.NoOp = true
		return res, nil
	}

	store, err := s.connect(ctx)
	if err != nil {
		return res, err
	}

	list, created, err := s.ensureList(ctx, store, res.ListName)
	if err != nil {
		return res, err
	}
	res.ListID, res.Created = list.ID, created

	var existing []string
	if !created {
		existing, err = store.ListDestinations(ctx, list.ID)
		if err != nil {
			return res, fmt.Errorf("read list %q: %w", list.Name, err)
		}
	}
	res.Existing = len(existing)

	missing := domain.MissingEntries(candidates, existing)
	if len(missing) == 0 {
		res.NoOp = true
		s.logger.Info(map[string]any{"list": list.Name, "id": list.ID, "existing": res.Existing}, "destination_list_up_to_date")
		return res, nil
	}

	added, err := store.AddDestinations(ctx, list.ID, missing)
	res.Added = added
	if err != nil {
		return res, fmt.Errorf("update list %q: %w", list.Name, err)
	}
	s.logger.Info(map[string]any{"list": list.Name, "id": list.ID, "added": added}, "destination_list_updated")
	return res, nil
}

// dropExcluded removes entries whose host the exclusion set covers.
func (s *Service) dropExcluded(entries []domain.DestinationEntry) ([]domain.DestinationEntry, int) {
	if s.exclusions == nil {
		return entries, 0
	}
	kept := entries[:0:0]
	for _, e := range entries {
		host := e.Destination
		if e.Type == domain.DestinationURL {
			host = utils.HostFromURL(e.Destination)
		}
		if s.exclusions.IsExcluded(host) {
			s.logger.Warn(map[string]any{"destination": e.Destination, "comment": e.Comment}, "excluded_destination_skipped")
			continue
		}
		kept = append(kept, e)
	}
	return kept, len(entries) - len(kept)
}

// ensureList finds the list by exact name or creates it.
func (s *Service) ensureList(ctx context.Context, store DestinationStore, name string) (domain.DestinationList, bool, error) {
	lists, err := store.ListDestinationLists(ctx)
	if err != nil {
		return domain.DestinationList{}, false, fmt.Errorf("read destination lists: %w", err)
	}
	var found []domain.DestinationList
	for _, l := range lists {
		if l.Name == name {
			found = append(found, l)
		}
	}
	if len(found) > 0 {
		if len(found) > 1 {
			s.logger.Warn(map[string]any{"list": name, "count": len(found), "using": found[0].ID}, "duplicate_destination_lists")
		}
		return found[0], false, nil
	}
	list, err := store.CreateDestinationList(ctx, name, s.access)
	if err != nil {
		return domain.DestinationList{}, false, fmt.Errorf("create list %q: %w", name, err)
	}
	return list, true, nil
}

// EntryComment is the comment attached to every entry of app.
func EntryComment(tier domain.RiskTier, app string) string {
	return fmt.Sprintf("From %s risk app: %s", tier, app)
}

// BuildEntries flattens the domains of all records into destination
// entries in file order. A domain that cannot become an entry is invalid input.
func BuildEntries(tier domain.RiskTier, records []domain.ApplicationRecord) ([]domain.DestinationEntry, error) {
	var out []domain.DestinationEntry
	for _, r := range records {
		for _, d := range r.Domains {
			e, err := domain.NewDestinationEntry(d, EntryComment(tier, r.Name))
			if err != nil {
				return nil, fmt.Errorf("%w: application %q: %v", domain.ErrInvalidInput, r.Name, err)
			}
			out = append(out, e)
		}
	}
	return out, nil
}
