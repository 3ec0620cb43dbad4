// Package extractor selects the App Discovery applications of one risk
// tier, strips excluded hosts and writes the result as an artifact.
package extractor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/common/utils"
	"github.com/haukened/risklists/internal/risk/domain"
)

// Options configures a Service.
type Options struct {
	Connect      ConnectFunc
	Exclusions   Exclusions
	Writer       RecordWriter
	FetchDetails bool
	Logger       log.Logger
}

// Service runs the extraction step.
type Service struct {
	connect      ConnectFunc
	exclusions   Exclusions
	writer       RecordWriter
	fetchDetails bool
	logger       log.Logger
}

// Result summarizes one extraction.
type Result struct {
	Tier          domain.RiskTier
	Fetched       int // applications in the inventory
	Matched       int // applications of the requested tier
	Written       int // records written
	ExcludedHosts int // hosts removed by the exclusion set
	Dropped       int // matched applications left without hosts
	Path          string
	// ExcludedDomains groups the removed hosts by registrable domain.
	ExcludedDomains []DomainCount
}

// DomainCount is the number of excluded hosts under one registrable domain.
type DomainCount struct {
	Domain string
	Hosts  int
}

// New returns a Service. Connect, Exclusions and Writer are required.
func New(opts Options) (*Service, error) {
	if opts.Connect == nil {
		return nil, fmt.Errorf("application source is required")
	}
	if opts.Exclusions == nil {
		return nil, fmt.Errorf("exclusion set is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("record writer is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Service{
		connect:      opts.Connect,
		exclusions:   opts.Exclusions,
		writer:       opts.Writer,
		fetchDetails: opts.FetchDetails,
		logger:       opts.Logger,
	}, nil
}

// Extract fetches the inventory, keeps the applications of tier, removes
// excluded hosts and writes the records. The tier is checked before any
// remote work.
func (s *Service) Extract(ctx context.Context, tier domain.RiskTier) (Result, error) {
	if !tier.Valid() {
		return Result{}, fmt.Errorf("%w: unsupported risk tier %d", domain.ErrInvalidArgument, tier)
	}
	res := Result{Tier: tier}

	src, err := s.connect(ctx)
	if err != nil {
		return res, err
	}
	apps, err := src.ListApplications(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch applications: %w", err)
	}
	res.Fetched = len(apps)

	matched := SelectTier(apps, tier)
	res.Matched = len(matched)
	s.logger.Info(map[string]any{"tier": tier.String(), "fetched": res.Fetched, "matched": res.Matched}, "applications_fetched")

	if s.fetchDetails {
		matched, err = s.enrich(ctx, src, matched)
		if err != nil {
			return res, err
		}
	}

	records, excluded := BuildRecords(matched, tier, s.exclusions)
	for _, ex := range excluded {
		s.logger.Debug(map[string]any{"app": ex.App, "host": ex.Host, "rule": ex.Decision.MatchedRule, "source": ex.Decision.Source}, "host_excluded")
	}
	res.ExcludedHosts = len(excluded)
	res.ExcludedDomains = GroupByDomain(excluded)
	res.Written = len(records)
	res.Dropped = res.Matched - res.Written

	path, err := s.writer.Write(tier, records)
	if err != nil {
		return res, fmt.Errorf("write records: %w", err)
	}
	res.Path = path
	s.logger.Info(map[string]any{"tier": tier.String(), "records": res.Written, "excluded_hosts": res.ExcludedHosts, "path": path}, "records_written")
	return res, nil
}

// enrich merges hosts from the per-application detail endpoint. Detail
// failures other than authentication are logged and skipped.
func (s *Service) enrich(ctx context.Context, src ApplicationSource, apps []domain.Application) ([]domain.Application, error) {
	out := make([]domain.Application, len(apps))
	for i, app := range apps {
		out[i] = app
		if app.ID == 0 {
			continue
		}
		detail, err := src.ApplicationDetail(ctx, app.ID)
		if err != nil {
			if isFatal(ctx, err) {
				return nil, fmt.Errorf("fetch application %d: %w", app.ID, err)
			}
			s.logger.Warn(map[string]any{"app": app.Name, "id": app.ID, "error": err.Error()}, "application_detail_failed")
			continue
		}
		out[i].Hosts = mergeHosts(app.Hosts, detail.Hosts)
	}
	return out, nil
}

func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || domain.ExitCode(err) == domain.ExitAuthentication
}

// SelectTier returns the applications whose weighted risk names tier, in
// their original order.
func SelectTier(apps []domain.Application, tier domain.RiskTier) []domain.Application {
	out := make([]domain.Application, 0, len(apps))
	for _, a := range apps {
		if tier.Matches(a.WeightedRisk) {
			out = append(out, a)
		}
	}
	return out
}

// ExcludedHost records one host removed by the exclusion set.
type ExcludedHost struct {
	App      string
	Host     string
	Decision domain.ExclusionDecision
}

// BuildRecords turns applications into records, dropping excluded hosts
// and then applications left without hosts. Record order follows apps;
// domains are sorted.
func BuildRecords(apps []domain.Application, tier domain.RiskTier, excl Exclusions) ([]domain.ApplicationRecord, []ExcludedHost) {
	records := make([]domain.ApplicationRecord, 0, len(apps))
	var excluded []ExcludedHost
	for _, app := range apps {
		kept := make([]string, 0, len(app.Hosts))
		for _, h := range mergeHosts(app.Hosts, nil) {
			if d := excl.Decide(h); d.Excluded {
				excluded = append(excluded, ExcludedHost{App: app.Name, Host: h, Decision: d})
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) == 0 {
			continue
		}
		name := strings.TrimSpace(app.Name)
		if name == "" {
			name = fmt.Sprintf("application %d", app.ID)
		}
		records = append(records, domain.ApplicationRecord{
			ID:       app.ID,
			Name:     name,
			Domains:  kept,
			RiskTier: tier,
		})
	}
	return records, excluded
}

// GroupByDomain counts excluded hosts per registrable domain, so that
// "mail.google.com" and "docs.google.com" report as google.com. The result
// is ordered by count, then name.
func GroupByDomain(excluded []ExcludedHost) []DomainCount {
	if len(excluded) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, ex := range excluded {
		counts[utils.GetApexDomain(ex.Host)]++
	}
	out := make([]DomainCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DomainCount{Domain: d, Hosts: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hosts != out[j].Hosts {
			return out[i].Hosts > out[j].Hosts
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// mergeHosts returns the sorted union of a and b without empty names.
func mergeHosts(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, h := range list {
			if h == "" {
				continue
			}
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	sort.Strings(out)
	return out
}
