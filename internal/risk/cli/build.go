package cli

import (
	"context"
	"fmt"

	"github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/config"
	"github.com/haukened/risklists/internal/risk/domain"
	"github.com/haukened/risklists/internal/risk/gateways/umbrella"
	"github.com/haukened/risklists/internal/risk/repos/appfile"
	"github.com/haukened/risklists/internal/risk/repos/exclusion"
	"github.com/haukened/risklists/internal/risk/repos/exclusion/bloom"
	"github.com/haukened/risklists/internal/risk/repos/exclusion/lru"
	"github.com/haukened/risklists/internal/risk/repos/exclusion/parsers"
	"github.com/haukened/risklists/internal/risk/services/extractor"
	"github.com/haukened/risklists/internal/risk/services/listmanager"
)

// buildExclusions assembles the built-in, configured and file rules into a
// repository backed by a bloom filter and an LRU decision cache.
func buildExclusions(cfg *config.AppConfig, logger log.Logger) (exclusion.Repository, error) {
	rules := exclusion.DefaultRules()

	envRules, err := parsers.ParseNames(cfg.Exclude, parsers.EnvSource)
	if err != nil {
		return nil, err
	}
	rules = append(rules, envRules...)

	if cfg.ExclusionsFile != "" {
		fileRules, err := parsers.LoadFile(cfg.ExclusionsFile, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
		rules = append(rules, fileRules...)
	}

	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create exclusion cache: %w", err)
	}
	repo := exclusion.NewRepository(rules, cache, bloom.NewFactory())

	bySource := map[string]int{}
	for _, r := range repo.Rules() {
		bySource[r.Source]++
	}
	logger.Info(map[string]any{
		"rules":      repo.Stats().Rules,
		"sources":    bySource,
		"file":       cfg.ExclusionsFile,
		"cache_size": cfg.CacheSize,
	}, "Exclusion set loaded")
	return repo, nil
}

// newUmbrellaClient builds an authenticated gateway client.
func newUmbrellaClient(cfg *config.AppConfig, creds config.Credentials, logger log.Logger) (*umbrella.Client, error) {
	return umbrella.NewClient(umbrella.Options{
		BaseURL:      cfg.BaseURL,
		AuthURL:      cfg.AuthURL,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Timeout:      cfg.Timeout,
		RetryMax:     cfg.RetryMax,
		PageLimit:    cfg.PageLimit,
		BatchSize:    cfg.BatchSize,
		Logger:       logger,
	})
}

// buildExtractor wires the extractor service. Credentials are resolved only
// when the service connects.
func buildExtractor(cfg *config.AppConfig) (*extractor.Service, exclusion.Repository, error) {
	logger := log.GetLogger().With(map[string]any{"cmd": "risk-extractor"})

	excl, err := buildExclusions(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := extractor.New(extractor.Options{
		Connect: func(context.Context) (extractor.ApplicationSource, error) {
			creds, err := cfg.AppDiscoveryCredentials()
			if err != nil {
				return nil, err
			}
			client, err := newUmbrellaClient(cfg, creds, logger.With(map[string]any{"api": "appDiscovery"}))
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Exclusions:   excl,
		Writer:       appfile.Store{Dir: cfg.OutputDir},
		FetchDetails: cfg.FetchDetails,
		Logger:       logger,
	})
	return svc, excl, err
}

// logExclusionStats reports how the exclusion set was used during a run.
func logExclusionStats(repo exclusion.Repository) {
	st := repo.Stats()
	log.Debug(map[string]any{
		"rules":         st.Rules,
		"cached":        st.Cached,
		"excluded_hits": st.ExcludedHits,
		"allowed_hits":  st.AllowedHits,
		"misses":        st.Misses,
		"evictions":     st.Evictions,
		"bloom_skip":    st.BloomSkip,
	}, "Exclusion cache stats")
}

// buildListManager wires the list manager service.
func buildListManager(cfg *config.AppConfig) (*listmanager.Service, error) {
	logger := log.GetLogger().With(map[string]any{"cmd": "destlist-manager"})

	excl, err := buildExclusions(cfg, logger)
	if err != nil {
		return nil, err
	}
	return listmanager.New(listmanager.Options{
		Connect: func(context.Context) (listmanager.DestinationStore, error) {
			creds, err := cfg.PoliciesCredentials()
			if err != nil {
				return nil, err
			}
			client, err := newUmbrellaClient(cfg, creds, logger.With(map[string]any{"api": "policies"}))
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Reader:     appfile.Store{Dir: cfg.OutputDir},
		Exclusions: excl,
		Access:     cfg.ListAccess,
		Logger:     logger,
	})
}
