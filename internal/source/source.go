package source

import (
	"context"
	"fmt"
	"log/slog"

	"GiftScout/internal/config"
	"GiftScout/internal/ports"
)

// Request carries all parameters required to execute a discovery pass.
type Request struct {
	SiteName string
	URL      string
	Query    string
	Pages    int
	Options  map[string]string
}

// Strategy captures a single discovery implementation (scrape, feed, mock).
// It yields raw key-value records for the Normalizer.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, req Request) ([]map[string]string, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("source strategy %s is not registered", name)
}

// MultiSource implements ports.CandidateSource over config-defined sites.
type MultiSource struct {
	registry *Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*MultiSource)(nil)

// NewMultiSource wires the strategy registry with configured sites.
func NewMultiSource(reg *Registry, sites []config.SiteConfig, log *slog.Logger) *MultiSource {
	return &MultiSource{registry: reg, sites: sites, logger: log}
}

// Discover iterates over configured sites and aggregates their raw records.
func (s *MultiSource) Discover(ctx context.Context) ([]map[string]string, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	var aggregated []map[string]string
	for _, site := range s.sites {
		strategy, err := s.registry.Resolve(site.Strategy)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}

		req := Request{
			SiteName: site.Name,
			URL:      site.URL,
			Query:    site.Query,
			Pages:    site.Pages,
			Options:  site.Options,
		}

		records, err := strategy.Discover(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("discover site %s: %w", site.Name, err)
		}

		for _, record := range records {
			if record["vendor_name"] == "" {
				record["vendor_name"] = site.Name
			}
		}

		s.debug("site produced records", "site", site.Name, "strategy", site.Strategy, "count", len(records))
		aggregated = append(aggregated, records...)
	}

	s.debug("discovery done", "total_records", len(aggregated))
	return aggregated, nil
}

func (s *MultiSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
