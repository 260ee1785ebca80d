// Package enrich fills in registry metadata (latest version, maintainers,
// deprecation, last update time, license) for dependencies before scoring.
// Enrichment is best-effort: a registry failure leaves the affected fields
// nil and the corresponding components score their neutral bucket.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/retry"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/vulnsource"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxResponseBytes = 8 << 20

// registryClient fetches metadata for one ecosystem's packages.
type registryClient interface {
	// Apply fetches metadata for dep's package and writes what it found into
	// dep's registry fields.
	Apply(ctx context.Context, dep *schemas.Dependency) error
}

// Enricher dispatches dependencies to per-ecosystem registry clients with a
// bounded level of parallelism.
type Enricher struct {
	clients     map[schemas.Ecosystem]registryClient
	concurrency int
	policy      retry.Policy
	logger      *zap.Logger
}

// New wires the npm and PyPI registry clients. Ecosystems without a client
// are silently skipped; their signals stay unknown.
func New(cfg *config.Config, client *http.Client, logger *zap.Logger) *Enricher {
	logger = logger.Named("enrich")
	return &Enricher{
		clients: map[schemas.Ecosystem]registryClient{
			schemas.EcosystemNPM:  &npmRegistry{baseURL: cfg.Enrich.NPMRegistryURL, client: client},
			schemas.EcosystemPyPI: &pypiRegistry{baseURL: cfg.Enrich.PyPIRegistryURL, client: client},
		},
		concurrency: cfg.Aggregator.Concurrency,
		policy: retry.Policy{
			BaseDelay:   cfg.Aggregator.RetryBaseDelay,
			MaxDelay:    cfg.Aggregator.RetryMaxDelay,
			MaxAttempts: cfg.Aggregator.RetryMaxAttempts,
			Jitter:      0.2,
		},
		logger: logger,
	}
}

// Run enriches every dependency in place. It never returns an error for
// registry failures; the only way to stop it early is context cancellation.
func (e *Enricher) Run(ctx context.Context, deps []schemas.Dependency) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range deps {
		client, ok := e.clients[deps[i].Ecosystem]
		if !ok {
			continue
		}
		i := i
		g.Go(func() error {
			_, err := retry.Do(ctx, e.policy, e.logger, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, client.Apply(ctx, &deps[i])
			})
			if err != nil {
				e.logger.Debug("Registry enrichment failed",
					zap.String("dependency", deps[i].Key()),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines always return nil
}

// getJSON performs a GET against a registry endpoint and decodes the body.
// Status classification mirrors the vulnerability sources: 404 is permanent
// (the package simply is not there), 5xx and 429 are transient.
func getJSON(ctx context.Context, client *http.Client, source, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &vulnsource.SourceError{Source: source, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &vulnsource.SourceError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Transient:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &vulnsource.SourceError{Source: source, Transient: true, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &vulnsource.SourceError{Source: source, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
