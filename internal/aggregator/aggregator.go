// Package aggregator fans out vulnerability queries across every configured
// source for every dependency, bounded by a weighted semaphore, and merges
// the per-source results into deduplicated records on each dependency.
package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/retry"
)

// Aggregator coordinates cache lookups, retried source fetches, and
// cross-source merging. It is safe for a single Run per instance.
type Aggregator struct {
	sources []schemas.Source
	cache   schemas.VulnCache

	concurrency int64
	timeout     time.Duration
	policy      retry.Policy
	readCache   bool

	logger *zap.Logger
}

// New builds an aggregator from the resolved configuration. cache may be nil,
// which disables both reads and write-through.
func New(cfg *config.Config, sources []schemas.Source, cache schemas.VulnCache, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		sources:     sources,
		cache:       cache,
		concurrency: int64(cfg.Aggregator.Concurrency),
		timeout:     cfg.Aggregator.GlobalTimeout,
		policy: retry.Policy{
			BaseDelay:   cfg.Aggregator.RetryBaseDelay,
			MaxDelay:    cfg.Aggregator.RetryMaxDelay,
			MaxAttempts: cfg.Aggregator.RetryMaxAttempts,
			Jitter:      0.2,
		},
		readCache: !cfg.Cache.NoCache,
		logger:    logger.Named("aggregator"),
	}
}

// fetchResult is the outcome of one (dependency, source) task.
type fetchResult struct {
	records []schemas.VulnerabilityRecord
	err     error
}

// Run enriches every dependency in place with merged vulnerability records.
// A dependency whose sources all failed (or that never completed before the
// global timeout) comes back with VulnerabilityDataUnavailable set and an
// empty record list; source errors never abort the run.
func (a *Aggregator) Run(ctx context.Context, deps []schemas.Dependency) {
	if len(a.sources) == 0 {
		for i := range deps {
			deps[i].Vulnerabilities = []schemas.VulnerabilityRecord{}
			deps[i].VulnerabilityDataUnavailable = true
		}
		return
	}
	if len(deps) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	sem := semaphore.NewWeighted(a.concurrency)
	var wg sync.WaitGroup

	// results[i][j] is owned exclusively by the (i, j) goroutine, so no lock
	// is needed around the writes.
	results := make([][]fetchResult, len(deps))
	for i := range results {
		results[i] = make([]fetchResult, len(a.sources))
	}

	for i := range deps {
		for j := range a.sources {
			wg.Add(1)
			go func(i, j int) {
				defer wg.Done()
				results[i][j] = a.fetchOne(ctx, sem, deps[i], a.sources[j])
			}(i, j)
		}
	}
	wg.Wait()

	for i := range deps {
		a.resolve(&deps[i], results[i])
	}
}

// fetchOne serves one (dependency, source) pair: cache read, retried fetch,
// write-through. Cache hits resolve before the semaphore is touched, so they
// never consume a slot a real network fetch could be using.
func (a *Aggregator) fetchOne(ctx context.Context, sem *semaphore.Weighted, dep schemas.Dependency, src schemas.Source) fetchResult {
	key := schemas.CacheKey{
		Ecosystem: dep.Ecosystem,
		Package:   dep.Name,
		Version:   dep.InstalledVersion,
		Source:    src.Name(),
	}

	if a.cache != nil && a.readCache {
		if records, ok := a.cache.Get(key); ok {
			a.logger.Debug("Cache hit",
				zap.String("dependency", dep.Key()),
				zap.String("source", src.Name()),
			)
			return fetchResult{records: records}
		}
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return fetchResult{err: err}
	}
	defer sem.Release(1)

	records, err := retry.Do(ctx, a.policy, a.logger, func(ctx context.Context) ([]schemas.VulnerabilityRecord, error) {
		return src.Fetch(ctx, dep.Ecosystem, dep.Name, dep.InstalledVersion)
	})
	if err != nil {
		a.logger.Warn("Source query failed",
			zap.String("dependency", dep.Key()),
			zap.String("source", src.Name()),
			zap.Error(err),
		)
		return fetchResult{err: err}
	}

	if a.cache != nil {
		if err := a.cache.Put(key, nil, records); err != nil {
			a.logger.Warn("Cache write failed",
				zap.String("dependency", dep.Key()),
				zap.String("source", src.Name()),
				zap.Error(err),
			)
		}
	}
	return fetchResult{records: records}
}

// resolve folds the per-source outcomes for one dependency into its final
// record list. Partial failure keeps the successful sources; total failure
// marks the data unavailable.
func (a *Aggregator) resolve(dep *schemas.Dependency, outcomes []fetchResult) {
	var collected []schemas.VulnerabilityRecord
	succeeded := 0

	for _, out := range outcomes {
		if out.err != nil {
			continue
		}
		succeeded++
		collected = append(collected, out.records...)
	}

	if succeeded == 0 {
		dep.Vulnerabilities = []schemas.VulnerabilityRecord{}
		dep.VulnerabilityDataUnavailable = true
		a.logger.Warn("No vulnerability data available",
			zap.String("dependency", dep.Key()),
			zap.Error(firstError(outcomes)),
		)
		return
	}

	dep.Vulnerabilities = mergeRecords(collected)
	dep.VulnerabilityDataUnavailable = false
}

func firstError(outcomes []fetchResult) error {
	for _, out := range outcomes {
		if out.err != nil && !errors.Is(out.err, context.Canceled) {
			return out.err
		}
	}
	for _, out := range outcomes {
		if out.err != nil {
			return out.err
		}
	}
	return nil
}
