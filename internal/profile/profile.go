// Package profile folds scored dependencies into the final project profile.
// The fold is deterministic and performs no I/O: identical inputs always
// produce an identical profile apart from the run id and timestamp, both of
// which are injectable for golden-file tests.
package profile

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// Builder assembles project profiles. The zero value is not usable; call New.
type Builder struct {
	newID func() string
	now   func() time.Time
}

// New returns a builder using real ids and wall-clock time.
func New() *Builder {
	return &Builder{
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

// Build folds the scored dependencies into a profile. The slice order is the
// manifest order and is preserved untouched in the output.
func (b *Builder) Build(manifestPath string, eco schemas.Ecosystem, deps []schemas.ScoredDependency) schemas.ProjectProfile {
	p := schemas.ProjectProfile{
		RunID:        b.newID(),
		ManifestPath: manifestPath,
		Ecosystem:    eco,
		GeneratedAt:  b.now().UTC(),
		Dependencies: deps,
		LevelCounts: map[schemas.RiskLevel]int{
			schemas.RiskLow:      0,
			schemas.RiskMedium:   0,
			schemas.RiskHigh:     0,
			schemas.RiskCritical: 0,
		},
	}

	var sum float64
	for _, sd := range deps {
		sum += sd.Score.Composite
		p.LevelCounts[sd.Score.RiskLevel]++
		if sd.Dependency.VulnerabilityDataUnavailable {
			p.UnavailableCount++
		}
	}
	if len(deps) > 0 {
		p.OverallScore = sum / float64(len(deps))
	}
	return p
}

// ByDescendingRisk returns a derived view sorted from riskiest to safest,
// tie-broken by dependency key so the ordering is total. The profile itself
// is not mutated.
func ByDescendingRisk(p schemas.ProjectProfile) []schemas.ScoredDependency {
	view := make([]schemas.ScoredDependency, len(p.Dependencies))
	copy(view, p.Dependencies)
	sort.SliceStable(view, func(i, j int) bool {
		if view[i].Score.Composite != view[j].Score.Composite {
			return view[i].Score.Composite > view[j].Score.Composite
		}
		return view[i].Dependency.Key() < view[j].Dependency.Key()
	})
	return view
}
