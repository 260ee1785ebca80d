package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
)

func newTestScorer(t *testing.T, weights map[string]float64) *Scorer {
	t.Helper()
	cfg := config.NewDefaultConfig()
	if weights != nil {
		cfg.Scoring.Weights = weights
	}
	s := New(cfg)
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func ptr[T any](v T) *T { return &v }

// -- Component Bucket Tests --

func TestStalenessScore(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		t := now.AddDate(0, 0, -d)
		return &t
	}

	assert.Equal(t, 0.5, StalenessScore(nil, now))
	assert.Equal(t, 0.0, StalenessScore(daysAgo(10), now))
	assert.Equal(t, 0.25, StalenessScore(daysAgo(60), now))
	assert.Equal(t, 0.5, StalenessScore(daysAgo(120), now))
	assert.Equal(t, 0.75, StalenessScore(daysAgo(300), now))
	assert.Equal(t, 1.0, StalenessScore(daysAgo(400), now))
}

func TestMaintainersScore(t *testing.T) {
	assert.Equal(t, 0.5, MaintainersScore(nil))
	assert.Equal(t, 0.0, MaintainersScore(ptr(7)))
	assert.Equal(t, 0.0, MaintainersScore(ptr(5)))
	assert.Equal(t, 0.25, MaintainersScore(ptr(4)))
	assert.Equal(t, 0.25, MaintainersScore(ptr(3)))
	assert.Equal(t, 0.5, MaintainersScore(ptr(2)))
	assert.Equal(t, 1.0, MaintainersScore(ptr(1)))
	assert.Equal(t, 1.0, MaintainersScore(ptr(0)))
}

func TestExploitScore(t *testing.T) {
	vulns := []schemas.VulnerabilityRecord{
		{CanonicalID: "CVE-2024-0001", NormalizedScore: 0.4},
		{CanonicalID: "CVE-2024-0002", NormalizedScore: 0.98},
	}

	assert.Equal(t, 0.98, ExploitScore(vulns, false))
	assert.Equal(t, 0.0, ExploitScore(nil, false), "clean with data available scores zero")
	assert.Equal(t, 0.5, ExploitScore(nil, true), "unavailable data scores neutral, not clean")
}

func TestVersionDriftScore(t *testing.T) {
	assert.Equal(t, 0.0, VersionDriftScore("1.2.3", "1.2.3"))
	assert.Equal(t, 0.25, VersionDriftScore("1.2.3", "1.2.9"))
	assert.Equal(t, 0.5, VersionDriftScore("1.2.3", "1.4.0"))
	assert.Equal(t, 1.0, VersionDriftScore("1.2.3", "3.0.0"))
	assert.Equal(t, 0.5, VersionDriftScore("not-a-version", "1.0.0"))
	assert.Equal(t, 0.5, VersionDriftScore("1.0.0", ""))
	assert.Equal(t, 0.0, VersionDriftScore("^1.2.3", "v1.2.3"), "manifest prefixes are stripped")
	assert.Equal(t, 0.0, VersionDriftScore("2.0.0", "1.9.0"), "ahead of latest is not drift")
}

func TestHealthScore(t *testing.T) {
	assert.Equal(t, 0.5, HealthScore(nil))
	assert.Equal(t, 0.5, HealthScore(&schemas.HealthIndicators{}), "no determined indicators is unknown")

	full := &schemas.HealthIndicators{HasTests: ptr(true), HasCI: ptr(true), HasContributionGuidelines: ptr(true)}
	assert.Equal(t, 0.0, HealthScore(full))

	partial := &schemas.HealthIndicators{HasTests: ptr(true), HasCI: ptr(false)}
	assert.Equal(t, 0.5, HealthScore(partial))

	none := &schemas.HealthIndicators{HasTests: ptr(false), HasCI: ptr(false), HasContributionGuidelines: ptr(false)}
	assert.Equal(t, 1.0, HealthScore(none))
}

func TestCategoricalScores(t *testing.T) {
	assert.Equal(t, 0.0, LicenseScore(ptr(schemas.LicensePermissive)))
	assert.Equal(t, 0.3, LicenseScore(ptr(schemas.LicenseWeakCopyleft)))
	assert.Equal(t, 0.5, LicenseScore(ptr(schemas.LicenseStrongCopyleft)))
	assert.Equal(t, 0.7, LicenseScore(ptr(schemas.LicenseNonStandard)))
	assert.Equal(t, 1.0, LicenseScore(ptr(schemas.LicenseNone)))
	assert.Equal(t, 0.5, LicenseScore(nil))

	assert.Equal(t, 0.0, CommunityScore(ptr(schemas.ActivityHigh)))
	assert.Equal(t, 0.4, CommunityScore(ptr(schemas.ActivityModerate)))
	assert.Equal(t, 0.7, CommunityScore(ptr(schemas.ActivityLow)))
	assert.Equal(t, 1.0, CommunityScore(ptr(schemas.ActivityAbandoned)))
	assert.Equal(t, 0.5, CommunityScore(nil))

	assert.Equal(t, 0.0, SecurityPostureScore(ptr(schemas.PostureAll)))
	assert.Equal(t, 1.0, SecurityPostureScore(ptr(schemas.PostureNone)))
	assert.Equal(t, 0.5, SecurityPostureScore(nil))
}

// -- Composite and Level Tests --

// An unmaintained single-maintainer dependency with no vulnerabilities and a
// current version, under the five documented default-ish weights.
func TestCompositeUnmaintainedDependency(t *testing.T) {
	s := newTestScorer(t, map[string]float64{
		string(schemas.ComponentStaleness):    0.25,
		string(schemas.ComponentMaintainers):  0.2,
		string(schemas.ComponentDeprecation):  0.3,
		string(schemas.ComponentExploit):      0.5,
		string(schemas.ComponentVersionDrift): 0.15,
	})

	lastUpdate := s.now().AddDate(0, 0, -400)
	dep := schemas.Dependency{
		Name:             "left-pad",
		Ecosystem:        schemas.EcosystemNPM,
		InstalledVersion: "1.3.0",
		LatestVersion:    "1.3.0",
		MaintainersCount: ptr(1),
		Deprecated:       ptr(false),
		LastUpdateTime:   &lastUpdate,
	}

	score := s.Score(dep)

	require.Equal(t, 1.0, score.ComponentScores[schemas.ComponentStaleness])
	require.Equal(t, 1.0, score.ComponentScores[schemas.ComponentMaintainers])
	require.Equal(t, 0.0, score.ComponentScores[schemas.ComponentDeprecation])
	require.Equal(t, 0.0, score.ComponentScores[schemas.ComponentExploit])
	require.Equal(t, 0.0, score.ComponentScores[schemas.ComponentVersionDrift])

	// (1.0*0.25 + 1.0*0.2) / 1.4 * 5.0 = 45/28
	assert.InDelta(t, 45.0/28.0, score.Composite, 1e-12)
	assert.Equal(t, schemas.RiskMedium, score.RiskLevel)

	assert.Contains(t, score.RiskFactors, "Single maintainer")
	assert.Contains(t, score.RiskFactors, "Not updated in 400+ days")
}

func TestLevelBoundaries(t *testing.T) {
	s := newTestScorer(t, nil)

	// Boundaries are half-open on the low side.
	assert.Equal(t, schemas.RiskLow, s.Level(0.0))
	assert.Equal(t, schemas.RiskLow, s.Level(1.2499))
	assert.Equal(t, schemas.RiskMedium, s.Level(1.25), "exactly 25% of max belongs to MEDIUM")
	assert.Equal(t, schemas.RiskHigh, s.Level(2.5))
	assert.Equal(t, schemas.RiskCritical, s.Level(3.75))
	assert.Equal(t, schemas.RiskCritical, s.Level(5.0))
}

func TestCompositeStaysWithinBounds(t *testing.T) {
	s := newTestScorer(t, nil)

	worst := schemas.Dependency{
		Name:                         "doomed",
		Ecosystem:                    schemas.EcosystemPyPI,
		InstalledVersion:             "0.1.0",
		LatestVersion:                "4.0.0",
		MaintainersCount:             ptr(1),
		Deprecated:                   ptr(true),
		License:                      ptr(schemas.LicenseNone),
		Community:                    ptr(schemas.ActivityAbandoned),
		SecurityPosture:              ptr(schemas.PostureNone),
		Health:                       &schemas.HealthIndicators{HasTests: ptr(false), HasCI: ptr(false)},
		Vulnerabilities:              []schemas.VulnerabilityRecord{{CanonicalID: "CVE-2026-1", NormalizedScore: 1.0}},
		VulnerabilityDataUnavailable: false,
	}
	lastUpdate := s.now().AddDate(-3, 0, 0)
	worst.LastUpdateTime = &lastUpdate

	score := s.Score(worst)
	assert.InDelta(t, 5.0, score.Composite, 1e-9, "all-ones components hit max score")
	assert.Equal(t, schemas.RiskCritical, score.RiskLevel)

	best := schemas.Dependency{
		Name:             "pristine",
		Ecosystem:        schemas.EcosystemNPM,
		InstalledVersion: "2.0.0",
		LatestVersion:    "2.0.0",
		MaintainersCount: ptr(9),
		Deprecated:       ptr(false),
		License:          ptr(schemas.LicensePermissive),
		Community:        ptr(schemas.ActivityHigh),
		SecurityPosture:  ptr(schemas.PostureAll),
		Health:           &schemas.HealthIndicators{HasTests: ptr(true), HasCI: ptr(true), HasContributionGuidelines: ptr(true)},
	}
	recent := s.now().AddDate(0, 0, -3)
	best.LastUpdateTime = &recent

	score = s.Score(best)
	assert.Equal(t, 0.0, score.Composite)
	assert.Equal(t, schemas.RiskLow, score.RiskLevel)
	assert.Empty(t, score.RiskFactors)
}

func TestRiskFactorOrdering(t *testing.T) {
	s := newTestScorer(t, nil)

	lastUpdate := s.now().AddDate(-2, 0, 0)
	dep := schemas.Dependency{
		Name:             "risky",
		Ecosystem:        schemas.EcosystemNPM,
		InstalledVersion: "1.0.0",
		MaintainersCount: ptr(1),
		Deprecated:       ptr(true),
		LastUpdateTime:   &lastUpdate,
		Vulnerabilities: []schemas.VulnerabilityRecord{
			{CanonicalID: "CVE-2026-2", NormalizedScore: 1.0},
		},
	}

	factors := s.Score(dep).RiskFactors
	require.NotEmpty(t, factors)

	// Exploit outranks deprecation, which outranks the rest.
	assert.Equal(t, "Known critical vulnerability present", factors[0])
	assert.Equal(t, "Deprecated by upstream", factors[1])
	assert.Equal(t, "Single maintainer", factors[2])
}

func TestUnavailableDataDoesNotClaimVulnerability(t *testing.T) {
	s := newTestScorer(t, nil)

	dep := schemas.Dependency{
		Name:                         "opaque",
		Ecosystem:                    schemas.EcosystemGo,
		InstalledVersion:             "1.0.0",
		VulnerabilityDataUnavailable: true,
	}

	score := s.Score(dep)
	assert.Equal(t, 0.5, score.ComponentScores[schemas.ComponentExploit])
	assert.NotContains(t, score.RiskFactors, "Known critical vulnerability present")
	assert.NotContains(t, score.RiskFactors, "Known high-severity vulnerability present")
}
