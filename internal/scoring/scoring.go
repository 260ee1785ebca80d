// Package scoring turns an enriched dependency into a composite risk score.
// Every component function is pure and table-driven: raw signals map to a
// [0,1] score through explicit buckets, and the composite is the weighted
// mean stretched onto [0, max_score].
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
)

// unknownScore is the neutral bucket for any signal the pipeline could not
// determine. It is deliberately not zero: absence of data is not absence of
// risk.
const unknownScore = 0.5

// Scorer computes risk scores under one fixed weight configuration. It holds
// no mutable state; the injected clock exists only so staleness buckets can
// be pinned in tests.
type Scorer struct {
	weights  schemas.WeightConfig
	maxScore float64
	notable  float64
	now      func() time.Time
}

// New builds a scorer from the resolved configuration.
func New(cfg *config.Config) *Scorer {
	return &Scorer{
		weights:  cfg.WeightConfig(),
		maxScore: cfg.Scoring.MaxScore,
		notable:  cfg.Scoring.NotableThreshold,
		now:      time.Now,
	}
}

// Score computes the full risk verdict for one dependency.
func (s *Scorer) Score(dep schemas.Dependency) schemas.DependencyRiskScore {
	components := make(map[schemas.Component]float64, len(s.weights))

	var weighted, totalWeight float64
	for component, weight := range s.weights {
		score := s.componentScore(component, dep)
		components[component] = score
		weighted += score * weight
		totalWeight += weight
	}

	composite := 0.0
	if totalWeight > 0 {
		composite = weighted / totalWeight * s.maxScore
	}

	return schemas.DependencyRiskScore{
		ComponentScores: components,
		Composite:       composite,
		RiskLevel:       s.Level(composite),
		RiskFactors:     s.riskFactors(dep, components),
	}
}

// Level maps a composite score onto the four risk bands. Band boundaries are
// half-open on the low side: a score at exactly 25% of max is MEDIUM, at
// exactly 50% HIGH, at exactly 75% CRITICAL.
func (s *Scorer) Level(composite float64) schemas.RiskLevel {
	pct := composite / s.maxScore
	switch {
	case pct < 0.25:
		return schemas.RiskLow
	case pct < 0.50:
		return schemas.RiskMedium
	case pct < 0.75:
		return schemas.RiskHigh
	default:
		return schemas.RiskCritical
	}
}

func (s *Scorer) componentScore(c schemas.Component, dep schemas.Dependency) float64 {
	switch c {
	case schemas.ComponentStaleness:
		return StalenessScore(dep.LastUpdateTime, s.now())
	case schemas.ComponentMaintainers:
		return MaintainersScore(dep.MaintainersCount)
	case schemas.ComponentDeprecation:
		return DeprecationScore(dep.Deprecated)
	case schemas.ComponentExploit:
		return ExploitScore(dep.Vulnerabilities, dep.VulnerabilityDataUnavailable)
	case schemas.ComponentVersionDrift:
		return VersionDriftScore(dep.InstalledVersion, dep.LatestVersion)
	case schemas.ComponentHealth:
		return HealthScore(dep.Health)
	case schemas.ComponentLicense:
		return LicenseScore(dep.License)
	case schemas.ComponentCommunity:
		return CommunityScore(dep.Community)
	case schemas.ComponentSecurityPosture:
		return SecurityPostureScore(dep.SecurityPosture)
	default:
		return unknownScore
	}
}

// StalenessScore buckets the time since the last upstream update.
func StalenessScore(lastUpdate *time.Time, now time.Time) float64 {
	if lastUpdate == nil {
		return unknownScore
	}
	days := now.Sub(*lastUpdate).Hours() / 24
	switch {
	case days < 30:
		return 0.0
	case days < 90:
		return 0.25
	case days < 180:
		return 0.5
	case days < 365:
		return 0.75
	default:
		return 1.0
	}
}

// MaintainersScore buckets the maintainer head-count. Bus factor of one is
// scored as severely as abandonment.
func MaintainersScore(count *int) float64 {
	if count == nil {
		return unknownScore
	}
	switch {
	case *count >= 5:
		return 0.0
	case *count >= 3:
		return 0.25
	case *count == 2:
		return 0.5
	default:
		return 1.0
	}
}

// DeprecationScore is binary. A dependency not known to be deprecated scores
// zero; deprecation is a declared fact, not a measured signal, so there is no
// neutral bucket.
func DeprecationScore(deprecated *bool) float64 {
	if deprecated != nil && *deprecated {
		return 1.0
	}
	return 0.0
}

// ExploitScore is the worst normalized severity among known vulnerabilities.
// A clean list with available data scores zero; unavailable data falls back
// to the neutral bucket so missing feeds never masquerade as a clean bill.
func ExploitScore(vulns []schemas.VulnerabilityRecord, unavailable bool) float64 {
	if unavailable {
		return unknownScore
	}
	worst := 0.0
	for _, v := range vulns {
		worst = math.Max(worst, v.NormalizedScore)
	}
	return worst
}

// HealthScore is 1 minus the fraction of hygiene indicators present. Only
// determined indicators count toward the denominator.
func HealthScore(h *schemas.HealthIndicators) float64 {
	if h == nil {
		return unknownScore
	}
	total, present := 0, 0
	for _, ind := range []*bool{h.HasTests, h.HasCI, h.HasContributionGuidelines} {
		if ind == nil {
			continue
		}
		total++
		if *ind {
			present++
		}
	}
	if total == 0 {
		return unknownScore
	}
	return 1.0 - float64(present)/float64(total)
}

var licenseTable = map[schemas.LicenseCategory]float64{
	schemas.LicensePermissive:     0.0,
	schemas.LicenseWeakCopyleft:   0.3,
	schemas.LicenseStrongCopyleft: 0.5,
	schemas.LicenseNonStandard:    0.7,
	schemas.LicenseNone:           1.0,
}

// LicenseScore maps the license category to its obligation bucket.
func LicenseScore(cat *schemas.LicenseCategory) float64 {
	if cat == nil {
		return unknownScore
	}
	if score, ok := licenseTable[*cat]; ok {
		return score
	}
	return unknownScore
}

var communityTable = map[schemas.ActivityLevel]float64{
	schemas.ActivityHigh:      0.0,
	schemas.ActivityModerate:  0.4,
	schemas.ActivityLow:       0.7,
	schemas.ActivityAbandoned: 1.0,
}

// CommunityScore maps community activity to its bucket.
func CommunityScore(level *schemas.ActivityLevel) float64 {
	if level == nil {
		return unknownScore
	}
	if score, ok := communityTable[*level]; ok {
		return score
	}
	return unknownScore
}

var postureTable = map[schemas.PostureLevel]float64{
	schemas.PostureAll:  0.0,
	schemas.PostureMost: 0.33,
	schemas.PostureSome: 0.67,
	schemas.PostureNone: 1.0,
}

// SecurityPostureScore maps the four posture tiers to their buckets.
func SecurityPostureScore(level *schemas.PostureLevel) float64 {
	if level == nil {
		return unknownScore
	}
	if score, ok := postureTable[*level]; ok {
		return score
	}
	return unknownScore
}

// riskFactors renders a reason for every notable component, in fixed
// priority order so output stays deterministic.
func (s *Scorer) riskFactors(dep schemas.Dependency, scores map[schemas.Component]float64) []string {
	var factors []string
	for _, c := range factorPriority {
		score, ok := scores[c]
		if !ok || score < s.notable {
			continue
		}
		if msg := factorMessage(c, dep, score, s.now()); msg != "" {
			factors = append(factors, msg)
		}
	}
	return factors
}

// factorPriority orders reasons from most to least actionable.
var factorPriority = []schemas.Component{
	schemas.ComponentExploit,
	schemas.ComponentDeprecation,
	schemas.ComponentMaintainers,
	schemas.ComponentStaleness,
	schemas.ComponentVersionDrift,
	schemas.ComponentLicense,
	schemas.ComponentSecurityPosture,
	schemas.ComponentCommunity,
	schemas.ComponentHealth,
}

func factorMessage(c schemas.Component, dep schemas.Dependency, score float64, now time.Time) string {
	switch c {
	case schemas.ComponentExploit:
		if dep.VulnerabilityDataUnavailable {
			return ""
		}
		if score >= 1.0 {
			return "Known critical vulnerability present"
		}
		return "Known high-severity vulnerability present"
	case schemas.ComponentDeprecation:
		return "Deprecated by upstream"
	case schemas.ComponentMaintainers:
		if dep.MaintainersCount != nil && *dep.MaintainersCount <= 1 {
			return "Single maintainer"
		}
		return "Very few maintainers"
	case schemas.ComponentStaleness:
		if dep.LastUpdateTime != nil {
			days := int(now.Sub(*dep.LastUpdateTime).Hours() / 24)
			return fmt.Sprintf("Not updated in %d+ days", days)
		}
		return "Last update time unknown"
	case schemas.ComponentVersionDrift:
		return "Installed version is a major release behind"
	case schemas.ComponentLicense:
		return "Restrictive or missing license"
	case schemas.ComponentSecurityPosture:
		return "No recognized security practices in place"
	case schemas.ComponentCommunity:
		return "Community appears abandoned"
	case schemas.ComponentHealth:
		return "Missing basic project health indicators"
	}
	return ""
}
