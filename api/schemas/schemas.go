package schemas

import (
	"time"
)

// -- Dependency Schemas --

// Ecosystem identifies the package ecosystem a dependency belongs to.
// The values are lowercase to align with cache keys and registry URLs.
type Ecosystem string

// Constants defining the supported package ecosystems.
const (
	EcosystemNPM      Ecosystem = "npm"      // Node.js packages (package.json).
	EcosystemPyPI     Ecosystem = "pypi"     // Python packages (requirements.txt).
	EcosystemGo       Ecosystem = "go"       // Go modules (go.mod).
	EcosystemMaven    Ecosystem = "maven"    // Java packages.
	EcosystemRubyGems Ecosystem = "rubygems" // Ruby packages.
)

// LicenseCategory buckets licenses by the obligations they impose.
type LicenseCategory string

// Constants for license categories, ordered from least to most restrictive.
const (
	LicensePermissive     LicenseCategory = "permissive"      // MIT, BSD, Apache-2.0, ISC.
	LicenseWeakCopyleft   LicenseCategory = "weak_copyleft"   // LGPL, MPL, EPL.
	LicenseStrongCopyleft LicenseCategory = "strong_copyleft" // GPL, AGPL.
	LicenseNonStandard    LicenseCategory = "non_standard"    // Custom or unrecognized terms.
	LicenseNone           LicenseCategory = "none"            // No license declared.
)

// ActivityLevel describes how active a dependency's community is.
type ActivityLevel string

// Constants for community activity levels.
const (
	ActivityHigh      ActivityLevel = "high"
	ActivityModerate  ActivityLevel = "moderate"
	ActivityLow       ActivityLevel = "low"
	ActivityAbandoned ActivityLevel = "abandoned"
)

// PostureLevel describes how many recognized security practices a project follows.
type PostureLevel string

// Constants for security posture tiers.
const (
	PostureAll  PostureLevel = "all"  // Every checked practice in place.
	PostureMost PostureLevel = "most" // Majority of practices in place.
	PostureSome PostureLevel = "some" // A minority of practices in place.
	PostureNone PostureLevel = "none" // No checked practice in place.
)

// HealthIndicators captures the presence of basic project hygiene signals.
// Nil pointers mean the signal could not be determined, which is scored
// differently from a confirmed absence.
type HealthIndicators struct {
	HasTests                  *bool `json:"has_tests,omitempty"`
	HasCI                     *bool `json:"has_ci,omitempty"`
	HasContributionGuidelines *bool `json:"has_contribution_guidelines,omitempty"`
}

// Dependency is one entry from a project manifest, progressively enriched by
// registry metadata and vulnerability aggregation. Identity is the
// (Ecosystem, Name) pair; InstalledVersion disambiguates cache entries.
type Dependency struct {
	Name             string    `json:"name"`
	Ecosystem        Ecosystem `json:"ecosystem"`
	InstalledVersion string    `json:"installed_version"`

	// Registry metadata. Pointer fields are nil when the upstream registry
	// did not supply the signal.
	LatestVersion    string     `json:"latest_version,omitempty"`
	MaintainersCount *int       `json:"maintainers_count,omitempty"`
	Deprecated       *bool      `json:"deprecated,omitempty"`
	LastUpdateTime   *time.Time `json:"last_update_time,omitempty"`

	License         *LicenseCategory  `json:"license,omitempty"`
	Health          *HealthIndicators `json:"health,omitempty"`
	Community       *ActivityLevel    `json:"community,omitempty"`
	SecurityPosture *PostureLevel     `json:"security_posture,omitempty"`

	// Vulnerabilities holds the merged, deduplicated records produced by the
	// aggregator. Empty with VulnerabilityDataUnavailable=false means
	// "checked, clean".
	Vulnerabilities []VulnerabilityRecord `json:"vulnerabilities,omitempty"`

	// VulnerabilityDataUnavailable is set when every configured source failed
	// (or the run timed out) for this dependency. The scorer substitutes a
	// neutral exploit score instead of treating the list as clean.
	VulnerabilityDataUnavailable bool `json:"vulnerability_data_unavailable,omitempty"`
}

// Key returns the canonical identity string for a dependency.
func (d Dependency) Key() string {
	return string(d.Ecosystem) + "/" + d.Name
}

// -- Vulnerability Schemas --

// VulnerabilityRecord is one vulnerability affecting a dependency, already
// normalized to the common severity scale. Records from different sources
// describing the same vulnerability are merged by the aggregator: the merged
// record keeps the most alarming NormalizedScore and the union of Sources.
type VulnerabilityRecord struct {
	// CanonicalID is the primary identifier, preferring a CVE number when one
	// is known (directly or via aliases).
	CanonicalID string `json:"canonical_id"`

	// Aliases lists every other identifier known for this vulnerability
	// (GHSA, OSV, PYSEC ids and so on), sorted for determinism.
	Aliases []string `json:"aliases,omitempty"`

	// Sources names every database that reported this record, sorted.
	Sources []string `json:"sources"`

	// RawSeverity is the severity as the source expressed it, kept for
	// auditability ("9.8", "HIGH", "moderate", ...).
	RawSeverity string `json:"raw_severity,omitempty"`

	// NormalizedScore is the severity mapped onto [0,1]. Missing or
	// unparseable severities map to 0.5, never silently to zero.
	NormalizedScore float64 `json:"normalized_score"`

	Summary       string `json:"summary,omitempty"`
	AffectedRange string `json:"affected_range,omitempty"`
	Published     string `json:"published,omitempty"`
}

// -- Scoring Schemas --

// RiskLevel classifies a composite score into one of four bands.
type RiskLevel string

// Constants for the four risk bands.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Component names a scoring dimension. WeightConfig keys and
// DependencyRiskScore.ComponentScores keys come from this set.
type Component string

// Constants naming every scoring component.
const (
	ComponentStaleness       Component = "staleness"
	ComponentMaintainers     Component = "maintainers"
	ComponentDeprecation     Component = "deprecation"
	ComponentExploit         Component = "exploit"
	ComponentVersionDrift    Component = "version_drift"
	ComponentHealth          Component = "health"
	ComponentLicense         Component = "license"
	ComponentCommunity       Component = "community"
	ComponentSecurityPosture Component = "security_posture"
)

// WeightConfig maps scoring components to non-negative weights. Only listed
// components participate in the composite; relative proportions, not
// absolute magnitudes, determine the result.
type WeightConfig map[Component]float64

// DependencyRiskScore is the scorer's verdict for one dependency. It is a
// pure function of the dependency's signals and the active WeightConfig and
// is never mutated after creation.
type DependencyRiskScore struct {
	// ComponentScores holds each configured component's score in [0,1].
	ComponentScores map[Component]float64 `json:"component_scores"`

	// Composite is the weighted aggregate, in [0, MaxScore].
	Composite float64 `json:"composite"`

	RiskLevel RiskLevel `json:"risk_level"`

	// RiskFactors lists human-readable reasons for components that exceeded
	// the notable threshold, in fixed priority order.
	RiskFactors []string `json:"risk_factors,omitempty"`
}

// ScoredDependency pairs a dependency with its risk score in profile output.
type ScoredDependency struct {
	Dependency Dependency          `json:"dependency"`
	Score      DependencyRiskScore `json:"score"`
}

// ProjectProfile is the final, immutable result of one run.
type ProjectProfile struct {
	RunID        string    `json:"run_id"`
	ManifestPath string    `json:"manifest_path"`
	Ecosystem    Ecosystem `json:"ecosystem"`
	GeneratedAt  time.Time `json:"generated_at"`

	// Dependencies preserves manifest order for reproducible output.
	Dependencies []ScoredDependency `json:"dependencies"`

	OverallScore float64           `json:"overall_score"`
	LevelCounts  map[RiskLevel]int `json:"level_counts"`

	// UnavailableCount is how many dependencies finished the run without
	// vulnerability data from any source.
	UnavailableCount int `json:"unavailable_count"`
}
