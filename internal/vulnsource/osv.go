package vulnsource

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OSV queries the Open Source Vulnerabilities database (api.osv.dev).
// It is the only source that needs no credentials and so is enabled by
// default.
type OSV struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewOSV creates the OSV source client.
func NewOSV(baseURL string, client *http.Client, logger *zap.Logger) *OSV {
	return &OSV{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.Named("osv"),
	}
}

// Name implements schemas.Source.
func (s *OSV) Name() string { return "osv" }

// osvQuery is the request body for POST /v1/query.
type osvQuery struct {
	Package osvPackage `json:"package"`
	Version string     `json:"version,omitempty"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvResponse struct {
	Vulns []osvVuln `json:"vulns"`
}

type osvVuln struct {
	ID               string        `json:"id"`
	Aliases          []string      `json:"aliases"`
	Summary          string        `json:"summary"`
	Published        string        `json:"published"`
	Severity         []osvSeverity `json:"severity"`
	Affected         []osvAffected `json:"affected"`
	DatabaseSpecific struct {
		Severity string `json:"severity"`
	} `json:"database_specific"`
}

type osvSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type osvAffected struct {
	Ranges []osvRange `json:"ranges"`
}

type osvRange struct {
	Type   string     `json:"type"`
	Events []osvEvent `json:"events"`
}

type osvEvent struct {
	Introduced string `json:"introduced"`
	Fixed      string `json:"fixed"`
}

// Fetch implements schemas.Source.
func (s *OSV) Fetch(ctx context.Context, eco schemas.Ecosystem, pkg, version string) ([]schemas.VulnerabilityRecord, error) {
	payload, err := json.Marshal(osvQuery{
		Package: osvPackage{Name: pkg, Ecosystem: osvEcosystem(eco)},
		Version: version,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding osv query: %w", err)
	}

	req, err := newJSONRequest(ctx, http.MethodPost, s.baseURL+"/query", payload)
	if err != nil {
		return nil, fmt.Errorf("building osv request: %w", err)
	}

	body, err := doJSON(s.client, s.Name(), req)
	if err != nil {
		return nil, err
	}

	var parsed osvResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newTransportError(s.Name(), fmt.Errorf("decoding osv response: %w", err))
	}

	records := make([]schemas.VulnerabilityRecord, 0, len(parsed.Vulns))
	for _, v := range parsed.Vulns {
		records = append(records, s.normalize(v))
	}
	s.logger.Debug("Fetched vulnerability records",
		zap.String("package", pkg),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// normalize is the OSV severity adapter. OSV entries may carry a numeric
// CVSS score, a textual severity under database_specific, or nothing at all.
func (s *OSV) normalize(v osvVuln) schemas.VulnerabilityRecord {
	raw := ""
	for _, sev := range v.Severity {
		if sev.Score != "" {
			raw = sev.Score
			break
		}
	}
	if raw == "" {
		raw = v.DatabaseSpecific.Severity
	}

	id, aliases := canonicalID(v.ID, v.Aliases)
	return schemas.VulnerabilityRecord{
		CanonicalID:     id,
		Aliases:         aliases,
		Sources:         []string{s.Name()},
		RawSeverity:     raw,
		NormalizedScore: normalizeSeverity(raw),
		Summary:         v.Summary,
		AffectedRange:   osvAffectedRange(v.Affected),
		Published:       v.Published,
	}
}

// osvAffectedRange flattens the first SEMVER/ECOSYSTEM range into a human
// readable constraint string.
func osvAffectedRange(affected []osvAffected) string {
	for _, a := range affected {
		for _, r := range a.Ranges {
			var parts []string
			for _, e := range r.Events {
				if e.Introduced != "" && e.Introduced != "0" {
					parts = append(parts, ">="+e.Introduced)
				}
				if e.Fixed != "" {
					parts = append(parts, "<"+e.Fixed)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
	}
	return ""
}

// osvEcosystem maps internal ecosystem names onto OSV's.
func osvEcosystem(eco schemas.Ecosystem) string {
	switch eco {
	case schemas.EcosystemNPM:
		return "npm"
	case schemas.EcosystemPyPI:
		return "PyPI"
	case schemas.EcosystemGo:
		return "Go"
	case schemas.EcosystemMaven:
		return "Maven"
	case schemas.EcosystemRubyGems:
		return "RubyGems"
	default:
		return string(eco)
	}
}
