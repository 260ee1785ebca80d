package vulnsource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// NVD queries the National Vulnerability Database REST API. NVD enforces an
// aggressive rate limit (5 requests per 30s without a key, 50 with one), so
// the client carries its own limiter rather than leaning on 429 retries.
type NVD struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewNVD creates the NVD source client.
func NewNVD(baseURL, apiKey string, client *http.Client, logger *zap.Logger) *NVD {
	// 5 req / 30s unkeyed, 50 req / 30s keyed.
	every := rate.Every(6 * time.Second)
	if apiKey != "" {
		every = rate.Every(600 * time.Millisecond)
	}
	return &NVD{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		limiter: rate.NewLimiter(every, 1),
		logger:  logger.Named("nvd"),
	}
}

// Name implements schemas.Source.
func (s *NVD) Name() string { return "nvd" }

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE nvdCVE `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVE struct {
	ID           string `json:"id"`
	Published    string `json:"published"`
	Descriptions []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics struct {
		CVSSMetricV31 []nvdMetric `json:"cvssMetricV31"`
		CVSSMetricV30 []nvdMetric `json:"cvssMetricV30"`
		CVSSMetricV2  []nvdMetric `json:"cvssMetricV2"`
	} `json:"metrics"`
}

type nvdMetric struct {
	CVSSData struct {
		BaseScore    float64 `json:"baseScore"`
		BaseSeverity string  `json:"baseSeverity"`
	} `json:"cvssData"`
}

// Fetch implements schemas.Source. NVD has no structured package index, so
// the query follows the keyword-search convention with an ecosystem prefix;
// unrecognized ecosystems return no records rather than noise.
func (s *NVD) Fetch(ctx context.Context, eco schemas.Ecosystem, pkg, version string) ([]schemas.VulnerabilityRecord, error) {
	prefix := nvdKeywordPrefix(eco)
	if prefix == "" {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("keywordSearch", prefix+" "+pkg)
	params.Set("resultsPerPage", "100")

	req, err := newJSONRequest(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building nvd request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("apiKey", s.apiKey)
	}

	body, err := doJSON(s.client, s.Name(), req)
	if err != nil {
		return nil, err
	}

	var parsed nvdResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newTransportError(s.Name(), fmt.Errorf("decoding nvd response: %w", err))
	}

	records := make([]schemas.VulnerabilityRecord, 0, len(parsed.Vulnerabilities))
	for _, entry := range parsed.Vulnerabilities {
		records = append(records, s.normalize(entry.CVE))
	}
	s.logger.Debug("Fetched vulnerability records",
		zap.String("package", pkg),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// normalize is the NVD severity adapter. The newest available CVSS metric
// wins; a missing metric block scores as unknown.
func (s *NVD) normalize(cve nvdCVE) schemas.VulnerabilityRecord {
	var raw string
	score := UnknownSeverityScore

	metric, ok := firstMetric(cve)
	if ok {
		raw = strconv.FormatFloat(metric.CVSSData.BaseScore, 'f', -1, 64)
		score = NormalizeCVSS(metric.CVSSData.BaseScore)
		if metric.CVSSData.BaseSeverity != "" {
			raw = metric.CVSSData.BaseSeverity + " (" + raw + ")"
		}
	}

	summary := ""
	for _, d := range cve.Descriptions {
		if d.Lang == "en" {
			summary = d.Value
			break
		}
	}

	id, aliases := canonicalID(cve.ID, nil)
	return schemas.VulnerabilityRecord{
		CanonicalID:     id,
		Aliases:         aliases,
		Sources:         []string{s.Name()},
		RawSeverity:     raw,
		NormalizedScore: score,
		Summary:         summary,
		Published:       cve.Published,
	}
}

func firstMetric(cve nvdCVE) (nvdMetric, bool) {
	for _, set := range [][]nvdMetric{
		cve.Metrics.CVSSMetricV31,
		cve.Metrics.CVSSMetricV30,
		cve.Metrics.CVSSMetricV2,
	} {
		if len(set) > 0 {
			return set[0], true
		}
	}
	return nvdMetric{}, false
}

func nvdKeywordPrefix(eco schemas.Ecosystem) string {
	switch eco {
	case schemas.EcosystemNPM:
		return "node"
	case schemas.EcosystemPyPI:
		return "python"
	case schemas.EcosystemGo:
		return "golang"
	case schemas.EcosystemMaven:
		return "java"
	case schemas.EcosystemRubyGems:
		return "ruby"
	default:
		return ""
	}
}
