package vulnsource

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// githubQuery is the GraphQL query against the GitHub Advisory Database.
// It asks for the advisory identifiers so CVE numbers can be folded into the
// canonical id, letting the aggregator merge GitHub records with OSV/NVD.
const githubQuery = `query ($package: String!, $ecosystem: SecurityAdvisoryEcosystem!) {
  securityVulnerabilities(first: 100, ecosystem: $ecosystem, package: $package) {
    nodes {
      severity
      vulnerableVersionRange
      advisory {
        ghsaId
        summary
        publishedAt
        identifiers { type value }
        cvss { score }
      }
    }
  }
}`

// GitHubAdvisory queries the GitHub Advisory Database over GraphQL.
// GraphQL requires authentication, so the source is only registered when a
// token is configured.
type GitHubAdvisory struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewGitHubAdvisory creates the GitHub Advisory source client.
func NewGitHubAdvisory(baseURL, token string, client *http.Client, logger *zap.Logger) *GitHubAdvisory {
	return &GitHubAdvisory{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		logger:  logger.Named("github"),
	}
}

// Name implements schemas.Source.
func (s *GitHubAdvisory) Name() string { return "github" }

type githubRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type githubResponse struct {
	Data struct {
		SecurityVulnerabilities struct {
			Nodes []githubNode `json:"nodes"`
		} `json:"securityVulnerabilities"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type githubNode struct {
	Severity               string `json:"severity"`
	VulnerableVersionRange string `json:"vulnerableVersionRange"`
	Advisory               struct {
		GHSAID      string `json:"ghsaId"`
		Summary     string `json:"summary"`
		PublishedAt string `json:"publishedAt"`
		Identifiers []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"identifiers"`
		CVSS struct {
			Score float64 `json:"score"`
		} `json:"cvss"`
	} `json:"advisory"`
}

// Fetch implements schemas.Source.
func (s *GitHubAdvisory) Fetch(ctx context.Context, eco schemas.Ecosystem, pkg, version string) ([]schemas.VulnerabilityRecord, error) {
	ghEco := githubEcosystem(eco)
	if ghEco == "" {
		return nil, nil
	}

	payload, err := json.Marshal(githubRequest{
		Query: githubQuery,
		Variables: map[string]any{
			"package":   pkg,
			"ecosystem": ghEco,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding github query: %w", err)
	}

	req, err := newJSONRequest(ctx, http.MethodPost, s.baseURL, payload)
	if err != nil {
		return nil, fmt.Errorf("building github request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	body, err := doJSON(s.client, s.Name(), req)
	if err != nil {
		return nil, err
	}

	var parsed githubResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newTransportError(s.Name(), fmt.Errorf("decoding github response: %w", err))
	}
	if len(parsed.Errors) > 0 {
		msg := parsed.Errors[0].Message
		// GraphQL-level rate limiting comes back as a 200 with an error body.
		return nil, &SourceError{
			Source:    s.Name(),
			Transient: strings.Contains(strings.ToLower(msg), "rate limit"),
			Err:       fmt.Errorf("graphql error: %s", msg),
		}
	}

	nodes := parsed.Data.SecurityVulnerabilities.Nodes
	records := make([]schemas.VulnerabilityRecord, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, s.normalize(n))
	}
	s.logger.Debug("Fetched vulnerability records",
		zap.String("package", pkg),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// normalize is the GitHub severity adapter: CVSS score when present,
// otherwise the advisory's textual severity.
func (s *GitHubAdvisory) normalize(n githubNode) schemas.VulnerabilityRecord {
	raw := n.Severity
	score := NormalizeSeverityText(n.Severity)
	if n.Advisory.CVSS.Score > 0 {
		raw = strconv.FormatFloat(n.Advisory.CVSS.Score, 'f', -1, 64)
		score = NormalizeCVSS(n.Advisory.CVSS.Score)
	}

	ids := make([]string, 0, len(n.Advisory.Identifiers))
	for _, ident := range n.Advisory.Identifiers {
		ids = append(ids, ident.Value)
	}
	id, aliases := canonicalID(n.Advisory.GHSAID, ids)

	return schemas.VulnerabilityRecord{
		CanonicalID:     id,
		Aliases:         aliases,
		Sources:         []string{s.Name()},
		RawSeverity:     raw,
		NormalizedScore: score,
		Summary:         n.Advisory.Summary,
		AffectedRange:   n.VulnerableVersionRange,
		Published:       n.Advisory.PublishedAt,
	}
}

func githubEcosystem(eco schemas.Ecosystem) string {
	switch eco {
	case schemas.EcosystemNPM:
		return "NPM"
	case schemas.EcosystemPyPI:
		return "PIP"
	case schemas.EcosystemGo:
		return "GO"
	case schemas.EcosystemMaven:
		return "MAVEN"
	case schemas.EcosystemRubyGems:
		return "RUBYGEMS"
	default:
		return ""
	}
}
