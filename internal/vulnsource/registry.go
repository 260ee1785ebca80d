package vulnsource

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
)

// Default connection pool settings, tuned for many small API calls against
// a handful of hosts.
const (
	defaultMaxIdleConns        = 64
	defaultMaxIdleConnsPerHost = 16
	defaultIdleConnTimeout     = 30 * time.Second
)

// NewHTTPClient builds the shared client used by all source and registry
// calls. One transport keeps the connection pools warm across the fan-out.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		},
	}
}

// Build instantiates the enabled sources from configuration. The GitHub
// source is skipped without a token since its GraphQL API rejects anonymous
// queries; the skip is logged rather than fatal.
func Build(cfg config.SourcesConfig, client *http.Client, logger *zap.Logger) []schemas.Source {
	sources := make([]schemas.Source, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		switch strings.ToLower(name) {
		case "osv":
			sources = append(sources, NewOSV(cfg.OSVBaseURL, client, logger))
		case "nvd":
			sources = append(sources, NewNVD(cfg.NVDBaseURL, cfg.NVDAPIKey, client, logger))
		case "github":
			if cfg.GitHubToken == "" {
				logger.Warn("Skipping GitHub Advisory source: no token configured")
				continue
			}
			sources = append(sources, NewGitHubAdvisory(cfg.GitHubBaseURL, cfg.GitHubToken, client, logger))
		}
	}
	return sources
}
