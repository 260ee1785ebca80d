package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// pypiRegistry reads project documents from the PyPI JSON API.
type pypiRegistry struct {
	baseURL string
	client  *http.Client
}

type pypiProject struct {
	Info struct {
		Version     string   `json:"version"`
		License     string   `json:"license"`
		Classifiers []string `json:"classifiers"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTime string `json:"upload_time_iso_8601"`
	} `json:"releases"`
}

func (r *pypiRegistry) Apply(ctx context.Context, dep *schemas.Dependency) error {
	var doc pypiProject
	endpoint := fmt.Sprintf("%s/%s/json", r.baseURL, url.PathEscape(dep.Name))
	if err := getJSON(ctx, r.client, "pypi-registry", endpoint, &doc); err != nil {
		return err
	}

	dep.LatestVersion = doc.Info.Version

	// PyPI has no explicit deprecation flag; the trove classifier for an
	// inactive project is the closest signal.
	deprecated := false
	for _, c := range doc.Info.Classifiers {
		if strings.Contains(c, "Development Status :: 7 - Inactive") {
			deprecated = true
			break
		}
	}
	dep.Deprecated = &deprecated

	license := doc.Info.License
	if license == "" {
		license = classifierLicense(doc.Info.Classifiers)
	}
	cat := licenseCategory(license)
	dep.License = &cat

	if t := latestUpload(doc.Releases[doc.Info.Version]); !t.IsZero() {
		dep.LastUpdateTime = &t
	}
	return nil
}

func latestUpload(files []struct {
	UploadTime string `json:"upload_time_iso_8601"`
}) time.Time {
	var latest time.Time
	for _, f := range files {
		if t, err := time.Parse(time.RFC3339, f.UploadTime); err == nil && t.After(latest) {
			latest = t
		}
	}
	return latest
}

// classifierLicense recovers a license name from trove classifiers when the
// license field itself is empty ("License :: OSI Approved :: MIT License").
func classifierLicense(classifiers []string) string {
	for _, c := range classifiers {
		if !strings.HasPrefix(c, "License ::") {
			continue
		}
		parts := strings.Split(c, "::")
		return strings.TrimSpace(parts[len(parts)-1])
	}
	return ""
}
