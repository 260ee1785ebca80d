package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// npmRegistry reads package documents from the npm registry.
type npmRegistry struct {
	baseURL string
	client  *http.Client
}

type npmPackument struct {
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
	Maintainers []struct {
		Name string `json:"name"`
	} `json:"maintainers"`
	Time     map[string]string         `json:"time"`
	Versions map[string]npmVersionInfo `json:"versions"`
}

type npmVersionInfo struct {
	Deprecated any    `json:"deprecated"` // string message or bool
	License    string `json:"license"`
}

func (r *npmRegistry) Apply(ctx context.Context, dep *schemas.Dependency) error {
	var doc npmPackument
	endpoint := fmt.Sprintf("%s/%s", r.baseURL, url.PathEscape(dep.Name))
	if err := getJSON(ctx, r.client, "npm-registry", endpoint, &doc); err != nil {
		return err
	}

	dep.LatestVersion = doc.DistTags.Latest

	count := len(doc.Maintainers)
	dep.MaintainersCount = &count

	if modified, ok := doc.Time["modified"]; ok {
		if t, err := time.Parse(time.RFC3339, modified); err == nil {
			dep.LastUpdateTime = &t
		}
	}

	if latest, ok := doc.Versions[doc.DistTags.Latest]; ok {
		deprecated := latest.Deprecated != nil && latest.Deprecated != false && latest.Deprecated != ""
		dep.Deprecated = &deprecated

		cat := licenseCategory(latest.License)
		dep.License = &cat
	}
	return nil
}
