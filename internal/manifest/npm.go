package manifest

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type npmParser struct{}

func (npmParser) Ecosystem() schemas.Ecosystem { return schemas.EcosystemNPM }

// Parse reads the dependencies and devDependencies maps of a package.json.
// JSON objects carry no order, so entries are sorted by name within each
// section to keep output reproducible; runtime dependencies come first.
func (npmParser) Parse(data []byte) ([]schemas.Dependency, error) {
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid package.json: %w", err)
	}

	var deps []schemas.Dependency
	for _, section := range []map[string]string{doc.Dependencies, doc.DevDependencies} {
		names := make([]string, 0, len(section))
		for name := range section {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			deps = append(deps, schemas.Dependency{
				Name:             name,
				Ecosystem:        schemas.EcosystemNPM,
				InstalledVersion: section[name],
			})
		}
	}
	return deps, nil
}
