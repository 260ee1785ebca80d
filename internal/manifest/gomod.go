package manifest

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

type gomodParser struct{}

func (gomodParser) Ecosystem() schemas.Ecosystem { return schemas.EcosystemGo }

// Parse extracts direct requirements from a go.mod, preserving file order.
// Indirect requirements are skipped: they are not choices the project made.
func (gomodParser) Parse(data []byte) ([]schemas.Dependency, error) {
	var deps []schemas.Dependency
	inRequire := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "require ("):
			inRequire = true
			continue
		case inRequire && line == ")":
			inRequire = false
			continue
		}

		var spec string
		if inRequire {
			spec = line
		} else if rest, ok := strings.CutPrefix(line, "require "); ok {
			spec = rest
		} else {
			continue
		}

		if strings.Contains(spec, "// indirect") {
			continue
		}
		if i := strings.Index(spec, "//"); i >= 0 {
			spec = strings.TrimSpace(spec[:i])
		}

		fields := strings.Fields(spec)
		if len(fields) != 2 {
			continue
		}
		deps = append(deps, schemas.Dependency{
			Name:             fields[0],
			Ecosystem:        schemas.EcosystemGo,
			InstalledVersion: strings.TrimPrefix(fields[1], "v"),
		})
	}
	return deps, scanner.Err()
}
