package manifest

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

type pypiParser struct{}

func (pypiParser) Ecosystem() schemas.Ecosystem { return schemas.EcosystemPyPI }

// requirement specifiers, most specific first so "==" wins over "=".
var pypiSpecifiers = []string{"===", "==", "~=", ">=", "<=", "!=", ">", "<"}

// Parse reads a requirements.txt line by line, preserving file order.
// Comments, blank lines, pip options and include directives are skipped;
// environment markers and inline comments are stripped.
func (pypiParser) Parse(data []byte) ([]schemas.Dependency, error) {
	var deps []schemas.Dependency

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		name, version := line, ""
		for _, spec := range pypiSpecifiers {
			if i := strings.Index(line, spec); i >= 0 {
				name = strings.TrimSpace(line[:i])
				version = strings.TrimSpace(line[i+len(spec):])
				break
			}
		}
		// Strip extras: "requests[security]" -> "requests".
		if i := strings.Index(name, "["); i >= 0 {
			name = name[:i]
		}
		if name == "" {
			continue
		}

		deps = append(deps, schemas.Dependency{
			Name:             strings.ToLower(name),
			Ecosystem:        schemas.EcosystemPyPI,
			InstalledVersion: version,
		})
	}
	return deps, scanner.Err()
}
