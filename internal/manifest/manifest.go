// Package manifest turns project manifests into ordered dependency lists.
// Each supported ecosystem registers a parser keyed by the manifest's base
// filename; detection is by filename, never by content sniffing.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// Parser reads one manifest format.
type Parser interface {
	Ecosystem() schemas.Ecosystem
	Parse(data []byte) ([]schemas.Dependency, error)
}

var parsers = map[string]Parser{
	"package.json":     npmParser{},
	"requirements.txt": pypiParser{},
	"go.mod":           gomodParser{},
}

// Supported lists the manifest filenames this build understands, sorted for
// stable error messages and help text.
func Supported() []string {
	names := make([]string, 0, len(parsers))
	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load detects the manifest type from path, parses it, and returns the
// ecosystem together with the dependency list in manifest order.
func Load(path string) (schemas.Ecosystem, []schemas.Dependency, error) {
	parser, ok := parsers[filepath.Base(path)]
	if !ok {
		return "", nil, fmt.Errorf("unsupported manifest %q (supported: %s)", filepath.Base(path), strings.Join(Supported(), ", "))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading manifest: %w", err)
	}

	deps, err := parser.Parse(data)
	if err != nil {
		return "", nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return parser.Ecosystem(), deps, nil
}
