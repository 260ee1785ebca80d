package scoring

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// VersionDriftScore buckets the gap between the installed and latest
// versions. Anything that cannot be parsed as a semantic version, including
// a missing latest version, falls into the neutral bucket.
func VersionDriftScore(installed, latest string) float64 {
	if installed == "" || latest == "" {
		return unknownScore
	}

	iv, err := goversion.NewVersion(normalizeVersion(installed))
	if err != nil {
		return unknownScore
	}
	lv, err := goversion.NewVersion(normalizeVersion(latest))
	if err != nil {
		return unknownScore
	}

	if iv.Equal(lv) || iv.GreaterThan(lv) {
		return 0.0
	}

	is, ls := iv.Segments(), lv.Segments()
	switch {
	case segment(is, 0) != segment(ls, 0):
		return 1.0
	case segment(is, 1) != segment(ls, 1):
		return 0.5
	default:
		return 0.25
	}
}

func segment(segments []int, i int) int {
	if i < len(segments) {
		return segments[i]
	}
	return 0
}

// normalizeVersion strips common manifest prefixes ("v1.2.3", "^1.2.3",
// "~1.2.3", ">=1.2.3") down to the bare version.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "^~=<>")
	return strings.TrimPrefix(v, "v")
}
