package enrich

import (
	"strings"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// licenseCategory buckets a raw license expression by the obligations it
// imposes. Matching is substring-based over an uppercased copy, so SPDX ids,
// expressions like "(MIT OR Apache-2.0)", and prose names all resolve.
// Strong copyleft is checked before weak because "LGPL" contains "GPL".
func licenseCategory(raw string) schemas.LicenseCategory {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" || s == "UNKNOWN" || s == "NONE" {
		return schemas.LicenseNone
	}

	switch {
	case containsAny(s, "LGPL", "MPL", "MOZILLA", "EPL", "ECLIPSE", "CDDL"):
		return schemas.LicenseWeakCopyleft
	case containsAny(s, "AGPL", "GPL"):
		return schemas.LicenseStrongCopyleft
	case containsAny(s, "MIT", "BSD", "APACHE", "ISC", "UNLICENSE", "ZLIB", "CC0", "WTFPL", "PSF", "PYTHON SOFTWARE FOUNDATION"):
		return schemas.LicensePermissive
	default:
		return schemas.LicenseNonStandard
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
