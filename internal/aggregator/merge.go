package aggregator

import (
	"sort"
	"strings"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// mergeRecords collapses records that describe the same advisory across
// sources. Two records belong together when they share any identifier,
// canonical or alias. The merged record takes the maximum normalized score,
// the union of sources and aliases, and prefers a CVE id as canonical.
func mergeRecords(records []schemas.VulnerabilityRecord) []schemas.VulnerabilityRecord {
	type group struct {
		members []schemas.VulnerabilityRecord
	}

	byID := make(map[string]*group)
	var groups []*group

	for _, rec := range records {
		ids := identifierSet(rec)

		// Fold every group reachable through this record's ids into one.
		var target *group
		for _, id := range ids {
			other, ok := byID[id]
			if !ok || other == target {
				continue
			}
			if target == nil {
				target = other
				continue
			}
			target.members = append(target.members, other.members...)
			// Re-point every identifier the absorbed group's members own, not
			// just this record's: a later record matching one of those ids
			// must land in target, never resurrect the emptied group.
			for _, m := range other.members {
				for _, mid := range identifierSet(m) {
					byID[mid] = target
				}
			}
			other.members = nil
		}
		if target == nil {
			target = &group{}
			groups = append(groups, target)
		}

		target.members = append(target.members, rec)
		for _, id := range ids {
			byID[id] = target
		}
	}

	merged := make([]schemas.VulnerabilityRecord, 0, len(groups))
	for _, g := range groups {
		if len(g.members) == 0 {
			continue
		}
		merged = append(merged, collapse(g.members))
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CanonicalID < merged[j].CanonicalID
	})
	return merged
}

func identifierSet(rec schemas.VulnerabilityRecord) []string {
	ids := make([]string, 0, 1+len(rec.Aliases))
	if rec.CanonicalID != "" {
		ids = append(ids, rec.CanonicalID)
	}
	ids = append(ids, rec.Aliases...)
	return ids
}

func collapse(members []schemas.VulnerabilityRecord) schemas.VulnerabilityRecord {
	idSet := make(map[string]struct{})
	srcSet := make(map[string]struct{})

	out := schemas.VulnerabilityRecord{}
	for _, m := range members {
		if m.CanonicalID != "" {
			idSet[m.CanonicalID] = struct{}{}
		}
		for _, a := range m.Aliases {
			idSet[a] = struct{}{}
		}
		for _, s := range m.Sources {
			srcSet[s] = struct{}{}
		}
		if m.NormalizedScore > out.NormalizedScore {
			out.NormalizedScore = m.NormalizedScore
		}
		if out.RawSeverity == "" {
			out.RawSeverity = m.RawSeverity
		}
		if out.Summary == "" {
			out.Summary = m.Summary
		}
		if out.AffectedRange == "" {
			out.AffectedRange = m.AffectedRange
		}
		// RFC 3339 timestamps compare lexicographically; keep the earliest.
		if m.Published != "" && (out.Published == "" || m.Published < out.Published) {
			out.Published = m.Published
		}
	}

	out.CanonicalID = pickCanonical(idSet)
	out.Aliases = make([]string, 0, len(idSet))
	for id := range idSet {
		if id != out.CanonicalID {
			out.Aliases = append(out.Aliases, id)
		}
	}
	sort.Strings(out.Aliases)

	out.Sources = make([]string, 0, len(srcSet))
	for s := range srcSet {
		out.Sources = append(out.Sources, s)
	}
	sort.Strings(out.Sources)

	return out
}

// pickCanonical prefers a CVE identifier and falls back to the
// lexicographically smallest id so merges stay deterministic.
func pickCanonical(ids map[string]struct{}) string {
	var cve, any string
	for id := range ids {
		if strings.HasPrefix(id, "CVE-") && (cve == "" || id < cve) {
			cve = id
		}
		if any == "" || id < any {
			any = id
		}
	}
	if cve != "" {
		return cve
	}
	return any
}
