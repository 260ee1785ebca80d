package reporting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/profile"
)

// Terminal renders a compact table ordered from riskiest to safest, followed
// by the run summary.
type Terminal struct{}

func (*Terminal) Format(w io.Writer, p schemas.ProjectProfile) error {
	fmt.Fprintf(w, "Dependency Risk Profile\n")
	fmt.Fprintf(w, "Manifest:  %s (%s)\n", p.ManifestPath, p.Ecosystem)
	fmt.Fprintf(w, "Generated: %s\n", p.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPENDENCY\tINSTALLED\tLATEST\tSCORE\tLEVEL\tRISK FACTORS")
	for _, sd := range profile.ByDescendingRisk(p) {
		dep, score := sd.Dependency, sd.Score
		latest := dep.LatestVersion
		if latest == "" {
			latest = "-"
		}
		factors := strings.Join(score.RiskFactors, "; ")
		if dep.VulnerabilityDataUnavailable {
			if factors != "" {
				factors += "; "
			}
			factors += "vulnerability data unavailable"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			dep.Name, dep.InstalledVersion, latest, score.Composite, score.RiskLevel, factors)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Dependencies: %d  Overall score: %.2f\n", len(p.Dependencies), p.OverallScore)
	fmt.Fprintf(w, "Levels: %d CRITICAL, %d HIGH, %d MEDIUM, %d LOW\n",
		p.LevelCounts[schemas.RiskCritical],
		p.LevelCounts[schemas.RiskHigh],
		p.LevelCounts[schemas.RiskMedium],
		p.LevelCounts[schemas.RiskLow],
	)
	if p.UnavailableCount > 0 {
		fmt.Fprintf(w, "%d dependencies had incomplete vulnerability data\n", p.UnavailableCount)
	}
	return nil
}
