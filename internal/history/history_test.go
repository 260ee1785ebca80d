package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func profileAt(runID, manifest string, ts time.Time, overall float64) schemas.ProjectProfile {
	return schemas.ProjectProfile{
		RunID:        runID,
		ManifestPath: manifest,
		Ecosystem:    schemas.EcosystemNPM,
		GeneratedAt:  ts,
		Dependencies: []schemas.ScoredDependency{
			{Score: schemas.DependencyRiskScore{Composite: overall, RiskLevel: schemas.RiskMedium}},
		},
		OverallScore: overall,
		LevelCounts: map[schemas.RiskLevel]int{
			schemas.RiskMedium: 1,
		},
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		p := profileAt(
			[]string{"run-a", "run-b", "run-c"}[i],
			"package.json",
			base.AddDate(0, 0, i),
			float64(i)+1,
		)
		require.NoError(t, store.Record(p))
	}
	require.NoError(t, store.Record(profileAt("run-other", "go.mod", base, 2.0)))

	runs, err := store.Recent("package.json", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-c", runs[0].RunID, "newest first")
	assert.Equal(t, "run-b", runs[1].RunID)
	assert.Equal(t, 3.0, runs[0].OverallScore)
	assert.Equal(t, 1, runs[0].MediumCount)
	assert.Equal(t, 1, runs[0].DependencyCount)
}

func TestRecentOnEmptyStore(t *testing.T) {
	store := openTestStore(t)

	runs, err := store.Recent("package.json", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store := openTestStore(t)
	p := profileAt("run-dup", "package.json", time.Now().UTC(), 1.5)

	require.NoError(t, store.Record(p))
	assert.Error(t, store.Record(p), "run ids are unique per row")
}
