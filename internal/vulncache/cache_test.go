package vulncache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

func testKey() schemas.CacheKey {
	return schemas.CacheKey{
		Ecosystem: schemas.EcosystemNPM,
		Package:   "@scope/left-pad",
		Version:   "1.3.0",
		Source:    "osv",
	}
}

func testRecords() []schemas.VulnerabilityRecord {
	return []schemas.VulnerabilityRecord{
		{
			CanonicalID:     "CVE-2024-0001",
			Aliases:         []string{"GHSA-xxxx-yyyy-zzzz"},
			Sources:         []string{"osv"},
			RawSeverity:     "HIGH",
			NormalizedScore: 0.75,
			Summary:         "prototype pollution",
		},
	}
}

func TestRoundTrip(t *testing.T) {
	cache := New(t.TempDir(), time.Hour, zap.NewNop())

	require.NoError(t, cache.Put(testKey(), []byte(`{"vulns":[]}`), testRecords()))

	got, ok := cache.Get(testKey())
	require.True(t, ok)
	assert.Equal(t, testRecords(), got)
}

func TestEmptyRecordListIsAHit(t *testing.T) {
	cache := New(t.TempDir(), time.Hour, zap.NewNop())

	require.NoError(t, cache.Put(testKey(), nil, nil))

	got, ok := cache.Get(testKey())
	require.True(t, ok, "a cached clean result is a hit, not a miss")
	assert.Empty(t, got)
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	cache := New(t.TempDir(), time.Hour, zap.NewNop())
	require.NoError(t, cache.Put(testKey(), nil, testRecords()))

	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok := cache.Get(testKey())
	assert.False(t, ok)
}

func TestMissingEntryIsAMiss(t *testing.T) {
	cache := New(t.TempDir(), time.Hour, zap.NewNop())

	_, ok := cache.Get(testKey())
	assert.False(t, ok)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir, time.Hour, zap.NewNop())
	require.NoError(t, cache.Put(testKey(), nil, testRecords()))

	// Truncate the entry file mid-document.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	path := filepath.Join(dir, entries[0].Name())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	_, ok := cache.Get(testKey())
	assert.False(t, ok, "corruption must degrade to a miss, never an error")
}

func TestSchemaMismatchIsAMiss(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir, time.Hour, zap.NewNop())
	require.NoError(t, cache.Put(testKey(), nil, testRecords()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	path := filepath.Join(dir, entries[0].Name())
	require.NoError(t, os.WriteFile(path, []byte(`{"unexpected":"shape"}`), 0o644))

	_, ok := cache.Get(testKey())
	assert.False(t, ok)
}

func TestPutOverwritesExistingEntry(t *testing.T) {
	cache := New(t.TempDir(), time.Hour, zap.NewNop())

	require.NoError(t, cache.Put(testKey(), nil, testRecords()))

	updated := testRecords()
	updated[0].NormalizedScore = 1.0
	require.NoError(t, cache.Put(testKey(), nil, updated))

	got, ok := cache.Get(testKey())
	require.True(t, ok)
	assert.Equal(t, 1.0, got[0].NormalizedScore)
}

func TestKeysAreIsolated(t *testing.T) {
	cache := New(t.TempDir(), time.Hour, zap.NewNop())
	require.NoError(t, cache.Put(testKey(), nil, testRecords()))

	other := testKey()
	other.Version = "1.4.0"
	_, ok := cache.Get(other)
	assert.False(t, ok, "a different version must not share the entry")

	other = testKey()
	other.Source = "nvd"
	_, ok = cache.Get(other)
	assert.False(t, ok, "a different source must not share the entry")
}

func TestClearAndStat(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir, time.Hour, zap.NewNop())

	require.NoError(t, cache.Put(testKey(), nil, testRecords()))
	other := testKey()
	other.Package = "lodash"
	require.NoError(t, cache.Put(other, nil, nil))

	stats, err := cache.Stat()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EntryCount)
	assert.Positive(t, stats.TotalBytes)

	require.NoError(t, cache.Clear())

	stats, err = cache.Stat()
	require.NoError(t, err)
	assert.Zero(t, stats.EntryCount, "stat on a cleared cache reports empty, not an error")

	_, ok := cache.Get(testKey())
	assert.False(t, ok)
}

func TestNoPartialFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir, time.Hour, zap.NewNop())
	require.NoError(t, cache.Put(testKey(), nil, testRecords()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files must be renamed away")
	}
}
