// Package vulncache persists normalized source responses between runs.
// Every failure mode on the read path (missing file, truncated JSON, schema
// mismatch, expired TTL) degrades to a cache miss; the cache never fails a
// run.
package vulncache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Disk is the file-backed implementation of schemas.VulnCache, one JSON
// file per (ecosystem, package, version, source) key.
type Disk struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// entry is the on-disk layout of a single cache file.
type entry struct {
	FetchedAt         time.Time                     `json:"fetched_at"`
	TTLSeconds        int64                         `json:"ttl_seconds"`
	RawPayload        jsoniter.RawMessage           `json:"raw_payload,omitempty"`
	NormalizedRecords []schemas.VulnerabilityRecord `json:"normalized_records"`
}

// New creates a disk cache rooted at dir. The directory is created on first
// Put if it does not exist.
func New(dir string, ttl time.Duration, logger *zap.Logger) *Disk {
	return &Disk{
		dir:    dir,
		ttl:    ttl,
		logger: logger.Named("vulncache"),
		now:    time.Now,
	}
}

// Get returns the cached records for key, or (nil, false) on any kind of
// miss. Corruption and expiry are logged at debug level and never surface
// as errors.
func (d *Disk) Get(key schemas.CacheKey) ([]schemas.VulnerabilityRecord, bool) {
	path := d.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		d.logger.Debug("Discarding corrupt cache entry",
			zap.String("path", path), zap.Error(err))
		return nil, false
	}
	if e.FetchedAt.IsZero() {
		d.logger.Debug("Discarding cache entry with missing fetched_at",
			zap.String("path", path))
		return nil, false
	}

	ttl := d.ttl
	if e.TTLSeconds > 0 {
		ttl = time.Duration(e.TTLSeconds) * time.Second
	}
	if d.now().Sub(e.FetchedAt) > ttl {
		d.logger.Debug("Cache entry expired",
			zap.String("path", path), zap.Time("fetched_at", e.FetchedAt))
		return nil, false
	}

	if e.NormalizedRecords == nil {
		return []schemas.VulnerabilityRecord{}, true
	}
	return e.NormalizedRecords, true
}

// Put writes an entry for key. The write goes to a temporary file in the
// same directory and is renamed into place, so concurrent readers never see
// a partial entry.
func (d *Disk) Put(key schemas.CacheKey, raw []byte, records []schemas.VulnerabilityRecord) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	if records == nil {
		records = []schemas.VulnerabilityRecord{}
	}
	data, err := json.Marshal(entry{
		FetchedAt:         d.now().UTC(),
		TTLSeconds:        int64(d.ttl / time.Second),
		RawPayload:        raw,
		NormalizedRecords: records,
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, d.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("installing cache entry: %w", err)
	}
	return nil
}

// Clear removes the entire backing directory. Used by the clear-cache run
// mode and the cache management command.
func (d *Disk) Clear() error {
	if err := os.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("clearing cache directory: %w", err)
	}
	return nil
}

// Stats summarizes the cache contents for the management command.
type Stats struct {
	Dir        string    `json:"dir"`
	EntryCount int       `json:"entry_count"`
	TotalBytes int64     `json:"total_bytes"`
	Oldest     time.Time `json:"oldest,omitempty"`
	Newest     time.Time `json:"newest,omitempty"`
}

// Stat walks the cache directory and reports entry counts and sizes.
func (d *Disk) Stat() (Stats, error) {
	stats := Stats{Dir: d.dir}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}

	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		stats.EntryCount++
		stats.TotalBytes += info.Size()
		mod := info.ModTime()
		if stats.Oldest.IsZero() || mod.Before(stats.Oldest) {
			stats.Oldest = mod
		}
		if mod.After(stats.Newest) {
			stats.Newest = mod
		}
	}
	return stats, nil
}

// path derives the entry filename for a key. Characters that are unsafe in
// filenames (scoped npm packages contain "/" and "@") are flattened.
func (d *Disk) path(key schemas.CacheKey) string {
	name := fmt.Sprintf("%s_%s_%s_%s.json",
		sanitize(string(key.Ecosystem)),
		sanitize(key.Package),
		sanitize(key.Version),
		sanitize(key.Source),
	)
	return filepath.Join(d.dir, name)
}

var filenameSanitizer = strings.NewReplacer(
	"/", "__",
	"\\", "__",
	"@", "",
	":", "-",
)

func sanitize(s string) string {
	return filenameSanitizer.Replace(strings.ToLower(s))
}
