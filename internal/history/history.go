// Package history persists per-run profile summaries to a local sqlite
// database so successive runs against the same manifest can be compared.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

// ProfileRun is one row of trend history: the summary of a single run.
type ProfileRun struct {
	ID           uint      `gorm:"primaryKey"`
	RunID        string    `gorm:"uniqueIndex;size:64"`
	ManifestPath string    `gorm:"index;size:1024"`
	Ecosystem    string    `gorm:"size:32"`
	GeneratedAt  time.Time `gorm:"index"`

	DependencyCount  int
	OverallScore     float64
	LowCount         int
	MediumCount      int
	HighCount        int
	CriticalCount    int
	UnavailableCount int
}

// Store wraps the sqlite-backed trend database.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.AutoMigrate(&ProfileRun{}); err != nil {
		return nil, fmt.Errorf("migrating history schema: %w", err)
	}

	return &Store{db: db, logger: logger.Named("history")}, nil
}

// Record appends one run summary.
func (s *Store) Record(p schemas.ProjectProfile) error {
	row := ProfileRun{
		RunID:            p.RunID,
		ManifestPath:     p.ManifestPath,
		Ecosystem:        string(p.Ecosystem),
		GeneratedAt:      p.GeneratedAt,
		DependencyCount:  len(p.Dependencies),
		OverallScore:     p.OverallScore,
		LowCount:         p.LevelCounts[schemas.RiskLow],
		MediumCount:      p.LevelCounts[schemas.RiskMedium],
		HighCount:        p.LevelCounts[schemas.RiskHigh],
		CriticalCount:    p.LevelCounts[schemas.RiskCritical],
		UnavailableCount: p.UnavailableCount,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("recording profile run: %w", err)
	}
	return nil
}

// Recent returns the last n runs for a manifest, newest first.
func (s *Store) Recent(manifestPath string, n int) ([]ProfileRun, error) {
	var runs []ProfileRun
	err := s.db.
		Where("manifest_path = ?", manifestPath).
		Order("generated_at DESC").
		Limit(n).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("querying profile history: %w", err)
	}
	return runs, nil
}

// Close releases the underlying sqlite handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
