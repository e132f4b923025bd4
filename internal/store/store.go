// Package store owns the photo index: its SQLite schema, migrations, and
// every read/write query. No other component touches the database file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"pinbook/pkg/geo"
	"pinbook/pkg/logger"
)

var ErrPhotoNotFound = errors.New("photo not found")

// PhotoRecord is one row per source asset. The geodata columns are
// index-owned and overwritten on every upsert; IsFavorite and Comment are
// user-owned and only ever change through the annotation calls.
type PhotoRecord struct {
	ID          string   `gorm:"primaryKey;type:text" json:"id"`
	TakenAt     *int64   `json:"taken_at,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	CountryCode *string  `json:"country_code,omitempty"`
	CountryName *string  `json:"country_name,omitempty"`
	City        *string  `json:"city,omitempty"`
	ImportedAt  int64    `gorm:"not null" json:"imported_at"`
	IsFavorite  bool     `gorm:"not null;default:false" json:"is_favorite"`
	Comment     *string  `json:"comment,omitempty"`
}

func (PhotoRecord) TableName() string { return "photo_records" }

// indexOwnedColumns is the exact update set for upserts. The user-owned
// columns are excluded so re-indexing can never revert a favorite flag or
// comment.
var indexOwnedColumns = []string{
	"taken_at", "latitude", "longitude",
	"country_code", "country_name", "city",
	"imported_at",
}

// Store serializes all access to the photo index. MaxOpenConns(1) keeps
// the single-writer discipline at the connection level; concurrent reads
// from the API layer simply queue behind the writer.
type Store struct {
	db *gorm.DB
}

// Open connects to (or creates) the index database and applies the
// additive-only migration. Failures are returned to the caller, not
// fatal: the caller decides whether to retry with a fresh file or
// surface a startup error.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("failed to ensure database directory: %w", err)
	}

	// WAL mode enables concurrent readers and a single writer without
	// locking the entire file. busy_timeout makes the driver wait for
	// the lock instead of failing immediately.
	dsn := fmt.Sprintf(
		"%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=-20000",
		path,
	)

	gormConfig := &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := configurePool(db); err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.LogInfo("Photo index ready at %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0750)
	}
	return nil
}

func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic database interface: %w", err)
	}

	// One connection total: every statement, read or write, serializes
	// through the same handle.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
	return nil
}

// migrate is additive-only and safe to run on every start: AutoMigrate
// creates the table and adds newly-introduced columns by inspecting the
// existing column set; it never drops or rewrites data.
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&PhotoRecord{}); err != nil {
		return err
	}

	// Raw SQL is used here to ensure idempotent index creation
	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_photo_records_country_code ON photo_records(country_code);",
		"CREATE INDEX IF NOT EXISTS idx_photo_records_taken_at ON photo_records(taken_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_photo_records_imported_at ON photo_records(imported_at);",
	}

	for _, idx := range indices {
		if err := db.Exec(idx).Error; err != nil {
			logger.LogWarn("Failed to create index: %v", err)
		}
	}
	return nil
}

// Upsert inserts the record, or updates only the index-owned columns when
// the asset id already exists.
func (s *Store) Upsert(rec *PhotoRecord) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(indexOwnedColumns),
	}).Create(rec).Error
}

// ResetAll wipes every record. Only the full-reindex path calls this,
// immediately before re-populating the table.
func (s *Store) ResetAll() error {
	return s.db.Exec("DELETE FROM photo_records").Error
}

// LatestWatermark returns the maximum import watermark, or ok=false when
// the store is empty. The caller uses it to choose between full and
// incremental indexing on the next launch.
func (s *Store) LatestWatermark() (int64, bool, error) {
	var wm *int64
	err := s.db.Model(&PhotoRecord{}).Select("MAX(imported_at)").Scan(&wm).Error
	if err != nil {
		return 0, false, err
	}
	if wm == nil {
		return 0, false, nil
	}
	return *wm, true, nil
}

// Centroid returns the mean coordinate across all located photos, or nil
// when none exist. Used as a map-focus fallback.
func (s *Store) Centroid() (*geo.Point, error) {
	var row struct {
		Lat *float64
		Lon *float64
	}
	err := s.db.Model(&PhotoRecord{}).
		Select("AVG(latitude) AS lat, AVG(longitude) AS lon").
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Lat == nil || row.Lon == nil {
		return nil, nil
	}
	return &geo.Point{Lat: *row.Lat, Lon: *row.Lon}, nil
}

// Annotations is the user-owned slice of a record.
type Annotations struct {
	IsFavorite bool    `json:"is_favorite"`
	Comment    *string `json:"comment,omitempty"`
}

func (s *Store) UserAnnotations(id string) (*Annotations, error) {
	var rec PhotoRecord
	err := s.db.Select("is_favorite", "comment").Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Annotations{IsFavorite: rec.IsFavorite, Comment: rec.Comment}, nil
}

func (s *Store) SetFavorite(id string, fav bool) error {
	res := s.db.Model(&PhotoRecord{}).Where("id = ?", id).Update("is_favorite", fav)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

// SetComment trims the text and stores NULL when nothing is left, so an
// all-whitespace comment behaves like clearing it.
func (s *Store) SetComment(id string, comment *string) error {
	var value interface{}
	if comment != nil {
		if trimmed := strings.TrimSpace(*comment); trimmed != "" {
			value = trimmed
		}
	}
	res := s.db.Model(&PhotoRecord{}).Where("id = ?", id).Update("comment", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPhotoNotFound
	}
	return nil
}
