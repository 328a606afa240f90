package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ehis6k/transcriber/internal/domain"
)

// defaultPageSize bounds queries that do not specify a limit.
const defaultPageSize = 50

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("history record not found")

// StoreError reports a failed database operation.
type StoreError struct {
	Op  string
	Err error
}

// Error formats store failures for logs and UI.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Store persists job results in a local SQLite database.
type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

// Open creates or opens the history database at path and migrates the schema.
func Open(path string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{Op: "open", Err: err}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	// WAL keeps reads available while a job result is being written.
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(&domain.HistoryRecord{}); err != nil {
		return nil, &StoreError{Op: "migrate", Err: err}
	}

	return &Store{db: db, log: log.WithField("component", "history")}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &StoreError{Op: "close", Err: err}
	}
	return sqlDB.Close()
}

// Save inserts the record, replacing any existing record with the same id.
func (s *Store) Save(record domain.HistoryRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
	if err != nil {
		return &StoreError{Op: "save", Err: err}
	}
	s.log.WithFields(logrus.Fields{"id": record.ID, "kind": record.Kind}).Debug("history record saved")
	return nil
}

// Get returns one record by id.
func (s *Store) Get(id string) (*domain.HistoryRecord, error) {
	var record domain.HistoryRecord
	err := s.db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return &record, nil
}

// Delete removes one record by id.
func (s *Store) Delete(id string) error {
	res := s.db.Delete(&domain.HistoryRecord{}, "id = ?", id)
	if res.Error != nil {
		return &StoreError{Op: "delete", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Query returns one page of records matching the filter, newest first.
// All filter predicates are AND-ed; SearchText matches case-insensitively
// against the transcript text and the summary.
func (s *Store) Query(filter domain.HistoryFilter) (*domain.HistoryPage, error) {
	q := s.applyFilter(s.db.Model(&domain.HistoryRecord{}), filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var items []domain.HistoryRecord
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}

	return &domain.HistoryPage{
		Items:         items,
		TotalMatching: total,
		HasMore:       int64(offset+len(items)) < total,
	}, nil
}

// applyFilter translates the filter into WHERE clauses.
func (s *Store) applyFilter(q *gorm.DB, filter domain.HistoryFilter) *gorm.DB {
	if filter.Language != "" {
		q = q.Where("language = ?", filter.Language)
	}
	if filter.ModelUsed != "" {
		q = q.Where("model_used = ?", filter.ModelUsed)
	}
	if filter.DateFrom != nil {
		q = q.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("created_at <= ?", *filter.DateTo)
	}
	if search := strings.TrimSpace(filter.SearchText); search != "" {
		needle := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(text) LIKE ? OR LOWER(summary) LIKE ?", needle, needle)
	}
	return q
}

// Stats aggregates across all stored records, ignoring any filter. A tie for
// the most frequent language/model pair goes to the pair seen first while
// scanning the table.
func (s *Store) Stats() (*domain.HistoryStats, error) {
	var records []domain.HistoryRecord
	if err := s.db.Find(&records).Error; err != nil {
		return nil, &StoreError{Op: "stats", Err: err}
	}

	stats := &domain.HistoryStats{TotalJobs: int64(len(records))}

	type pair struct{ language, model string }
	counts := make(map[pair]int64)
	var order []pair

	confidenceSum := 0.0
	confidenceN := 0
	for _, record := range records {
		if record.Summary != "" {
			stats.SummarizedJobs++
		}
		stats.TotalDuration += record.Duration
		if record.Confidence != nil {
			confidenceSum += *record.Confidence
			confidenceN++
		}

		p := pair{language: record.Language, model: record.ModelUsed}
		if _, seen := counts[p]; !seen {
			order = append(order, p)
		}
		counts[p]++
	}

	if confidenceN > 0 {
		mean := confidenceSum / float64(confidenceN)
		stats.MeanConfidence = &mean
	}

	for _, p := range order {
		if counts[p] > stats.TopPairJobCount {
			stats.TopPairJobCount = counts[p]
			stats.TopLanguage = p.language
			stats.TopModel = p.model
		}
	}

	return stats, nil
}
