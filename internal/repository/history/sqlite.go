package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oshokin/sos-button/internal/domain/alert"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 20

// Repository defines persistence operations for dispatch attempts.
type Repository interface {
	Record(ctx context.Context, attempt *alert.Attempt) error
	List(ctx context.Context, limit int) ([]*alert.Attempt, error)
}

// ErrNotFound is returned by Last when the journal is empty.
var ErrNotFound = errors.New("no alerts recorded")

var errAttemptRequired = errors.New("attempt must be provided")

// record is the gorm model of one attempt.
type record struct {
	ID        string    `gorm:"primaryKey;size:36"`
	RequestID string    `gorm:"size:36;index"`
	Kind      string    `gorm:"size:32;not null"`
	Message   string    `gorm:"type:text"`
	Latitude  *float64
	Longitude *float64
	Address   string    `gorm:"size:255"`
	Outcome   string    `gorm:"size:16;not null;index"`
	AlertID   string    `gorm:"size:64"`
	Error     string    `gorm:"type:text"`
	At        time.Time `gorm:"not null;index"`
}

// TableName pins the table name.
func (record) TableName() string {
	return "alert_attempts"
}

// SQLRepository persists attempts to a SQLite database.
type SQLRepository struct {
	// db is the gorm handle.
	db *gorm.DB
}

// Open opens (and migrates) the journal at path. ":memory:" is accepted.
func Open(path string) (*SQLRepository, error) {
	if path != ":memory:" {
		path = filepath.Clean(path)

		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create journal directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err = db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return &SQLRepository{db: db}, nil
}

// Close releases the database handle.
func (r *SQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("journal handle: %w", err)
	}

	return sqlDB.Close()
}

// Record stores one attempt.
func (r *SQLRepository) Record(ctx context.Context, attempt *alert.Attempt) error {
	if attempt == nil {
		return errAttemptRequired
	}

	row := toRecord(attempt)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	return nil
}

// List returns up to limit attempts, newest first.
func (r *SQLRepository) List(ctx context.Context, limit int) ([]*alert.Attempt, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows []record
	if err := r.db.WithContext(ctx).
		Order("at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	attempts := make([]*alert.Attempt, 0, len(rows))
	for i := range rows {
		attempts = append(attempts, fromRecord(&rows[i]))
	}

	return attempts, nil
}

// Last returns the newest attempt.
func (r *SQLRepository) Last(ctx context.Context) (*alert.Attempt, error) {
	var row record

	err := r.db.WithContext(ctx).Order("at DESC").Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("last attempt: %w", err)
	}

	return fromRecord(&row), nil
}

// toRecord converts the domain Attempt into the gorm model.
func toRecord(attempt *alert.Attempt) *record {
	at := attempt.At
	if at.IsZero() {
		at = time.Now()
	}

	row := &record{
		ID:        uuid.NewString(),
		RequestID: attempt.RequestID,
		Kind:      string(attempt.Kind),
		Message:   attempt.Message,
		Outcome:   string(attempt.Outcome),
		AlertID:   attempt.AlertID,
		Error:     attempt.Error,
		At:        at.UTC(),
	}

	if loc := attempt.Location; loc != nil {
		lat, lng := loc.Latitude, loc.Longitude
		row.Latitude = &lat
		row.Longitude = &lng
		row.Address = loc.Address
	}

	return row
}

// fromRecord converts the gorm model into the domain Attempt.
func fromRecord(row *record) *alert.Attempt {
	attempt := &alert.Attempt{
		RequestID: row.RequestID,
		Kind:      alert.TriggerKind(row.Kind),
		Message:   row.Message,
		Outcome:   alert.Outcome(row.Outcome),
		AlertID:   row.AlertID,
		Error:     row.Error,
		At:        row.At,
	}

	if row.Latitude != nil && row.Longitude != nil {
		attempt.Location = &alert.LocationSample{
			Latitude:  *row.Latitude,
			Longitude: *row.Longitude,
			Address:   row.Address,
			Timestamp: row.At.Format(time.RFC3339),
		}
	}

	return attempt
}
