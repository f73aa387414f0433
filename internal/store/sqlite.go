package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ppiankov/bsdetector/internal/model"
)

// investigationRow is the gorm model for one record. JSON columns are text,
// with NULL meaning absent.
type investigationRow struct {
	ID            string    `gorm:"primaryKey;type:text"`
	URL           *string   `gorm:"index:idx_investigations_url_created,priority:1"`
	SourceType    string    `gorm:"type:text;not null"`
	InputMarkdown string    `gorm:"type:text"`
	Events        string    `gorm:"type:text;not null"`
	Report        *string   `gorm:"type:text"`
	RawChatOutput string    `gorm:"type:text"`
	Replacements  *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index:idx_investigations_url_created,priority:2"`
	CompletedAt   time.Time
}

func (investigationRow) TableName() string { return "investigations" }

// newestOrder breaks CreatedAt ties by insertion order
const newestOrder = "created_at DESC, rowid DESC"

// SQLite stores records in a local database file through gorm
type SQLite struct {
	db     *gorm.DB
	logger *zerolog.Logger
}

// NewSQLite opens (or creates) the database at path and migrates the schema
func NewSQLite(path string, logger *zerolog.Logger) (*SQLite, error) {
	if path == "" {
		path = "bsdetector.db"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.AutoMigrate(&investigationRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	logger.Debug().Str("path", path).Msg("SQLite store ready")

	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) FindByURLWithAnnotations(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return s.first(ctx, "url = ? AND replacements IS NOT NULL", url)
}

func (s *SQLite) FindByURLWithReport(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return s.first(ctx, "url = ? AND report IS NOT NULL AND replacements IS NULL", url)
}

func (s *SQLite) GetLatestByURL(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return s.first(ctx, "url = ?", url)
}

func (s *SQLite) first(ctx context.Context, where string, args ...any) (*model.InvestigationRecord, error) {
	var rows []investigationRow
	err := s.db.WithContext(ctx).
		Where(where, args...).
		Order(newestOrder).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query investigations: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].record()
}

func (s *SQLite) Insert(ctx context.Context, rec *model.InvestigationRecord) error {
	if err := prepare(rec); err != nil {
		return err
	}
	row, err := newRow(rec)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&investigationRow{}).Where("id = ?", row.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("check id: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateID, row.ID)
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("insert investigation: %w", err)
		}
		return nil
	})
}

func (s *SQLite) PatchAnnotations(ctx context.Context, id string, anns []model.Annotation) error {
	b, err := encodeAnnotations(anns)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Model(&investigationRow{}).
		Where("id = ?", id).
		Update("replacements", string(b))
	if res.Error != nil {
		return fmt.Errorf("patch annotations: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newRow(rec *model.InvestigationRecord) (*investigationRow, error) {
	enc, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	row := &investigationRow{
		ID:            rec.ID,
		URL:           rec.URL,
		SourceType:    string(rec.SourceType),
		InputMarkdown: rec.InputMarkdown,
		Events:        string(enc.events),
		RawChatOutput: rec.RawChatOutput,
		CreatedAt:     rec.CreatedAt.UTC(),
		CompletedAt:   rec.CompletedAt.UTC(),
	}
	if enc.report != nil {
		row.Report = model.StringPtr(string(enc.report))
	}
	if enc.replacements != nil {
		row.Replacements = model.StringPtr(string(enc.replacements))
	}
	return row, nil
}

func (r *investigationRow) record() (*model.InvestigationRecord, error) {
	rec := &model.InvestigationRecord{
		ID:            r.ID,
		URL:           r.URL,
		SourceType:    model.SourceType(r.SourceType),
		InputMarkdown: r.InputMarkdown,
		RawChatOutput: r.RawChatOutput,
		CreatedAt:     r.CreatedAt,
		CompletedAt:   r.CompletedAt,
	}

	enc := encoded{events: []byte(r.Events)}
	if r.Report != nil {
		enc.report = []byte(*r.Report)
	}
	if r.Replacements != nil {
		enc.replacements = []byte(*r.Replacements)
	}
	if err := decodeInto(rec, enc); err != nil {
		return nil, fmt.Errorf("decode investigation %s: %w", r.ID, err)
	}
	return rec, nil
}

