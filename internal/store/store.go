// Package store persists investigation records.
//
// Records are append-only. The only mutation is attaching annotations to a
// record that has none. Lookups by URL return the newest matching record,
// ordered by CreatedAt with later inserts winning ties.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/model"
)

var (
	ErrNotFound      = errors.New("investigation not found")
	ErrDuplicateID   = errors.New("investigation id already exists")
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store is the investigation repository. Lookups return (nil, nil) when
// nothing matches.
type Store interface {
	// FindByURLWithAnnotations returns the newest record for url whose
	// annotations have been derived
	FindByURLWithAnnotations(ctx context.Context, url string) (*model.InvestigationRecord, error)

	// FindByURLWithReport returns the newest record for url that has a
	// report but no annotations yet
	FindByURLWithReport(ctx context.Context, url string) (*model.InvestigationRecord, error)

	// GetLatestByURL returns the newest record for url in any state
	GetLatestByURL(ctx context.Context, url string) (*model.InvestigationRecord, error)

	// Insert appends a record, assigning an ID when empty
	Insert(ctx context.Context, rec *model.InvestigationRecord) error

	// PatchAnnotations sets the annotations of an existing record
	PatchAnnotations(ctx context.Context, id string, anns []model.Annotation) error

	Close() error
}

// Open selects a backend by driver name
func Open(ctx context.Context, cfg model.StoreConfig, logger *zerolog.Logger) (Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return NewSQLite(cfg.SQLitePath, logger)
	case "postgres", "postgresql", "pg":
		return NewPostgres(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// prepare fills in defaults before a record is written
func prepare(rec *model.InvestigationRecord) error {
	if rec == nil {
		return errors.New("nil investigation record")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SourceType == "" {
		rec.SourceType = model.SourceURL
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = now
	}
	if rec.Events == nil {
		rec.Events = []model.AgentEvent{}
	}
	return nil
}

// cloneRecord copies a record so callers cannot alias stored slices
func cloneRecord(rec *model.InvestigationRecord) *model.InvestigationRecord {
	out := *rec
	if rec.URL != nil {
		out.URL = model.StringPtr(*rec.URL)
	}
	if rec.Events != nil {
		out.Events = append([]model.AgentEvent{}, rec.Events...)
	}
	if rec.Report != nil {
		r := *rec.Report
		r.Claims = append([]model.Claim{}, rec.Report.Claims...)
		r.ChecksOut = append([]string{}, rec.Report.ChecksOut...)
		r.RedFlags = append([]string{}, rec.Report.RedFlags...)
		out.Report = &r
	}
	out.Replacements = cloneAnnotations(rec.Replacements)
	return &out
}

func cloneAnnotations(anns []model.Annotation) []model.Annotation {
	if anns == nil {
		return nil
	}
	return append([]model.Annotation{}, anns...)
}
