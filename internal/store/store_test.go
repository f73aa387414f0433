package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/bsdetector/internal/model"
)

const pageURL = "https://acme.example/pricing"

func newRecord(url *string, createdAt time.Time) *model.InvestigationRecord {
	rep := model.NewStructuredReport("## Overall Assessment\nFluff.")
	rep.OverallAssessment = "Fluff."
	rep.Claims = []model.Claim{{Text: "world-class AI", Verdict: "Fluff", Sources: []string{"https://a.example"}}}
	return &model.InvestigationRecord{
		URL:           url,
		SourceType:    model.SourceURL,
		InputMarkdown: "# Acme",
		Events:        []model.AgentEvent{{Type: model.EventWriting, Message: "started", Timestamp: 1}},
		Report:        &rep,
		RawChatOutput: rep.RawMarkdown,
		CreatedAt:     createdAt,
		CompletedAt:   createdAt.Add(time.Second),
	}
}

// runStoreSuite checks the behaviour every backend must share
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("NotFoundIsNil", func(t *testing.T) {
		s := open(t)
		rec, err := s.GetLatestByURL(ctx, "https://missing.example")
		require.NoError(t, err)
		assert.Nil(t, rec)

		rec, err = s.FindByURLWithAnnotations(ctx, "https://missing.example")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("InsertAssignsID", func(t *testing.T) {
		s := open(t)
		rec := newRecord(model.StringPtr(pageURL), base)
		require.NoError(t, s.Insert(ctx, rec))
		assert.NotEmpty(t, rec.ID)

		got, err := s.GetLatestByURL(ctx, pageURL)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, pageURL, got.URLString())
		assert.Equal(t, model.SourceURL, got.SourceType)
		assert.Equal(t, "# Acme", got.InputMarkdown)
		require.NotNil(t, got.Report)
		assert.Equal(t, "world-class AI", got.Report.Claims[0].Text)
		assert.Equal(t, []string{"https://a.example"}, got.Report.Claims[0].Sources)
		require.Len(t, got.Events, 1)
		assert.Equal(t, model.EventWriting, got.Events[0].Type)
		assert.Nil(t, got.Replacements)
		assert.WithinDuration(t, base, got.CreatedAt, time.Millisecond)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		s := open(t)
		rec := newRecord(model.StringPtr(pageURL), base)
		require.NoError(t, s.Insert(ctx, rec))

		dup := newRecord(model.StringPtr(pageURL), base)
		dup.ID = rec.ID
		err := s.Insert(ctx, dup)
		assert.True(t, errors.Is(err, ErrDuplicateID))
	})

	t.Run("NewestWins", func(t *testing.T) {
		s := open(t)
		older := newRecord(model.StringPtr(pageURL), base)
		newer := newRecord(model.StringPtr(pageURL), base.Add(time.Hour))
		require.NoError(t, s.Insert(ctx, newer))
		require.NoError(t, s.Insert(ctx, older))

		got, err := s.GetLatestByURL(ctx, pageURL)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, got.ID)
	})

	t.Run("TieBrokenByInsertOrder", func(t *testing.T) {
		s := open(t)
		first := newRecord(model.StringPtr(pageURL), base)
		second := newRecord(model.StringPtr(pageURL), base)
		require.NoError(t, s.Insert(ctx, first))
		require.NoError(t, s.Insert(ctx, second))

		got, err := s.GetLatestByURL(ctx, pageURL)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
	})

	t.Run("AnnotationLifecycle", func(t *testing.T) {
		s := open(t)
		rec := newRecord(model.StringPtr(pageURL), base)
		require.NoError(t, s.Insert(ctx, rec))

		withReport, err := s.FindByURLWithReport(ctx, pageURL)
		require.NoError(t, err)
		require.NotNil(t, withReport)
		assert.Equal(t, rec.ID, withReport.ID)

		none, err := s.FindByURLWithAnnotations(ctx, pageURL)
		require.NoError(t, err)
		assert.Nil(t, none)

		anns := []model.Annotation{{Find: "world-class AI", Annotation: "API wrapper", Type: model.SeverityFluff, Details: []string{"d1"}}}
		require.NoError(t, s.PatchAnnotations(ctx, rec.ID, anns))

		annotated, err := s.FindByURLWithAnnotations(ctx, pageURL)
		require.NoError(t, err)
		require.NotNil(t, annotated)
		assert.Equal(t, anns, annotated.Replacements)

		gone, err := s.FindByURLWithReport(ctx, pageURL)
		require.NoError(t, err)
		assert.Nil(t, gone, "annotated records no longer count as report-only")
	})

	t.Run("EmptyAnnotationsAreDerived", func(t *testing.T) {
		s := open(t)
		rec := newRecord(model.StringPtr(pageURL), base)
		rec.Replacements = []model.Annotation{}
		require.NoError(t, s.Insert(ctx, rec))

		got, err := s.FindByURLWithAnnotations(ctx, pageURL)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.NotNil(t, got.Replacements)
		assert.Empty(t, got.Replacements)
	})

	t.Run("PatchUnknownID", func(t *testing.T) {
		s := open(t)
		err := s.PatchAnnotations(ctx, "00000000-0000-0000-0000-000000000000", []model.Annotation{})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("PDFRecordsNeverMatchURL", func(t *testing.T) {
		s := open(t)
		rec := newRecord(nil, base)
		rec.SourceType = model.SourcePDF
		require.NoError(t, s.Insert(ctx, rec))

		got, err := s.GetLatestByURL(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return NewMemory() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewSQLite(filepath.Join(t.TempDir(), "bsdetector.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("BSDETECTOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BSDETECTOR_TEST_POSTGRES_DSN not set")
	}

	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewPostgres(context.Background(), dsn, nil)
		require.NoError(t, err)
		_, err = s.pool.Exec(context.Background(), "TRUNCATE investigations")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	rec := newRecord(model.StringPtr(pageURL), time.Now())
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.GetLatestByURL(ctx, pageURL)
	require.NoError(t, err)
	got.Report.Claims[0].Text = "mutated"
	got.Events[0].Message = "mutated"

	again, err := s.GetLatestByURL(ctx, pageURL)
	require.NoError(t, err)
	assert.Equal(t, "world-class AI", again.Report.Claims[0].Text)
	assert.Equal(t, "started", again.Events[0].Message)
	assert.Equal(t, 1, s.Len())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, model.StoreConfig{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, model.StoreConfig{Driver: "SQLite", SQLitePath: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, model.StoreConfig{Driver: "mongo"}, nil)
	assert.True(t, errors.Is(err, ErrUnknownDriver))

	_, err = Open(ctx, model.StoreConfig{Driver: "postgres"}, nil)
	assert.Error(t, err, "postgres without a DSN")
}
