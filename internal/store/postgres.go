package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	maxConnectionRetries = 5
	migrationLockID      = 7311
	uniqueViolation      = "23505"
)

// connectionRetrySleep is the pause between connection attempts (injectable for tests)
var connectionRetrySleep = 2 * time.Second

const selectColumns = `id::text, url, source_type, input_markdown, events, report,
	raw_chat_output, replacements, created_at, completed_at`

// Postgres stores records in PostgreSQL through a pgx pool
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// NewPostgres connects with retries and applies the embedded migrations
func NewPostgres(ctx context.Context, dsn string, logger *zerolog.Logger) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres store requires a DSN")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	pool, err := connectWithRetries(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	p := &Postgres{pool: pool, logger: logger}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

func connectWithRetries(ctx context.Context, config *pgxpool.Config, logger *zerolog.Logger) (*pgxpool.Pool, error) {
	var err error
	for i := 0; i < maxConnectionRetries; i++ {
		var pool *pgxpool.Pool
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		logger.Warn().Err(err).Int("attempt", i+1).Msg("Postgres connection failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectionRetrySleep):
		}
	}
	return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
}

type gooseLogger struct {
	logger *zerolog.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msgf(format, v...)
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msgf(format, v...)
}

// migrate runs goose under an advisory lock so concurrent instances do not
// race on schema changes
func (p *Postgres) migrate(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	sqlDB := stdlib.OpenDB(*p.pool.Config().ConnConfig)
	defer func() { _ = sqlDB.Close() }()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&gooseLogger{logger: p.logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (p *Postgres) FindByURLWithAnnotations(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return p.first(ctx, `url = $1 AND replacements IS NOT NULL`, url)
}

func (p *Postgres) FindByURLWithReport(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return p.first(ctx, `url = $1 AND report IS NOT NULL AND replacements IS NULL`, url)
}

func (p *Postgres) GetLatestByURL(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return p.first(ctx, `url = $1`, url)
}

func (p *Postgres) first(ctx context.Context, where string, args ...any) (*model.InvestigationRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM investigations WHERE ` + where +
		` ORDER BY created_at DESC, seq DESC LIMIT 1`

	var (
		rec        model.InvestigationRecord
		sourceType string
		enc        encoded
	)
	err := p.pool.QueryRow(ctx, query, args...).Scan(
		&rec.ID, &rec.URL, &sourceType, &rec.InputMarkdown,
		&enc.events, &enc.report, &rec.RawChatOutput, &enc.replacements,
		&rec.CreatedAt, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query investigations: %w", err)
	}

	rec.SourceType = model.SourceType(sourceType)
	if err := decodeInto(&rec, enc); err != nil {
		return nil, fmt.Errorf("decode investigation %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func (p *Postgres) Insert(ctx context.Context, rec *model.InvestigationRecord) error {
	if err := prepare(rec); err != nil {
		return err
	}
	enc, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO investigations (id, url, source_type, input_markdown, events, report,
			raw_chat_output, replacements, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.URL, string(rec.SourceType), rec.InputMarkdown,
		enc.events, enc.report, rec.RawChatOutput, enc.replacements,
		rec.CreatedAt, rec.CompletedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("insert investigation: %w", err)
	}
	return nil
}

func (p *Postgres) PatchAnnotations(ctx context.Context, id string, anns []model.Annotation) error {
	b, err := encodeAnnotations(anns)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `UPDATE investigations SET replacements = $2 WHERE id::text = $1`, id, b)
	if err != nil {
		return fmt.Errorf("patch annotations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
