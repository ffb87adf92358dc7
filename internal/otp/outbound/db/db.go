package db

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/uid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DB struct {
	conn     *pgxpool.Pool
	ins      instrument.Instrumentation
	uid      uid.NumberID
	defaults entity.Config
}

// NewDB returns the PostgreSQL code and config store. defaults seed the config
// row the first time it is read.
func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation, uid uid.NumberID, defaults entity.Config) *DB {
	return &DB{
		conn:     conn,
		ins:      ins,
		uid:      uid,
		defaults: defaults,
	}
}

// Migrate applies every embedded migration in file name order. The statements
// are idempotent so it is safe on every start.
func Migrate(ctx context.Context, conn *pgxpool.Pool) error {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		script, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(script)); err != nil {
			return err
		}
		slog.InfoContext(ctx, "migration applied", "file", name)
	}

	return nil
}

// - no rows → goerror.ErrNotFound
// - 23505 unique violation → goerror.ErrConflict
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
