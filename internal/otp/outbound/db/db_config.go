package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/onetime/internal/otp/entity"
)

const configColumns = `code_length, lifetime_minutes, max_attempts, resend_enabled, resend_interval_seconds, updated_at`

func scanConfig(row pgx.Row) (entity.Config, error) {
	var c entity.Config
	err := row.Scan(&c.CodeLength, &c.LifetimeMinutes, &c.MaxAttempts, &c.ResendEnabled, &c.ResendIntervalSeconds, &c.UpdatedAt)
	return c, err
}

// ensureConfig creates the singleton row from the defaults. Concurrent callers
// race on the primary key and every insert but one is a no-op.
func (s *DB) ensureConfig(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO otp_config (id, `+configColumns+`)
		VALUES (1, $1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO NOTHING`,
		s.defaults.CodeLength, s.defaults.LifetimeMinutes, s.defaults.MaxAttempts,
		s.defaults.ResendEnabled, s.defaults.ResendIntervalSeconds,
	)
	return err
}

func (s *DB) GetConfig(ctx context.Context) (_ entity.Config, err error) {
	ctx, span := s.startSpan(ctx, "GetConfig")
	defer func() { s.endSpan(span, err) }()

	if err = s.ensureConfig(ctx); err != nil {
		return entity.Config{}, s.mapError(err)
	}

	cfg, err := scanConfig(s.conn.QueryRow(ctx, `SELECT `+configColumns+` FROM otp_config WHERE id = 1`))
	if err != nil {
		return entity.Config{}, s.mapError(err)
	}

	return cfg, nil
}

// UpdateConfig writes the valid fields of upd and keeps the rest.
func (s *DB) UpdateConfig(ctx context.Context, upd entity.ConfigUpdate) (_ entity.Config, err error) {
	ctx, span := s.startSpan(ctx, "UpdateConfig")
	defer func() { s.endSpan(span, err) }()

	if err = s.ensureConfig(ctx); err != nil {
		return entity.Config{}, s.mapError(err)
	}

	upd = upd.Sanitize()
	cfg, err := scanConfig(s.conn.QueryRow(ctx, `
		UPDATE otp_config SET
			code_length             = COALESCE($1::INT, code_length),
			lifetime_minutes        = COALESCE($2::INT, lifetime_minutes),
			max_attempts            = COALESCE($3::INT, max_attempts),
			resend_enabled          = COALESCE($4::BOOLEAN, resend_enabled),
			resend_interval_seconds = COALESCE($5::INT, resend_interval_seconds),
			updated_at              = now()
		WHERE id = 1
		RETURNING `+configColumns,
		upd.CodeLength, upd.LifetimeMinutes, upd.MaxAttempts, upd.ResendEnabled, upd.ResendIntervalSeconds,
	))
	if err != nil {
		return entity.Config{}, s.mapError(err)
	}

	return cfg, nil
}
