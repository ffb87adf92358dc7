package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
)

const codeColumns = `id, subject, value, operation_id, status, channel, address, created_at, expires_at, used_at`

func scanCode(row pgx.Row) (*entity.Code, error) {
	var (
		c       entity.Code
		status  int16
		channel int16
	)
	if err := row.Scan(
		&c.ID, &c.Subject, &c.Value, &c.OperationID, &status, &channel,
		&c.Address, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt,
	); err != nil {
		return nil, err
	}

	c.Status = entity.Status(status)
	c.Channel = entity.Channel(channel)
	return &c, nil
}

// Save inserts code, or writes its mutable fields over the stored record with
// the same ID while that record is still ACTIVE. A terminal record is never
// overwritten and yields goerror.ErrConflict.
func (s *DB) Save(ctx context.Context, code entity.Code) (_ entity.Code, err error) {
	ctx, span := s.startSpan(ctx, "Save")
	defer func() { s.endSpan(span, err) }()

	if code.ID == 0 {
		code.ID = s.uid.Generate()
	}

	tag, err := s.conn.Exec(ctx, `
		INSERT INTO otp_codes (`+codeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			address = EXCLUDED.address,
			expires_at = EXCLUDED.expires_at,
			used_at = EXCLUDED.used_at
		WHERE otp_codes.status = $11`,
		code.ID, code.Subject, code.Value, code.OperationID, int16(code.Status), int16(code.Channel),
		code.Address, code.CreatedAt, code.ExpiresAt, code.UsedAt, int16(entity.StatusActive),
	)
	if err != nil {
		return entity.Code{}, s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return entity.Code{}, goerror.ErrConflict
	}

	return code, nil
}

func (s *DB) FindActive(ctx context.Context, subject, value, operationID string) (_ *entity.Code, err error) {
	ctx, span := s.startSpan(ctx, "FindActive")
	defer func() { s.endSpan(span, err) }()

	code, err := scanCode(s.conn.QueryRow(ctx, `
		SELECT `+codeColumns+` FROM otp_codes
		WHERE subject = $1 AND value = $2 AND operation_id = $3 AND status = $4
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		subject, value, operationID, int16(entity.StatusActive),
	))
	if err != nil {
		return nil, s.mapError(err)
	}

	return code, nil
}

func (s *DB) FindLatestActive(ctx context.Context, subject string) (_ *entity.Code, err error) {
	ctx, span := s.startSpan(ctx, "FindLatestActive")
	defer func() { s.endSpan(span, err) }()

	code, err := scanCode(s.conn.QueryRow(ctx, `
		SELECT `+codeColumns+` FROM otp_codes
		WHERE subject = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		subject, int16(entity.StatusActive),
	))
	if err != nil {
		return nil, s.mapError(err)
	}

	return code, nil
}

// MarkUsed reports false when the code is no longer ACTIVE or already past its
// expiry, so only one caller can ever consume it.
func (s *DB) MarkUsed(ctx context.Context, id int64, now time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkUsed")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_codes SET status = $2, used_at = $3
		WHERE id = $1 AND status = $4 AND expires_at >= $3`,
		id, int16(entity.StatusUsed), now, int16(entity.StatusActive),
	)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *DB) MarkExpired(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkExpired")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_codes SET status = $2
		WHERE id = $1 AND status = $3`,
		id, int16(entity.StatusExpired), int16(entity.StatusActive),
	)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

// SweepExpired expires at most batch overdue codes. Rows locked by a concurrent
// sweep are skipped rather than waited on.
func (s *DB) SweepExpired(ctx context.Context, now time.Time, batch int) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "SweepExpired")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_codes SET status = $1
		WHERE id IN (
			SELECT id FROM otp_codes
			WHERE status = $2 AND expires_at < $3
			ORDER BY id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		) AND status = $2`,
		int16(entity.StatusExpired), int16(entity.StatusActive), now, batch,
	)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}

func (s *DB) DeleteAllFor(ctx context.Context, subject string) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "DeleteAllFor")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM otp_codes WHERE subject = $1`, subject)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}
