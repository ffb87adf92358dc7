package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
)

const (
	defaultSweepBatchSize  = 500
	defaultSweepMaxBatches = 20
)

// SweepExpired moves overdue ACTIVE codes to EXPIRED in batches. It stops after a
// short batch, after modules.otp.sweep.max_batches, or when ctx is done, and
// returns how many codes it changed. Running it twice in a row is harmless.
func (s *Usecase) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := s.startSpan(ctx, "SweepExpired")
	defer span.End()

	batch := s.cfg.GetInt("modules.otp.sweep.batch_size")
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	maxBatches := s.cfg.GetInt("modules.otp.sweep.max_batches")
	if maxBatches <= 0 {
		maxBatches = defaultSweepMaxBatches
	}

	now := s.clock.Now()
	var total int64
	for range maxBatches {
		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "sweep interrupted", "swept", total, "because", err)
			return total, err
		}

		n, err := s.repoCode.SweepExpired(ctx, now, batch)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo sweep expired codes", "swept", total, "error", err)
			return total, goerror.NewServer(err)
		}

		total += n
		if n < int64(batch) {
			break
		}
	}

	if total == 0 {
		return 0, nil
	}

	if s.sweptCounter != nil {
		s.sweptCounter.Add(ctx, total)
	}
	slog.InfoContext(ctx, "expired codes swept", "count", total)

	if err := s.repoMessaging.PublishSwept(ctx, SweptEvent{Count: total, At: now}); err != nil {
		slog.ErrorContext(ctx, "failed to publish codes swept", "count", total, "error", err)
	}

	return total, nil
}
