package inbound

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/otp/usecase"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/messaging"
)

var expiresAt = time.Date(2026, 5, 4, 8, 15, 0, 0, time.UTC)

// fakeUsecase records inputs and returns canned results.
type fakeUsecase struct {
	mu sync.Mutex

	issueIn    []usecase.IssueInput
	issueOut   *usecase.IssueOutput
	validateIn []usecase.ValidateInput
	valid      bool
	resendIn   []usecase.ResendInput
	updateIn   []usecase.UpdateConfigInput
	deleted    []string
	sweeps     int
	swept      int64
	sweepWait  chan struct{}

	err error
}

func (f *fakeUsecase) Issue(_ context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueIn = append(f.issueIn, in)
	if f.err != nil {
		return nil, f.err
	}
	out := *f.issueOut
	return &out, nil
}

func (f *fakeUsecase) Validate(_ context.Context, in usecase.ValidateInput) (*usecase.ValidateOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateIn = append(f.validateIn, in)
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.ValidateOutput{Valid: f.valid}, nil
}

func (f *fakeUsecase) Resend(_ context.Context, in usecase.ResendInput) (*usecase.ResendOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resendIn = append(f.resendIn, in)
	if f.err != nil {
		return nil, f.err
	}
	out := *f.issueOut
	return &out, nil
}

func (f *fakeUsecase) GetConfig(context.Context) (*entity.Config, error) {
	if f.err != nil {
		return nil, f.err
	}
	cfg := entity.DefaultConfig()
	return &cfg, nil
}

func (f *fakeUsecase) UpdateConfig(_ context.Context, in usecase.UpdateConfigInput) (*entity.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateIn = append(f.updateIn, in)
	if f.err != nil {
		return nil, f.err
	}
	cfg := entity.DefaultConfig()
	if in.LifetimeMinutes != nil {
		cfg.LifetimeMinutes = *in.LifetimeMinutes
	}
	return &cfg, nil
}

func (f *fakeUsecase) DeleteAllFor(_ context.Context, in usecase.DeleteAllForInput) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, in.Subject)
	return 1, f.err
}

func (f *fakeUsecase) SweepExpired(ctx context.Context) (int64, error) {
	if f.sweepWait != nil {
		select {
		case <-f.sweepWait:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return f.swept, f.err
}

type fakeMessage struct {
	body    []byte
	headers []messaging.Header
}

func (m fakeMessage) Body() []byte                { return m.body }
func (m fakeMessage) Key() []byte                 { return nil }
func (m fakeMessage) Headers() []messaging.Header { return m.headers }
func (m fakeMessage) ID() string                  { return "1" }
func (m fakeMessage) Topic() string               { return "account_deleted" }
func (m fakeMessage) Timestamp() time.Time        { return expiresAt }
func (m fakeMessage) Ack(context.Context) error   { return nil }
func (m fakeMessage) Nack(context.Context) error  { return nil }

var noop = instrument.NewNoop()
