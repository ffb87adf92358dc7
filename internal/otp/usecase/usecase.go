package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/pkg/clock"
	"github.com/shandysiswandi/onetime/internal/pkg/codegen"
	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
	"github.com/shandysiswandi/onetime/internal/pkg/hash"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/jwt"
	"github.com/shandysiswandi/onetime/internal/pkg/uid"
	"github.com/shandysiswandi/onetime/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNoActiveCode   = goerror.NewBusiness("No active OTP code to resend", goerror.CodeNotFound)
	ErrResendDisabled = goerror.NewBusiness("OTP resend is disabled", goerror.CodeForbidden)
	ErrResendTooSoon  = goerror.NewBusiness("Please wait before requesting a new OTP code", goerror.CodeTooManyRequest)
)

const (
	objectConfig = "otp_config"
	actRead      = "read"
	actUpdate    = "update"
)

type IssuedEvent struct {
	CodeID      int64
	Subject     string
	Channel     entity.Channel
	OperationID string
	Delivered   bool
	ExpiresAt   time.Time
}

type ValidatedEvent struct {
	Subject     string
	OperationID string
	Valid       bool
	Reason      entity.Reason
}

type ResentEvent struct {
	PriorCodeID int64
	CodeID      int64
	Subject     string
	OperationID string
	Delivered   bool
}

type SweptEvent struct {
	Count int64
	At    time.Time
}

type repoMessaging interface {
	PublishIssued(ctx context.Context, msg IssuedEvent) error
	PublishValidated(ctx context.Context, msg ValidatedEvent) error
	PublishResent(ctx context.Context, msg ResentEvent) error
	PublishSwept(ctx context.Context, msg SweptEvent) error
}

type repoCode interface {
	// Save inserts a code or updates one that is still ACTIVE; a terminal
	// record yields goerror.ErrConflict.
	Save(ctx context.Context, code entity.Code) (entity.Code, error)
	FindActive(ctx context.Context, subject, value, operationID string) (*entity.Code, error)
	FindLatestActive(ctx context.Context, subject string) (*entity.Code, error)
	MarkUsed(ctx context.Context, id int64, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, id int64) (bool, error)
	SweepExpired(ctx context.Context, now time.Time, batch int) (int64, error)
	DeleteAllFor(ctx context.Context, subject string) (int64, error)
}

type repoConfig interface {
	GetConfig(ctx context.Context) (entity.Config, error)
	UpdateConfig(ctx context.Context, upd entity.ConfigUpdate) (entity.Config, error)
}

// limiter counts validation attempts per subject inside a lifetime window.
// Reserve must count and return the new total in one atomic step.
type limiter interface {
	Reserve(ctx context.Context, subject string, window time.Duration) (int, error)
	Release(ctx context.Context, subject string) error
	ResetFailures(ctx context.Context, subject string) error
}

type dispatcher interface {
	Deliver(ctx context.Context, channel entity.Channel, address, code string) bool
}

type authorizer interface {
	Allowed(subject string, roles []string, obj, act string) (bool, error)
}

type Usecase struct {
	repoCode      repoCode
	repoConfig    repoConfig
	repoMessaging repoMessaging
	limiter       limiter
	dispatcher    dispatcher
	authorizer    authorizer
	codegen       codegen.Generator
	hmac          hash.Hash
	hashCodes     bool
	validator     validator.Validator
	cfg           config.Config
	uid           uid.NumberID
	uuid          uid.StringID
	clock         clock.Clocker
	ins           instrument.Instrumentation

	issuedCounter    metric.Int64Counter
	validatedCounter metric.Int64Counter
	sweptCounter     metric.Int64Counter
}

type Dependency struct {
	RepoCode      repoCode
	RepoConfig    repoConfig
	RepoMessaging repoMessaging
	Limiter       limiter
	Dispatcher    dispatcher
	Authorizer    authorizer
	CodeGen       codegen.Generator
	// HMAC is only used when HashCodes is set.
	HMAC       hash.Hash
	HashCodes  bool
	Validator  validator.Validator
	Config     config.Config
	UID        uid.NumberID
	UUID       uid.StringID
	Clock      clock.Clocker
	Instrument instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	s := &Usecase{
		repoCode:      dep.RepoCode,
		repoConfig:    dep.RepoConfig,
		repoMessaging: dep.RepoMessaging,
		limiter:       dep.Limiter,
		dispatcher:    dep.Dispatcher,
		authorizer:    dep.Authorizer,
		codegen:       dep.CodeGen,
		hmac:          dep.HMAC,
		hashCodes:     dep.HashCodes && dep.HMAC != nil,
		validator:     dep.Validator,
		cfg:           dep.Config,
		uid:           dep.UID,
		uuid:          dep.UUID,
		clock:         dep.Clock,
		ins:           dep.Instrument,
	}

	meter := s.ins.Meter("otp.usecase")
	var err error
	if s.issuedCounter, err = meter.Int64Counter("otp.codes.issued", metric.WithDescription("Number of OTP codes issued")); err != nil {
		slog.Error("failed to create otp issued counter", "error", err)
	}
	if s.validatedCounter, err = meter.Int64Counter("otp.codes.validated", metric.WithDescription("Number of OTP validations by result")); err != nil {
		slog.Error("failed to create otp validated counter", "error", err)
	}
	if s.sweptCounter, err = meter.Int64Counter("otp.codes.swept", metric.WithDescription("Number of OTP codes expired by the sweep")); err != nil {
		slog.Error("failed to create otp swept counter", "error", err)
	}

	return s
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

// storedValue is the form of a code kept in the store and used for lookups.
// Hashing binds the digest to the subject so equal codes never collide.
func (s *Usecase) storedValue(subject, code string) (string, error) {
	if !s.hashCodes {
		return code, nil
	}

	sum, err := s.hmac.Hash(subject + "|" + code)
	if err != nil {
		return "", err
	}
	return string(sum), nil
}

func (s *Usecase) authenticatedAndAuthorized(ctx context.Context, obj, act string) (*jwt.Claims, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	ok, err := s.authorizer.Allowed(clm.Subject, clm.Roles, obj, act)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check authorization", "subject", clm.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !ok {
		slog.WarnContext(ctx, "subject not allowed", "subject", clm.Subject, "object", obj, "action", act)
		return nil, goerror.NewBusiness("Account not allowed", goerror.CodeForbidden)
	}

	return clm, nil
}

// ValidationRules are the custom tags used by the inputs of this package.
func ValidationRules() []validator.Rule {
	return []validator.Rule{{
		Tag:     "channel",
		Message: "{0} must be one of EMAIL, SMS, CHAT or FILE",
		Check:   func(s string) bool { return entity.ChannelFromString(s) != entity.ChannelUnknown },
	}}
}
