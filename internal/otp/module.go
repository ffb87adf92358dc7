package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/otp/inbound"
	"github.com/shandysiswandi/onetime/internal/otp/outbound/cache"
	"github.com/shandysiswandi/onetime/internal/otp/outbound/db"
	"github.com/shandysiswandi/onetime/internal/otp/outbound/delivery"
	"github.com/shandysiswandi/onetime/internal/otp/outbound/memory"
	"github.com/shandysiswandi/onetime/internal/otp/outbound/mq"
	"github.com/shandysiswandi/onetime/internal/otp/usecase"
	"github.com/shandysiswandi/onetime/internal/pkg/authz"
	"github.com/shandysiswandi/onetime/internal/pkg/clock"
	"github.com/shandysiswandi/onetime/internal/pkg/codegen"
	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/goroutine"
	"github.com/shandysiswandi/onetime/internal/pkg/hash"
	"github.com/shandysiswandi/onetime/internal/pkg/idempotency"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/mail"
	"github.com/shandysiswandi/onetime/internal/pkg/messaging"
	"github.com/shandysiswandi/onetime/internal/pkg/router"
	"github.com/shandysiswandi/onetime/internal/pkg/storage"
	"github.com/shandysiswandi/onetime/internal/pkg/uid"
	"github.com/shandysiswandi/onetime/internal/pkg/validator"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

var ErrDatabaseRequired = errors.New("otp: postgres store driver needs a database connection")

// Dependency lists what the module needs from the application. DBConn and
// CacheConn may be nil when modules.otp.store_driver is "memory". Mail and
// Storage may be nil, which leaves their delivery channels unavailable.
type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              `validate:"required_if=Driver postgres"`
	CacheConn   redis.UniversalClient      `validate:"-"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Authorizer  *authz.Authorizer          `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"-"`
	Messaging   messaging.Messaging        `validate:"required"`
	Storage     storage.Storage            `validate:"-"`
	Mail        mail.Mail                  `validate:"-"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	HMAC        hash.Hash                  `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`

	// Driver is filled by New from modules.otp.store_driver.
	Driver string `validate:"oneof=postgres memory"`
}

// Module holds what the application has to stop on shutdown.
type Module struct {
	Sweeper *inbound.Sweeper
}

func New(dep Dependency) (*Module, error) {
	dep.Driver = strings.ToLower(strings.TrimSpace(dep.Config.GetString("modules.otp.store_driver")))
	if dep.Driver == "" {
		dep.Driver = StoreDriverPostgres
	}

	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	defaults := loadDefaults(dep.Config)

	ucDep := usecase.Dependency{
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Dispatcher:    newDispatcher(dep),
		Authorizer:    dep.Authorizer,
		CodeGen:       codegen.New(dep.Config.GetString("modules.otp.generator")),
		HMAC:          dep.HMAC,
		HashCodes:     dep.Config.GetBool("modules.otp.hash_codes"),
		Validator:     dep.Validator,
		Config:        dep.Config,
		UID:           dep.UID,
		UUID:          dep.UUID,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
	}

	switch dep.Driver {
	case StoreDriverMemory:
		store := memory.NewStore(defaults, dep.Clock.Now)
		ucDep.RepoCode = store
		ucDep.RepoConfig = store
	default:
		if dep.DBConn == nil {
			return nil, ErrDatabaseRequired
		}
		if dep.Config.GetBool("database.auto_migrate") {
			if err := db.Migrate(dep.Ctx, dep.DBConn); err != nil {
				return nil, fmt.Errorf("otp: migrate: %w", err)
			}
		}
		store := db.NewDB(dep.DBConn, dep.Instrument, dep.UID, defaults)
		ucDep.RepoCode = store
		ucDep.RepoConfig = store
	}

	if dep.CacheConn != nil && dep.Driver != StoreDriverMemory {
		ucDep.Limiter = cache.NewLimiter(dep.CacheConn, dep.Instrument)
	} else {
		ucDep.Limiter = memory.NewLimiter(dep.Clock.Now)
	}

	uc := usecase.New(ucDep)

	inbound.RegisterHTTPEndpoint(dep.Router, uc, dep.Idempotency, dep.Config)
	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)

	mod := &Module{}
	if dep.Config.GetBool("modules.otp.sweep.enabled") {
		sw, err := inbound.RegisterCronJob(dep.Ctx, dep.Config, dep.Goroutine, uc)
		if err != nil {
			return nil, fmt.Errorf("otp: sweep schedule: %w", err)
		}
		mod.Sweeper = sw
	}

	slog.Info("otp module ready", "store_driver", dep.Driver, "hash_codes", ucDep.HashCodes)

	return mod, nil
}

// Close stops the sweep schedule and waits for a scheduled run to return.
func (m *Module) Close(ctx context.Context) error {
	if m == nil || m.Sweeper == nil {
		return nil
	}

	select {
	case <-m.Sweeper.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loadDefaults reads modules.otp.defaults.* over the built-in defaults. Values
// outside their range are ignored.
func loadDefaults(cfg config.Config) entity.Config {
	var upd entity.ConfigUpdate

	intKey := func(key string) *int {
		if !cfg.IsSet(key) {
			return nil
		}
		v := cfg.GetInt(key)
		return &v
	}

	upd.CodeLength = intKey("modules.otp.defaults.code_length")
	upd.LifetimeMinutes = intKey("modules.otp.defaults.lifetime_minutes")
	upd.MaxAttempts = intKey("modules.otp.defaults.max_attempts")
	upd.ResendIntervalSeconds = intKey("modules.otp.defaults.resend_interval_seconds")
	if cfg.IsSet("modules.otp.defaults.resend_enabled") {
		v := cfg.GetBool("modules.otp.defaults.resend_enabled")
		upd.ResendEnabled = &v
	}

	return upd.Sanitize().Apply(entity.DefaultConfig())
}

func newDispatcher(dep Dependency) *delivery.Dispatcher {
	cfg := dep.Config
	client := &http.Client{Timeout: cfg.GetSecond("modules.otp.delivery.timeout_seconds")}

	transports := map[entity.Channel]delivery.Transport{}

	if dep.Mail != nil {
		transports[entity.ChannelEmail] = delivery.NewEmail(dep.Mail, cfg.GetString("modules.otp.email.from"))
	}

	switch {
	case cfg.GetBool("modules.otp.sms.emulated"):
		transports[entity.ChannelSMS] = delivery.NewEmulated(entity.ChannelSMS)
	case cfg.GetString("modules.otp.sms.endpoint") != "":
		transports[entity.ChannelSMS] = delivery.NewSMS(delivery.SMSConfig{
			Endpoint: cfg.GetString("modules.otp.sms.endpoint"),
			APIID:    cfg.GetString("modules.otp.sms.api_id"),
			Sender:   cfg.GetString("modules.otp.sms.sender"),
			Client:   client,
		})
	}

	switch {
	case cfg.GetBool("modules.otp.chat.emulated"):
		transports[entity.ChannelChat] = delivery.NewEmulated(entity.ChannelChat)
	case cfg.GetString("modules.otp.chat.bot_token") != "":
		transports[entity.ChannelChat] = delivery.NewChat(delivery.ChatConfig{
			APIURL:   cfg.GetString("modules.otp.chat.api_url"),
			BotToken: cfg.GetString("modules.otp.chat.bot_token"),
			Client:   client,
		})
	}

	if dep.Storage != nil && cfg.GetBool("modules.otp.file.enabled") {
		transports[entity.ChannelFile] = delivery.NewFile(
			dep.Storage,
			cfg.GetString("modules.otp.file.bucket"),
			cfg.GetString("modules.otp.file.prefix"),
			dep.Clock,
		)
	}

	return delivery.NewDispatcher(delivery.Config{
		Transports: transports,
		MaxRetries: uint64(max(cfg.GetInt("modules.otp.delivery.max_retries"), 0)),
		Backoff:    time.Duration(cfg.GetInt64("modules.otp.delivery.backoff_ms")) * time.Millisecond,
		Instrument: dep.Instrument,
	})
}
