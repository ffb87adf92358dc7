package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/onetime/internal/otp"
	"github.com/shandysiswandi/onetime/internal/pkg/authz"
	"github.com/shandysiswandi/onetime/internal/pkg/clock"
	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/goroutine"
	"github.com/shandysiswandi/onetime/internal/pkg/hash"
	"github.com/shandysiswandi/onetime/internal/pkg/idempotency"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/jwt"
	"github.com/shandysiswandi/onetime/internal/pkg/mail"
	"github.com/shandysiswandi/onetime/internal/pkg/messaging"
	"github.com/shandysiswandi/onetime/internal/pkg/router"
	"github.com/shandysiswandi/onetime/internal/pkg/storage"
	"github.com/shandysiswandi/onetime/internal/pkg/uid"
	"github.com/shandysiswandi/onetime/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine  *goroutine.Manager
	validator  validator.Validator
	clock      clock.Clocker
	hmac       hash.Hash
	uid        uid.NumberID
	uuid       uid.StringID
	jwt        jwt.JWT
	authorizer *authz.Authorizer

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	mail      mail.Mail
	messaging messaging.Messaging
	storage   storage.Storage

	// server
	router     *router.Router
	httpServer *http.Server

	// modules
	otp *otp.Module

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initAuthz()
	app.initDatabase()
	app.initCache()
	app.initMail()
	app.initStorage()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
