package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/onetime/internal/otp"
)

func (a *App) initModules() {
	if !a.config.GetBool("modules.otp.enabled") {
		slog.Warn("module otp is disabled")
		return
	}

	mod, err := otp.New(otp.Dependency{
		Ctx:         a.ctx,
		DBConn:      a.dbConn,
		CacheConn:   a.cacheClient(),
		Goroutine:   a.goroutine,
		Authorizer:  a.authorizer,
		Router:      a.router,
		Idempotency: a.idemp,
		Messaging:   a.messaging,
		Storage:     a.storage,
		Mail:        a.mail,
		Config:      a.config,
		Instrument:  a.ins,
		UID:         a.uid,
		UUID:        a.uuid,
		HMAC:        a.hmac,
		Clock:       a.clock,
		Validator:   a.validator,
	})
	if err != nil {
		slog.Error("failed to init module otp", "error", err)
		os.Exit(1)
	}

	a.otp = mod
}
