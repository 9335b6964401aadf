package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/labor-marketplace/internal/auth"
	"github.com/iliyamo/labor-marketplace/internal/config"
	"github.com/iliyamo/labor-marketplace/internal/database"
	"github.com/iliyamo/labor-marketplace/internal/handler"
	"github.com/iliyamo/labor-marketplace/internal/logger"
	"github.com/iliyamo/labor-marketplace/internal/middleware"
	"github.com/iliyamo/labor-marketplace/internal/queue"
	"github.com/iliyamo/labor-marketplace/internal/repository"
	"github.com/iliyamo/labor-marketplace/internal/router"
	"github.com/iliyamo/labor-marketplace/internal/service"
	"github.com/iliyamo/labor-marketplace/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional outside development

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.DB)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient(cfg.Redis) // nil when Redis is unreachable
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accounts := repository.NewAccountRepo(db)
	profiles := repository.NewProfileRepo(db)
	hasher := utils.NewHasher(cfg.Token.BcryptCost)

	var store auth.PasscodeStore = repository.NewPasscodeRepo(db)
	if cfg.OTP.Store == "redis" {
		if rdb == nil {
			zl.Warn("OTP_STORE=redis but redis is unavailable, using mysql")
		} else {
			store = repository.NewRedisPasscodeStore(rdb, cfg.OTP.RedisPrefix, cfg.OTP.Validity)
		}
	}

	gen, err := utils.NewOTPGenerator(cfg.OTP.Secret)
	if err != nil {
		zl.Fatal("init otp generator", zap.Error(err))
	}

	email := service.NewEmailSender(cfg.SMTP)
	var delivery auth.Deliverer = email
	if cfg.OTP.Delivery == "queue" {
		delivery = service.NewQueuePublisher(cfg.Queue.URL, cfg.Queue.Name)
	}
	if cfg.Queue.Consumer {
		go func() {
			if err := queue.StartDeliveryConsumer(ctx, cfg.Queue.URL, cfg.Queue.Name, email, zl.Named("delivery")); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("delivery consumer stopped", zap.Error(err))
			}
		}()
	}

	passcodes := auth.NewPasscodeManager(store, gen, delivery,
		auth.WithValidity(cfg.OTP.Validity),
		auth.WithLogger(zl.Named("passcode")),
	)
	if cfg.OTP.SweepInterval > 0 {
		go passcodes.RunSweeper(ctx, cfg.OTP.SweepInterval)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Token.Secret, cfg.Token.TTL, cfg.Token.Issuer)
	if err != nil {
		zl.Fatal("init token issuer", zap.Error(err))
	}
	svc := auth.NewService(accounts, profiles, hasher, passcodes, tokens)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Redis: rdb})
	router.RegisterAuth(e, handler.NewAuthHandler(svc, accounts, hasher, zl.Named("auth")),
		middleware.NewTokenBucket(cfg.RateLimit, rdb, zl.Named("ratelimit")))
	router.RegisterAccount(e, handler.NewAccountHandler(svc, accounts, profiles), tokens)
	router.RegisterAdmin(e, handler.NewAdminHandler(accounts, profiles), tokens,
		middleware.NewRedisCache(cfg.Cache, rdb))

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http server shutdown failed", zap.Error(err))
	}
}
