package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/mohammad-safakhou/postwise/config"
	"github.com/mohammad-safakhou/postwise/internal/chain"
	"github.com/mohammad-safakhou/postwise/internal/progress"
	"github.com/mohammad-safakhou/postwise/internal/store"
)

// Run wires all dependencies and serves the HTTP API until the listener
// stops.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	// Redis when configured, otherwise in-process state. Either way the
	// chain state expires after the configured TTL.
	var prog progress.Store
	if cfg.Databases.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Databases.Redis.Host, cfg.Databases.Redis.Port),
			Password: cfg.Databases.Redis.Pass,
			DB:       cfg.Databases.Redis.DB,
		})
		prog, err = progress.NewRedisStore(ctx, rdb, cfg.Chain.StateTTL)
		if err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Databases.Redis.Host, cfg.Databases.Redis.Port, err)
		}
	} else {
		baseLogger.Printf("redis not configured, using in-memory progress store")
		prog = progress.NewMemoryStore(cfg.Chain.StateTTL)
	}

	gen, err := chain.NewGenerator(cfg.LLM)
	if err != nil {
		return err
	}
	ctrl := chain.New(gen, prog, st, st, cfg.Chain)

	ch := &ChainHandler{Controller: ctrl, Progress: prog, logger: log.New(log.Writer(), "[CHAIN-API] ", log.LstdFlags)}
	ch.Register(e.Group("/api/chain"))

	addr := cfg.Server.Listen
	if addr == "" {
		addr = ":10002"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
