package main

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/spf13/cobra"
    "golang.org/x/sync/errgroup"

    "github.com/iliyamo/workbook-assignment/internal/config"
    "github.com/iliyamo/workbook-assignment/internal/database"
    "github.com/iliyamo/workbook-assignment/internal/handler"
    "github.com/iliyamo/workbook-assignment/internal/logger"
    "github.com/iliyamo/workbook-assignment/internal/middleware"
    "github.com/iliyamo/workbook-assignment/internal/queue"
    "github.com/iliyamo/workbook-assignment/internal/ratelimit"
    "github.com/iliyamo/workbook-assignment/internal/repository"
    "github.com/iliyamo/workbook-assignment/internal/router"
    "github.com/iliyamo/workbook-assignment/internal/service"
)

func newServeCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "serve",
        Short: "Run the HTTP API",
        RunE: func(cmd *cobra.Command, args []string) error {
            return serve(cmd.Context(), config.Load())
        },
    }
}

func serve(ctx context.Context, cfg config.Config) error {
    log, err := logger.New(cfg.Env)
    if err != nil {
        return fmt.Errorf("init logger: %w", err)
    }
    defer log.Sync()

    db, dialect, err := openDB(cfg)
    if err != nil {
        return fmt.Errorf("open database: %w", err)
    }
    defer db.Close()
    if err := database.Migrate(ctx, db, dialect); err != nil {
        return fmt.Errorf("migrate: %w", err)
    }
    store := repository.NewStore(db, dialect, cfg.DBTimeout)

    rlCfg, err := config.LoadRateLimitConfig()
    if err != nil {
        return fmt.Errorf("rate limit config: %w", err)
    }
    cacheCfg := config.LoadCacheConfig()

    var rdb *redis.Client
    if addr := config.RedisAddr(); addr != "" {
        if rdb, err = config.NewRedisClient(ctx, addr); err != nil {
            log.Warn("redis unavailable; using in-process rate limit counters and no template cache", "addr", addr, "error", err)
            rdb = nil
        } else {
            defer rdb.Close()
        }
    }

    limits := router.Limits{Policies: rlCfg.Policies}
    var memStore *ratelimit.MemoryStore
    if rlCfg.Enabled {
        var st ratelimit.Store
        if rlCfg.Backend == "redis" && rdb != nil {
            st = ratelimit.NewRedisStore(rdb)
        } else {
            if rlCfg.Backend == "redis" {
                log.Warn("rate limit backend redis requested but not reachable; falling back to memory")
            }
            memStore = ratelimit.NewMemoryStore()
            st = memStore
        }
        limits.Limiter = ratelimit.New(st, log, ratelimit.WithPrefix(rlCfg.Prefix))
    }

    var notifier service.Notifier = service.NopNotifier{}
    if cfg.RabbitMQURL != "" {
        notifier = queue.NewPublisher(cfg.RabbitMQURL, log)
    }
    opts := []service.Option{
        service.WithLogger(log),
        service.WithNotifier(notifier),
        service.WithLinkTTL(cfg.LinkTTL()),
        service.WithLinkBase(cfg.PublicBaseURL),
    }
    repos := service.ReposFrom(store)
    workbooks := handler.NewWorkbookHandler(
        service.NewAssignmentService(repos, opts...),
        service.NewInstanceService(repos, opts...),
        service.NewSubmissionService(repos, opts...),
        log,
    )
    admin := handler.NewAdminHandler(service.NewCatalogService(repos, opts...), log)

    var cacheClient redis.Cmdable
    if rdb != nil {
        cacheClient = rdb
        admin.OnTemplatesChanged = func(ctx context.Context) error {
            return middleware.InvalidateCache(ctx, rdb, cacheCfg.Prefix)
        }
    }

    e := echo.New()
    router.Setup(e, log)
    router.RegisterRoutes(e, db)
    router.RegisterAdmin(e, admin, workbooks, cfg.JWTSecret, limits, middleware.TemplateCache(cacheCfg, cacheClient, log))
    router.RegisterPublic(e, admin, workbooks, limits)

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        addr := ":" + cfg.Port
        log.Info("listening", "addr", addr, "env", cfg.Env, "db", string(dialect), "rate_limit", rlCfg.Enabled)
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            return err
        }
        return nil
    })
    g.Go(func() error {
        <-gctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        return e.Shutdown(shutdownCtx)
    })
    if memStore != nil {
        g.Go(func() error { return memStore.RunSweeper(gctx, rlCfg.SweepInterval) })
    }
    if cfg.ConsumeEvents && cfg.RabbitMQURL != "" {
        g.Go(func() error { return queue.NewConsumer(cfg.RabbitMQURL, "logs", log).Run(gctx) })
    }

    err = g.Wait()
    log.Info("server stopped")
    return err
}

// openDB opens the database selected by DB_DRIVER.
func openDB(cfg config.Config) (*sql.DB, database.Dialect, error) {
    switch cfg.DBDriver {
    case "mysql":
        db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
        return db, database.MySQL, err
    case "sqlite", "sqlite3":
        db, err := database.OpenSQLite(cfg.SQLitePath)
        return db, database.SQLite, err
    }
    return nil, "", fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}
