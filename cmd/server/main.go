package main // Entry point package

import (
    "log" // Logging library

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/device-fleet/internal/access"     // access policy evaluator
    "github.com/iliyamo/device-fleet/internal/auth"       // session service (login, rotation, logout)
    "github.com/iliyamo/device-fleet/internal/config"     // environment config loader
    "github.com/iliyamo/device-fleet/internal/database"   // MySQL connection
    "github.com/iliyamo/device-fleet/internal/handler"    // HTTP handlers
    "github.com/iliyamo/device-fleet/internal/middleware" // rate limiting and response cache
    "github.com/iliyamo/device-fleet/internal/queue"      // RabbitMQ consumer
    "github.com/iliyamo/device-fleet/internal/repository" // data access layer
    "github.com/iliyamo/device-fleet/internal/router"     // route registration
)

func main() {
    cfg := config.Load() // Load environment config

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis is optional: without it the rate limiter and the response
    // cache degrade to pass-through middleware.
    rdb := config.NewRedisClient()
    limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    // Repositories share the entity repo so every domain object gets
    // its entity allocated and released the same way.
    entities := repository.NewEntityRepo(db)
    tags := repository.NewTagRepo(db, entities)
    tenants := repository.NewTenantRepo(db)
    users := repository.NewUserRepo(db)
    folders := repository.NewFolderRepo(db, entities, tags)
    devices := repository.NewDeviceRepo(db, entities)
    tokens := repository.NewTokenRepo(db)

    eval := access.NewEvaluator(tenants, devices, entities)
    session := auth.NewService(users, tokens, auth.Config{
        JWTSecret:      cfg.JWTSecret,
        JWTAlg:         cfg.JWTAlg,
        AccessTTLMin:   cfg.AccessTTLMin,
        RefreshTTLDays: cfg.RefreshTTLDays,
    })

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, db, users, entities, session), cfg.JWTSecret, limiter)
    router.RegisterAPI(e, router.API{
        Tenants: &handler.TenantHandler{DB: db, Tenants: tenants, Users: users, Folders: folders, Devices: devices, Tags: tags, Entities: entities, Eval: eval},
        Folders: &handler.FolderHandler{DB: db, Folders: folders, Devices: devices, Eval: eval},
        Devices: &handler.DeviceHandler{DB: db, Devices: devices, Folders: folders, Tags: tags, Eval: eval},
        Users:   &handler.UserHandler{Cfg: cfg, DB: db, Users: users, Entities: entities, Tokens: tokens, Tenants: tenants, Folders: folders, Devices: devices, Eval: eval},
        Tags:    &handler.TagHandler{DB: db, Tags: tags, Eval: eval},
    }, cfg.JWTSecret, cache)

    // Consume device events in the background; the consumer reconnects
    // on broker failures and never takes the API down.
    go func() {
        if err := queue.StartDeviceEventConsumer(); err != nil {
            log.Printf("device event consumer stopped: %v", err)
        }
    }()

    addr := ":" + cfg.Port                                // Address string with port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

    if err := e.Start(addr); err != nil { // Start HTTP server
        log.Fatal(err) // Log and exit if server fails
    }
}
