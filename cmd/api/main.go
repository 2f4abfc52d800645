package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/joho/godotenv"

    "bottlereturn/internal/api"
    "bottlereturn/internal/app"
    "bottlereturn/internal/config"
    "bottlereturn/internal/store"
    "bottlereturn/pkg/rabbitmq"
)

func main() {
    if err := godotenv.Load(); err != nil {
        log.Println("level=info component=bootstrap msg=\"no .env file found, using environment variables\"")
    }

    cfg, err := config.LoadConfig(".")
    if err != nil {
        log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
    }

    poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
    if err != nil {
        log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
    }
    poolConfig.MaxConns = cfg.DBMaxConns
    poolConfig.MaxConnLifetime = 30 * time.Minute
    poolConfig.MaxConnIdleTime = 5 * time.Minute

    ctx := context.Background()
    pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
    if err != nil {
        log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
    }
    defer pool.Close()

    logger := log.New(os.Stdout, "", log.LstdFlags)

    opts := app.Options{
        BcryptCost:    cfg.BcryptCost,
        EventExchange: cfg.ReturnEventExchange,
        Logger:        logger,
    }
    if cfg.RabbitMQURL != "" {
        logger.Printf("level=info component=bootstrap msg=\"connecting to rabbitmq\" url=%s", rabbitmq.MaskURL(cfg.RabbitMQURL))
        producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
        if err != nil {
            logger.Printf("level=warn component=bootstrap msg=\"rabbitmq unavailable; continuing without events\" err=%v", err)
        } else {
            defer producer.Close()
            opts.Publisher = producer
        }
    }

    svc := app.NewService(store.New(pool), opts)
    srv := api.NewServer(svc, cfg.KioskAPIToken, cfg.AllowedOrigins(), logger)

    httpServer := &http.Server{
        Addr:              ":" + cfg.ServerPort,
        Handler:           srv.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }

    go func() {
        logger.Printf("listening on %s", httpServer.Addr)
        if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logger.Fatalf("server error: %v", err)
        }
    }()

    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    <-quit

    ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = httpServer.Shutdown(ctxShutdown)
}
