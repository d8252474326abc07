package main // Entry point package

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/command"
	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/eventbus"
	"github.com/iliyamo/hotel-reservation/internal/eventstore"
	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/projection"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/router"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "rebuild the read model from the event store and exit")
	flag.Parse()

	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	store := eventstore.NewMySQLStore(db)
	rdb := config.NewRedisClient() // may be nil; cache and rate limit degrade gracefully
	if rdb == nil {
		log.Printf("redis unavailable, running without cache and rate limit")
	}
	readModel := projection.NewCachedReadModel(projection.NewMySQLReadModel(db), rdb, cfg.CacheTTL, cfg.CachePrefix)
	projector := projection.NewProjector(readModel)

	if *rebuild {
		if err := projector.Rebuild(ctx, store); err != nil {
			log.Fatalf("rebuild read model: %v", err)
		}
		return
	}

	bus, err := eventbus.NewRabbitBus(cfg.AMQPURL, cfg.ConsumerMaxRetries, cfg.ConsumerPrefetch, cfg.HandlerTimeout)
	if err != nil {
		log.Fatalf("connect broker: %v", err)
	}
	defer bus.Close()
	if err := projector.Register(bus); err != nil {
		log.Fatalf("register projection: %v", err)
	}

	relay := eventstore.NewRelay(store, bus, cfg.OutboxInterval, cfg.OutboxGrace, cfg.OutboxBatch)
	go relay.Run(ctx)

	repo := repository.NewReservationRepository(store)
	commands := command.NewReservationHandler(repo, store, bus, nil)

	e := echo.New()
	e.HideBanner = true
	limit := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)
	router.RegisterRoutes(e, handler.NewReservationHandler(commands, readModel), limit)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
