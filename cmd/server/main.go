package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devsocial/pkg/auth"
	"devsocial/pkg/broker"
	"devsocial/pkg/cache"
	"devsocial/pkg/config"
	"devsocial/pkg/database"
	"devsocial/pkg/handlers"
	"devsocial/pkg/hub"
	"devsocial/pkg/logger"
	"devsocial/pkg/repository"
	"devsocial/pkg/search"
	"devsocial/pkg/server"
	"devsocial/pkg/services"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.Must(cfg.Log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Postgres, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Postgres.Migrate {
		if err := database.Migrate(db, log); err != nil {
			log.Fatal("failed to migrate", zap.Error(err))
		}
	}

	repo := repository.NewPostgres(db)

	var (
		feedCache cache.Cache = cache.Nop{}
		rdb       *redis.Client
	)
	if cfg.Redis.Enabled() {
		rdb, err = cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		feedCache = cache.New(rdb)
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("redis disabled, feed cache and relay are off")
	}

	index, err := search.Open(cfg.Search.IndexPath)
	if err != nil {
		log.Fatal("failed to open search index", zap.Error(err))
	}
	defer index.Close()

	indexed, err := index.Rebuild(ctx, repo.Posts)
	if err != nil {
		log.Fatal("failed to build search index", zap.Error(err))
	}
	log.Info("search index ready", zap.Int("posts", indexed))

	var postIndex services.PostIndex = index
	router := hub.NewRouter(hub.NewRooms(), log)
	if rdb != nil && cfg.Redis.Relay {
		b := broker.New(rdb, log)
		defer b.Close()
		relay := hub.NewRelay(b, cfg.Hub.Channel, log)
		if err := relay.Start(router); err != nil {
			log.Fatal("failed to start relay", zap.Error(err))
		}
		log.Info("relay started", zap.String("channel", cfg.Hub.Channel), zap.String("instance", relay.Instance()))

		replica := search.NewReplica(index, b, repo.Posts, cfg.Search.Channel, log)
		if err := replica.Start(); err != nil {
			log.Fatal("failed to start index replica", zap.Error(err))
		}
		postIndex = replica
	}

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, repo.Accounts)
	sessions := hub.NewSessions(verifier, router, hub.Options{
		SendQueue:    cfg.Hub.SendQueue,
		WriteTimeout: cfg.Hub.WriteTimeout,
	}, log)

	svc := services.New(services.Deps{
		Repo:     repo,
		Cache:    feedCache,
		Index:    postIndex,
		Notifier: router,
		Logger:   log,
		FeedTTL:  cfg.Redis.FeedTTL,
	})

	app := server.NewApp(cfg.App.Name, cfg.App.CORSOrigins)
	handlers.NewSocial(svc, repo.Follows, log).Register(app, verifier)
	handlers.NewRealtime(ctx, sessions, log).Register(app)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	addr := "0.0.0.0:" + cfg.App.Port
	log.Info("server starting", zap.String("addr", addr), zap.String("ws", "ws://<domain>/ws"))
	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start", zap.Error(err))
	}
}
