package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/n0P7xJ/MyReactNative/internal/applog"
	"github.com/n0P7xJ/MyReactNative/internal/config"
	"github.com/n0P7xJ/MyReactNative/internal/database"
	"github.com/n0P7xJ/MyReactNative/internal/repository"
	"github.com/n0P7xJ/MyReactNative/internal/repository/memory"
	postgresrepo "github.com/n0P7xJ/MyReactNative/internal/repository/postgres"
	"github.com/n0P7xJ/MyReactNative/internal/service"
	"github.com/n0P7xJ/MyReactNative/internal/transport/http/handlers"
	"github.com/n0P7xJ/MyReactNative/internal/transport/http/middleware"
	"github.com/n0P7xJ/MyReactNative/internal/transport/realtime"
	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"
)

var log = logging.MustGetLogger("main")

const shutdownTimeout = 10 * time.Second

type repositories struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	participants  repository.ParticipantRepository
	messages      repository.MessageRepository
	readStatuses  repository.ReadStatusRepository
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logCloser := applog.Setup(applog.Options{Level: cfg.LogLevel, File: cfg.LogFile, Verbose: cfg.Verbose})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Criticalf("server stopped: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	repos, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Services
	authService := service.NewAuthService(repos.users, cfg.JWTSecret)
	conversationService := service.NewConversationService(repos.users, repos.conversations,
		repos.participants, repos.messages, repos.readStatuses)
	messageService := service.NewMessageService(repos.users, repos.conversations,
		repos.participants, repos.messages, repos.readStatuses)

	if cfg.Seed {
		if err := service.Seed(ctx, repos.users, authService, conversationService); err != nil {
			return err
		}
	}

	// Realtime
	var backplane realtime.Backplane
	if cfg.RedisURL != "" {
		redisBackplane, err := realtime.NewRedisBackplane(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisBackplane.Close()
		if err := redisBackplane.Ping(ctx); err != nil {
			log.Warningf("redis not reachable yet: %v", err)
		}
		backplane = redisBackplane
		log.Infof("using redis backplane at %s", cfg.RedisURL)
	}
	hub := realtime.NewHub(backplane)
	messageService.SetNotifier(realtime.NewHubNotifier(hub))
	chatHub := realtime.NewServer(hub, messageService, realtime.Options{
		PollTimeout:        cfg.PollTimeout,
		InsecureSkipVerify: cfg.WSInsecureSkipVerify,
		OriginPatterns:     realtime.OriginPatterns(cfg.CORSOrigins),
	})

	// Routes
	mux := http.NewServeMux()
	protect := middleware.Auth(authService, cfg.RequireAuth)
	handlers.Routes(mux, handlers.NewRegisterHandler(authService), handlers.NewMessengerHandler(conversationService), protect)
	chatHub.Routes(mux, protect)

	var handler http.Handler = mux
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	handler = middleware.Logger(handler)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return chatHub.Run(ctx)
	})
	g.Go(func() error {
		log.Infof("starting server on %s (%s storage)", srv.Addr, cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (*repositories, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warning("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			users:         store.Users(),
			conversations: store.Conversations(),
			participants:  store.Participants(),
			messages:      store.Messages(),
			readStatuses:  store.ReadStatuses(),
		}, func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg, cfg.DBWait)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("connected to database")

	return &repositories{
		users:         postgresrepo.NewUserRepo(pool),
		conversations: postgresrepo.NewConversationRepo(pool),
		participants:  postgresrepo.NewParticipantRepo(pool),
		messages:      postgresrepo.NewMessageRepo(pool),
		readStatuses:  postgresrepo.NewReadStatusRepo(pool),
	}, pool.Close, nil
}
