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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/handlers"
	"fairplay-backend/internal/logger"
	"fairplay-backend/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store   services.Store
		limiter services.RateLimiter
		redis   *services.RedisService
	)

	if cfg.RedisURL != "" {
		r, err := services.NewRedisService(cfg)
		if err != nil {
			return err
		}
		defer r.Close()
		redis = r
		limiter = r
	}

	switch cfg.StoreDriver {
	case config.StoreRedis:
		store = redis
	default:
		sqlite, err := services.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		store = sqlite
	}
	lg.Info("store ready",
		zap.String("driver", cfg.StoreDriver),
		zap.Bool("rate_limits", limiter != nil))

	locker := services.NewAccountLocker()
	ledger := services.NewLedger(store, cfg.StartingBalance, lg.Named("ledger"))
	commitments := services.NewCommitmentManager(store, lg.Named("commitments"))
	gameEngine := services.NewGameEngine(ledger, commitments, locker,
		services.NewGameConfig(cfg.HouseEdges(), cfg.HouseEdgeDefault),
		services.WithLogger(lg.Named("games")),
		services.WithAutoClientSeed(cfg.AutoClientSeed))
	wallet := services.NewWalletService(ledger, commitments, gameEngine, locker, cfg.PointValue, lg.Named("wallet"))
	jwtService := services.NewJWTService(cfg)

	wsHandler := handlers.NewWebSocketHandler(ctx, wallet, lg.Named("ws"))
	gameEngine.SetBroadcaster(wsHandler)
	wallet.SetBroadcaster(wsHandler)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Config:     cfg,
		Logger:     lg.Named("http"),
		JWT:        jwtService,
		Limiter:    limiter,
		Auth:       handlers.NewAuthHandler(ledger, jwtService, cfg.APIKey),
		User:       handlers.NewUserHandler(wallet),
		Game:       handlers.NewGameHandler(gameEngine),
		WebSockets: wsHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := gameEngine.CleanupStaleGames(gctx, cfg.RoundIdleTimeout); n > 0 {
					lg.Info("abandoned idle mines rounds", zap.Int("count", n))
				}
			}
		}
	})

	return g.Wait()
}
