package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"mfa-service/cmd"
	"mfa-service/internal/adaptor"
	"mfa-service/internal/data/repository"
	"mfa-service/internal/usecase"
	"mfa-service/internal/wire"
	"mfa-service/internal/worker"
	"mfa-service/migrations"
	"mfa-service/pkg/auth"
	"mfa-service/pkg/database"
	"mfa-service/pkg/mailer"
	"mfa-service/pkg/metrics"
	"mfa-service/pkg/ratelimit"
	"mfa-service/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	envFile := flag.String("env", ".env", "path to the env file")
	rollback := flag.Bool("migrate-down", false, "roll back the last migration and exit")
	flag.Parse()

	// Load config
	config, err := utils.LoadConfig(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	// Migrations
	if *rollback {
		if err := migrations.Rollback(config.Database.URL(), logger); err != nil {
			logger.Fatal("Rollback failed", zap.Error(err))
		}
		return
	}
	if config.App.MigrateOnStart {
		if err := migrations.Run(config.Database.URL(), logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(ctx, config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected successfully")

	// Connect to redis
	rdb, err := database.InitRedis(ctx, config.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()
	logger.Info("Redis connected successfully", zap.String("addr", config.Redis.Addr))

	repos := repository.NewRepository(db, logger)

	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb, config.App.Name), ratelimit.Config{
		Cooldown:    config.OTP.ResendCooldown,
		Window:      config.OTP.Window,
		MaxInWindow: config.OTP.MaxPerWindow,
	})
	clock := utils.SystemClock()
	tasks := worker.NewTasks(30*time.Second, logger)

	app := wire.Wiring(repos, usecase.Deps{
		Mailer:     mailer.New(config.Email, logger),
		Limiter:    limiter,
		Challenges: auth.NewChallengeManager(config.JWT.Secret),
		Clock:      clock,
		Metrics:    metrics.NewDefault(),
		Tasks:      tasks,
	}, map[string]adaptor.HealthCheck{
		"postgres": db.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, config, logger)

	sweeper := worker.NewSweeper(repos.OTP, repos.Session, config.App.SweepInterval, config.OTP.Retention, clock, logger)

	// a server failure also stops the sweeper
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return cmd.APIServer(ctx, app.Router, config.App.Port, config.App.ShutdownTimeout, logger)
	})

	serveErr := g.Wait()

	// the server has drained, so no new background sends can start
	drainCtx, cancel := context.WithTimeout(context.Background(), config.App.ShutdownTimeout)
	defer cancel()
	if err := tasks.Shutdown(drainCtx); err != nil {
		logger.Warn("Background tasks did not finish", zap.Error(err))
	}

	if serveErr != nil {
		logger.Error("Server stopped with error", zap.Error(serveErr))
		return
	}
	logger.Info("Server stopped")
}
