package main

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tally/internal/analytics"
	"tally/internal/auth"
	"tally/internal/config"
	"tally/internal/events"
	apphttp "tally/internal/http"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Fatal error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	users := storage.NewUserRepository(store)
	categories := storage.NewCategoryRepository(store)
	transactions := storage.NewTransactionRepository(store)

	authService := auth.NewService(users, store, cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost, logger)
	analyticsService := analytics.NewService(transactions, categories)

	// Event publishing is optional; a nil publisher disables it.
	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP broker unavailable, event publishing disabled", log.FieldError, err)
		} else {
			defer publisher.Close()
		}
	}

	transactionService := services.NewTransactionService(transactions, categories, publisher, logger)

	snapshotter, err := storage.NewSnapshotter(store, cfg.SnapshotInterval, logger)
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:            authService,
		Users:           users,
		Categories:      categories,
		TransactionRepo: transactions,
		Transactions:    transactionService,
		Analytics:       analyticsService,
		Store:           store,
		Logger:          logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	snapshotter.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started",
			"port", cfg.Port,
			"snapshot_path", store.Path(),
			log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Info("Shutdown signal received")
		case <-srv.ShutdownRequested():
			logger.Info("Shutdown requested via API")
		}

		// Stop the timer first so the final save is the last write.
		snapshotter.Stop()
		store.SaveBestEffort(context.Background())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.OpenBrowser {
		go openBrowser("http://localhost:"+cfg.Port, logger)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func openBrowser(url string, logger *log.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("Failed to open browser", log.FieldError, err)
	}
}
