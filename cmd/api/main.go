package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"budget-service/internal/config"
	"budget-service/internal/handler"
	"budget-service/internal/middleware"
	"budget-service/internal/notify"
	"budget-service/internal/repository"
	"budget-service/internal/service"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repository.RunMigrations(db, cfg.DBDriver); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db, cfg.DBDriver)
	var notifier service.Notifier
	if cfg.SMTPHost != "" && cfg.AlertEmail != "" {
		notifier = notify.NewSender(cfg, logger)
	}
	svc := service.NewService(repo, logger, notifier)
	auth, err := service.NewAuth(repo, logger, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize token service: %v", err)
	}
	h := handler.NewHandler(svc, auth)

	// Scheduled sweep of expired refresh-token whitelist rows
	if cfg.TokenCleanupSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.TokenCleanupSchedule, func() {
			n, err := repo.DeleteExpiredRefreshTokens(context.Background(), time.Now().Unix())
			if err != nil {
				logger.Errorf("Failed to clean up refresh tokens: %v", err)
				return
			}
			if n > 0 {
				logger.Infof("Removed %d expired refresh tokens", n)
			}
		})
		if err != nil {
			logger.Fatalf("Invalid TOKEN_CLEANUP_SCHEDULE: %v", err)
		}
		c.Start()
		defer c.Stop()
	}

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/oauth2/token/", h.Token).Methods("POST")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ping(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("Store unreachable: %v", err), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.Auth(auth), middleware.Logging(logger))
	authRouter.HandleFunc("/transaction/", h.AddTransaction).Methods("POST")
	authRouter.HandleFunc("/transaction/", h.ListTransactions).Methods("GET")
	authRouter.HandleFunc("/transaction/export/", h.ExportTransactions).Methods("GET")
	authRouter.HandleFunc("/allocation/", h.ListAllocations).Methods("GET")
	authRouter.HandleFunc("/allocation/", h.UpdateAllocation).Methods("PUT")
	authRouter.HandleFunc("/allocation/split/", h.SplitAllocation).Methods("GET")
	authRouter.HandleFunc("/allocation/merge/", h.MergeAllocations).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
