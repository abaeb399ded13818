package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/config"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/handler"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/ledger"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/synth"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.New()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	var store interfaces.Store
	switch cfg.StoreBackend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		store = postgres.New(db)
	default:
		store = memory.New()
	}

	var events interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer publisher.Close()
		events = publisher
	}

	svc := ledger.New(store, events, synth.New(), logger)
	h := handler.New(svc, store, cfg, logger)

	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s (store: %s)", addr, cfg.StoreBackend)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
