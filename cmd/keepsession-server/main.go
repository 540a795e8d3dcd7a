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

	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/server"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logCfg := logger.DefaultConfig()
	logCfg.FilePath = os.Getenv("LOG_FILE")
	logCfg.Console = true
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logCfg.Level = logger.ParseLevel(lvl)
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	var store server.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pg, err := server.OpenPostgres(dbURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		store = pg
		logger.Info("Using Postgres store")
	} else {
		store = server.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	srv := server.New(store)
	defer func() {
		if err := srv.Close(); err != nil {
			log.Printf("Error closing server: %v", err)
		}
	}()

	go func() {
		logger.Info("KeepSession auth server starting", logger.F("port", port))
		if err := srv.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", logger.F("error", err))
	}
	logger.Info("KeepSession auth server stopped")
}
