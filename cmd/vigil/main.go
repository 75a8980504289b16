package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilapp/vigil/internal/config"
	"github.com/vigilapp/vigil/internal/database"
	"github.com/vigilapp/vigil/internal/logging"
	"github.com/vigilapp/vigil/internal/notify"
	"github.com/vigilapp/vigil/internal/scheduler"
	"github.com/vigilapp/vigil/internal/server"
)

func main() {
	genKeys := flag.Bool("gen-vapid-keys", false, "generate a VAPID key pair and exit")
	flag.Parse()

	if *genKeys {
		pub, priv, err := notify.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("generate VAPID keys: %v", err)
		}
		fmt.Printf("VIGIL_VAPID_PUBLIC_KEY=%s\nVIGIL_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	sched := scheduler.New(scheduler.Config{
		GenerateSpec: cfg.GenerateSpec,
		SweepSpec:    cfg.SweepSpec,
		ArchiveSpec:  cfg.ArchiveSpec,
	}, srv.Generator(), srv.Sweeper(), srv.ArchiveManager(), srv.PushStore(), logger)
	if err := sched.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("vigil listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
