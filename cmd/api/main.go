package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gavel/api/internal/app"
	"gavel/api/internal/archive"
	"gavel/api/internal/config"
	"gavel/api/internal/docstore"
	"gavel/api/internal/export"
	"gavel/api/internal/notify"
	"gavel/api/internal/resrepo"
	"gavel/api/internal/search"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	store, err := docstore.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer store.Close()

	if err := os.MkdirAll(cfg.ResReposDir, 0o755); err != nil {
		log.Fatalf("failed to create resolution repos dir: %v", err)
	}
	resrepos := resrepo.New(cfg.ResReposDir)

	// The archive, search and export stack rides on Postgres and is optional:
	// without it sessions still run, they just vanish when the store does.
	var archStore *archive.PostgresArchive
	var searchService *search.Service
	var exportService *export.Service
	if strings.TrimSpace(cfg.ArchiveDatabaseURL) != "" {
		db, err := archive.Open(ctx, cfg.ArchiveDatabaseURL)
		if err != nil {
			log.Fatalf("archive database connection failed: %v", err)
		}
		defer db.Close()
		if err := archive.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("archive migrations failed: %v", err)
		}
		archStore = archive.NewPostgresArchive(db)
		exportService = export.NewService(archStore)

		pgfts := search.NewPgFTS(db)
		var meiliClient *search.Meili
		if strings.TrimSpace(cfg.MeiliURL) != "" {
			meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
			defer meiliClient.Close()
		}
		searchService = search.NewService(meiliClient, pgfts)
		if meiliClient != nil {
			searchService.ReindexAllFromPG(ctx)
		}
	} else {
		log.Printf("No archive database configured; closing a session will discard its record")
	}

	notifier := notify.New()
	var service *app.Service
	if archStore != nil {
		service = app.New(cfg, store, notifier, archStore, searchService, exportService, resrepos)
	} else {
		service = app.New(cfg, store, notifier, nil, nil, nil, resrepos)
	}
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No write timeout: event stream connections stay open indefinitely.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Gavel API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
