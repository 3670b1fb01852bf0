package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reconcile/internal/config"
	"reconcile/internal/db"
	"reconcile/internal/handlers"
	"reconcile/internal/parser"
	"reconcile/internal/services"
	"reconcile/internal/storage"
	"reconcile/internal/store"
	"reconcile/internal/websocket"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	accounts := store.NewAccountStore(database)
	statements := store.NewStatementStore(database)
	lines := store.NewLineStore(database)
	installments := store.NewInstallmentStore(database)
	records := store.NewMatchRecordStore(database)
	reconciliations := store.NewReconciliationStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	var blobs storage.BlobStore
	if cfg.StorageBucket != "" {
		gcs, err := storage.NewGCS(context.Background(), cfg.StorageBucket)
		if err != nil {
			log.Fatalf("failed to init GCS storage: %v", err)
		}
		defer gcs.Close()
		blobs = gcs
	} else {
		blobs = storage.NewFS(cfg.StorageDir)
	}

	importer := services.NewImportService(txRunner, statements, lines, accounts, audit, parser.DefaultSelector(), blobs)
	suggestions := services.NewSuggestionService(txRunner, statements, lines, installments)
	resolutions := services.NewResolutionService(txRunner, statements, lines, installments, installments, records, audit)
	closer := services.NewCloseService(txRunner, statements, lines, accounts, reconciliations, audit, hub)

	handler := handlers.New(cfg, importer, suggestions, resolutions, closer, statements, lines, accounts, reconciliations, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("reconciliation API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
