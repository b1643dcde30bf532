package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carstage/internal/backgrounds"
	"carstage/internal/blob"
	"carstage/internal/jobs"
	"carstage/internal/models"
	"carstage/internal/segment"
	"carstage/internal/server"
	"carstage/internal/storage"
)

func main() {
	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := storage.NewStorage(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var blobs blob.Store
	if cfg.S3Bucket != "" {
		blobs, err = blob.NewS3Store(ctx, cfg.S3Bucket)
	} else {
		blobs, err = blob.NewFSStore(cfg.DataDir)
	}
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}

	// The segmentation engine handle is built lazily on first task; first
	// use may be slow while the model loads server-side.
	provider := segment.NewProvider(func(model string) segment.Segmenter {
		return segment.NewRembgClient(cfg.RembgURL, model)
	})

	pool := jobs.NewPool(cfg.Workers, cfg.QueueSize, db, blobs, provider, cfg.RembgModel)
	pool.Start(ctx)

	var disp jobs.Dispatcher = pool
	if cfg.KafkaBroker != "" {
		kd := jobs.NewKafkaDispatcher(cfg.KafkaBroker, cfg.KafkaTopic)
		defer kd.Close()
		disp = kd
		go jobs.RunConsumer(ctx, cfg.KafkaBroker, cfg.KafkaTopic, "carstage-workers", pool)
	}

	orch := jobs.NewOrchestrator(db, blobs, disp)
	catalog := backgrounds.NewCatalog(cfg.BackgroundDir, cfg.WatermarkText)

	srv := server.NewServer(cfg, db, blobs, orch, catalog)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()
	db.Log(ctx, "info", "app.start", fmt.Sprintf("workers=%d model=%s", cfg.Workers, cfg.RembgModel))
	if st, err := db.Stats(ctx); err == nil {
		log.Printf("uploads=%d processed=%d paying=%d", st.Uploads, st.Processed, st.Paying)
	}

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Stop(shutdownCtx)
}
