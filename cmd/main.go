package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/dkurilov/paratrans/internal/checkpoint"
	"github.com/dkurilov/paratrans/internal/config"
	"github.com/dkurilov/paratrans/internal/httpapi"
	"github.com/dkurilov/paratrans/internal/jobs"
	"github.com/dkurilov/paratrans/internal/llm"
	"github.com/dkurilov/paratrans/internal/service"
	"github.com/dkurilov/paratrans/internal/translator"
	"github.com/dkurilov/paratrans/pkg/log"
)

func main() {
	// Optional .env file for local development.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	store, err := checkpoint.NewSQLiteStore(cfg.Pipeline.DBPath)
	if err != nil {
		log.Fatal("Failed to open checkpoint store: %v", err)
	}
	defer store.Close()

	llmClient, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		log.Fatal("Failed to create LLM client: %v", err)
	}

	queue := jobs.NewQueue(cfg.Pipeline.QueueWorkers, store)
	c := cron.New()
	svc := service.New(cfg, store, queue, translator.NewLLMTranslator(llmClient), c)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		log.Fatal("Failed to start translation service: %v", err)
	}
	c.Start()

	server := httpapi.NewServer(svc, queue)
	go func() {
		log.Info("HTTP API listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(cfg.HTTP.Addr); err != nil {
			log.Error("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed: %v", err)
	}
	<-c.Stop().Done()
	queue.Stop()
	os.Exit(0)
}
