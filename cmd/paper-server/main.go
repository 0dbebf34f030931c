// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paper-reader/internal/ai"
	"github.com/paper-reader/internal/chat"
	"github.com/paper-reader/internal/config"
	"github.com/paper-reader/internal/database"
	"github.com/paper-reader/internal/events"
	"github.com/paper-reader/internal/inbox"
	"github.com/paper-reader/internal/jobs"
	"github.com/paper-reader/internal/logger"
	"github.com/paper-reader/internal/papers"
	"github.com/paper-reader/internal/pdf"
	"github.com/paper-reader/internal/pipeline"
	"github.com/paper-reader/internal/processor"
	"github.com/paper-reader/internal/queue"
	"github.com/paper-reader/internal/retrieval"
	"github.com/paper-reader/internal/server"
	"github.com/paper-reader/internal/storage"
	"github.com/paper-reader/internal/summary"
	"github.com/paper-reader/internal/worker"
	"github.com/redis/go-redis/v9"
)

const workerDrainTimeout = 2 * time.Minute

var (
	configPath = flag.String("config", "", "Path to a YAML/TOML/JSON config file")
	version    = "dev"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg, err := logger.Init(cfg.Log.Mode, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	paperStore, err := database.NewPaperStore(db)
	if err != nil {
		logger.Fatalf("failed to init paper store: %v", err)
	}
	messageStore, err := database.NewMessageStore(db)
	if err != nil {
		logger.Fatalf("failed to init message store: %v", err)
	}
	chunkStore, err := database.NewChunkStore(db)
	if err != nil {
		logger.Fatalf("failed to init chunk store: %v", err)
	}
	history, err := database.NewEventLogger(db)
	if err != nil {
		logger.Fatalf("failed to init event log: %v", err)
	}
	metadata, err := database.NewSystemMetadataStore(db)
	if err != nil {
		logger.Fatalf("failed to init system metadata: %v", err)
	}
	if err := metadata.SyncChunkerVersion(ctx, processor.Version, chunkStore); err != nil {
		logger.Fatalf("failed to sync chunker version: %v", err)
	}

	files, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("failed to open storage: %v", err)
	}

	jobQueue, redisClient := openQueue(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	aiCfg := ai.Config{
		Provider:        cfg.AI.Provider,
		APIKey:          cfg.AI.APIKey,
		BaseURL:         cfg.AI.BaseURL,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
	}
	summaryGen := ai.Timed(ai.NewGenerator(aiCfg, cfg.AI.SummaryModel), cfg.AI.Provider, "summary")
	chatGen := ai.Timed(ai.NewGenerator(aiCfg, cfg.AI.ChatModel), cfg.AI.Provider, "chat")
	if cfg.AI.APIKey == "" {
		logger.Warnf("No %s API key configured; summaries and chat will fail until one is set", cfg.AI.Provider)
	}

	broadcaster := events.NewBroadcaster()
	chunker := processor.NewChunker()
	documents := pdf.NewProcessor()

	summarizer := summary.NewSummarizer(summaryGen, summary.Config{MaxPromptChars: cfg.Pipeline.MaxPromptChars})
	merger := summary.NewMerger(summarizer, paperStore)
	retriever := retrieval.NewRetriever(chunkStore, chunker, history)
	responder := chat.NewResponder(chatGen, retriever, chat.Config{RetrievalLimit: cfg.Retrieval.Limit})

	pipe := pipeline.New(paperStore, files, documents, chunker, summarizer, history, broadcaster)
	scheduler := jobs.NewScheduler(jobQueue)

	requeueInterrupted(ctx, paperStore, scheduler)

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		logger.Printf("Starting %d background workers", cfg.Worker.Count)
		if err := worker.StartWorkers(ctx, jobQueue, scheduler.Handler(pipe), cfg.Worker.Count); err != nil {
			logger.Errorf("worker error: %v", err)
		}
	}()

	sweeper := jobs.NewSweeper(paperStore, scheduler, cfg.Sweeper.GracePeriod)
	if err := sweeper.Start(ctx, cfg.Sweeper.Schedule); err != nil {
		logger.Fatalf("failed to start sweeper: %v", err)
	}
	defer sweeper.Stop()

	service := papers.New(papers.Deps{
		Papers:      paperStore,
		Messages:    messageStore,
		History:     history,
		Files:       files,
		Documents:   documents,
		Scheduler:   scheduler,
		Responder:   responder,
		Merger:      merger,
		Broadcaster: broadcaster,
	})

	if cfg.Inbox.Dir != "" {
		watcher, err := inbox.New(cfg.Inbox.Dir, service, inbox.DefaultDelay)
		if err != nil {
			logger.Fatalf("failed to create inbox watcher: %v", err)
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Fatalf("failed to start inbox watcher: %v", err)
		}
		defer watcher.Stop()
	}

	srv := server.New(server.Options{
		Papers:      service,
		Broadcaster: broadcaster,
		StaticDir:   cfg.HTTP.StaticDir,
		Version:     version,
		Settings: server.SettingsView{
			AIProvider:     cfg.AI.Provider,
			APIKey:         cfg.MaskedAPIKey(),
			SummaryModel:   cfg.AI.SummaryModel,
			ChatModel:      cfg.AI.ChatModel,
			StorageBackend: cfg.Storage.Backend,
			QueueBackend:   cfg.Queue.Backend,
			Workers:        cfg.Worker.Count,
			RetrievalLimit: cfg.Retrieval.Limit,
			InboxDir:       cfg.Inbox.Dir,
		},
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("HTTP server listening on %d", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(httpServer, cancel, workersDone)
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.FileStore, error) {
	switch cfg.Backend {
	case "s3":
		logger.Printf("Using S3 storage: bucket=%s prefix=%s", cfg.S3.Bucket, cfg.S3.Prefix)
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		logger.Printf("Using local storage: dir=%s", cfg.LocalDir)
		return storage.NewLocalStore(cfg.LocalDir)
	}
}

// openQueue returns the Redis queue when configured and reachable, otherwise
// an in-process queue. Papers left queued by a lost in-process queue are
// resubmitted by the sweeper.
func openQueue(ctx context.Context, cfg *config.Config) (queue.Queue, *redis.Client) {
	if cfg.Queue.Backend != "redis" {
		logger.Printf("Using in-memory job queue")
		return queue.NewMemoryQueue(0), nil
	}

	client, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warnf("failed to connect to Redis: %v, falling back to in-memory job queue", err)
		return queue.NewMemoryQueue(0), nil
	}
	q, err := queue.NewRedisQueue(ctx, client, cfg.Queue.Key)
	if err != nil {
		logger.Warnf("failed to create Redis job queue: %v, falling back to in-memory job queue", err)
		client.Close()
		return queue.NewMemoryQueue(0), nil
	}
	logger.Printf("Using Redis job queue: addr=%s key=%s", cfg.Redis.Addr, cfg.Queue.Key)
	return q, client
}

// requeueInterrupted resubmits papers a previous process left in processing.
func requeueInterrupted(ctx context.Context, papers *database.PaperStore, scheduler *jobs.Scheduler) {
	ids, err := papers.RequeueInterrupted(ctx)
	if err != nil {
		logger.Errorf("failed to requeue interrupted papers: %v", err)
		return
	}
	for _, id := range ids {
		if err := scheduler.Submit(ctx, id, "restart"); err != nil {
			logger.Warnf("paper %d: resubmit failed, left for the sweeper: %v", id, err)
		}
	}
	if len(ids) > 0 {
		logger.Printf("Requeued %d interrupted papers", len(ids))
	}
}

func waitForShutdown(httpServer *http.Server, stopBackground context.CancelFunc, workersDone <-chan struct{}) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Printf("Shutting down server...")

	stopBackground()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	// in-flight runs finish on their own context; a run still going after
	// the drain timeout is requeued on the next start
	select {
	case <-workersDone:
		logger.Printf("Workers drained")
	case <-time.After(workerDrainTimeout):
		logger.Warnf("Workers still running after %s, exiting", workerDrainTimeout)
	}
}
