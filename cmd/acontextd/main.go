// acontextd is the context-memory service: an HTTP trigger surface
// backed by a bounded LLM agent pipeline (Task-Extraction → SOP
// Abstraction → Space Construction) wired together over an embedded
// NATS JetStream bus.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/nextlevelbuilder/acontext/pkg/agent/search"
	"github.com/nextlevelbuilder/acontext/pkg/agent/sopabstract"
	"github.com/nextlevelbuilder/acontext/pkg/agent/spaceconstruct"
	"github.com/nextlevelbuilder/acontext/pkg/agent/taskextract"
	"github.com/nextlevelbuilder/acontext/pkg/api"
	"github.com/nextlevelbuilder/acontext/pkg/bus"
	"github.com/nextlevelbuilder/acontext/pkg/config"
	"github.com/nextlevelbuilder/acontext/pkg/database"
	"github.com/nextlevelbuilder/acontext/pkg/embed"
	"github.com/nextlevelbuilder/acontext/pkg/llm"
	"github.com/nextlevelbuilder/acontext/pkg/retrieval"
	"github.com/nextlevelbuilder/acontext/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	envFile := flag.String("env-file", getEnv("ACONTEXT_ENV_FILE", ".env"), "Path to an env file to load")
	addr := flag.String("addr", getEnv("ACONTEXT_HTTP_ADDR", ":8080"), "HTTP listen address")
	natsPort := flag.Int("nats-port", 4222, "Embedded NATS server port")
	natsStoreDir := flag.String("nats-store-dir", getEnv("ACONTEXT_NATS_STORE_DIR", "./data/nats"), "JetStream file storage directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *envFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	db, err := database.NewClient(ctx, cfg.Database.URL, cfg.Database.MaxPoolSize, cfg.Database.ConnectTimeout)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Pool.Close()
	slog.Info("connected to database")

	embedClient, err := embed.NewClient(ctx, cfg.Embed)
	if err != nil {
		slog.Error("failed to build embedding client", "error", err)
		os.Exit(1)
	}
	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		slog.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}

	sessions := store.NewSessionStore(db.Pool)
	tasks := store.NewTaskStore(db.Pool)
	messages := store.NewMessageStore(db.Pool)
	blocks := store.NewBlockStore(db.Pool)
	embeddings := store.NewEmbeddingStore(db.Pool)

	searcher := retrieval.NewSearcher(embedClient, embeddings, blocks, cfg.Retrieval)
	searchSvc := search.New(searcher, blocks, llmClient)
	taskAgent := taskextract.New(llmClient, tasks, cfg.Defaults.AgentMaxIterations)
	sopAgent := sopabstract.New(llmClient, tasks, cfg.Defaults.AgentMaxIterations)
	spaceAgent := spaceconstruct.New(llmClient, blocks, tasks, searcher, cfg.Defaults.SpaceConstructMaxIterations)

	natsOpts := &natsserver.Options{
		Port:      *natsPort,
		HTTPPort:  -1,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  *natsStoreDir,
	}
	embeddedNATS, err := natsserver.NewServer(natsOpts)
	if err != nil {
		slog.Error("failed to create embedded nats server", "error", err)
		os.Exit(1)
	}
	go embeddedNATS.Start()
	if !embeddedNATS.ReadyForConnections(5 * time.Second) {
		slog.Error("embedded nats server did not become ready in time")
		os.Exit(1)
	}
	defer embeddedNATS.Shutdown()
	slog.Info("embedded nats server started", "port", *natsPort)

	cfg.Bus.URL = embeddedNATS.ClientURL()
	busConn, err := bus.Connect(cfg.Bus)
	if err != nil {
		slog.Error("failed to connect to bus", "error", err)
		os.Exit(1)
	}
	defer busConn.Close()

	if err := busConn.EnsureExchange(bus.ExchangeSpaceTask); err != nil {
		slog.Error("failed to ensure exchange", "exchange", bus.ExchangeSpaceTask, "error", err)
		os.Exit(1)
	}
	if err := busConn.EnsureExchange(bus.ExchangeSpaceSOP); err != nil {
		slog.Error("failed to ensure exchange", "exchange", bus.ExchangeSpaceSOP, "error", err)
		os.Exit(1)
	}

	if _, err := bus.RegisterConsumer(busConn, bus.ConsumerConfig{
		Exchange:   bus.ExchangeSpaceTask,
		RoutingKey: bus.RoutingKeySpaceTaskComplete,
		QueueName:  "sop-abstract",
	}, sopAbstractHandler(tasks, messages, sessions, sopAgent, cfg.Defaults.PrecedingTaskContextSize, busConn)); err != nil {
		slog.Error("failed to register sop-abstract consumer", "error", err)
		os.Exit(1)
	}

	if _, err := bus.RegisterConsumer(busConn, bus.ConsumerConfig{
		Exchange:   bus.ExchangeSpaceSOP,
		RoutingKey: bus.RoutingKeySOPComplete,
		QueueName:  "space-construct",
	}, spaceConstructHandler(spaceAgent)); err != nil {
		slog.Error("failed to register space-construct consumer", "error", err)
		os.Exit(1)
	}

	reaper := bus.NewReaper(busConn, []string{bus.ExchangeSpaceTask, bus.ExchangeSpaceSOP}, time.Minute)
	reaper.Start(ctx)
	defer reaper.Stop()

	server := api.NewServer(cfg, db, busConn, blocks, tasks, messages, sessions, taskAgent, searcher, searchSvc)

	gin.SetMode(gin.ReleaseMode)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", *addr)
		if err := server.Start(*addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		slog.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during http shutdown", "error", err)
	}
}
