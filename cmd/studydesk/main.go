package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/api"
	"github.com/liliang-cn/studydesk/internal/api/study"
	"github.com/liliang-cn/studydesk/internal/config"
	"github.com/liliang-cn/studydesk/internal/embedding"
	"github.com/liliang-cn/studydesk/internal/llm"
	"github.com/liliang-cn/studydesk/internal/repository"
	"github.com/liliang-cn/studydesk/internal/service"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize storage (sqlite catalog plus per-document index files)
	db, err := repository.NewDB(cfg.Storage.Root)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize LLM and embedding clients
	llmClient, err := llm.NewOpenAI(cfg.LLM, cfg.Retry, logger)
	if err != nil {
		logger.Fatal("Failed to initialize LLM client", zap.Error(err))
	}

	embedder, err := embedding.New(cfg.Embedding, cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedder", zap.Error(err))
	}

	// Existing indexes are only comparable under the model that built
	// them. Refuse to start if the catalog was built with another one.
	if err := checkEmbeddingModel(db, embedder, logger); err != nil {
		logger.Fatal("Embedding model mismatch", zap.Error(err))
	}

	// Initialize repositories
	documentRepo := repository.NewDocumentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Initialize services
	svc := &service.Services{
		Cfg:       cfg,
		Logger:    logger,
		LLM:       llmClient,
		Embedder:  embedder,
		Documents: documentRepo,
		Quizzes:   quizRepo,
		Sessions:  sessionRepo,
	}

	ingestService := service.NewIngestService(svc)
	quizService := service.NewQuizService(svc)
	evalService := service.NewEvalService(svc)
	revisionService := service.NewRevisionService(svc, evalService)
	learningService := service.NewLearningService(svc, evalService)
	storyService := service.NewStoryService(svc)

	// Setup router
	handler := study.NewHandler(
		ingestService,
		quizService,
		evalService,
		revisionService,
		learningService,
		storyService,
		sessionRepo,
	)
	router := api.SetupRouter(handler, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: []string{"*"},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting StudyDesk server",
			zap.String("address", cfg.Address()),
			zap.String("storage_root", cfg.Storage.Root),
			zap.String("embedding_model", embedder.Model()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func checkEmbeddingModel(db *repository.DB, embedder embedding.Embedder, logger *zap.Logger) error {
	pinned, err := db.EmbeddingModel()
	if err != nil {
		return err
	}
	if pinned == "" {
		return db.PinEmbeddingModel(embedder.Model())
	}
	if pinned != embedder.Model() {
		return &modelMismatchError{pinned: pinned, active: embedder.Model()}
	}
	logger.Info("Embedding model verified", zap.String("model", pinned))
	return nil
}

type modelMismatchError struct {
	pinned, active string
}

func (e *modelMismatchError) Error() string {
	return "catalog was built with embedding model " + e.pinned +
		" but the configured model is " + e.active +
		"; re-ingest documents or restore the original model"
}
