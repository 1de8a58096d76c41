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

	"github.com/joho/godotenv"

	"github.com/culturetwin/twin-finder/backend/internal/config"
	"github.com/culturetwin/twin-finder/backend/internal/handler"
	"github.com/culturetwin/twin-finder/backend/internal/service/analysis"
	"github.com/culturetwin/twin-finder/backend/internal/service/chat"
	"github.com/culturetwin/twin-finder/backend/internal/service/pipeline"
	"github.com/culturetwin/twin-finder/backend/internal/service/taste"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	chatService := chat.NewService()

	var analysisService *analysis.Service
	if cfg.AI.Enabled() {
		analysisService, err = analysis.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize analysis service: %v", err)
			log.Println("continuing without personality analysis - check the ARK_* environment variables")
		} else {
			log.Println("analysis service initialized successfully")
		}
	} else {
		log.Println("ark credentials not configured, skipping analysis initialization")
	}

	var tasteClient *taste.Client
	if cfg.Taste.Enabled() {
		tasteClient = taste.NewClient(cfg.Taste)
		log.Println("recommendation client initialized successfully")
	} else {
		log.Println("TASTE_API_KEY not configured, recommendation fetches will be skipped")
	}

	var pipelineService *pipeline.Service
	if analysisService != nil && tasteClient != nil {
		pipelineService = pipeline.New(analysisService, tasteClient, chatService)
	} else {
		log.Println("pipeline disabled: both analysis and recommendation services are required")
	}

	router := handler.NewRouter(chatService, pipelineService)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Twin Finder backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
