package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/analysis"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/api"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/config"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/database"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/dialogue"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/engine"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/media"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/pipeline"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/session"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/websocket"
	pkgdatabase "github.com/HanphoneJan/Ai-Interview-Agent/pkg/database"
)

// Application wires every component of the interview server. Construction
// follows dependency order: store, session registry, media pipeline,
// engines, dialogue, connection layer, HTTP.
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	sessions   *session.Manager
	registry   *websocket.Registry
	pipeline   *pipeline.Manager
	limiter    *websocket.IngestLimiter
	httpServer *http.Server

	cleanupStop chan struct{}
}

// NewApplication builds a fully wired application from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	sessions := session.NewManager(dbManager)
	registry := websocket.NewRegistry()

	reassembler := media.NewReassembler(cfg.Media.MaxPendingChunks)
	validator := media.NewValidator(cfg.Media.MinContainerBytes)
	transcoder := media.NewTranscoder(cfg.Media.FFmpegPath, cfg.Media.WorkDir)

	recognizer, err := engine.NewRecognizer(cfg.Engine)
	if err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
	}
	synthesizer, err := engine.NewSynthesizer(cfg.Engine)
	if err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to initialize synthesizer: %w", err)
	}
	expression, err := engine.NewExpressionAnalyzer(cfg.Engine)
	if err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to initialize expression analyzer: %w", err)
	}
	generator, err := engine.NewTextGenerator(cfg.Engine)
	if err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to initialize text generator: %w", err)
	}

	dispatcher := analysis.NewDispatcher(recognizer, expression, transcoder,
		cfg.Engine.CallTimeout, cfg.Media.FrameInterval)

	controller := dialogue.NewController(generator, synthesizer, dbManager, registry,
		cfg.Dialogue.MaxQuestions, cfg.Dialogue.CallTimeout)

	pipelineManager := pipeline.NewManager(dispatcher, controller, sessions, cfg.Media.QueueSize)

	limiter := websocket.NewIngestLimiter(cfg.Media.ChunksPerMinute)
	wsHandler := websocket.NewHandler(registry, sessions, reassembler, validator,
		pipelineManager, controller, expression, limiter,
		cfg.WebSocket, cfg.Dialogue.CallTimeout)

	apiServer := api.NewServer(dbManager, registry)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		dbManager:   dbManager,
		sessions:    sessions,
		registry:    registry,
		pipeline:    pipelineManager,
		limiter:     limiter,
		httpServer:  httpServer,
		cleanupStop: make(chan struct{}),
	}, nil
}

// Start launches the HTTP server and background housekeeping.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting interview server on %s", app.httpServer.Addr)

	go app.cleanupLoop()

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Interview server started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse dependency order.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down interview server")

	close(app.cleanupStop)

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := app.pipeline.Shutdown(ctx); err != nil {
		log.Printf("Pipeline shutdown error: %v", err)
	}
	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("Interview server shutdown complete")
	return nil
}

// Addr returns the server address for external connections.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}

func (app *Application) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			app.limiter.Cleanup()
		case <-app.cleanupStop:
			return
		}
	}
}
