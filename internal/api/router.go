package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/api/handlers"
	mw "github.com/Harshitk-cp/storybrain/internal/api/middleware"
	"github.com/Harshitk-cp/storybrain/internal/buildconfig"
	"github.com/Harshitk-cp/storybrain/internal/config"
	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/embedding"
	"github.com/Harshitk-cp/storybrain/internal/grammar"
	"github.com/Harshitk-cp/storybrain/internal/graph"
	"github.com/Harshitk-cp/storybrain/internal/llm"
	"github.com/Harshitk-cp/storybrain/internal/neo4jmirror"
	"github.com/Harshitk-cp/storybrain/internal/service"
	"github.com/Harshitk-cp/storybrain/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router serves.
type Deps struct {
	Analysis  handlers.Analyzer
	Conflicts handlers.ConflictReviewer
	Summaries handlers.CharacterSummarizer
	DB        Pinger
	Sessions  func() int

	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router   *chi.Mux
	Registry *graph.Registry
	Insight  *service.InsightService

	explainWorker bool
	mirror        *neo4jmirror.Driver
	logger        *zap.Logger
	startTime     time.Time
	metrics       *mw.Metrics
	sessions      func() int
}

// NewApp wires stores, clients and services from config.
func NewApp(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	entityStore := store.NewEntityStore(db)
	factStore := store.NewFactStore(db)
	conflictStore := store.NewConflictLogStore(db)
	chunkStore := store.NewChunkStore(db)

	parser, err := grammar.NewParser(config.ParserProvider(), config.ParserURL(), config.ParserTimeout())
	if err != nil {
		return nil, fmt.Errorf("grammar parser: %w", err)
	}

	prompts := llm.DefaultPrompts()
	if path := config.PromptsFile(); path != "" {
		prompts, err = llm.LoadPrompts(path)
		if err != nil {
			return nil, err
		}
		logger.Info("prompts loaded", zap.String("path", path))
	}

	// External clients via provider factory
	llmProvider := config.LLMProvider()
	llmClient, err := llm.NewClient(llmProvider, llm.Options{
		APIKey:  config.LLMAPIKey(),
		BaseURL: config.LLMBaseURL(),
		Model:   config.LLMModel(),
		Prompts: prompts,
	})
	if err != nil {
		logger.Warn("LLM client initialization failed", zap.String("provider", llmProvider), zap.Error(err))
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider))
	}

	embeddingProvider := config.EmbeddingProvider()
	embedder, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey(), config.EmbeddingModel(), config.OpenAIBaseURL())
	if err != nil {
		logger.Warn("Embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("Embedding client initialized", zap.String("provider", embeddingProvider))
	}

	var listeners []graph.FactListener
	var driver *neo4jmirror.Driver
	if uri := config.Neo4jURI(); uri != "" {
		driver, err = neo4jmirror.Connect(ctx, uri, config.Neo4jUser(), config.Neo4jPassword())
		if err != nil {
			logger.Warn("neo4j mirror disabled", zap.String("uri", uri), zap.Error(err))
		} else {
			mirror := neo4jmirror.New(driver, logger)
			if err := mirror.EnsureSchema(ctx); err != nil {
				logger.Warn("failed to ensure neo4j schema", zap.Error(err))
			}
			listeners = append(listeners, mirror)
			logger.Info("neo4j mirror enabled", zap.String("uri", uri))
		}
	}

	// Services
	stores := graph.Stores{Entities: entityStore, Facts: factStore, Conflicts: conflictStore}
	registry := graph.NewRegistry(graph.StoreLoader(stores, logger, listeners...), logger)
	registry.SetIdleTTL(config.SessionIdleTTL())

	insightSvc := service.NewInsightService(conflictStore, llmClient, logger)
	insightSvc.SetInterval(config.InsightInterval())
	insightSvc.SetMaxWords(config.AlertMaxWords())

	summarySvc := service.NewSummaryService(entityStore, chunkStore, embedder, registry, llmClient, logger)

	analysisSvc := service.NewAnalysisService(parser, registry, entityStore, chunkStore, embedder, insightSvc, logger)
	if llmClient != nil {
		analysisSvc.SetSummaries(summarySvc)
	}

	app := newApp(Deps{
		Analysis:       analysisSvc,
		Conflicts:      insightSvc,
		Summaries:      summarySvc,
		DB:             db,
		Sessions:       registry.Len,
		APIKey:         config.APIKey(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}, logger)
	app.Registry = registry
	app.Insight = insightSvc
	app.explainWorker = llmClient != nil
	app.mirror = driver
	return app, nil
}

func newApp(deps Deps, logger *zap.Logger) *App {
	projectHandler := handlers.NewProjectHandler(deps.Analysis)
	conflictHandler := handlers.NewConflictHandler(deps.Conflicts)
	summaryHandler := handlers.NewSummaryHandler(deps.Summaries)
	editorHandler := handlers.NewEditorHandler(deps.Analysis, logger)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		logger:    logger,
		startTime: time.Now(),
		metrics:   &mw.Metrics{},
		sessions:  deps.Sessions,
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	if deps.RateLimitRPS > 0 {
		r.Use(mw.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst))
	}

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(deps.DB))
	r.Get("/metrics", app.metricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(deps.APIKey))

		r.Get("/ws/editor", editorHandler.Serve)

		r.Route("/v1/projects/{projectID}", func(r chi.Router) {
			r.Post("/analyze", projectHandler.Analyze)
			r.Post("/chunks", projectHandler.SaveChunk)
			r.Get("/story-brain", projectHandler.StoryBrain)

			r.Get("/entities", projectHandler.ListEntities)
			r.Post("/entities", projectHandler.SeedEntities)
			r.Patch("/entities/{entityID}/metadata", projectHandler.UpdateEntityMetadata)
			r.Post("/entities/{entityID}/refresh-summary", summaryHandler.Refresh)

			r.Get("/facts", projectHandler.Facts)
			r.Post("/facts/check", projectHandler.CheckFact)

			r.Route("/conflicts", func(r chi.Router) {
				r.Get("/", conflictHandler.ListPending)
				r.Post("/explain", conflictHandler.Explain)
				r.Post("/{id}/resolve", conflictHandler.Resolve)
			})
		})
	})

	return app
}

// Start launches the session janitor and, when an explainer is configured,
// the conflict explanation worker.
func (app *App) Start() {
	if app.Registry != nil {
		app.Registry.Start()
	}
	if app.Insight != nil && app.explainWorker {
		app.Insight.Start()
	}
}

// Stop halts background work and closes the Neo4j driver.
func (app *App) Stop(ctx context.Context) {
	if app.Insight != nil {
		app.Insight.Stop()
	}
	if app.Registry != nil {
		app.Registry.Stop()
	}
	if app.mirror != nil {
		if err := app.mirror.Close(ctx); err != nil {
			app.logger.Warn("failed to close neo4j driver", zap.Error(err))
		}
	}
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		sessions := 0
		if app.sessions != nil {
			sessions = app.sessions()
		}

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"requests":       app.metrics.Snapshot(),
			"graph_sessions": sessions,
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"build":          buildconfig.Current(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.EntityStore        = (*store.EntityStore)(nil)
	_ domain.FactStore          = (*store.FactStore)(nil)
	_ domain.ConflictLogStore   = (*store.ConflictLogStore)(nil)
	_ domain.ChunkStore         = (*store.ChunkStore)(nil)
	_ domain.EmbeddingClient    = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient    = (*embedding.MockClient)(nil)
	_ domain.LLMClient          = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient          = (*llm.AnthropicClient)(nil)
	_ domain.LLMClient          = (*llm.MockClient)(nil)
	_ graph.FactListener        = (*neo4jmirror.Mirror)(nil)
	_ neo4jmirror.Executor      = (*neo4jmirror.Driver)(nil)
	_ handlers.Analyzer         = (*service.AnalysisService)(nil)
	_ handlers.ConflictReviewer = (*service.InsightService)(nil)

	_ handlers.CharacterSummarizer = (*service.SummaryService)(nil)
)
