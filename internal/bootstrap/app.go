package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"cropguard/internal/analyses"
	"cropguard/internal/classifier"
	"cropguard/internal/classifier/roboflow"
	"cropguard/internal/imagecheck"
	"cropguard/internal/llm"
	"cropguard/internal/llm/openai"
	"cropguard/internal/recommendations"
	"cropguard/internal/services/health"
	"cropguard/internal/shared/config"
	"cropguard/internal/shared/server"
	"cropguard/internal/shared/server/middleware"
	"cropguard/internal/shared/storage/db"
	"cropguard/internal/shared/storage/object"
	localstore "cropguard/internal/shared/storage/object/local"
	s3store "cropguard/internal/shared/storage/object/s3"
	"cropguard/internal/shared/telemetry"
)

// errUnconfigured backs the classifier when no key is set. The orchestrator
// rejects such requests before ever reaching it.
var errUnconfigured = errors.New("classifier credentials not configured")

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.ImageStore
	Classifier      classifier.Client
	LLM             llm.Client
	Orchestrator    *analyses.Orchestrator
	AnalysesRepo    analyses.Repo
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	Health          *health.Service
}

// BuildPipeline wires only the analysis pipeline: the two upstream clients and
// the orchestrator. The CLI uses it for one-shot analyses without storage.
func BuildPipeline(cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	cls, err := buildClassifier(cfg)
	if err != nil {
		return nil, err
	}
	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}
	app.Classifier = cls
	app.LLM = llmClient
	app.Orchestrator = analyses.NewOrchestrator(
		cfg.Credentials,
		cls,
		recommendations.NewRecommender(llmClient),
		cfg.Tunables.Crops,
	)
	return app, nil
}

// Build prepares every dependency of the HTTP API and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app, err := BuildPipeline(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	app.Store = store

	if app.DB != nil {
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		app.AnalysesRepo = analyses.NewMemoryRepo()
	}
	app.AnalysesService = &analyses.Service{
		Repo:      app.AnalysesRepo,
		Store:     app.Store,
		Analyzer:  app.Orchestrator,
		Validator: imagecheck.New(cfg.MaxImageBytes),
	}
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService, cfg.MaxImageBytes)
	app.Health = health.NewService(cfg.Credentials, app.DB)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		Health:          app.Health,
		Limiter:         middleware.NewRateLimiter(nil),
	})

	if missing := cfg.Credentials.Missing(); len(missing) > 0 {
		telemetry.Warn("bootstrap.credentials_missing", map[string]any{"missing": missing})
	}
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildClassifier(cfg config.Config) (classifier.Client, error) {
	if strings.TrimSpace(cfg.Credentials.ClassifierAPIKey) == "" {
		return unconfiguredClassifier{}, nil
	}
	return roboflow.New(roboflow.Options{
		Endpoint:   cfg.Tunables.ClassifierEndpoint,
		APIKey:     cfg.Credentials.ClassifierAPIKey,
		Confidence: cfg.Tunables.ClassifierConfidence,
		Overlap:    cfg.Tunables.ClassifierOverlap,
		Timeout:    cfg.UpstreamTimeout,
	})
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.Credentials.RecommenderAPIKey) == "" {
		return llm.PlaceholderClient{}, nil
	}
	temperature := cfg.Tunables.LLMTemperature
	return openai.NewClient(openai.Options{
		BaseURL:     cfg.Tunables.LLMBaseURL,
		APIKey:      cfg.Credentials.RecommenderAPIKey,
		Model:       cfg.Tunables.LLMModel,
		MaxTokens:   cfg.Tunables.LLMMaxTokens,
		Temperature: &temperature,
		Timeout:     cfg.UpstreamTimeout,
	})
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "database unavailable", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ImageStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

type unconfiguredClassifier struct{}

func (unconfiguredClassifier) Classify(ctx context.Context, image []byte) (classifier.DetectionResult, error) {
	return classifier.DetectionResult{}, errUnconfigured
}
