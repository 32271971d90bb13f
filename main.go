package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/config"
	"github.com/codemorph-io/sas-engine/pkg/converter"
	"github.com/codemorph-io/sas-engine/pkg/database"
	"github.com/codemorph-io/sas-engine/pkg/handlers"
	"github.com/codemorph-io/sas-engine/pkg/llm"
	"github.com/codemorph-io/sas-engine/pkg/mcp"
	"github.com/codemorph-io/sas-engine/pkg/middleware"
	"github.com/codemorph-io/sas-engine/pkg/repositories"
	"github.com/codemorph-io/sas-engine/pkg/runner"
	"github.com/codemorph-io/sas-engine/pkg/services"
	"github.com/codemorph-io/sas-engine/pkg/services/workqueue"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("database", cfg.Database.IsConfigured()),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.Bool("conversion", cfg.AI.IsAvailable()))

	ctx := context.Background()

	// Persistence is optional; without it analyses still run but no
	// history is kept.
	var repo repositories.AnalysisRunRepository
	if cfg.Database.IsConfigured() {
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := runMigrations(cfg, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		repo = repositories.NewAnalysisRunRepository(db)
	}

	cache, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	cacheTTL := time.Duration(cfg.Redis.ReportTTLMinutes) * time.Minute
	analysisQueue := workqueue.New(logger)
	analysisSvc := services.NewAnalysisService(repo, cache, cacheTTL, logger, services.WithQueue(analysisQueue))

	scripts, err := runner.New(cfg.ScriptsDir, logger)
	if err != nil {
		logger.Fatal("failed to create scripts dir", zap.Error(err))
	}

	// Conversion needs an AI backend; without one the endpoints report
	// 503 instead of failing at startup.
	var conversionSvc *services.ConversionService
	if cfg.AI.IsAvailable() {
		client, err := newLLMClient(&cfg.AI, logger)
		if err != nil {
			logger.Fatal("failed to create LLM client", zap.Error(err))
		}
		conv := converter.New(client, cfg.AI.MaxOutputTokens, logger)
		queue := workqueue.New(logger)
		conversionSvc = services.NewConversionService(conv, scripts, queue, cfg.Analyzer.MaxChunkTokens, logger)
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg).RegisterRoutes(mux)
	handlers.NewAnalyzeHandler(analysisSvc, logger).RegisterRoutes(mux)
	handlers.NewConvertHandler(conversionSvc, logger).RegisterRoutes(mux)
	handlers.NewRunsHandler(analysisSvc, logger).RegisterRoutes(mux)
	handlers.NewScriptsHandler(scripts, logger).RegisterRoutes(mux)

	mcpServer := mcp.NewServer(cfg.Version, &mcp.ToolDeps{
		Analysis:   analysisSvc,
		Conversion: conversionSvc,
		Logger:     logger,
	})
	mux.Handle("/mcp", mcp.NewHTTPHandler(mcpServer))

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("starting sas-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, middleware.RequestLogger(logger)(mux)); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runMigrations applies pending migrations over a database/sql
// connection, which the migrate driver requires.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}

func newLLMClient(cfg *config.AIConfig, logger *zap.Logger) (llm.Client, error) {
	if cfg.Provider == "anthropic" {
		return llm.NewAnthropicClient(&llm.AnthropicConfig{
			APIKey: cfg.AnthropicKey,
			Model:  cfg.AnthropicModel,
		}, logger)
	}
	return llm.NewOpenAIClient(&llm.OpenAIConfig{
		Endpoint: cfg.OpenAIBaseURL,
		Model:    cfg.OpenAIModel,
		APIKey:   cfg.OpenAIKey,
	}, logger)
}
