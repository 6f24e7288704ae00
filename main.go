package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/config"
	"github.com/schemalink/schemalink-engine/pkg/database"
	"github.com/schemalink/schemalink-engine/pkg/handlers"
	"github.com/schemalink/schemalink-engine/pkg/llm"
	"github.com/schemalink/schemalink-engine/pkg/logging"
	"github.com/schemalink/schemalink-engine/pkg/mcp"
	"github.com/schemalink/schemalink-engine/pkg/mcp/tools"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
	"github.com/schemalink/schemalink-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	seedPath := flag.String("seed", "", "load a YAML catalog seed file at startup")
	flag.Parse()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Host),
		zap.String("embeddings_model", cfg.Embeddings.Model),
		zap.Bool("redis_enabled", cfg.Redis.Host != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Migrations run through database/sql (required by golang-migrate).
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection",
			zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		// Connection errors echo the DSN; scrub credentials before logging.
		logger.Fatal("Failed to connect to database",
			zap.String("dsn", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis",
			zap.String("error", logging.SanitizeError(err)))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	embeddingClient, err := llm.NewClient(&cfg.Embeddings, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding client", zap.Error(err))
	}

	// Repositories
	datasourceRepo := repositories.NewDatasourceRepository(db)
	tableRepo := repositories.NewTableRepository(db)
	columnRepo := repositories.NewColumnRepository(db)
	edgeRepo := repositories.NewEdgeRepository(db)
	metricRepo := repositories.NewMetricRepository(db)
	synonymRepo := repositories.NewSynonymRepository(db)
	ruleRepo := repositories.NewContextRuleRepository(db)
	valueRepo := repositories.NewCategoricalValueRepository(db)
	exampleRepo := repositories.NewExampleQueryRepository(db)

	// Services
	embeddingCache := services.NewEmbeddingCache(embeddingClient,
		datasourceRepo, tableRepo, columnRepo, edgeRepo,
		metricRepo, synonymRepo, ruleRepo, exampleRepo, logger)
	queryEmbedder := services.NewQueryEmbedder(embeddingClient, redisClient, cfg.Redis.TTL(), logger)
	searchService := services.NewSearchService(cfg.Search, queryEmbedder,
		datasourceRepo, tableRepo, columnRepo, edgeRepo, metricRepo,
		synonymRepo, ruleRepo, valueRepo, exampleRepo, logger)
	pathFinder := services.NewPathFinder(cfg.Graph, datasourceRepo, tableRepo, edgeRepo, logger)
	contextResolver := services.NewContextResolver(cfg.Resolver, searchService,
		datasourceRepo, tableRepo, columnRepo, edgeRepo, metricRepo, valueRepo, logger)

	if *seedPath != "" {
		seeder := services.NewSeedService(embeddingCache,
			datasourceRepo, tableRepo, columnRepo, edgeRepo, metricRepo,
			synonymRepo, ruleRepo, valueRepo, exampleRepo,
			cfg.Resolver.MaxConcurrent, logger)
		if err := seeder.SeedFromFile(ctx, *seedPath); err != nil {
			logger.Fatal("Failed to seed catalog", zap.String("path", *seedPath), zap.Error(err))
		}
	}

	mux := http.NewServeMux()

	// HTTP handlers
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSearchHandler(searchService, logger).RegisterRoutes(mux)
	handlers.NewGraphHandler(pathFinder, logger).RegisterRoutes(mux)
	handlers.NewContextHandler(contextResolver, logger).RegisterRoutes(mux)

	// MCP server over streamable HTTP
	mcpServer := mcp.NewServer("schemalink-engine", cfg.Version, logger)
	tools.RegisterSearchTools(mcpServer.MCP(), &tools.SearchToolDeps{
		SearchService: searchService,
		Logger:        logger,
	})
	tools.RegisterPathTools(mcpServer.MCP(), &tools.PathToolDeps{
		PathFinder: pathFinder,
		Logger:     logger,
	})
	tools.RegisterContextTools(mcpServer.MCP(), &tools.ContextToolDeps{
		Resolver: contextResolver,
		Logger:   logger,
	})
	mux.Handle("/mcp", mcpServer.NewStreamableHTTPServer())

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting schemalink-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
