package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/virulabs/nexus/internal/agent"
	"github.com/virulabs/nexus/internal/auth"
	"github.com/virulabs/nexus/internal/autopilot"
	"github.com/virulabs/nexus/internal/config"
	"github.com/virulabs/nexus/internal/deploy"
	"github.com/virulabs/nexus/internal/gateway"
	"github.com/virulabs/nexus/internal/generation"
	"github.com/virulabs/nexus/internal/metrics"
	"github.com/virulabs/nexus/internal/rag"
	"github.com/virulabs/nexus/internal/store"

	_ "github.com/virulabs/nexus/docs" // swagger docs
)

// @title Nexus API
// @version 1.0
// @description Local-first AI software engineer backend
// @description
// @description Routes natural-language instructions to specialist personas, applies
// @description generated file and command actions inside project workspaces, and runs
// @description autonomous autopilot missions against a local model server.

// @contact.name API Support
// @contact.email support@virulabs.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:5000
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	// Initialize OpenTelemetry
	if err := initTracer(); err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}

	cfg := config.Load()

	// Connect to PostgreSQL with retry logic
	log.Println("Connecting to PostgreSQL database...")
	var pool *pgxpool.Pool
	var err error

	// Add a retry loop for the initial connection
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(context.Background())
			if err == nil {
				break
			}
		}
		log.Printf("Waiting for database... (attempt %d/10): %v", i+1, err)
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}

	defer pool.Close()
	log.Println("Connected to PostgreSQL database")

	st := store.New(pool)
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	if err := os.MkdirAll(cfg.WorkspaceRoot, 0o755); err != nil {
		log.Fatalf("Failed to create workspace root: %v", err)
	}

	// Initialize JWT manager
	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to initialize JWT manager: %v", err)
	}

	// Generation backend, personas, orchestrator
	gen := generation.NewClient(cfg.AICoreURL, cfg.DefaultModel, cfg.EmbedModel)
	personas := agent.NewPersonaStore(cfg.PersonaFile())
	actions := agent.NewActionExecutor(cfg.WorkspaceRoot)
	orchestrator := agent.NewOrchestrator(personas, gen, actions)

	// Knowledge store and preview deployments
	knowledge := rag.NewStore(cfg.KnowledgeFile(), gen)
	deployments := deploy.NewRegistry(cfg.WorkspaceRoot, cfg.ServeCommand)

	// Autopilot engine
	missionMetrics, err := metrics.NewMissionMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize mission metrics: %v", err)
	}
	engine := autopilot.NewEngine(projectRegistry{st}, st.MissionLog(), orchestrator, gen, cfg.WorkspaceRoot, missionMetrics)

	// Gateway layer
	handler := gateway.NewHandler(cfg, st, jwtManager, orchestrator, personas, gen, knowledge, deployments, engine)
	missionStream := gateway.NewMissionStream(st, jwtManager)

	// Setup Gin router
	router := gin.Default()

	// Add structured JSON logging middleware
	router.Use(structuredLoggingMiddleware())

	// Health checks MUST be at the root for the WebService standard
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		// Check database connectivity for readiness
		if err := pool.Ping(context.Background()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// API routes
	api := router.Group("/api")

	// Public routes (no authentication required)
	api.POST("/auth/register", handler.Register)
	api.POST("/auth/login", handler.Login)

	// Health check (public) - keep for backward compatibility
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Swagger documentation (public)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes (require JWT authentication)
	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager))

	// Chat routes
	protected.POST("/chat", handler.Chat)
	protected.GET("/chat/history", handler.History)
	protected.POST("/vision/analyze", handler.AnalyzeImage)

	// Project and file routes
	protected.POST("/projects", handler.CreateProject)
	protected.GET("/projects", handler.ListProjects)
	protected.GET("/files", handler.ListFiles)
	protected.GET("/files/content", handler.ReadFile)
	protected.POST("/files/content", handler.WriteFile)

	// Persona routes
	protected.GET("/agents", handler.ListAgents)
	protected.POST("/agents", handler.SaveAgents)

	// Knowledge routes
	protected.POST("/rag/ingest", handler.IngestDocument)
	protected.GET("/rag/stats", handler.KnowledgeStats)
	protected.GET("/rag/graph", handler.KnowledgeGraph)

	// Deployment routes
	protected.POST("/deploy/:projectId", handler.Deploy)
	protected.POST("/deploy/:projectId/stop", handler.StopDeploy)

	// Autopilot routes
	protected.POST("/autopilot/start", handler.StartMission)

	// Admin routes
	protected.GET("/admin/users", handler.ListUsers)
	protected.POST("/admin/broadcast", handler.Broadcast)
	protected.POST("/admin/tier", handler.SetTier)
	protected.GET("/db/stats", handler.DBStats)

	// WebSocket routes (token via query parameter)
	api.GET("/missions/:projectId/stream", missionStream.Stream)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute, // Synchronous generation calls can run to the model timeout
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting Nexus API server on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// projectRegistry adapts the store to the autopilot's project lookup.
type projectRegistry struct {
	store *store.Store
}

func (r projectRegistry) GetProject(ctx context.Context, id string) (*autopilot.Project, error) {
	project, err := r.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return &autopilot.Project{ID: project.ID, Path: project.Path}, nil
}

// initTracer initializes OpenTelemetry tracing
func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return nil
}

// structuredLoggingMiddleware provides structured JSON logging for all requests
func structuredLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Calculate latency
		latency := time.Since(start)

		// Get user ID from context if available
		userID, _ := c.Get("user_id")

		// Build log entry
		logEntry := map[string]interface{}{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		// Add user ID if authenticated
		if userID != nil {
			logEntry["user_id"] = userID
		}

		// Add error if present
		if len(c.Errors) > 0 {
			logEntry["errors"] = c.Errors.String()
		}

		// Output as JSON
		logJSON, _ := json.Marshal(logEntry)
		log.Println(string(logJSON))
	}
}
