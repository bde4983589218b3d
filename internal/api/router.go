package api

import (
	"github.com/gin-gonic/gin"
	"github.com/panodent/pano-gateway/internal/api/handler"
	"github.com/panodent/pano-gateway/internal/api/middleware"
	"github.com/panodent/pano-gateway/internal/service"
)

// RouterConfig holds router-level settings.
type RouterConfig struct {
	Mode string
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	analysis *service.AnalysisService,
	promoter *service.Promoter,
	cfg *RouterConfig,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	analyzeHandler := handler.NewAnalyzeHandler(analysis)
	jobHandler := handler.NewJobHandler(analysis)
	promoteHandler := handler.NewPromoteHandler(promoter)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Analysis submission (fast or sync depending on wait_for_result)
	r.POST("/analyze", analyzeHandler.Analyze)

	// Job lifecycle
	r.GET("/job-status/:id", jobHandler.Status)
	r.GET("/jobs", jobHandler.List)
	r.DELETE("/jobs/:id", jobHandler.Cancel)

	// Artifact inspection and promotion
	r.GET("/jobs/:id/artifacts", promoteHandler.ListArtifacts)
	r.POST("/promote", promoteHandler.Promote)

	return r
}
