package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mehranjanati/saas-backend/internal/cache"
	"github.com/mehranjanati/saas-backend/internal/config"
	"github.com/mehranjanati/saas-backend/internal/workflow"
	"github.com/mehranjanati/saas-backend/pkg/models"
)

// OrderService is the order state machine surface the API depends on.
type OrderService interface {
	Submit(payload models.OrderPayload) string
	GetStatus(orderID string) (*models.OrderRecord, error)
	Cancel(orderID, reason string) error
}

// QueryExecutor issues queries and mutations against the remote backend.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, variables map[string]any, headers map[string]string) (json.RawMessage, error)
}

// WorkflowClient triggers workflows on the automation engine.
type WorkflowClient interface {
	Trigger(ctx context.Context, workflowID string, data map[string]any) *workflow.TriggerResult
	ExecutionStatus(ctx context.Context, executionID string) (*workflow.ExecutionStatus, error)
}

// Server represents the API server
type Server struct {
	router   *gin.Engine
	logger   *zap.Logger
	cfg      *config.Config
	store    *cache.Store
	metrics  *cache.Aggregator
	orders   OrderService
	executor QueryExecutor
	workflow WorkflowClient
}

// NewServer creates a new API server with injected collaborators.
func NewServer(
	logger *zap.Logger,
	cfg *config.Config,
	store *cache.Store,
	metrics *cache.Aggregator,
	orders OrderService,
	executor QueryExecutor,
	workflowClient WorkflowClient,
) *Server {
	server := &Server{
		logger:   logger,
		cfg:      cfg,
		store:    store,
		metrics:  metrics,
		orders:   orders,
		executor: executor,
		workflow: workflowClient,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	public := s.router.Group("/api/v1")
	{
		public.GET("/health", s.healthCheck)
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.POST("/token", s.issueToken)
	}

	protected := s.router.Group("/api/v1")
	protected.Use(s.authMiddleware())
	{
		orders := protected.Group("/orders")
		{
			orders.POST("", s.createOrder)
			orders.GET("", s.listOrders)
			orders.GET("/:id", s.getOrderStatus)
			orders.GET("/:id/history", s.getOrderHistory)
			orders.POST("/:id/cancel", s.cancelOrder)
		}

		wf := protected.Group("/workflow")
		{
			wf.POST("/trigger", s.triggerWorkflow)
			wf.GET("/status/:execution_id", s.workflowExecutionStatus)
			wf.POST("/webhook", s.workflowWebhook)
		}
	}

	admin := s.router.Group("/api/v1/admin")
	admin.Use(s.authMiddleware(), s.adminMiddleware())
	{
		adminCache := admin.Group("/cache")
		{
			adminCache.GET("/metrics", s.cacheMetrics)
			adminCache.GET("/metrics/query/:name", s.cacheQueryMetrics)
			adminCache.POST("/metrics/reset", s.resetCacheMetrics)
			adminCache.POST("/invalidate", s.invalidateCache)
		}
	}
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}
