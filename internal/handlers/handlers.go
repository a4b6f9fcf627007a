package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/grovia/internal/inference"
	"github.com/example/grovia/internal/usecase"
)

// MaxUploadSize is the default cap on a single uploaded image.
const MaxUploadSize = 5 << 20

// Detector runs the detection pipeline for one upload.
type Detector interface {
	Detect(ctx context.Context, sub usecase.Submission) (*usecase.Detection, error)
}

// ModelDescriber reports which model backs the detector.
type ModelDescriber interface {
	Info() inference.Info
}

// HistoryService serves a user's detection history.
type HistoryService interface {
	List(ctx context.Context, userID string, q usecase.HistoryQuery) (*usecase.HistoryPage, error)
	Detail(ctx context.Context, userID string, id uint, timezone string) (*usecase.HistoryDetail, error)
	Delete(ctx context.Context, userID string, id uint) error
	Stats(ctx context.Context, userID string) (*usecase.HistoryStats, error)
}

// KnowledgeService serves the disease knowledge base.
type KnowledgeService interface {
	Diseases(ctx context.Context, search, category string) ([]usecase.DiseaseSummary, error)
	Disease(ctx context.Context, diseaseID string) (*usecase.DiseaseDetail, error)
	Treatment(ctx context.Context, diseaseID string) *usecase.Treatment
}

// Services groups the use cases behind the HTTP API.
type Services struct {
	Detector  Detector
	Model     ModelDescriber
	History   HistoryService
	Knowledge KnowledgeService
}

// Options tunes the HTTP layer. Zero values select defaults; a nil Metrics
// handler leaves /metrics unregistered and an empty UploadDir disables the
// static uploads route.
type Options struct {
	MaxUploadSize      int64
	RateLimitPerMinute int
	UploadDir          string
	Metrics            http.Handler
	Logger             *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Services, authMiddleware gin.HandlerFunc, opts Options) {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = MaxUploadSize
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	router.Use(requestID(), accessLog(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.UploadDir != "" {
		router.Static("/uploads", opts.UploadDir)
	}

	api := router.Group("/api/v1")

	detection := &detectionHandler{
		detector:  svc.Detector,
		model:     svc.Model,
		knowledge: svc.Knowledge,
		maxSize:   opts.MaxUploadSize,
		logger:    logger,
	}
	limiter := newUserRateLimiter(opts.RateLimitPerMinute)
	api.POST("/detection/detect", authMiddleware, limiter.middleware(), detection.detect)
	api.GET("/detection/treatment/:disease_id", detection.treatment)
	api.GET("/detection/model-info", detection.modelInfo)

	history := &historyHandler{service: svc.History}
	historyGroup := api.Group("/history", authMiddleware)
	historyGroup.GET("", history.list)
	historyGroup.GET("/stats/summary", history.stats)
	historyGroup.GET("/:id", history.detail)
	historyGroup.DELETE("/:id", history.delete)

	knowledge := &knowledgeHandler{service: svc.Knowledge}
	api.GET("/knowledge/diseases", knowledge.list)
	api.GET("/knowledge/diseases/:disease_id", knowledge.detail)
	api.GET("/knowledge/categories", knowledge.categories)
	api.GET("/knowledge/severity-levels", knowledge.severityLevels)
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "detail": detail})
}
