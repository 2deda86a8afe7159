package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/tastequest-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tastequest-backend/internal/http/middleware"
	"github.com/yungbote/tastequest-backend/internal/observability"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	// ServiceName enables otelgin spans when non-empty.
	ServiceName string

	QuestHandler  *httpH.QuestHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	quest := api.Group("/quest")
	quest.Use(httpMW.GuestToken())
	{
		if cfg.QuestHandler != nil {
			quest.POST("/stamps", cfg.QuestHandler.CollectStamp)
			quest.GET("/guests/:guest_id/progress", cfg.QuestHandler.GetProgress)
			quest.GET("/guests/:guest_id/stamps", cfg.QuestHandler.ListStamps)
			quest.GET("/leaderboard", cfg.QuestHandler.Leaderboard)
			quest.POST("/proofs/verify", cfg.QuestHandler.VerifyProof)
			quest.GET("/zones", cfg.QuestHandler.ListZones)
		}
	}

	return r
}
