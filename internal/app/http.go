package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/tastequest-backend/internal/data/db"
	"github.com/yungbote/tastequest-backend/internal/http"
	httpH "github.com/yungbote/tastequest-backend/internal/http/handlers"
	"github.com/yungbote/tastequest-backend/internal/observability"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Quest  *httpH.QuestHandler
}

func wireHandlers(log *logger.Logger, services Services, store *db.Service, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.ReadinessCheck{
		"store": store.Ping,
	}
	if clients.Rewards != nil {
		checks["rewards"] = clients.Rewards.Ping
	}
	return Handlers{
		Health: httpH.NewHealthHandler(checks),
		Quest:  httpH.NewQuestHandler(log, services.Quest),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AllowedOrigins: cfg.AllowedOrigins,
		ServiceName:    serviceName,
		QuestHandler:   handlers.Quest,
		HealthHandler:  handlers.Health,
	})
}
