package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"caffmed-api/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Check always answers 200; callers read status and model_loaded.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	if !h.app.Model.Ready() {
		status = "unhealthy"
	}

	body := gin.H{
		"status":       status,
		"model_loaded": h.app.Model.Ready(),
		"service":      h.app.Config.App.Name,
		"version":      h.app.Config.App.Version,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
	}
	if deps := h.dependencies(ctx); len(deps) > 0 {
		body["dependencies"] = deps
	}
	c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) dependencies(ctx context.Context) gin.H {
	deps := gin.H{}
	if h.app.Redis != nil {
		deps["redis"] = h.checkRedis(ctx)
	}
	if h.app.DB != nil {
		deps["history_db"] = h.checkDB(ctx)
	}
	if h.app.MQConn != nil {
		deps["rabbitmq"] = h.checkRabbitMQ()
	}
	return deps
}

func (h *HealthHandler) checkDB(ctx context.Context) dependencyStatus {
	sqlDB, err := h.app.DB.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}
