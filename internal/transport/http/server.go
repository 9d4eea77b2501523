package http

import (
	"github.com/gin-gonic/gin"

	"caffmed-api/internal/bootstrap"
	"caffmed-api/internal/transport/http/handler"
	"caffmed-api/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(
		middleware.RequestLogger(app.Logger),
		middleware.Recovery(app.Logger),
		middleware.CORS(),
	)
	// The size gate is enforced per request; keep multipart parsing in memory
	// up to the same bound.
	router.MaxMultipartMemory = app.Config.Upload.MaxBytes

	maxBytes := app.Config.Upload.MaxBytes
	healthHandler := handler.NewHealthHandler(app)
	predictHandler := handler.NewPredictHandler(app.Predictor, maxBytes, app.Logger)
	modelHandler := handler.NewModelHandler(app.Config.Model, app.Model, app.Predictor, maxBytes)
	operatorHandler := handler.NewOperatorHandler(app.Auth, app.History, app.Logger)
	limit := middleware.ConcurrencyLimit(app.Config.App.MaxConcurrency)

	// Routes are served at the root and under /api/v1.
	for _, group := range []*gin.RouterGroup{&router.RouterGroup, router.Group("/api/v1")} {
		group.GET("/health", healthHandler.Check)
		group.GET("/model/info", modelHandler.Info)
		group.POST("/model/check", limit, modelHandler.Check)
		group.POST("/predict", limit, predictHandler.Predict)

		group.POST("/auth/token", operatorHandler.Login)
		group.GET("/history", middleware.AuthJWT(app.Config.Auth.JWTSecret), operatorHandler.History)
	}

	return router
}
