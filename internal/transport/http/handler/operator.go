package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caffmed-api/internal/app"
	"caffmed-api/internal/transport/http/response"
)

type OperatorHandler struct {
	auth    *app.AuthService
	history *app.HistoryService
	log     *zap.Logger
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

func NewOperatorHandler(auth *app.AuthService, history *app.HistoryService, log *zap.Logger) *OperatorHandler {
	return &OperatorHandler{
		auth:    auth,
		history: history,
		log:     log.Named("http.operator"),
	}
}

func (h *OperatorHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.auth.Login(app.LoginInput{Username: req.Username, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrAuthDisabled):
			response.Error(c, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, err.Error())
		default:
			h.log.Error("login failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	response.OK(c, result)
}

func (h *OperatorHandler) History(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	summary, err := h.history.Summary(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, app.ErrHistoryDisabled) {
			response.Error(c, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("load history failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.OK(c, summary)
}
