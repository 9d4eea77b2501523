package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"caffmed-api/internal/app"
	"caffmed-api/internal/config"
	"caffmed-api/internal/inference"
)

type ModelHandler struct {
	cfg      config.ModelConfig
	model    *inference.Handle
	service  *app.PredictService
	maxBytes int64
}

func NewModelHandler(cfg config.ModelConfig, model *inference.Handle, service *app.PredictService, maxBytes int64) *ModelHandler {
	return &ModelHandler{
		cfg:      cfg,
		model:    model,
		service:  service,
		maxBytes: maxBytes,
	}
}

// Info describes the configured model. It does not depend on whether the model
// actually loaded.
func (h *ModelHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"model_name": h.cfg.Name,
		"version":    h.cfg.Version,
		"classes":    h.cfg.Classes,
		"input_size": []int{h.cfg.InputSize, h.cfg.InputSize, 3},
		"model_type": h.cfg.Type,
	})
}

type modelCheckResult struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Error      *string `json:"error"`
}

// Check classifies the raw request body, skipping the cache and the history.
func (h *ModelHandler) Check(c *gin.Context) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, app.NewError(app.KindPayloadTooLarge,
				fmt.Sprintf("File size too large (max %s)", formatBytes(h.maxBytes)), err))
			return
		}
		writeError(c, app.NewError(app.KindClientInput, "Could not read request body", err))
		return
	}

	v := h.service.CheckRaw(data)
	result := modelCheckResult{Class: v.Label, Confidence: v.Confidence}
	if v.Failed() {
		result.Error = &v.Error
	}

	status := "Model is loaded and ready for predictions."
	if !h.model.Ready() {
		status = "Model is not loaded."
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"model_loaded": h.model.Ready(),
		"result":       result,
	})
}
