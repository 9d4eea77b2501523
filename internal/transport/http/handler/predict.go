package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caffmed-api/internal/app"
	"caffmed-api/internal/transport/http/middleware"
	"caffmed-api/internal/transport/http/response"
	"caffmed-api/internal/vision"
)

const (
	formField = "image"
	// multipartSlack covers boundaries and part headers on top of the file.
	multipartSlack = 64 << 10
)

type PredictHandler struct {
	service  *app.PredictService
	maxBytes int64
	log      *zap.Logger
}

func NewPredictHandler(service *app.PredictService, maxBytes int64, log *zap.Logger) *PredictHandler {
	return &PredictHandler{
		service:  service,
		maxBytes: maxBytes,
		log:      log.Named("http.predict"),
	}
}

// Predict accepts a multipart form with the upload in field "image".
func (h *PredictHandler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartSlack)

	file, err := c.FormFile(formField)
	if err != nil {
		writeError(c, h.formError(c, err))
		return
	}
	if strings.TrimSpace(file.Filename) == "" {
		writeError(c, app.NewError(app.KindClientInput, "No selected file", nil))
		return
	}
	if !vision.Allowed(file.Filename) {
		writeError(c, app.NewError(app.KindClientInput,
			"Invalid file type. Allowed: "+strings.Join(vision.AllowedExtensions, ", "), nil))
		return
	}
	if file.Size > h.maxBytes {
		writeError(c, h.tooLarge())
		return
	}

	f, err := file.Open()
	if err != nil {
		writeError(c, app.NewError(app.KindInternal, "open upload", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		writeError(c, app.NewError(app.KindInternal, "read upload", err))
		return
	}
	if int64(len(data)) > h.maxBytes {
		writeError(c, h.tooLarge())
		return
	}

	res, err := h.service.Predict(c.Request.Context(), app.PredictInput{
		RequestID: middleware.RequestID(c),
		Filename:  file.Filename,
		Data:      data,
	})
	if err != nil {
		writeError(c, app.AsError(err))
		return
	}

	if res.Cached {
		c.Header("X-Cache", "HIT")
	}
	response.Predicted(c, res.Verdict.Label, res.Verdict.Confidence)
}

func (h *PredictHandler) formError(c *gin.Context, err error) *app.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return h.tooLarge()
	}
	// A file input submitted without a file arrives as a plain value with an
	// empty filename.
	if form := c.Request.MultipartForm; form != nil {
		if _, ok := form.Value[formField]; ok {
			return app.NewError(app.KindClientInput, "No selected file", err)
		}
	}
	return app.NewError(app.KindClientInput, "No image uploaded", err)
}

func (h *PredictHandler) tooLarge() *app.Error {
	return app.NewError(app.KindPayloadTooLarge,
		fmt.Sprintf("File size too large (max %s)", formatBytes(h.maxBytes)), nil)
}

func formatBytes(n int64) string {
	const mb = 1 << 20
	if n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
