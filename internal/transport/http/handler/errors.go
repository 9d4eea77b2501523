package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"caffmed-api/internal/app"
	"caffmed-api/internal/transport/http/response"
)

// statusFor is the only place an error kind becomes an HTTP status. Decode
// failures and an unavailable model are data problems reported inside a 200.
func statusFor(kind app.Kind) int {
	switch kind {
	case app.KindClientInput:
		return http.StatusBadRequest
	case app.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case app.KindDecode:
		return http.StatusOK
	case app.KindModelUnavailable:
		return http.StatusOK
	case app.KindInternal:
		return http.StatusInternalServerError
	default:
		// unknown kinds are treated as internal
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err *app.Error) {
	status := statusFor(err.Kind)
	switch err.Kind {
	case app.KindClientInput, app.KindPayloadTooLarge:
		response.Rejected(c, status, err.Message)
	case app.KindDecode, app.KindModelUnavailable:
		response.Failed(c, status, err.Message)
	default:
		response.Rejected(c, status, "Internal server error")
	}
}
