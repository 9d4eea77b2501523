package response

import "github.com/gin-gonic/gin"

// PredictResponse is the body of every /predict reply. Error is always
// present, as null on success.
type PredictResponse struct {
	Success    bool     `json:"success"`
	Predicted  string   `json:"predicted,omitempty"`
	Prediction *float64 `json:"prediction,omitempty"`
	Error      *string  `json:"error"`
}

func Predicted(c *gin.Context, label string, confidence float64) {
	c.JSON(200, PredictResponse{
		Success:    true,
		Predicted:  label,
		Prediction: &confidence,
	})
}

// Rejected reports a request that never reached the model.
func Rejected(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, PredictResponse{
		Success: false,
		Error:   &message,
	})
}

// Failed reports a verdict that carries an error; confidence is always zero.
func Failed(c *gin.Context, httpStatus int, message string) {
	zero := 0.0
	c.JSON(httpStatus, PredictResponse{
		Success:    false,
		Prediction: &zero,
		Error:      &message,
	})
}

// Error is the shape used by the operator endpoints.
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{
		"success": false,
		"error":   message,
	})
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}
