package response

import (
	"net/http"

	"execsvc/pkg/errors"
	"execsvc/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorBody is the error envelope returned by the execution API.
// Error holds either a message string or a map of field name to messages.
type ErrorBody struct {
	Error interface{} `json:"error"`
}

// Success writes data as the response body without any envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error sends an error response
// It automatically extracts error code and message from the error
func Error(c *gin.Context, err error) {
	customErr := errors.GetError(err)
	status := customErr.Code.HTTPStatus()

	fields := []zap.Field{
		zap.Int("code", int(customErr.Code)),
		zap.String("message", customErr.Error()),
	}
	if len(customErr.Details) > 0 {
		fields = append(fields, zap.Any("details", customErr.Details))
	}
	if status >= http.StatusInternalServerError {
		fields = append(fields, zap.String("stack", customErr.Stack))
		logger.Error(c.Request.Context(), "request error", fields...)
	} else {
		logger.Warn(c.Request.Context(), "request rejected", fields...)
	}

	c.JSON(status, bodyFor(customErr))
}

// AbortWithError aborts the request and sends error response
func AbortWithError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func bodyFor(e *errors.Error) ErrorBody {
	if e.HasFields() {
		return ErrorBody{Error: e.Fields}
	}
	return ErrorBody{Error: e.Error()}
}
