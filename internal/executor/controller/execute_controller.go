package controller

import (
	"context"
	"io"
	"net/http"

	"execsvc/internal/executor/sandbox/result"
	"execsvc/internal/executor/sandbox/spec"
	"execsvc/internal/executor/validation"
	pkgerrors "execsvc/pkg/errors"
	"execsvc/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Executor runs one validated request.
type Executor interface {
	Execute(ctx context.Context, req spec.ExecutionRequest) (result.Record, error)
}

// ExecuteController handles the execution HTTP endpoints.
type ExecuteController struct {
	executor  Executor
	validator *validation.Validator
}

// NewExecuteController creates a new ExecuteController.
func NewExecuteController(executor Executor, validator *validation.Validator) *ExecuteController {
	return &ExecuteController{executor: executor, validator: validator}
}

// Execute handles POST /execute.
func (h *ExecuteController) Execute(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.validator.MaxBodyBytes()))
	if err != nil {
		response.Error(c, pkgerrors.InvalidJSON())
		return
	}

	req, err := h.validator.Parse(body)
	if err != nil {
		response.Error(c, err)
		return
	}

	record, err := h.executor.Execute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, record)
}

// Healthz reports liveness.
func (h *ExecuteController) Healthz(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
