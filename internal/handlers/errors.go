package handlers

import (
	"errors"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/photogate/backend/internal/config"
	"github.com/photogate/backend/internal/models"
	"github.com/photogate/backend/internal/pipeline"
	"github.com/photogate/backend/internal/services"
)

// APIError carries an HTTP status alongside a user-facing message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

func NewAPIError(status int, message string) *APIError {
	return &APIError{StatusCode: status, Message: message}
}

// respondError maps an error onto the wire shape {error:true, message,
// stack?}. Stacks are always logged and returned only in development.
func respondError(c *gin.Context, cfg *config.Config, err error) {
	status := http.StatusInternalServerError
	message := "Server Error"

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
		message = apiErr.Message
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
		message = "Image not found"
	case errors.Is(err, services.ErrAlreadyProcessed):
		status = http.StatusBadRequest
		message = "Image has already been processed"
	case errors.Is(err, pipeline.ErrUnavailable):
		status = http.StatusServiceUnavailable
		message = "Service is shutting down"
	}

	stack := string(debug.Stack())
	log.Printf("http: %d %s: %v\n%s", status, message, err, stack)

	body := gin.H{"error": true, "message": message}
	if cfg.IsDevelopment() {
		body["stack"] = stack
	}
	c.JSON(status, body)
}
