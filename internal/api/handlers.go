package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

// CreateJobRequest is the body of POST /api/v1/jobs. Omitted fields use the
// server's extraction settings.
type CreateJobRequest struct {
	Path       string `json:"path"`
	Channel    *int   `json:"channel,omitempty"` // negative selects all channels
	QueueDepth *int   `json:"queue_depth,omitempty"`
	MaxRetries *int   `json:"max_retries,omitempty"`
}

// ErrorResponse represents a standardized error response for the API
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// HandleError logs err and writes it as an ErrorResponse.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("ip", c.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("API error", fields...)
	} else {
		s.log.Debug("API error", fields...)
	}

	return c.JSON(code, resp)
}

func (s *Server) createJob(c echo.Context) error {
	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "invalid request body", http.StatusBadRequest)
	}
	if req.Path == "" {
		return s.HandleError(c, nil, "path is required", http.StatusBadRequest)
	}
	info, err := os.Stat(req.Path)
	if err != nil {
		return s.HandleError(c, err, "audio file not accessible", http.StatusBadRequest)
	}
	if info.IsDir() {
		return s.HandleError(c, nil, "path is a directory", http.StatusBadRequest)
	}

	cfg := pipeline.ConfigFromSettings(&s.settings.Extraction)
	if req.Channel != nil {
		cfg.Channel = nil
		if *req.Channel >= 0 {
			ch := *req.Channel
			cfg.Channel = &ch
		}
	}
	if req.QueueDepth != nil {
		cfg.QueueDepth = *req.QueueDepth
	}
	if req.MaxRetries != nil {
		cfg.MaxRetries = *req.MaxRetries
	}
	if err := cfg.Validate(); err != nil {
		return s.HandleError(c, err, "invalid extraction parameters", http.StatusBadRequest)
	}

	view, err := s.jobs.Submit(req.Path, cfg)
	switch {
	case errors.Is(err, ErrTooManyJobs):
		return s.HandleError(c, err, "job limit reached, retry later", http.StatusTooManyRequests)
	case errors.Is(err, ErrShuttingDown):
		return s.HandleError(c, err, "server is shutting down", http.StatusServiceUnavailable)
	case err != nil:
		return s.HandleError(c, err, "failed to start job", http.StatusInternalServerError)
	}

	c.Response().Header().Set(echo.HeaderLocation, "/api/v1/jobs/"+view.ID)
	return c.JSON(http.StatusAccepted, view)
}

func (s *Server) listJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"jobs": s.jobs.List(),
	})
}

func (s *Server) getJob(c echo.Context) error {
	withRows, _ := strconv.ParseBool(c.QueryParam("rows"))
	view, err := s.jobs.Get(c.Param("id"), withRows)
	if err != nil {
		return s.HandleError(c, err, "job not found", http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) getJobRows(c echo.Context) error {
	view, err := s.jobs.Get(c.Param("id"), true)
	if err != nil {
		return s.HandleError(c, err, "job not found", http.StatusNotFound)
	}
	if view.Status != JobCompleted {
		return s.HandleError(c, nil, "job has no rows in status "+string(view.Status), http.StatusConflict)
	}
	rows := view.Rows
	if rows == nil {
		rows = []pipeline.FeatureRow{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":   view.ID,
		"rows": rows,
	})
}

func (s *Server) cancelJob(c echo.Context) error {
	view, err := s.jobs.Cancel(c.Param("id"))
	if err != nil {
		return s.HandleError(c, err, "job not found", http.StatusNotFound)
	}
	return c.JSON(http.StatusAccepted, view)
}
