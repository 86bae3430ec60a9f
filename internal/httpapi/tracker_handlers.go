package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/slanglab/internal/tracker"
)

type trackerRunRequest struct {
	TermID string `json:"term_id"`
}

type trackerRunResponse struct {
	Success bool `json:"success"`
	tracker.RunSummary
}

func (s *Server) handleTrackerRun(c echo.Context) error {
	var req trackerRunRequest
	if err := c.Bind(&req); err != nil {
		return rpcError(c, http.StatusBadRequest, "invalid JSON body")
	}
	termID := strings.TrimSpace(req.TermID)
	if termID == "" {
		return rpcError(c, http.StatusBadRequest, "term_id is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.opts.RunTimeout)
	defer cancel()

	summary, err := s.runner.Run(ctx, termID)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			return rpcError(c, http.StatusNotFound, err.Error())
		}
		s.logger.Error().Err(err).Str("term_id", termID).Msg("tracker run failed")
		return rpcError(c, http.StatusInternalServerError, "tracker run failed")
	}

	return c.JSON(http.StatusOK, trackerRunResponse{
		Success:    true,
		RunSummary: summary,
	})
}
