package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/slanglab/internal/db"
	"horse.fit/slanglab/internal/reader"
)

const (
	defaultPreviewMaxChars = 1000
	minPreviewMaxChars     = 200
	maxPreviewMaxChars     = 4000
)

func (s *Server) handleTermSightings(c echo.Context) error {
	termID := strings.TrimSpace(c.Param("term_id"))
	if termID == "" {
		return failValidation(c, map[string]string{"term_id": "is required"})
	}

	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}
	minScore, err := parsePositiveInt(c.QueryParam("min_score"), 0, 0, 100)
	if err != nil {
		return failValidation(c, map[string]string{"min_score": err.Error()})
	}

	total, items, err := s.store.ListSightings(c.Request().Context(), db.SightingListOptions{
		TermID:   termID,
		MinScore: minScore,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Term not found")
		}
		s.logger.Error().Err(err).Str("term_id", termID).Msg("query sightings failed")
		return internalError(c, "Failed to load sightings")
	}
	if items == nil {
		items = []db.SightingListItem{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return success(c, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": total,
			"total_pages": totalPages,
		},
		"filters": map[string]any{
			"min_score": minScore,
		},
	})
}

func (s *Server) handleSightingPreview(c echo.Context) error {
	sightingID := strings.TrimSpace(c.Param("sighting_id"))
	if sightingID == "" {
		return failValidation(c, map[string]string{"sighting_id": "is required"})
	}

	maxChars, err := parsePositiveInt(
		c.QueryParam("max_chars"),
		defaultPreviewMaxChars,
		minPreviewMaxChars,
		maxPreviewMaxChars,
	)
	if err != nil {
		return failValidation(c, map[string]string{"max_chars": err.Error()})
	}

	ctx := c.Request().Context()
	sighting, err := s.store.GetSighting(ctx, sightingID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Sighting not found")
		}
		s.logger.Error().Err(err).Str("sighting_id", sightingID).Msg("query sighting failed")
		return internalError(c, "Failed to load sighting")
	}

	preview, err := s.opts.Preview(ctx, sighting.Link, sighting.Snippet, reader.Options{MaxChars: maxChars})
	if err != nil {
		s.logger.Warn().Err(err).Str("sighting_id", sightingID).Msg("sighting preview unavailable")
		return fail(c, http.StatusBadGateway, "Preview unavailable", map[string]any{"reason": err.Error()})
	}

	return success(c, map[string]any{
		"sighting": sighting,
		"preview":  preview,
	})
}
