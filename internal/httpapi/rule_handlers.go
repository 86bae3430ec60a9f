package httpapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/slanglab/internal/globaltime"
	payloadschema "horse.fit/slanglab/schema"
)

const maxRulesPayloadBytes = 1 << 20

func (s *Server) handleImportSourceRules(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRulesPayloadBytes+1))
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}
	if len(body) > maxRulesPayloadBytes {
		return fail(c, http.StatusRequestEntityTooLarge, "Payload too large", nil)
	}

	doc, err := payloadschema.ValidateSourceRulesPayload(body)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	imported, err := s.store.ImportSourceRules(c.Request().Context(), doc.Rules, globaltime.UTC())
	if err != nil {
		s.logger.Error().Err(err).Int("rules", len(doc.Rules)).Msg("import source rules failed")
		return internalError(c, "Failed to import source rules")
	}

	s.logger.Info().Int("rules", imported).Msg("source rules imported")
	return success(c, map[string]any{
		"imported": imported,
	})
}
