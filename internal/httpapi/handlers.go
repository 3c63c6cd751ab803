package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/abhisek/lingoflow/internal/conversation"
	"github.com/abhisek/lingoflow/internal/store"
)

type turnRequest struct {
	ScenarioID string `json:"scenario_id"`
	Message    string `json:"message"`
}

type scenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type historyDetailResponse struct {
	ID               int64           `json:"id"`
	ScenarioID       string          `json:"scenario_id"`
	Completed        bool            `json:"completed"`
	Summary          *string         `json:"summary"`
	PracticeLanguage string          `json:"practice_language"`
	Model            string          `json:"model"`
	Timestamp        time.Time       `json:"timestamp"`
	Conversation     []store.Message `json:"conversation"`
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

func historyID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid history id")
	}
	return id, nil
}

func (s *Server) getSettings(c echo.Context) error {
	st, err := s.deps.Settings.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) updateSettings(c echo.Context) error {
	var patch store.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest("invalid settings body")
	}
	patch.Theme = strings.TrimSpace(patch.Theme)
	patch.Model = strings.TrimSpace(patch.Model)
	patch.PracticeLanguage = strings.TrimSpace(patch.PracticeLanguage)
	patch.UILanguage = strings.TrimSpace(patch.UILanguage)
	if err := s.deps.Settings.Update(c.Request().Context(), patch, 0); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) listModels(c echo.Context) error {
	models := s.deps.Generation.ListModels(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{"models": models})
}

func (s *Server) listScenarios(c echo.Context) error {
	list, err := s.deps.Catalog.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"scenarios": list})
}

func (s *Server) generateScenarios(c echo.Context) error {
	if _, err := s.deps.Catalog.Regenerate(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) retireScenario(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return badRequest("scenario id is required")
	}
	if err := s.deps.Conversations.Retire(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) chatTurn(c echo.Context) error {
	var req turnRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid turn body")
	}
	if strings.TrimSpace(req.ScenarioID) == "" || strings.TrimSpace(req.Message) == "" {
		return badRequest("scenario_id and message are required")
	}

	res, err := s.deps.Conversations.Turn(c.Request().Context(), req.ScenarioID, req.Message)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "scenario not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) bindScenario(c echo.Context) (string, error) {
	var req scenarioRequest
	if err := c.Bind(&req); err != nil {
		return "", badRequest("invalid body")
	}
	id := strings.TrimSpace(req.ScenarioID)
	if id == "" {
		return "", badRequest("scenario_id is required")
	}
	return id, nil
}

func (s *Server) chatAbandon(c echo.Context) error {
	id, err := s.bindScenario(c)
	if err != nil {
		return err
	}
	if err := s.deps.Conversations.Abandon(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) chatHint(c echo.Context) error {
	id, err := s.bindScenario(c)
	if err != nil {
		return err
	}
	hint, err := s.deps.Conversations.Hint(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "scenario not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"hint": hint})
}

func (s *Server) listHistory(c echo.Context) error {
	list, err := s.deps.Conversations.Manager().ListCompleted(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"history": list})
}

func (s *Server) getHistory(c echo.Context) error {
	id, err := historyID(c)
	if err != nil {
		return err
	}
	d, err := s.deps.Conversations.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, historyDetailResponse{
		ID:               d.ID,
		ScenarioID:       d.ScenarioID,
		Completed:        d.Completed,
		Summary:          d.Summary,
		PracticeLanguage: d.PracticeLanguage,
		Model:            d.Model,
		Timestamp:        d.Timestamp,
		Conversation:     d.Messages,
	})
}

// getSummary returns the stored summary, generating it on first request.
// Generation failures and live conversations yield a null summary.
func (s *Server) getSummary(c echo.Context) error {
	id, err := historyID(c)
	if err != nil {
		return err
	}
	summary, err := s.deps.Conversations.Summary(c.Request().Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return err
	case errors.Is(err, conversation.ErrNotCompleted):
		return c.JSON(http.StatusOK, map[string]any{"summary": nil})
	case err != nil:
		s.log.Warn("summary unavailable", zap.Int64("history_id", id), zap.Error(err))
		return c.JSON(http.StatusOK, map[string]any{"summary": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) deleteHistory(c echo.Context) error {
	id, err := historyID(c)
	if err != nil {
		return err
	}
	if err := s.deps.Conversations.Manager().DeleteOne(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) clearHistory(c echo.Context) error {
	n, err := s.deps.Conversations.Manager().DeleteAllCompleted(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "deleted": n})
}
