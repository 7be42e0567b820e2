package httpserver

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/shunguan/voteable/internal/platform/errors"
)

type createVoteeRequest struct {
	Type string               `json:"type"`
	Refs map[string]uuid.UUID `json:"refs"`
}

func (s *Server) registerVoteeRoutes() {
	s.echo.POST("/api/votees", s.handleCreateVotee)
	s.echo.GET("/api/votees/:id", s.handleGetVotee)
	s.echo.DELETE("/api/votees/:id", s.handleDeleteVotee)
}

func (s *Server) handleCreateVotee(c echo.Context) error {
	var req createVoteeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Type == "" {
		return apperrors.ValidationError("type is required")
	}

	votee, err := s.app.CreateVotee(c.Request().Context(), req.Type, req.Refs)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, votee); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetVotee(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	votee, err := s.app.GetVotee(c.Request().Context(), id)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, votee); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteVotee(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.DeleteVotee(c.Request().Context(), id); err != nil {
		return err
	}

	if err := c.NoContent(http.StatusNoContent); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	return nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid UUID format").WithContext(name, raw)
	}
	return id, nil
}
