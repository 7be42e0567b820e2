package httpserver

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/shunguan/voteable/internal/domain"
	apperrors "github.com/shunguan/voteable/internal/platform/errors"
	"github.com/shunguan/voteable/internal/voting"
)

// Revote and Unvote stay nil when omitted so the engine can derive its defaults.
type voteRequest struct {
	VoterID uuid.UUID `json:"voter_id"`
	Value   string    `json:"value"`
	Revote  *bool     `json:"revote"`
	Unvote  *bool     `json:"unvote"`
}

type propagationErrorResponse struct {
	RelatedType string    `json:"related_type"`
	ParentID    uuid.UUID `json:"parent_id"`
	Timeout     bool      `json:"timeout"`
	Error       string    `json:"error"`
}

type voteResponse struct {
	Applied           bool                       `json:"applied"`
	Transition        voting.Transition          `json:"transition"`
	Propagated        int                        `json:"propagated"`
	Skipped           int                        `json:"skipped"`
	PropagationErrors []propagationErrorResponse `json:"propagation_errors"`
}

type voteValueResponse struct {
	VoteeID uuid.UUID `json:"votee_id"`
	VoterID uuid.UUID `json:"voter_id"`
	Value   string    `json:"value"`
}

type votedByResponse struct {
	VoterID  uuid.UUID   `json:"voter_id"`
	Type     string      `json:"type"`
	Value    string      `json:"value"`
	VoteeIDs []uuid.UUID `json:"votee_ids"`
}

func (s *Server) registerVoteRoutes(limiter echo.MiddlewareFunc) {
	s.echo.POST("/api/votees/:id/votes", s.handleVote, limiter)
	s.echo.GET("/api/votees/:id/votes/:voter", s.handleGetVoteValue)
	s.echo.GET("/api/voters/:voter/votees", s.handleVotedBy)
}

func (s *Server) handleVote(c echo.Context) error {
	voteeID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var body voteRequest
	if err := c.Bind(&body); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if body.VoterID == uuid.Nil {
		return apperrors.ValidationError("voter_id is required")
	}
	value, err := domain.ParseVoteValue(body.Value)
	if err != nil {
		return err
	}

	res, err := s.app.Vote(c.Request().Context(), voting.Request{
		VoteeID: voteeID,
		VoterID: body.VoterID,
		Value:   value,
		Revote:  body.Revote,
		Unvote:  body.Unvote,
	})
	if err != nil {
		return err
	}

	resp := voteResponse{
		Applied:           res.Applied,
		Transition:        res.Transition,
		Propagated:        res.Propagated,
		Skipped:           res.Skipped,
		PropagationErrors: []propagationErrorResponse{},
	}
	for _, pe := range res.PropagationErrors() {
		resp.PropagationErrors = append(resp.PropagationErrors, propagationErrorResponse{
			RelatedType: pe.RelatedType,
			ParentID:    pe.ParentID,
			Timeout:     pe.Timeout(),
			Error:       pe.Err.Error(),
		})
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetVoteValue(c echo.Context) error {
	voteeID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	voterID, err := uuidParam(c, "voter")
	if err != nil {
		return err
	}

	value, err := s.app.VoteValue(c.Request().Context(), voteeID, voterID)
	if err != nil {
		return err
	}

	resp := voteValueResponse{VoteeID: voteeID, VoterID: voterID, Value: value.String()}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleVotedBy lists votees of ?type= the voter voted on, optionally narrowed by ?value=up|down.
func (s *Server) handleVotedBy(c echo.Context) error {
	voterID, err := uuidParam(c, "voter")
	if err != nil {
		return err
	}
	voteeType := c.QueryParam("type")
	if voteeType == "" {
		return apperrors.ValidationError("type query parameter is required")
	}
	value, err := domain.ParseVoteValue(c.QueryParam("value"))
	if err != nil {
		return err
	}

	ids, err := s.app.VotedBy(c.Request().Context(), voteeType, voterID, value)
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}

	resp := votedByResponse{VoterID: voterID, Type: voteeType, Value: value.String(), VoteeIDs: ids}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
