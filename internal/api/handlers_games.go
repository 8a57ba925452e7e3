package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/scores"
)

// rejectInput answers a failed validation: domain sentinels keep their own
// status, anything else is a 400 on field.
func (s *Server) rejectInput(w http.ResponseWriter, r *http.Request, field string, err error) {
	if errors.Is(err, games.ErrUnknownGame) || errors.Is(err, games.ErrUnknownAction) || errors.Is(err, scores.ErrUnknownGame) {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.errorHandler.HandleValidationError(w, r, field, err.Error())
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GamesResponse{
		Games:   games.ListSpecs(),
		Version: Version,
	})
}

func (s *Server) handleCreateGameSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.games.Create(r.Context(), VisitorFrom(r.Context()), chi.URLParam(r, "game"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGetGameSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.games.Snapshot(VisitorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGameAction(w http.ResponseWriter, r *http.Request) {
	visitor := VisitorFrom(r.Context())
	id := chi.URLParam(r, "id")

	var action games.Action
	if err := decodeJSON(w, r, &action); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	current, err := s.games.Snapshot(visitor, id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	spec, _ := games.GetSpec(current.Game)
	if err := ValidateAction(spec, action); err != nil {
		s.rejectInput(w, r, "type", err)
		return
	}

	snap, err := s.games.Act(visitor, id, action)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCloseGameSession(w http.ResponseWriter, r *http.Request) {
	if err := s.games.Close(VisitorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScoreSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scores.Summary(r.Context(), VisitorFrom(r.Context()))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRecordScore(w http.ResponseWriter, r *http.Request) {
	game := chi.URLParam(r, "game")
	var req ScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if err := ValidateScoreRequest(game, req); err != nil {
		s.rejectInput(w, r, "score", err)
		return
	}

	visitor := VisitorFrom(r.Context())
	if err := s.scores.SetScore(r.Context(), visitor, game, *req.Score); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	summary, err := s.scores.Summary(r.Context(), visitor)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}
