package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/scores"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return NewError(ErrTypeInvalidJSON, "Request body is empty").Build()
		}
		return NewError(ErrTypeInvalidJSON, "Invalid JSON format").WithCause(err).Build()
	}
	if dec.More() {
		return NewError(ErrTypeInvalidJSON, "Request body must hold a single JSON object").Build()
	}
	return nil
}

// ValidateAction checks that a is one of the actions spec accepts
func ValidateAction(spec games.GameSpec, a games.Action) error {
	if a.Type == "" {
		return fmt.Errorf("action type is required")
	}
	if !slices.Contains(spec.Actions, a.Type) {
		return fmt.Errorf("%w: %q for %s", games.ErrUnknownAction, a.Type, spec.ID)
	}
	switch a.Type {
	case games.ActionReveal:
		if a.Card < 0 {
			return fmt.Errorf("card must be >= 0")
		}
	case games.ActionMove:
		if a.Position < 0 {
			return fmt.Errorf("position must be >= 0")
		}
	}
	return nil
}

// ValidateScoreRequest checks a reported score
func ValidateScoreRequest(game string, req ScoreRequest) error {
	if !games.Known(game) {
		return fmt.Errorf("%w: %q", scores.ErrUnknownGame, game)
	}
	if req.Score == nil {
		return fmt.Errorf("score is required")
	}
	if *req.Score < scores.MinScore || *req.Score > scores.MaxScore {
		return fmt.Errorf("score must be between %d and %d", scores.MinScore, scores.MaxScore)
	}
	return nil
}
