package api

import (
	"net/http"

	"github.com/cascadehq/cascade/internal/model"
)

// actionTypesResponse is the JSON response for GET /v1/actions.
type actionTypesResponse struct {
	Actions []string `json:"actions"`
}

func (s *Server) handleListActionTypes(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, actionTypesResponse{Actions: model.ActionTypes()})
}
