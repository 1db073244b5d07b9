package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AaronLay10/SentientDialogue/internal/playback"
)

type StartRequest struct {
	ScenarioID int `json:"scenario_id"`
}

type SelectRequest struct {
	Index *int `json:"index"`
}

// PlayResponse is returned by every /play endpoint. Status is the runtime
// state after the command.
type PlayResponse struct {
	OK     bool             `json:"ok"`
	Error  string           `json:"error,omitempty"`
	Status *playback.Status `json:"status,omitempty"`
}

// playCommand checks the method and player, runs cmd and writes the result.
func playCommand(w http.ResponseWriter, r *http.Request, cmd func(Player) error) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, PlayResponse{Error: "method not allowed"})
		return
	}
	p := getPlayer()
	if p == nil {
		writeJSON(w, http.StatusServiceUnavailable, PlayResponse{Error: "no scenarios loaded"})
		return
	}
	if err := cmd(p); err != nil {
		var req badRequest
		if errors.As(err, &req) {
			writeJSON(w, http.StatusBadRequest, PlayResponse{Error: string(req)})
			return
		}
		writeJSON(w, playErrorStatus(err), PlayResponse{Error: err.Error()})
		return
	}
	st := p.Status()
	writeJSON(w, http.StatusOK, PlayResponse{OK: true, Status: &st})
}

type badRequest string

func (b badRequest) Error() string { return string(b) }

func playStartHandler(w http.ResponseWriter, r *http.Request) {
	playCommand(w, r, func(p Player) error {
		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return badRequest("invalid JSON")
		}
		if req.ScenarioID <= 0 {
			return badRequest("scenario_id required")
		}
		return p.StartScenario(req.ScenarioID)
	})
}

func playAdvanceHandler(w http.ResponseWriter, r *http.Request) {
	playCommand(w, r, Player.Advance)
}

func playSelectHandler(w http.ResponseWriter, r *http.Request) {
	playCommand(w, r, func(p Player) error {
		var req SelectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return badRequest("invalid JSON")
		}
		if req.Index == nil {
			return badRequest("index required")
		}
		return p.Select(*req.Index)
	})
}

func playStopHandler(w http.ResponseWriter, r *http.Request) {
	playCommand(w, r, Player.Stop)
}

func playStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, PlayResponse{Error: "method not allowed"})
		return
	}
	p := getPlayer()
	if p == nil {
		writeJSON(w, http.StatusServiceUnavailable, PlayResponse{Error: "no scenarios loaded"})
		return
	}
	st := p.Status()
	writeJSON(w, http.StatusOK, PlayResponse{OK: true, Status: &st})
}
