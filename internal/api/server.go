// Package api serves the player's HTTP surface: health and readiness probes,
// the event feed, metrics and the playback controls.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/log"
	"github.com/AaronLay10/SentientDialogue/internal/playback"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
	"github.com/AaronLay10/SentientDialogue/internal/storage/postgres"
	"github.com/AaronLay10/SentientDialogue/internal/version"
)

// Player is the playback surface the API drives. *playback.Runtime
// satisfies it.
type Player interface {
	StartScenario(id int) error
	Advance() error
	Select(i int) error
	Stop() error
	Scenarios() []int
	Status() playback.Status
}

// EventLog is the persisted event history. *postgres.Client satisfies it.
type EventLog interface {
	Query(limit int) ([]postgres.EventRow, error)
	QuerySession(sessionID string, limit int) ([]postgres.EventRow, error)
}

var (
	depsMu   sync.RWMutex
	player   Player
	eventLog EventLog
)

// SetPlayer sets the runtime behind the /play and /scenarios endpoints.
func SetPlayer(p Player) {
	depsMu.Lock()
	player = p
	depsMu.Unlock()
}

func getPlayer() Player {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return player
}

// SetEventLog enables ?source=log on /events.
func SetEventLog(l EventLog) {
	depsMu.Lock()
	eventLog = l
	depsMu.Unlock()
}

func getEventLog() EventLog {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return eventLog
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "dialogue",
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// eventsHandler returns recent events from memory, or from the persisted log
// with ?source=log. ?limit=N bounds the result and ?session=ID filters the
// log to one playback session.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, PlayResponse{Error: "method not allowed"})
		return
	}

	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, PlayResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	if q.Get("source") != "log" {
		writeJSON(w, http.StatusOK, events.RecentEvents(limit))
		return
	}

	el := getEventLog()
	if el == nil {
		writeJSON(w, http.StatusServiceUnavailable, PlayResponse{Error: "event log not configured"})
		return
	}

	var (
		rows []postgres.EventRow
		err  error
	)
	if session := q.Get("session"); session != "" {
		rows, err = el.QuerySession(session, limit)
	} else {
		rows, err = el.Query(limit)
	}
	if err != nil {
		log.WithComponent("api").Error("query event log", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, PlayResponse{Error: "event log query failed"})
		return
	}
	if rows == nil {
		rows = []postgres.EventRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type ScenariosResponse struct {
	Scenarios []int `json:"scenarios"`
}

func scenariosHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, PlayResponse{Error: "method not allowed"})
		return
	}
	p := getPlayer()
	if p == nil {
		writeJSON(w, http.StatusServiceUnavailable, PlayResponse{Error: "no scenarios loaded"})
		return
	}
	ids := p.Scenarios()
	if ids == nil {
		ids = []int{}
	}
	writeJSON(w, http.StatusOK, ScenariosResponse{Scenarios: ids})
}

// NewHandler builds the API's route table.
func NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", uiHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/events", eventsHandler)
	mux.HandleFunc("/ws/events", wsEventsHandler)
	mux.HandleFunc("/scenarios", scenariosHandler)
	mux.HandleFunc("/play/status", RequireAnyRole(playStatusHandler))
	mux.HandleFunc("/play/start", RequireAnyRole(playStartHandler))
	mux.HandleFunc("/play/advance", RequireAnyRole(playAdvanceHandler))
	mux.HandleFunc("/play/select", RequireAnyRole(playSelectHandler))
	mux.HandleFunc("/play/stop", RequireAnyRole(playStopHandler))
	return mux
}

// ListenAndServe serves the API on port until ctx is canceled, then shuts
// down gracefully. TLS is used when configured by InitTLS.
func ListenAndServe(ctx context.Context, port int) error {
	tlsCfg, err := LoadTLSConfig()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewHandler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger := log.WithComponent("api")
	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", slog.String("addr", srv.Addr), slog.Bool("tls", tlsCfg != nil))
		if tlsCfg != nil {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// websocket handlers exit once their subscriber channels close
		events.CloseAllSubscribers()
		return srv.Shutdown(shutdownCtx)
	}
}

// Start runs ListenAndServe in a goroutine. Errors are logged.
func Start(ctx context.Context, port int) {
	go func() {
		if err := ListenAndServe(ctx, port); err != nil {
			log.WithComponent("api").Error("api server error", slog.Any("error", err))
		}
	}()
}

// playErrorStatus maps playback errors onto HTTP status codes.
func playErrorStatus(err error) int {
	switch {
	case errors.Is(err, scenario.ErrScenarioNotFound):
		return http.StatusNotFound
	case errors.Is(err, playback.ErrNotPlayable),
		errors.Is(err, playback.ErrRunaway):
		return http.StatusUnprocessableEntity
	case errors.Is(err, playback.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrNoActiveScenario),
		errors.Is(err, playback.ErrChoicePending),
		errors.Is(err, playback.ErrNotAChoice):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
