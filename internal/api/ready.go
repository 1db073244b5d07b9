package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
)

type readinessState struct {
	mu                sync.RWMutex
	playerReady       bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

var readiness = &readinessState{
	mqttOptional:     true,
	postgresOptional: true,
}

// SetPlayerReady marks whether a scenario asset is loaded and playable.
func SetPlayerReady(ready bool) {
	readiness.mu.Lock()
	readiness.playerReady = ready
	readiness.mu.Unlock()
}

func SetMQTTConnected(connected bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mu.Unlock()
}

// SetMQTTOptional controls whether a missing broker fails readiness.
func SetMQTTOptional(optional bool) {
	readiness.mu.Lock()
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

func SetPostgresConnected(connected bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.mu.Unlock()
}

// SetPostgresOptional controls whether a missing event log fails readiness.
func SetPostgresOptional(optional bool) {
	readiness.mu.Lock()
	readiness.postgresOptional = optional
	readiness.mu.Unlock()
}

type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func dependencyCheck(connected, optional bool) (CheckStatus, bool) {
	switch {
	case connected:
		return CheckStatus{Status: "ok", Optional: optional}, true
	case optional:
		return CheckStatus{Status: "unavailable", Optional: true}, true
	default:
		return CheckStatus{Status: "not_connected"}, false
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	playerReady := readiness.playerReady
	mqttCheck, mqttOK := dependencyCheck(readiness.mqttConnected, readiness.mqttOptional)
	pgCheck, pgOK := dependencyCheck(readiness.postgresConnected, readiness.postgresOptional)
	readiness.mu.RUnlock()

	resp := ReadinessResponse{
		Ready: true,
		Checks: map[string]CheckStatus{
			"player":   {Status: "ok"},
			"mqtt":     mqttCheck,
			"postgres": pgCheck,
		},
	}

	var failing []string
	if !playerReady {
		resp.Checks["player"] = CheckStatus{Status: "not_ready"}
		failing = append(failing, "player not ready")
	}
	if !mqttOK {
		failing = append(failing, "mqtt not connected")
	}
	if !pgOK {
		failing = append(failing, "postgres not connected")
	}

	w.Header().Set("Content-Type", "application/json")
	if len(failing) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = strings.Join(failing, "; ")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) bool

// StartHealthMonitor probes MQTT and Postgres every interval, records the
// results for /ready and /metrics, and raises alerts on long outages. A nil
// probe leaves its dependency untouched. It stops when ctx is done.
func StartHealthMonitor(ctx context.Context, interval time.Duration, mqttProbe, postgresProbe Probe) {
	check := func() {
		if mqttProbe != nil {
			up := mqttProbe(ctx)
			SetMQTTConnected(up)
			CheckAndAlertMQTT(up)
		}
		if postgresProbe != nil {
			pctx, cancel := context.WithTimeout(ctx, interval)
			up := postgresProbe(pctx)
			cancel()
			SetPostgresConnected(up)
			CheckAndAlertPostgres(up)
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		check()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}
