package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/version"
)

var metricsState = &MetricsState{}

// MetricsState holds process-level values for the /metrics endpoint.
type MetricsState struct {
	mu        sync.RWMutex
	startTime time.Time
	projectID string
}

// InitMetrics records the process start time. Call it once at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
}

// SetProjectID sets the project label used by metrics and alerts.
func SetProjectID(id string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.projectID = id
}

func GetProjectID() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.projectID
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler writes Prometheus text exposition format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	projectID := metricsState.projectID
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	var status statusSnapshot
	scenarios := 0
	if p := getPlayer(); p != nil {
		st := p.Status()
		status = statusSnapshot{active: st.Active, shown: st.LinesShown, selections: len(st.Selections)}
		scenarios = len(p.Scenarios())
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	labels := fmt.Sprintf(`project=%q,instance=%q,version=%q`, projectID, hostname, version.Version)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	writeMetric := func(name, mtype, help string, value interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	writeMetric("dialogue_uptime_seconds", "gauge",
		"Number of seconds since the player started", time.Since(startTime).Seconds())
	writeMetric("dialogue_scenarios_loaded", "gauge",
		"Number of scenarios in the loaded asset", scenarios)
	writeMetric("dialogue_scenario_active", "gauge",
		"Whether a scenario is playing (1) or not (0)", boolGauge(status.active))
	writeMetric("dialogue_session_lines_shown", "gauge",
		"Lines shown in the current session", status.shown)
	writeMetric("dialogue_session_selections", "gauge",
		"Options selected in the current session", status.selections)
	writeMetric("dialogue_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount())
	writeMetric("dialogue_mqtt_connected", "gauge",
		"Whether the MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected))
	writeMetric("dialogue_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolGauge(postgresConnected))
	writeMetric("dialogue_ws_clients", "gauge",
		"Number of active WebSocket client connections", events.SubscriberCount())
}

type statusSnapshot struct {
	active     bool
	shown      int
	selections int
}
