package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/playback"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
	"github.com/AaronLay10/SentientDialogue/internal/storage/postgres"
)

func text(guid, dialogue string, next ...string) scenario.Line {
	return scenario.Line{GUID: guid, Next: next, Payload: scenario.TextPayload{
		Speaker:  scenario.InlineText("Guard"),
		Dialogue: scenario.InlineText(dialogue),
	}}
}

// newTestPlayer installs a runtime over scenario 7:
//
//	t1 -> o1 -[0]-> t2
//	         -[1]-> t3
func newTestPlayer(t *testing.T) *playback.Runtime {
	t.Helper()
	s := scenario.NewStore()
	s.AddLine(7, text("t1", "Halt!", "o1"))
	s.AddLine(7, scenario.Line{GUID: "o1", Next: []string{"t2", "t3"}, Payload: scenario.SelectPayload{
		Options: []scenario.Text{scenario.InlineText("Friend"), scenario.InlineText("Foe")}}})
	s.AddLine(7, text("t2", "Welcome."))
	s.AddLine(7, text("t3", "Begone!"))
	s.Finalize()

	rt := playback.NewRuntime(s)
	SetPlayer(rt)
	withAuth(t, nil)
	t.Cleanup(func() { SetPlayer(nil) })
	return rt
}

func doJSON(t *testing.T, h http.HandlerFunc, method, path, body string) (*httptest.ResponseRecorder, PlayResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h(w, req)

	var resp PlayResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w, resp
}

func setReadiness(player, mqtt, mqttOpt, pg, pgOpt bool) {
	readiness.mu.Lock()
	readiness.playerReady = player
	readiness.mqttConnected = mqtt
	readiness.mqttOptional = mqttOpt
	readiness.postgresConnected = pg
	readiness.postgresOptional = pgOpt
	readiness.mu.Unlock()
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "dialogue" {
		t.Errorf("unexpected health response %+v", resp)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		player    bool
		mqtt      bool
		mqttOpt   bool
		pg        bool
		pgOpt     bool
		wantCode  int
		check     string
		wantCheck string
	}{
		{"all ready", true, true, false, true, false, http.StatusOK, "player", "ok"},
		{"player not ready", false, true, false, true, false, http.StatusServiceUnavailable, "player", "not_ready"},
		{"optional mqtt down", true, false, true, true, false, http.StatusOK, "mqtt", "unavailable"},
		{"required mqtt down", true, false, false, true, false, http.StatusServiceUnavailable, "mqtt", "not_connected"},
		{"optional postgres down", true, true, false, false, true, http.StatusOK, "postgres", "unavailable"},
		{"required postgres down", true, true, false, false, false, http.StatusServiceUnavailable, "postgres", "not_connected"},
	}
	t.Cleanup(func() { setReadiness(false, false, true, false, true) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setReadiness(tt.player, tt.mqtt, tt.mqttOpt, tt.pg, tt.pgOpt)

			w := httptest.NewRecorder()
			readyHandler(w, httptest.NewRequest("GET", "/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			var resp ReadinessResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Ready != (tt.wantCode == http.StatusOK) {
				t.Errorf("ready = %v", resp.Ready)
			}
			if got := resp.Checks[tt.check].Status; got != tt.wantCheck {
				t.Errorf("expected %s status %q, got %q", tt.check, tt.wantCheck, got)
			}
			if !resp.Ready && resp.NotReadyMsg == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestEventsFromMemory(t *testing.T) {
	events.Clear()
	for i := 0; i < 3; i++ {
		events.Emit("info", "line.shown", "", map[string]interface{}{"i": i})
	}

	w := httptest.NewRecorder()
	eventsHandler(w, httptest.NewRequest("GET", "/events?limit=2", nil))

	var got []events.Event
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 || got[1].Fields["i"] != float64(2) {
		t.Errorf("expected last 2 events, got %+v", got)
	}

	w = httptest.NewRecorder()
	eventsHandler(w, httptest.NewRequest("GET", "/events?limit=x", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

type mockEventLog struct {
	rows        []postgres.EventRow
	err         error
	lastLimit   int
	lastSession string
}

func (m *mockEventLog) Query(limit int) ([]postgres.EventRow, error) {
	m.lastLimit = limit
	return m.rows, m.err
}

func (m *mockEventLog) QuerySession(sessionID string, limit int) ([]postgres.EventRow, error) {
	m.lastSession = sessionID
	m.lastLimit = limit
	return m.rows, m.err
}

func TestEventsFromLog(t *testing.T) {
	SetEventLog(nil)
	w := httptest.NewRecorder()
	eventsHandler(w, httptest.NewRequest("GET", "/events?source=log", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without event log, got %d", w.Code)
	}

	el := &mockEventLog{rows: []postgres.EventRow{{EventID: 9, Event: "scenario.started", Timestamp: time.Now()}}}
	SetEventLog(el)
	t.Cleanup(func() { SetEventLog(nil) })

	w = httptest.NewRecorder()
	eventsHandler(w, httptest.NewRequest("GET", "/events?source=log&limit=10&session=abc", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rows []postgres.EventRow
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(rows) != 1 || rows[0].EventID != 9 {
		t.Errorf("unexpected rows %+v", rows)
	}
	if el.lastSession != "abc" || el.lastLimit != 10 {
		t.Errorf("expected session query abc/10, got %q/%d", el.lastSession, el.lastLimit)
	}

	el.err = errors.New("connection reset")
	w = httptest.NewRecorder()
	eventsHandler(w, httptest.NewRequest("GET", "/events?source=log", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on query error, got %d", w.Code)
	}
}

func TestScenariosEndpoint(t *testing.T) {
	newTestPlayer(t)

	w := httptest.NewRecorder()
	scenariosHandler(w, httptest.NewRequest("GET", "/scenarios", nil))

	var resp ScenariosResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Scenarios) != 1 || resp.Scenarios[0] != 7 {
		t.Errorf("expected [7], got %v", resp.Scenarios)
	}
}

func TestPlayFlow(t *testing.T) {
	newTestPlayer(t)
	events.Clear()

	w, resp := doJSON(t, playStartHandler, "POST", "/play/start", `{"scenario_id":7}`)
	if w.Code != http.StatusOK || !resp.OK {
		t.Fatalf("start failed: %d %s", w.Code, resp.Error)
	}
	if resp.Status.Current == nil || resp.Status.Current.Dialogue != "Halt!" {
		t.Fatalf("expected first line, got %+v", resp.Status.Current)
	}

	_, resp = doJSON(t, playAdvanceHandler, "POST", "/play/advance", "")
	if resp.Status.Current == nil || len(resp.Status.Current.Options) != 2 {
		t.Fatalf("expected options line, got %+v", resp.Status.Current)
	}

	w, resp = doJSON(t, playAdvanceHandler, "POST", "/play/advance", "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 advancing past options, got %d (%s)", w.Code, resp.Error)
	}

	w, _ = doJSON(t, playSelectHandler, "POST", "/play/select", `{"index":5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad index, got %d", w.Code)
	}

	_, resp = doJSON(t, playSelectHandler, "POST", "/play/select", `{"index":1}`)
	if resp.Status.Current == nil || resp.Status.Current.Dialogue != "Begone!" {
		t.Fatalf("expected second branch, got %+v", resp.Status.Current)
	}
	if len(resp.Status.Selections) != 1 || resp.Status.Selections[0] != 1 {
		t.Errorf("expected selections [1], got %v", resp.Status.Selections)
	}

	_, resp = doJSON(t, playAdvanceHandler, "POST", "/play/advance", "")
	if resp.Status.Active {
		t.Error("expected scenario to be complete")
	}

	w, _ = doJSON(t, playStopHandler, "POST", "/play/stop", "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 stopping with nothing active, got %d", w.Code)
	}
}

func TestPlayRequestErrors(t *testing.T) {
	newTestPlayer(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		method  string
		body    string
		want    int
	}{
		{"start wrong method", playStartHandler, "GET", "", http.StatusMethodNotAllowed},
		{"start invalid json", playStartHandler, "POST", "{", http.StatusBadRequest},
		{"start missing id", playStartHandler, "POST", `{}`, http.StatusBadRequest},
		{"start unknown scenario", playStartHandler, "POST", `{"scenario_id":99}`, http.StatusNotFound},
		{"select missing index", playSelectHandler, "POST", `{}`, http.StatusBadRequest},
		{"select nothing active", playSelectHandler, "POST", `{"index":0}`, http.StatusConflict},
		{"status wrong method", playStatusHandler, "POST", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, tt.handler, tt.method, "/play", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d (%s)", tt.want, w.Code, resp.Error)
			}
			if resp.OK {
				t.Error("expected ok=false")
			}
		})
	}
}

func TestPlayWithoutPlayer(t *testing.T) {
	SetPlayer(nil)
	w, _ := doJSON(t, playAdvanceHandler, "POST", "/play/advance", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestRoutesRequireAuthForPlay(t *testing.T) {
	newTestPlayer(t)
	withAuth(t, fullAuth())
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/play/start", "application/json", strings.NewReader(`{"scenario_id":7}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("POST", srv.URL+"/play/start", strings.NewReader(`{"scenario_id":7}`))
	req.SetBasicAuth("operator", "opsecret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with operator credentials, got %d", resp.StatusCode)
	}

	for _, path := range []string{"/health", "/scenarios", "/"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}

	resp, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rt := newTestPlayer(t)
	InitMetrics()
	SetProjectID("village")
	if err := rt.StartScenario(7); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	metricsHandler(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	for _, want := range []string{
		`dialogue_scenario_active{project="village"`,
		"# TYPE dialogue_events_total counter",
		"dialogue_scenarios_loaded",
		"dialogue_ws_clients",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
	if !strings.Contains(body, `version=`) {
		t.Error("metrics missing version label")
	}

	w = httptest.NewRecorder()
	metricsHandler(w, httptest.NewRequest("POST", "/metrics", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestPlayErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{scenario.ErrScenarioNotFound, http.StatusNotFound},
		{playback.ErrNotPlayable, http.StatusUnprocessableEntity},
		{playback.ErrRunaway, http.StatusUnprocessableEntity},
		{playback.ErrInvalidOption, http.StatusBadRequest},
		{playback.ErrChoicePending, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := playErrorStatus(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}
