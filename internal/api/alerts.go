package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AaronLay10/SentientDialogue/internal/log"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

const (
	AlertMQTTDisconnected    = "mqtt_disconnected"
	AlertPostgresUnavailable = "postgres_unavailable"
)

// AlertPayload is the JSON body posted to the webhook.
type AlertPayload struct {
	Project   string                 `json:"project"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AlertConfig is read from the environment by InitAlerts.
type AlertConfig struct {
	WebhookURL              string        `env:"DIALOGUE_ALERT_WEBHOOK_URL"`
	MQTTDisconnectDelay     time.Duration `env:"DIALOGUE_MQTT_ALERT_DELAY" envDefault:"30s"`
	PostgresDisconnectDelay time.Duration `env:"DIALOGUE_POSTGRES_ALERT_DELAY" envDefault:"5s"`
}

// outage tracks one dependency and decides when to alert about it.
type outage struct {
	event    string
	severity string
	label    string
	delay    time.Duration

	down  bool
	since time.Time
	sent  bool
}

// observe records a probe result taken at now and returns the alert to send,
// if any.
func (o *outage) observe(connected bool, now time.Time) *AlertPayload {
	if connected {
		recovered := o.down && o.sent
		o.down, o.sent, o.since = false, false, time.Time{}
		if recovered {
			return &AlertPayload{
				Event:    o.event,
				Severity: SeverityInfo,
				Message:  o.label + " connection restored",
				Details:  map[string]interface{}{"recovered_at": now.UTC().Format(time.RFC3339)},
			}
		}
		return nil
	}

	if !o.down {
		o.down, o.since = true, now
	}
	if o.sent || now.Sub(o.since) < o.delay {
		return nil
	}
	o.sent = true
	return &AlertPayload{
		Event:    o.event,
		Severity: o.severity,
		Message:  o.label + " unavailable",
		Details: map[string]interface{}{
			"disconnected_since":   o.since.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(now.Sub(o.since).Seconds()),
		},
	}
}

var (
	alertMu         sync.Mutex
	alertConfig     AlertConfig
	alertsReady     bool
	mqttOutage      *outage
	postgresOutage  *outage
	alertHTTPClient = &http.Client{Timeout: 10 * time.Second}
	alertNow        = time.Now
)

// InitAlerts reads the alert settings. Without a webhook URL alerts are
// only logged.
func InitAlerts() error {
	var cfg AlertConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse alert env: %w", err)
	}

	alertMu.Lock()
	defer alertMu.Unlock()
	alertConfig = cfg
	mqttOutage = &outage{event: AlertMQTTDisconnected, severity: SeverityWarning, label: "MQTT broker", delay: cfg.MQTTDisconnectDelay}
	postgresOutage = &outage{event: AlertPostgresUnavailable, severity: SeverityCritical, label: "PostgreSQL", delay: cfg.PostgresDisconnectDelay}
	alertsReady = true

	if cfg.WebhookURL != "" {
		log.WithComponent("alerts").Info("webhook alerts enabled",
			slog.Duration("mqtt_delay", cfg.MQTTDisconnectDelay),
			slog.Duration("postgres_delay", cfg.PostgresDisconnectDelay))
	}
	return nil
}

// GetAlertWebhookURL returns the configured webhook URL.
func GetAlertWebhookURL() string {
	alertMu.Lock()
	defer alertMu.Unlock()
	return alertConfig.WebhookURL
}

// SendAlert posts an alert to the webhook in the background, or logs it
// when no webhook is configured.
func SendAlert(p AlertPayload) {
	alertMu.Lock()
	url := alertConfig.WebhookURL
	alertMu.Unlock()

	p.Project = GetProjectID()
	if p.Project == "" {
		p.Project = "unknown"
	}
	if p.Timestamp == "" {
		p.Timestamp = alertNow().UTC().Format(time.RFC3339)
	}

	if url == "" {
		log.WithComponent("alerts").Warn("alert",
			slog.String("event", p.Event),
			slog.String("severity", p.Severity),
			slog.String("msg", p.Message),
			slog.Any("details", p.Details))
		return
	}
	go sendWebhook(url, p)
}

func sendWebhook(url string, p AlertPayload) {
	logger := log.WithComponent("alerts")
	body, err := json.Marshal(p)
	if err != nil {
		logger.Error("marshal alert", slog.Any("error", err))
		return
	}

	resp, err := alertHTTPClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Error("webhook post failed", slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Error("webhook rejected alert", slog.Int("status", resp.StatusCode))
	}
}

// CheckAndAlertMQTT records the broker state and alerts once it has been
// down longer than the configured delay, and again when it recovers.
func CheckAndAlertMQTT(connected bool) {
	checkOutage(func() *outage { return mqttOutage }, connected)
}

// CheckAndAlertPostgres is CheckAndAlertMQTT for the event log database.
func CheckAndAlertPostgres(connected bool) {
	checkOutage(func() *outage { return postgresOutage }, connected)
}

func checkOutage(get func() *outage, connected bool) {
	alertMu.Lock()
	if !alertsReady {
		alertMu.Unlock()
		return
	}
	alert := get().observe(connected, alertNow())
	alertMu.Unlock()

	if alert != nil {
		SendAlert(*alert)
	}
}
