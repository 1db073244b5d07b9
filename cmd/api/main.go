// Command api runs the dialogue player: it loads a compiled scenario asset,
// serves the HTTP API and event stream, publishes shown lines over MQTT and
// keeps the playback event log in Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"github.com/AaronLay10/SentientDialogue/internal/api"
	"github.com/AaronLay10/SentientDialogue/internal/config"
	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/log"
	"github.com/AaronLay10/SentientDialogue/internal/mqtt"
	"github.com/AaronLay10/SentientDialogue/internal/playback"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
	"github.com/AaronLay10/SentientDialogue/internal/storage/postgres"
	"github.com/AaronLay10/SentientDialogue/internal/storage/sqlite"
	"github.com/AaronLay10/SentientDialogue/internal/translation"
	"github.com/AaronLay10/SentientDialogue/internal/version"
)

const (
	healthInterval    = 5 * time.Second
	handlerCheckEvery = 5 * time.Second
)

func main() {
	configPath := flag.String("config", envOr("DIALOGUE_CONFIG", "project.yaml"), "project.yaml to load")
	assetName := flag.String("asset", "", "asset name in the SQLite store (default: project id)")
	flag.Parse()

	log.Init(log.FromEnv())
	logger := log.WithComponent("main")

	if err := run(*configPath, *assetName, logger); err != nil {
		logger.Error("player failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath, assetName string, logger *slog.Logger) error {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return fmt.Errorf("load project config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := loadStore(ctx, cfg, assetName)
	if err != nil {
		return err
	}

	rt := playback.NewRuntime(store)
	if lookup := loadLookup(cfg, store, logger); lookup != nil {
		rt.SetLookup(lookup)
	}

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "dialogue player starting", map[string]interface{}{
		"service":   "dialogue",
		"version":   version.Version,
		"hostname":  hostname,
		"pid":       os.Getpid(),
		"project":   cfg.ProjectID(),
		"scenarios": len(store.IDs()),
	})

	pg := openEventLog(cfg, rt, logger)
	if pg != nil {
		defer pg.Close()
	}

	mqttClient, monitor := startMQTT(ctx, cfg, rt)
	defer mqttClient.Disconnect()
	defer monitor.Stop()

	if err := api.InitAuth(); err != nil {
		return err
	}
	if err := api.InitTLS(); err != nil {
		return err
	}
	if err := api.InitAlerts(); err != nil {
		return err
	}
	api.InitMetrics()
	api.SetProjectID(cfg.ProjectID())
	api.SetPlayer(rt)
	api.SetPlayerReady(len(store.IDs()) > 0)

	var pgProbe api.Probe
	if pg != nil {
		api.SetPostgresOptional(false)
		pgProbe = func(ctx context.Context) bool { return pg.Ping(ctx) == nil }
	}
	api.StartHealthMonitor(ctx, healthInterval,
		func(context.Context) bool { return mqttClient.IsConnected() },
		pgProbe)

	err = api.ListenAndServe(ctx, cfg.UIPort())
	events.Emit("info", "system.shutdown", "dialogue player stopping", nil)
	return err
}

// loadStore reads the compiled asset from SQLite when configured, else from
// the JSON asset file.
func loadStore(ctx context.Context, cfg *config.ProjectConfig, assetName string) (*scenario.Store, error) {
	if cfg.Storage.SQLitePath != "" {
		path := cfg.SQLitePath()
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if assetName == "" {
			assetName = cfg.ProjectID()
		}
		store, err := db.LoadStore(ctx, assetName)
		if err != nil {
			return nil, fmt.Errorf("load asset %q from %s: %w", assetName, path, err)
		}
		return store, nil
	}

	if cfg.Storage.AssetPath == "" {
		return nil, fmt.Errorf("no asset configured: set storage.asset_path or storage.sqlite_path")
	}
	return scenario.LoadFile(cfg.AssetPath())
}

// loadLookup loads string tables for key-form text. Missing tables only
// matter for assets compiled with translation keys, so failures are logged.
func loadLookup(cfg *config.ProjectConfig, store *scenario.Store, logger *slog.Logger) scenario.Lookup {
	if cfg.Tables.Dir == "" {
		return nil
	}
	catalog, err := translation.LoadDir(cfg.TablesDir(), language.MustParse(config.DefaultLocale))
	if err != nil {
		logger.Warn("string tables unavailable", slog.String("dir", cfg.TablesDir()), slog.Any("error", err))
		return nil
	}

	tables := store.Tables()
	if tables == (scenario.Tables{}) {
		tables = cfg.ScenarioTables()
	}
	locale := catalog.Match(cfg.Locale().String())
	logger.Info("string tables loaded",
		slog.String("locale", locale.String()),
		slog.Int("locales", len(catalog.Locales())))
	return catalog.Localizer(locale, tables)
}

// openEventLog connects Postgres, routes events into it and restores the
// session that was playing when the player last stopped. Without Postgres
// the player runs with the in-memory buffer only.
func openEventLog(cfg *config.ProjectConfig, rt *playback.Runtime, logger *slog.Logger) *postgres.Client {
	pg, err := postgres.New(cfg.ProjectID())
	if err != nil {
		logger.Warn("postgres unavailable, event log disabled", slog.Any("error", err))
		return nil
	}

	state, restored, err := playback.RestoreFromEvents(pg, playback.DefaultRestoreLimit)
	if err != nil {
		logger.Error("restore from event log failed", slog.Any("error", err))
	} else if err := rt.ApplyRestoredState(state); err != nil {
		logger.Error("apply restored state failed", slog.Any("error", err))
	}

	events.SetSink(pg)
	api.SetEventLog(pg)
	playback.EmitStartupRestore(restored, state)
	return pg
}

// startMQTT wires the executor, handler monitor and input subscriber, then
// connects in the background.
func startMQTT(ctx context.Context, cfg *config.ProjectConfig, rt *playback.Runtime) (*mqtt.Client, *mqtt.Monitor) {
	settings := cfg.MQTTSettings()
	client := mqtt.NewClient(settings.ClientID, cfg.Network.MQTTURL)

	registry := mqtt.NewHandlerRegistry()
	monitor := mqtt.NewMonitor(registry, settings.RequiredEvents, 0)
	monitor.Start(handlerCheckEvery)

	rt.SetExecutor(playback.NewMQTTExecutor(client, registry, playback.Topics{
		Display: settings.DisplayTopic,
		Stage:   settings.StageTopic,
	}))

	sub := mqtt.NewSubscriber(client, rt, monitor)
	go client.StartWithRetry(ctx, func() error {
		if err := sub.SubscribeInput(settings.InputTopic); err != nil {
			return err
		}
		return sub.SubscribeRegistrations(settings.RegistrationTopic)
	})
	return client, monitor
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
