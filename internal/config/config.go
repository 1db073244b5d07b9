// Package config loads project.yaml and the environment overrides applied
// on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/SentientDialogue/internal/compiler"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

const (
	DefaultUIPort            = 8080
	DefaultClientID          = "sentient-dialogue"
	DefaultInputTopic        = "dialogue/input"
	DefaultDisplayTopic      = "dialogue/display"
	DefaultStageTopic        = "dialogue/stage"
	DefaultRegistrationTopic = "dialogue/handlers/register"
	DefaultLocale            = "en-US"
)

type ProjectConfig struct {
	Version int `yaml:"version"`
	Project struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	Network struct {
		UIPort  int    `yaml:"ui_port"`
		MQTTURL string `yaml:"mqtt_url"`
	} `yaml:"network"`
	Compile struct {
		UseTranslationKeys bool   `yaml:"use_translation_keys"`
		MaxChoices         int    `yaml:"max_choices"`
		DialogueKeyPrefix  string `yaml:"dialogue_key_prefix"`
		OptionKeyPrefix    string `yaml:"option_key_prefix"`
	} `yaml:"compile"`
	Tables struct {
		Name      string `yaml:"name"`
		Dialogue  string `yaml:"dialogue"`
		Selection string `yaml:"selection"`
		Dir       string `yaml:"dir"`
		Locale    string `yaml:"locale"`
	} `yaml:"tables"`
	Storage struct {
		AssetPath  string `yaml:"asset_path"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	MQTT struct {
		ClientID          string   `yaml:"client_id"`
		InputTopic        string   `yaml:"input_topic"`
		DisplayTopic      string   `yaml:"display_topic"`
		StageTopic        string   `yaml:"stage_topic"`
		RegistrationTopic string   `yaml:"registration_topic"`
		RequiredEvents    []string `yaml:"required_events"`
	} `yaml:"mqtt"`

	// dir is the directory project.yaml was loaded from; relative paths
	// resolve against it.
	dir string
}

// EnvOverrides are settings the environment may force over project.yaml.
type EnvOverrides struct {
	UIPort     int    `env:"DIALOGUE_UI_PORT"`
	MQTTURL    string `env:"MQTT_URL"`
	AssetPath  string `env:"DIALOGUE_ASSET"`
	SQLitePath string `env:"DIALOGUE_SQLITE"`
	Locale     string `env:"DIALOGUE_LOCALE"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseProjectConfig(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

func ParseProjectConfig(b []byte) (*ProjectConfig, error) {
	var cfg ProjectConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported project.yaml version: %d", cfg.Version)
	}
	if cfg.Compile.MaxChoices < 0 {
		return nil, fmt.Errorf("compile.max_choices must not be negative")
	}
	if cfg.Tables.Locale != "" {
		if _, err := language.Parse(cfg.Tables.Locale); err != nil {
			return nil, fmt.Errorf("tables.locale: %w", err)
		}
	}
	return &cfg, nil
}

// ApplyEnv overrides fields set in the environment.
func (c *ProjectConfig) ApplyEnv() error {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env overrides: %w", err)
	}
	c.Apply(o)
	return nil
}

// Apply overrides fields that are set in o.
func (c *ProjectConfig) Apply(o EnvOverrides) {
	if o.UIPort != 0 {
		c.Network.UIPort = o.UIPort
	}
	if o.MQTTURL != "" {
		c.Network.MQTTURL = o.MQTTURL
	}
	if o.AssetPath != "" {
		c.Storage.AssetPath = o.AssetPath
	}
	if o.SQLitePath != "" {
		c.Storage.SQLitePath = o.SQLitePath
	}
	if o.Locale != "" {
		c.Tables.Locale = o.Locale
	}
}

// UIPort returns the configured UI port, defaulting to 8080 if not set.
func (c *ProjectConfig) UIPort() int {
	if c.Network.UIPort == 0 {
		return DefaultUIPort
	}
	return c.Network.UIPort
}

// ProjectID returns project.id, or "default".
func (c *ProjectConfig) ProjectID() string {
	if c.Project.ID == "" {
		return "default"
	}
	return c.Project.ID
}

// CompileOptions converts the compile and tables sections.
func (c *ProjectConfig) CompileOptions() compiler.Options {
	opts := compiler.DefaultOptions()
	opts.UseTranslationKeys = c.Compile.UseTranslationKeys
	if c.Compile.MaxChoices > 0 {
		opts.MaxChoices = c.Compile.MaxChoices
	}
	if c.Compile.DialogueKeyPrefix != "" {
		opts.DialogueKeyPrefix = c.Compile.DialogueKeyPrefix
	}
	if c.Compile.OptionKeyPrefix != "" {
		opts.OptionKeyPrefix = c.Compile.OptionKeyPrefix
	}
	opts.Tables = c.ScenarioTables()
	return opts
}

func (c *ProjectConfig) ScenarioTables() scenario.Tables {
	return scenario.Tables{
		Name:      c.Tables.Name,
		Dialogue:  c.Tables.Dialogue,
		Selection: c.Tables.Selection,
	}
}

// Locale returns the fallback locale of the string tables.
func (c *ProjectConfig) Locale() language.Tag {
	if c.Tables.Locale == "" {
		return language.MustParse(DefaultLocale)
	}
	return language.MustParse(c.Tables.Locale)
}

// TablesDir returns the string table directory, or "" if none is configured.
func (c *ProjectConfig) TablesDir() string { return c.resolve(c.Tables.Dir) }

func (c *ProjectConfig) AssetPath() string { return c.resolve(c.Storage.AssetPath) }

func (c *ProjectConfig) SQLitePath() string { return c.resolve(c.Storage.SQLitePath) }

func (c *ProjectConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// MQTTSettings is the mqtt section with defaults filled in.
type MQTTSettings struct {
	ClientID          string
	InputTopic        string
	DisplayTopic      string
	StageTopic        string
	RegistrationTopic string
	RequiredEvents    []string
}

func (c *ProjectConfig) MQTTSettings() MQTTSettings {
	return MQTTSettings{
		ClientID:          orDefault(c.MQTT.ClientID, DefaultClientID),
		InputTopic:        orDefault(c.MQTT.InputTopic, DefaultInputTopic),
		DisplayTopic:      orDefault(c.MQTT.DisplayTopic, DefaultDisplayTopic),
		StageTopic:        orDefault(c.MQTT.StageTopic, DefaultStageTopic),
		RegistrationTopic: orDefault(c.MQTT.RegistrationTopic, DefaultRegistrationTopic),
		RequiredEvents:    append([]string(nil), c.MQTT.RequiredEvents...),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
