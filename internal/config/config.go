package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"livescribe/internal/domain"
)

// Config stores runtime configuration for the capture engine and its surfaces.
type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Deepgram    DeepgramConfig    `yaml:"deepgram"`
	Scripted    ScriptedConfig    `yaml:"scripted"`
	Audio       AudioConfig       `yaml:"audio"`
	Session     SessionConfig     `yaml:"session"`
	Sampler     SamplerConfig     `yaml:"sampler"`
	Rules       RulesConfig       `yaml:"rules"`
	Store       StoreConfig       `yaml:"store"`
	User        UserConfig        `yaml:"user"`
	Haptics     HapticsConfig     `yaml:"haptics"`
	Bus         BusConfig         `yaml:"bus"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

type RecognitionConfig struct {
	Provider       string `yaml:"provider"` // deepgram, scripted
	Language       string `yaml:"language"`
	InterimResults bool   `yaml:"interim_results"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base_url"`
	Model       string `yaml:"model"`
	SmartFormat bool   `yaml:"smart_format"`
}

type ScriptedConfig struct {
	Phrases        []string `yaml:"phrases"`
	WordIntervalMS int      `yaml:"word_interval_ms"`
	DenyPermission bool     `yaml:"deny_permission"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type SessionConfig struct {
	ChunkSize          int  `yaml:"chunk_size"`
	StreamingGraceMS   int  `yaml:"streaming_grace_ms"`
	MergeOnStopFailure bool `yaml:"merge_on_stop_failure"`
	MergeOnTeardown    bool `yaml:"merge_on_teardown"`
}

type SamplerConfig struct {
	Mode        string  `yaml:"mode"` // recording, idle, always, off
	FFTSize     int     `yaml:"fft_size"`
	Bars        int     `yaml:"bars"`
	FPS         int     `yaml:"fps"`
	Smoothing   float64 `yaml:"smoothing"`
	MinDecibels float64 `yaml:"min_decibels"`
	MaxDecibels float64 `yaml:"max_decibels"`
	SampleRate  int     `yaml:"sample_rate"`
}

type RulesConfig struct {
	Path           string `yaml:"path"`
	IterationLimit int    `yaml:"iteration_limit"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type UserConfig struct {
	ID string `yaml:"id"`
}

type HapticsConfig struct {
	Driver         string `yaml:"driver"` // tone, log, off
	DefaultEnabled bool   `yaml:"default_enabled"`
	SaveGapMS      int    `yaml:"save_gap_ms"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Token          string   `yaml:"token"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	PublishLevels  bool     `yaml:"publish_levels"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"` // console, json
	LogPath       string `yaml:"log_path"`
	MetricsBind   string `yaml:"metrics_bind"`
	TraceExporter string `yaml:"trace_exporter"` // none, stdout, otlp
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	OTLPInsecure  bool   `yaml:"otlp_insecure"`
}

// Default returns the baseline configuration before file and environment overrides.
func Default() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "livescribe")

	return Config{
		Recognition: RecognitionConfig{
			Provider:       "deepgram",
			Language:       domain.DefaultLanguage,
			InterimResults: true,
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Scripted: ScriptedConfig{
			Phrases:        []string{"hello world", "this is a scripted transcript"},
			WordIntervalMS: 250,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Session: SessionConfig{
			ChunkSize:        4096,
			StreamingGraceMS: 1000,
		},
		Sampler: SamplerConfig{
			Mode:        "recording",
			FFTSize:     512,
			Bars:        10,
			FPS:         60,
			Smoothing:   0.8,
			MinDecibels: -100,
			MaxDecibels: -30,
			SampleRate:  44100,
		},
		Rules: RulesConfig{
			Path:           defaultRulesPath(home),
			IterationLimit: 30,
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "transcripts.db"),
		},
		User: UserConfig{
			ID: firstNonEmpty(os.Getenv("USER"), "local"),
		},
		Haptics: HapticsConfig{
			Driver:         "tone",
			DefaultEnabled: true,
			SaveGapMS:      120,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Host:           "127.0.0.1",
			Port:           4222,
			Servers:        []string{"nats://127.0.0.1:4222"},
			SubjectPrefix:  "livescribe",
			ConnectTimeout: 2000,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "livescribe",
			LogLevel:      "info",
			LogFormat:     "console",
			MetricsBind:   "",
			TraceExporter: "none",
			OTLPInsecure:  true,
		},
	}
}

// DefaultPath is the config file consulted when no path is given explicitly.
func DefaultPath() string {
	if path := strings.TrimSpace(os.Getenv("LIVESCRIBE_CONFIG")); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "livescribe", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Load resolves configuration from defaults, an optional YAML file and the environment.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Recognition.Provider, "LIVESCRIBE_RECOGNIZER")
	overrideString(&cfg.Recognition.Language, "LIVESCRIBE_LANGUAGE", "DEEPGRAM_LANGUAGE")
	overrideBool(&cfg.Recognition.InterimResults, "LIVESCRIBE_INTERIM_RESULTS")

	overrideString(&cfg.Deepgram.APIKey, "DEEPGRAM_API_KEY")
	overrideString(&cfg.Deepgram.APIBaseURL, "DEEPGRAM_API_BASE")
	overrideString(&cfg.Deepgram.Model, "DEEPGRAM_MODEL")
	overrideBool(&cfg.Deepgram.SmartFormat, "DEEPGRAM_SMART_FORMAT")

	overrideStringSlice(&cfg.Scripted.Phrases, "LIVESCRIBE_SCRIPTED_PHRASES", "|")
	overrideInt(&cfg.Scripted.WordIntervalMS, "LIVESCRIBE_SCRIPTED_WORD_INTERVAL_MS")
	overrideBool(&cfg.Scripted.DenyPermission, "LIVESCRIBE_SCRIPTED_DENY")

	overrideString(&cfg.Audio.RecorderCommand, "LIVESCRIBE_FFMPEG_COMMAND")
	overrideString(&cfg.Audio.InputFormat, "LIVESCRIBE_AUDIO_INPUT_FORMAT")
	overrideString(&cfg.Audio.InputDevice, "LIVESCRIBE_AUDIO_INPUT_DEVICE", "DEEPGRAM_PULSE_SOURCE")
	overrideInt(&cfg.Audio.SampleRate, "LIVESCRIBE_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "LIVESCRIBE_CHANNELS")

	overrideInt(&cfg.Session.ChunkSize, "LIVESCRIBE_AUDIO_CHUNK_SIZE")
	overrideInt(&cfg.Session.StreamingGraceMS, "LIVESCRIBE_STREAMING_GRACE_MS", "DEEPGRAM_STREAMING_GRACE_MS")
	overrideBool(&cfg.Session.MergeOnStopFailure, "LIVESCRIBE_MERGE_ON_STOP_FAILURE")
	overrideBool(&cfg.Session.MergeOnTeardown, "LIVESCRIBE_MERGE_ON_TEARDOWN")

	overrideString(&cfg.Sampler.Mode, "LIVESCRIBE_SAMPLER_MODE")
	overrideInt(&cfg.Sampler.FFTSize, "LIVESCRIBE_SAMPLER_FFT_SIZE")
	overrideInt(&cfg.Sampler.Bars, "LIVESCRIBE_SAMPLER_BARS")
	overrideInt(&cfg.Sampler.FPS, "LIVESCRIBE_SAMPLER_FPS")
	overrideFloat(&cfg.Sampler.Smoothing, "LIVESCRIBE_SAMPLER_SMOOTHING")

	overrideString(&cfg.Rules.Path, "LIVESCRIBE_RULES_FILE")
	overrideInt(&cfg.Rules.IterationLimit, "LIVESCRIBE_RULE_ITERATION_LIMIT")

	overrideString(&cfg.Store.Path, "LIVESCRIBE_STORE_PATH")
	overrideString(&cfg.User.ID, "LIVESCRIBE_USER_ID")

	overrideString(&cfg.Haptics.Driver, "LIVESCRIBE_HAPTICS_DRIVER")
	overrideBool(&cfg.Haptics.DefaultEnabled, "LIVESCRIBE_HAPTICS_ENABLED")

	overrideBool(&cfg.Bus.Enabled, "LIVESCRIBE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LIVESCRIBE_BUS_EMBEDDED")
	overrideString(&cfg.Bus.Host, "LIVESCRIBE_BUS_HOST")
	overrideInt(&cfg.Bus.Port, "LIVESCRIBE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LIVESCRIBE_BUS_SERVERS", ",")
	overrideString(&cfg.Bus.Token, "LIVESCRIBE_BUS_TOKEN")
	overrideString(&cfg.Bus.SubjectPrefix, "LIVESCRIBE_BUS_SUBJECT_PREFIX")
	overrideBool(&cfg.Bus.PublishLevels, "LIVESCRIBE_BUS_PUBLISH_LEVELS")

	overrideString(&cfg.Telemetry.LogLevel, "LIVESCRIBE_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "LIVESCRIBE_LOG_FORMAT")
	overrideString(&cfg.Telemetry.LogPath, "LIVESCRIBE_LOG_PATH")
	overrideString(&cfg.Telemetry.MetricsBind, "LIVESCRIBE_METRICS_BIND")
	overrideString(&cfg.Telemetry.TraceExporter, "LIVESCRIBE_TRACE_EXPORTER")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LIVESCRIBE_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LIVESCRIBE_OTLP_INSECURE")
}

// normalize replaces out-of-range numeric values with defaults.
func normalize(cfg *Config) {
	defaults := Default()
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults.Session.ChunkSize
	}
	if cfg.Session.StreamingGraceMS < 0 {
		cfg.Session.StreamingGraceMS = defaults.Session.StreamingGraceMS
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = defaults.Rules.IterationLimit
	}
	if cfg.Sampler.Bars <= 0 {
		cfg.Sampler.Bars = defaults.Sampler.Bars
	}
	if cfg.Sampler.FPS <= 0 {
		cfg.Sampler.FPS = defaults.Sampler.FPS
	}
	if cfg.Sampler.SampleRate <= 0 {
		cfg.Sampler.SampleRate = defaults.Sampler.SampleRate
	}
	if cfg.Haptics.SaveGapMS < 0 {
		cfg.Haptics.SaveGapMS = defaults.Haptics.SaveGapMS
	}
	cfg.Recognition.Provider = strings.ToLower(strings.TrimSpace(cfg.Recognition.Provider))
	cfg.Sampler.Mode = strings.ToLower(strings.TrimSpace(cfg.Sampler.Mode))
	cfg.Haptics.Driver = strings.ToLower(strings.TrimSpace(cfg.Haptics.Driver))
	cfg.Telemetry.TraceExporter = strings.ToLower(strings.TrimSpace(cfg.Telemetry.TraceExporter))
}

func validate(cfg Config) error {
	switch cfg.Recognition.Provider {
	case "deepgram", "scripted":
	default:
		return fmt.Errorf("recognition.provider must be deepgram or scripted, got %q", cfg.Recognition.Provider)
	}
	if strings.TrimSpace(cfg.Recognition.Language) == "" {
		return errors.New("recognition.language must not be empty")
	}
	switch cfg.Sampler.Mode {
	case "recording", "idle", "always", "off":
	default:
		return fmt.Errorf("sampler.mode must be recording, idle, always or off, got %q", cfg.Sampler.Mode)
	}
	if cfg.Sampler.Mode != "off" {
		if n := cfg.Sampler.FFTSize; n < 32 || n > 32768 || n&(n-1) != 0 {
			return fmt.Errorf("sampler.fft_size must be a power of two between 32 and 32768, got %d", n)
		}
		if cfg.Sampler.Smoothing < 0 || cfg.Sampler.Smoothing >= 1 {
			return errors.New("sampler.smoothing must be in [0, 1)")
		}
		if cfg.Sampler.MinDecibels >= cfg.Sampler.MaxDecibels {
			return errors.New("sampler.min_decibels must be below sampler.max_decibels")
		}
	}
	switch cfg.Haptics.Driver {
	case "tone", "log", "off":
	default:
		return fmt.Errorf("haptics.driver must be tone, log or off, got %q", cfg.Haptics.Driver)
	}
	switch cfg.Telemetry.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry.trace_exporter must be none, stdout or otlp, got %q", cfg.Telemetry.TraceExporter)
	}
	if cfg.Telemetry.TraceExporter == "otlp" && strings.TrimSpace(cfg.Telemetry.OTLPEndpoint) == "" {
		return errors.New("telemetry.otlp_endpoint is required for the otlp trace exporter")
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		return errors.New("store.path must not be empty")
	}
	if strings.TrimSpace(cfg.User.ID) == "" {
		return errors.New("user.id must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded && (cfg.Bus.Port < -1 || cfg.Bus.Port > 65535) {
			return errors.New("bus.port must be between -1 and 65535")
		}
		if !cfg.Bus.Embedded && len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when the embedded server is disabled")
		}
		if strings.TrimSpace(cfg.Bus.SubjectPrefix) == "" {
			return errors.New("bus.subject_prefix must not be empty")
		}
	}
	return nil
}

func defaultRulesPath(home string) string {
	return firstExisting(
		filepath.Join(home, ".config", "livescribe", "substitutions.rules"),
		filepath.Join(home, ".livescribe.rules"),
	)
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// overrideString applies the first non-empty environment key.
func overrideString(target *string, keys ...string) {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*target = value
			return
		}
	}
}

func overrideInt(target *int, keys ...string) {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
			return
		}
	}
}

func overrideFloat(target *float64, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		*target = parsed
	}
}

func overrideBool(target *bool, key string) {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		*target = true
	case "0", "false", "no", "off":
		*target = false
	}
}

func overrideStringSlice(target *[]string, key string, sep string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var trimmed []string
	for _, part := range strings.Split(value, sep) {
		if s := strings.TrimSpace(part); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) > 0 {
		*target = trimmed
	}
}
