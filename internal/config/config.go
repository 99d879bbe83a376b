package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"zonewatch/internal/domain"
	"zonewatch/internal/templatefmt"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultHTTPListen       = ":8080"
	defaultHealthPath       = "/healthz"
	defaultReadyPath        = "/readyz"
	defaultMaxBodyBytes     = 1 << 20
	defaultDispatchSeconds  = 60
	defaultSessionTTLSec    = 86400
	defaultStoreDriver      = StoreDriverMemory
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultFeedStream       = "ZONEWATCH_FEED"
	defaultFeedSubjectBase  = "zonewatch.feed"
	defaultWebhookTimeout   = 10
	defaultBroadcastMessage = "[{{ upper .Priority }}] {{ .Title }}: {{ .Content }}"

	// ServiceModeSingle keeps one-process mode without NATS dependencies.
	ServiceModeSingle = "single"
	// ServiceModeNATS enables the NATS-backed change feed for dashboard clients.
	ServiceModeNATS = "nats"

	// StoreDriverMemory keeps all records in process memory.
	StoreDriverMemory = "memory"
	// StoreDriverSQLite persists records in one SQLite database file.
	StoreDriverSQLite = "sqlite"

	// NotifyChannelTelegram identifies Telegram transport.
	NotifyChannelTelegram = "telegram"
	// NotifyChannelWebhook identifies generic HTTP webhook transport.
	NotifyChannelWebhook = "webhook"
)

var (
	unsupportedFeedFixedKeysPattern = regexp.MustCompile(`(?si)\[\s*feed\s*\][^\[]*\b(?:stream|subject)\s*=`)
	unsupportedRolesTablePattern    = regexp.MustCompile(`(?mi)^\s*\[\s*auth\.roles?\s*\]`)
)

// Config holds service runtime settings.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	HTTP    HTTPConfig    `toml:"http"`
	Store   StoreConfig   `toml:"store"`
	Auth    AuthConfig    `toml:"auth"`
	Feed    FeedConfig    `toml:"feed"`
	Notify  NotifyConfig  `toml:"notify"`
}

// ServiceConfig contains process-level settings.
// Params: name, mode, and dispatcher polling interval.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name                string `toml:"name"`
	Mode                string `toml:"mode"`
	DispatchIntervalSec int    `toml:"dispatch_interval_sec"`
}

// HTTPConfig configures the REST API endpoint.
// Params: enable flag, listen address, probe paths, and body size limit.
// Returns: HTTP surface behavior.
type HTTPConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// StoreConfig selects the persistence backend.
// Params: driver name and SQLite file path.
// Returns: store backend selection.
type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// AuthConfig contains session and service-account settings.
// Params: session TTL and static bearer token list.
// Returns: authentication surface settings.
type AuthConfig struct {
	SessionTTLSec int                 `toml:"session_ttl_sec"`
	Token         []StaticTokenConfig `toml:"token"`
}

// StaticTokenConfig binds one long-lived bearer token to one user.
// Params: opaque token value, user identity, and optional seeded role.
// Returns: service-account credential entry.
type StaticTokenConfig struct {
	Token  string `toml:"token"`
	UserID string `toml:"user_id"`
	Role   string `toml:"role"`
}

// FeedConfig configures the change-notification feed; stream routing keys are runtime-fixed.
// Params: enable flag and NATS URL list.
// Returns: change feed publisher settings.
type FeedConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Stream        string   `toml:"-"`
	SubjectPrefix string   `toml:"-"`
}

// NotifyConfig defines outbound alert broadcast behavior.
// Params: per-channel transport settings.
// Returns: broadcast controls.
type NotifyConfig struct {
	Telegram TelegramNotifier `toml:"telegram"`
	Webhook  WebhookNotifier  `toml:"webhook"`
}

// NotifyRetry configures outbound delivery retries.
// Params: retry toggle, backoff, attempt limits, and logging.
// Returns: retry policy for broadcasts.
type NotifyRetry struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// TelegramNotifier defines Telegram broadcast channel settings.
// Params: enabled flag, bot token, chat ID, API base URL, message template, and retry policy.
// Returns: Telegram sender configuration.
type TelegramNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatID   string      `toml:"chat_id"`
	APIBase  string      `toml:"api_base"`
	Template string      `toml:"template"`
	Retry    NotifyRetry `toml:"retry"`
}

// WebhookNotifier defines generic outbound HTTP broadcast endpoint.
// Params: URL, method, timeout, optional static headers, message template, and retry policy.
// Returns: webhook sender configuration.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	TimeoutSec int               `toml:"timeout_sec"`
	Headers    map[string]string `toml:"headers"`
	Template   string            `toml:"template"`
	Retry      NotifyRetry       `toml:"retry"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DispatchInterval returns the dispatcher polling interval as a duration.
// Params: full runtime configuration snapshot.
// Returns: interval between scheduled alert scans.
func DispatchInterval(cfg Config) time.Duration {
	return time.Duration(cfg.Service.DispatchIntervalSec) * time.Second
}

// SessionTTL returns login session lifetime as a duration.
// Params: full runtime configuration snapshot.
// Returns: TTL for interactive sessions.
func SessionTTL(cfg Config) time.Duration {
	return time.Duration(cfg.Auth.SessionTTLSec) * time.Second
}

// rejectUnsupportedSyntax checks forbidden TOML syntax and returns explicit error.
// Params: raw TOML file body.
// Returns: error when unsupported syntax is detected.
func rejectUnsupportedSyntax(body []byte) error {
	if unsupportedFeedFixedKeysPattern.Match(body) {
		return errors.New("feed.stream/feed.subject are fixed in runtime and must not be configured")
	}
	if unsupportedRolesTablePattern.Match(body) {
		return errors.New("role permissions are fixed at process start and cannot be configured")
	}
	return nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	cfg, _, err := loadFileForMerge(path)
	return cfg, err
}

// configMergeHints carries explicit bool-presence markers used for directory overlays.
// Params: sparse fields decoded from one TOML fragment.
// Returns: merge behavior hints for zero-value bool overrides.
type configMergeHints struct {
	HTTP struct {
		Enabled *bool `toml:"enabled"`
	} `toml:"http"`
	Feed struct {
		Enabled *bool `toml:"enabled"`
	} `toml:"feed"`
	Notify struct {
		Telegram struct {
			Enabled *bool `toml:"enabled"`
		} `toml:"telegram"`
		Webhook struct {
			Enabled *bool `toml:"enabled"`
		} `toml:"webhook"`
	} `toml:"notify"`
}

// loadFileForMerge reads one TOML file with merge hints.
// Params: file path to config fragment.
// Returns: decoded config plus explicit-bool hints for overlay merge.
func loadFileForMerge(path string) (Config, configMergeHints, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := rejectUnsupportedSyntax(body); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var hints configMergeHints
	if err := toml.Unmarshal(body, &hints); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode merge hints %q: %w", path, err)
	}
	return cfg, hints, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, hints, err := loadFileForMerge(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment, hints)
	}
	return merged, nil
}

// mergeConfig overlays source fragment onto destination.
// Params: destination config, next fragment, and explicit-bool hints.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config, hints configMergeHints) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.Store != (StoreConfig{}) {
		dst.Store = src.Store
	}
	mergeHTTPConfig(&dst.HTTP, src.HTTP, hints.HTTP.Enabled)
	mergeFeedConfig(&dst.Feed, src.Feed, hints.Feed.Enabled)
	mergeAuthConfig(&dst.Auth, src.Auth)
	mergeTelegramNotifier(&dst.Notify.Telegram, src.Notify.Telegram, hints.Notify.Telegram.Enabled)
	mergeWebhookNotifier(&dst.Notify.Webhook, src.Notify.Webhook, hints.Notify.Webhook.Enabled)
}

// applyBoolMerge overrides destination bool only when fragment set it explicitly.
// Params: destination bool, fragment value, and explicit-presence marker.
// Returns: merged flag side-effect in dst.
func applyBoolMerge(dst *bool, src bool, explicit *bool) {
	if explicit != nil {
		*dst = src
	}
}

// mergeHTTPConfig overlays HTTP fragment preserving unset fields.
// Params: destination config, fragment, and enabled-presence hint.
// Returns: merged HTTP config side-effect in dst.
func mergeHTTPConfig(dst *HTTPConfig, src HTTPConfig, enabledHint *bool) {
	applyBoolMerge(&dst.Enabled, src.Enabled, enabledHint)
	if strings.TrimSpace(src.Listen) != "" {
		dst.Listen = src.Listen
	}
	if strings.TrimSpace(src.HealthPath) != "" {
		dst.HealthPath = src.HealthPath
	}
	if strings.TrimSpace(src.ReadyPath) != "" {
		dst.ReadyPath = src.ReadyPath
	}
	if src.MaxBodyBytes != 0 {
		dst.MaxBodyBytes = src.MaxBodyBytes
	}
}

// mergeFeedConfig overlays feed fragment preserving unset fields.
// Params: destination config, fragment, and enabled-presence hint.
// Returns: merged feed config side-effect in dst.
func mergeFeedConfig(dst *FeedConfig, src FeedConfig, enabledHint *bool) {
	applyBoolMerge(&dst.Enabled, src.Enabled, enabledHint)
	if len(src.URL) > 0 {
		dst.URL = append([]string(nil), src.URL...)
	}
}

// mergeAuthConfig overlays auth fragment; token lists append across fragments.
// Params: destination config and fragment.
// Returns: merged auth config side-effect in dst.
func mergeAuthConfig(dst *AuthConfig, src AuthConfig) {
	if src.SessionTTLSec != 0 {
		dst.SessionTTLSec = src.SessionTTLSec
	}
	if len(src.Token) > 0 {
		dst.Token = append(dst.Token, src.Token...)
	}
}

// mergeTelegramNotifier overlays telegram fragment preserving unset fields.
// Params: destination config, fragment, and enabled-presence hint.
// Returns: merged telegram config side-effect in dst.
func mergeTelegramNotifier(dst *TelegramNotifier, src TelegramNotifier, enabledHint *bool) {
	applyBoolMerge(&dst.Enabled, src.Enabled, enabledHint)
	if strings.TrimSpace(src.BotToken) != "" {
		dst.BotToken = src.BotToken
	}
	if strings.TrimSpace(src.ChatID) != "" {
		dst.ChatID = src.ChatID
	}
	if strings.TrimSpace(src.APIBase) != "" {
		dst.APIBase = src.APIBase
	}
	if strings.TrimSpace(src.Template) != "" {
		dst.Template = src.Template
	}
	if src.Retry != (NotifyRetry{}) {
		dst.Retry = src.Retry
	}
}

// mergeWebhookNotifier overlays webhook fragment preserving unset fields.
// Params: destination config, fragment, and enabled-presence hint.
// Returns: merged webhook config side-effect in dst.
func mergeWebhookNotifier(dst *WebhookNotifier, src WebhookNotifier, enabledHint *bool) {
	applyBoolMerge(&dst.Enabled, src.Enabled, enabledHint)
	if strings.TrimSpace(src.URL) != "" {
		dst.URL = src.URL
	}
	if strings.TrimSpace(src.Method) != "" {
		dst.Method = src.Method
	}
	if src.TimeoutSec != 0 {
		dst.TimeoutSec = src.TimeoutSec
	}
	if len(src.Headers) > 0 {
		dst.Headers = src.Headers
	}
	if strings.TrimSpace(src.Template) != "" {
		dst.Template = src.Template
	}
	if src.Retry != (NotifyRetry{}) {
		dst.Retry = src.Retry
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = "zonewatch"
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if cfg.Service.DispatchIntervalSec <= 0 {
		cfg.Service.DispatchIntervalSec = defaultDispatchSeconds
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HTTP.HealthPath) == "" {
		cfg.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.HTTP.ReadyPath) == "" {
		cfg.HTTP.ReadyPath = defaultReadyPath
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}

	if strings.TrimSpace(cfg.Store.Driver) == "" {
		cfg.Store.Driver = defaultStoreDriver
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	if cfg.Auth.SessionTTLSec <= 0 {
		cfg.Auth.SessionTTLSec = defaultSessionTTLSec
	}

	if cfg.Service.Mode == ServiceModeSingle {
		// Single mode always disables the NATS feed regardless of user flags.
		cfg.Feed.Enabled = false
	} else {
		cfg.Feed.URL = normalizeNATSURLs(cfg.Feed.URL)
		if len(cfg.Feed.URL) == 0 {
			cfg.Feed.URL = []string{defaultNATSURL}
		}
	}
	cfg.Feed.Stream = defaultFeedStream
	cfg.Feed.SubjectPrefix = defaultFeedSubjectBase

	if cfg.Notify.Telegram.Enabled && strings.TrimSpace(cfg.Notify.Telegram.Template) == "" {
		cfg.Notify.Telegram.Template = defaultBroadcastMessage
	}
	if cfg.Notify.Webhook.Enabled {
		if strings.TrimSpace(cfg.Notify.Webhook.Template) == "" {
			cfg.Notify.Webhook.Template = defaultBroadcastMessage
		}
		if cfg.Notify.Webhook.TimeoutSec <= 0 {
			cfg.Notify.Webhook.TimeoutSec = defaultWebhookTimeout
		}
	}
}

// validateConfig checks one merged snapshot for contradictions.
// Params: config after defaults were applied.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if !IsSupportedServiceMode(cfg.Service.Mode) {
		return fmt.Errorf("service.mode has unsupported value %q", cfg.Service.Mode)
	}

	switch cfg.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverSQLite:
		if strings.TrimSpace(cfg.Store.Path) == "" {
			return errors.New("store.path is required for sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver has unsupported value %q", cfg.Store.Driver)
	}

	seenTokens := make(map[string]struct{}, len(cfg.Auth.Token))
	for i, token := range cfg.Auth.Token {
		if strings.TrimSpace(token.Token) == "" {
			return fmt.Errorf("auth.token[%d].token is required", i)
		}
		if strings.TrimSpace(token.UserID) == "" {
			return fmt.Errorf("auth.token[%d].user_id is required", i)
		}
		if _, dup := seenTokens[token.Token]; dup {
			return fmt.Errorf("auth.token[%d].token is duplicated", i)
		}
		seenTokens[token.Token] = struct{}{}
		if strings.TrimSpace(token.Role) != "" {
			if _, err := domain.ParseRole(token.Role); err != nil {
				return fmt.Errorf("auth.token[%d].role: %w", i, err)
			}
		}
	}

	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required")
		}
		if err := validateNotifyRetry("notify.telegram.retry", cfg.Notify.Telegram.Retry); err != nil {
			return err
		}
		if err := validateBroadcastTemplate("notify.telegram.template", cfg.Notify.Telegram.Template); err != nil {
			return err
		}
	}
	if cfg.Notify.Webhook.Enabled {
		if strings.TrimSpace(cfg.Notify.Webhook.URL) == "" {
			return errors.New("notify.webhook.url is required")
		}
		if err := validateNotifyRetry("notify.webhook.retry", cfg.Notify.Webhook.Retry); err != nil {
			return err
		}
		if err := validateBroadcastTemplate("notify.webhook.template", cfg.Notify.Webhook.Template); err != nil {
			return err
		}
	}

	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	return nil
}

// validateNotifyRetry checks backoff strategy and attempt bounds.
// Params: config path prefix and retry policy.
// Returns: validation error for unsupported strategies.
func validateNotifyRetry(path string, retry NotifyRetry) error {
	if !retry.Enabled {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(retry.Backoff)) {
	case "", "fixed", "exponential":
	default:
		return fmt.Errorf("%s.backoff has unsupported value %q", path, retry.Backoff)
	}
	if retry.InitialMS < 0 || retry.MaxMS < 0 || retry.MaxAttempts < 0 {
		return fmt.Errorf("%s values must not be negative", path)
	}
	return nil
}

// validateBroadcastTemplate compiles one message template to surface parse errors early.
// Params: config path and template body.
// Returns: parse error with config path context.
func validateBroadcastTemplate(path, body string) error {
	if _, err := templatefmt.ParseBroadcastTemplate(path, body); err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	return nil
}

// validateLogSink checks one logging sink settings.
// Params: sink name, sink config, and path requirement flag.
// Returns: validation error for unsupported level/format.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}

// NormalizeServiceMode lowercases mode value and applies default.
// Params: raw mode value.
// Returns: normalized mode string.
func NormalizeServiceMode(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ServiceModeSingle
	}
	return normalized
}

// IsSupportedServiceMode reports whether mode value is supported.
// Params: normalized mode value.
// Returns: true for known modes.
func IsSupportedServiceMode(mode string) bool {
	switch NormalizeServiceMode(mode) {
	case ServiceModeSingle, ServiceModeNATS:
		return true
	default:
		return false
	}
}

// normalizeNATSURLs trims entries and applies nats scheme when missing.
// Params: raw URL list from config.
// Returns: normalized non-empty URL list.
func normalizeNATSURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		if !strings.Contains(trimmed, "://") {
			trimmed = "nats://" + trimmed
		}
		out = append(out, trimmed)
	}
	return out
}
