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
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName       = "reminders"
	defaultTimezone          = "Europe/Rome"
	defaultSweepIntervalSec  = 86400
	defaultSentBy            = "operator"
	defaultHTTPListen        = ":8080"
	defaultHealthPath        = "/healthz"
	defaultReadyPath         = "/readyz"
	defaultMetricsPath       = "/metrics"
	defaultAPIPrefix         = "/api/v1"
	defaultMaxBodyBytes      = 1 << 20
	defaultSQLiteDSN         = "file:reminders.db?_pragma=busy_timeout(5000)"
	defaultRESTTimeoutSec    = 10
	defaultCacheTTLSec       = 30
	defaultNATSURL           = "nats://127.0.0.1:4222"
	defaultNATSLedgerBucket  = "reminders_sent"
	defaultRedisAddr         = "127.0.0.1:6379"
	defaultRedisKey          = "reminders:sent"
	defaultNATSSubject       = "reminders.events"
	defaultNATSIngestStream  = "REMINDERS_EVENTS"
	defaultNATSIngestConsume = "reminders-ingest"
	defaultNATSIngestGroup   = "reminders-workers"
	defaultNATSIngestWorkers = 1
	defaultNATSAckWaitSec    = 30
	defaultNATSNackDelayMS   = 1000
	defaultNATSMaxDeliver    = 5
	defaultNATSMaxAckPending = 256

	// GatewayDriverSQLite reads entities from an embedded SQLite database.
	GatewayDriverSQLite = "sqlite"
	// GatewayDriverPostgres reads entities from PostgreSQL.
	GatewayDriverPostgres = "postgres"
	// GatewayDriverREST reads entities from a PostgREST-style HTTP API.
	GatewayDriverREST = "rest"

	// LedgerBackendMemory keeps the sent set in process memory.
	LedgerBackendMemory = "memory"
	// LedgerBackendSQL keeps the sent set in the gateway database.
	LedgerBackendSQL = "sql"
	// LedgerBackendNATS keeps the sent set in a JetStream KV bucket.
	LedgerBackendNATS = "nats"
	// LedgerBackendRedis keeps the sent set in one Redis hash.
	LedgerBackendRedis = "redis"
)

var legacyArraySectionPattern = regexp.MustCompile(`(?m)^\s*\[\[`)

// Config holds service runtime settings.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	HTTP    HTTPConfig    `toml:"http"`
	Gateway GatewayConfig `toml:"gateway"`
	Ledger  LedgerConfig  `toml:"ledger"`
	Ingest  IngestConfig  `toml:"ingest"`
}

// ServiceConfig contains process-level settings.
// Params: name, workshop time zone, sweep schedule, and operator label for ledger records.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name             string `toml:"name"`
	Timezone         string `toml:"timezone"`
	SweepIntervalSec int    `toml:"sweep_interval_sec"`
	SweepOnStart     bool   `toml:"sweep_on_start"`
	SentBy           string `toml:"sent_by"`
}

// Location loads the configured workshop time zone.
// Params: none.
// Returns: location or load error.
func (s ServiceConfig) Location() (*time.Location, error) {
	return time.LoadLocation(strings.TrimSpace(s.Timezone))
}

// SweepInterval returns the periodic sweep period.
// Params: none.
// Returns: interval duration; zero when negative values disable the ticker.
func (s ServiceConfig) SweepInterval() time.Duration {
	if s.SweepIntervalSec <= 0 {
		return 0
	}
	return time.Duration(s.SweepIntervalSec) * time.Second
}

// HTTPConfig configures the operator API and probe endpoints.
// Params: enable flag, listen address, endpoint paths, and body size limit.
// Returns: HTTP server behavior.
type HTTPConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MetricsPath  string `toml:"metrics_path"`
	APIPrefix    string `toml:"api_prefix"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// GatewayConfig selects the entity data source.
// Params: driver name, SQL DSN, schema bootstrap flag, and REST settings.
// Returns: gateway construction options.
type GatewayConfig struct {
	Driver  string            `toml:"driver"`
	DSN     string            `toml:"dsn"`
	Migrate bool              `toml:"migrate"`
	REST    RESTGatewayConfig `toml:"rest"`
}

// IsSQL reports whether the gateway uses a database/sql driver.
// Params: none.
// Returns: true for sqlite and postgres.
func (g GatewayConfig) IsSQL() bool {
	return g.Driver == GatewayDriverSQLite || g.Driver == GatewayDriverPostgres
}

// RESTGatewayConfig configures the HTTP data source.
// Params: base URL, API key, and request timeout.
// Returns: REST client options.
type RESTGatewayConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// Timeout returns the per-request timeout.
// Params: none.
// Returns: timeout duration.
func (r RESTGatewayConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSec) * time.Second
}

// LedgerConfig selects the delivery ledger backend.
// Params: backend name, read-through cache TTL, and backend-specific sections.
// Returns: ledger construction options.
type LedgerConfig struct {
	Backend     string            `toml:"backend"`
	CacheTTLSec int               `toml:"cache_ttl_sec"`
	NATS        NATSLedgerConfig  `toml:"nats"`
	Redis       RedisLedgerConfig `toml:"redis"`
}

// CacheTTL returns read-through cache lifetime.
// Params: none.
// Returns: cache TTL duration; zero when negative values disable caching.
func (l LedgerConfig) CacheTTL() time.Duration {
	if l.CacheTTLSec <= 0 {
		return 0
	}
	return time.Duration(l.CacheTTLSec) * time.Second
}

// NATSLedgerConfig contains JetStream KV controls for the ledger.
// Params: server URLs, bucket name, and bucket auto-create flag.
// Returns: NATS ledger options.
type NATSLedgerConfig struct {
	URL               []string `toml:"url"`
	Bucket            string   `toml:"bucket"`
	AllowCreateBucket bool     `toml:"allow_create_bucket"`
}

// RedisLedgerConfig contains Redis hash controls for the ledger.
// Params: address, password, database index, and hash key.
// Returns: Redis ledger options.
type RedisLedgerConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

// IngestConfig defines inbound point-mode event interfaces.
// Params: NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	NATS NATSIngestConfig `toml:"nats"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion of entity events.
// Params: connection, stream routing, worker, and ack/redelivery policy.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"subject"`
	Stream        string   `toml:"stream"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	Workers       int      `toml:"workers"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
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
		cfg, _, err = loadFile(src.File)
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

// configMergeHints carries explicit bool-presence markers used for directory overlays.
// Params: sparse fields decoded from one TOML fragment.
// Returns: merge behavior hints for zero-value bool overrides.
type configMergeHints struct {
	Service struct {
		SweepOnStart *bool `toml:"sweep_on_start"`
	} `toml:"service"`
	HTTP struct {
		Enabled *bool `toml:"enabled"`
	} `toml:"http"`
	Gateway struct {
		Migrate *bool `toml:"migrate"`
	} `toml:"gateway"`
	Ingest struct {
		NATS struct {
			Enabled *bool `toml:"enabled"`
		} `toml:"nats"`
	} `toml:"ingest"`
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot or fragment.
// Returns: decoded config plus explicit-bool hints, or read/decode error.
func loadFile(path string) (Config, configMergeHints, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if legacyArraySectionPattern.Match(body) {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: array tables are not supported", path)
	}
	body = []byte(os.ExpandEnv(string(body)))

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
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, hints, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment, hints)
	}
	return merged, nil
}

// mergeConfig overlays one fragment onto destination section by section.
// Params: destination config, next fragment, and its explicit-bool hints.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config, hints configMergeHints) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	applyBoolMerge(&dst.Service.SweepOnStart, hints.Service.SweepOnStart)
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.HTTP != (HTTPConfig{}) {
		dst.HTTP = src.HTTP
	}
	applyBoolMerge(&dst.HTTP.Enabled, hints.HTTP.Enabled)
	if src.Gateway != (GatewayConfig{}) {
		dst.Gateway = src.Gateway
	}
	applyBoolMerge(&dst.Gateway.Migrate, hints.Gateway.Migrate)
	if hasLedgerConfig(src.Ledger) {
		dst.Ledger = src.Ledger
	}
	if hasNATSIngestConfig(src.Ingest.NATS) {
		dst.Ingest.NATS = src.Ingest.NATS
	}
	applyBoolMerge(&dst.Ingest.NATS.Enabled, hints.Ingest.NATS.Enabled)
}

// applyBoolMerge writes an explicitly configured bool over the merged value.
// Params: destination field and optional explicit value.
// Returns: none.
func applyBoolMerge(dst *bool, explicit *bool) {
	if explicit != nil {
		*dst = *explicit
	}
}

func hasLedgerConfig(cfg LedgerConfig) bool {
	return strings.TrimSpace(cfg.Backend) != "" ||
		cfg.CacheTTLSec != 0 ||
		len(cfg.NATS.URL) > 0 ||
		cfg.NATS.Bucket != "" ||
		cfg.NATS.AllowCreateBucket ||
		cfg.Redis != (RedisLedgerConfig{})
}

func hasNATSIngestConfig(cfg NATSIngestConfig) bool {
	return cfg.Enabled ||
		len(cfg.URL) > 0 ||
		cfg.Subject != "" ||
		cfg.Stream != "" ||
		cfg.ConsumerName != "" ||
		cfg.DeliverGroup != "" ||
		cfg.Workers != 0 ||
		cfg.AckWaitSec != 0 ||
		cfg.NackDelayMS != 0 ||
		cfg.MaxDeliver != 0 ||
		cfg.MaxAckPending != 0
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if strings.TrimSpace(cfg.Service.Timezone) == "" {
		cfg.Service.Timezone = defaultTimezone
	}
	if cfg.Service.SweepIntervalSec == 0 {
		cfg.Service.SweepIntervalSec = defaultSweepIntervalSec
	}
	if strings.TrimSpace(cfg.Service.SentBy) == "" {
		cfg.Service.SentBy = defaultSentBy
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
	if strings.TrimSpace(cfg.HTTP.MetricsPath) == "" {
		cfg.HTTP.MetricsPath = defaultMetricsPath
	}
	if strings.TrimSpace(cfg.HTTP.APIPrefix) == "" {
		cfg.HTTP.APIPrefix = defaultAPIPrefix
	}
	cfg.HTTP.APIPrefix = "/" + strings.Trim(strings.TrimSpace(cfg.HTTP.APIPrefix), "/")
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}

	cfg.Gateway.Driver = strings.ToLower(strings.TrimSpace(cfg.Gateway.Driver))
	if cfg.Gateway.Driver == "" {
		cfg.Gateway.Driver = GatewayDriverSQLite
	}
	if cfg.Gateway.Driver == GatewayDriverSQLite && strings.TrimSpace(cfg.Gateway.DSN) == "" {
		cfg.Gateway.DSN = defaultSQLiteDSN
	}
	cfg.Gateway.REST.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Gateway.REST.BaseURL), "/")
	if cfg.Gateway.REST.TimeoutSec <= 0 {
		cfg.Gateway.REST.TimeoutSec = defaultRESTTimeoutSec
	}

	cfg.Ingest.NATS.URL = normalizeNATSURLs(cfg.Ingest.NATS.URL)
	if cfg.Ingest.NATS.Enabled && len(cfg.Ingest.NATS.URL) == 0 {
		cfg.Ingest.NATS.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Ingest.NATS.Subject) == "" {
		cfg.Ingest.NATS.Subject = defaultNATSSubject
	}
	if strings.TrimSpace(cfg.Ingest.NATS.Stream) == "" {
		cfg.Ingest.NATS.Stream = defaultNATSIngestStream
	}
	if strings.TrimSpace(cfg.Ingest.NATS.ConsumerName) == "" {
		cfg.Ingest.NATS.ConsumerName = defaultNATSIngestConsume
	}
	if strings.TrimSpace(cfg.Ingest.NATS.DeliverGroup) == "" {
		cfg.Ingest.NATS.DeliverGroup = defaultNATSIngestGroup
	}
	if cfg.Ingest.NATS.Workers == 0 {
		cfg.Ingest.NATS.Workers = defaultNATSIngestWorkers
	}
	if cfg.Ingest.NATS.AckWaitSec == 0 {
		cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
	}
	if cfg.Ingest.NATS.NackDelayMS == 0 {
		cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
	}
	if cfg.Ingest.NATS.MaxDeliver == 0 {
		cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
	}
	if cfg.Ingest.NATS.MaxAckPending == 0 {
		cfg.Ingest.NATS.MaxAckPending = defaultNATSMaxAckPending
	}

	cfg.Ledger.Backend = strings.ToLower(strings.TrimSpace(cfg.Ledger.Backend))
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = LedgerBackendMemory
		if cfg.Gateway.IsSQL() {
			cfg.Ledger.Backend = LedgerBackendSQL
		}
	}
	if cfg.Ledger.CacheTTLSec == 0 {
		cfg.Ledger.CacheTTLSec = defaultCacheTTLSec
	}
	cfg.Ledger.NATS.URL = normalizeNATSURLs(cfg.Ledger.NATS.URL)
	if len(cfg.Ledger.NATS.URL) == 0 {
		cfg.Ledger.NATS.URL = cfg.Ingest.NATS.URL
	}
	if len(cfg.Ledger.NATS.URL) == 0 {
		cfg.Ledger.NATS.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Ledger.NATS.Bucket) == "" {
		cfg.Ledger.NATS.Bucket = defaultNATSLedgerBucket
	}
	if strings.TrimSpace(cfg.Ledger.Redis.Addr) == "" {
		cfg.Ledger.Redis.Addr = defaultRedisAddr
	}
	if strings.TrimSpace(cfg.Ledger.Redis.Key) == "" {
		cfg.Ledger.Redis.Key = defaultRedisKey
	}
}

func validateConfig(cfg Config) error {
	if _, err := cfg.Service.Location(); err != nil {
		return fmt.Errorf("service.timezone %q is invalid: %w", cfg.Service.Timezone, err)
	}

	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	if cfg.HTTP.Enabled {
		for name, path := range map[string]string{
			"http.health_path":  cfg.HTTP.HealthPath,
			"http.ready_path":   cfg.HTTP.ReadyPath,
			"http.metrics_path": cfg.HTTP.MetricsPath,
			"http.api_prefix":   cfg.HTTP.APIPrefix,
		} {
			if !strings.HasPrefix(path, "/") {
				return fmt.Errorf("%s must start with /", name)
			}
		}
		if cfg.HTTP.APIPrefix == "/" {
			return errors.New("http.api_prefix must not be /")
		}
	}

	switch cfg.Gateway.Driver {
	case GatewayDriverSQLite, GatewayDriverPostgres:
		if strings.TrimSpace(cfg.Gateway.DSN) == "" {
			return fmt.Errorf("gateway.dsn is required when gateway.driver=%s", cfg.Gateway.Driver)
		}
	case GatewayDriverREST:
		if cfg.Gateway.REST.BaseURL == "" {
			return errors.New("gateway.rest.base_url is required when gateway.driver=rest")
		}
		if !strings.HasPrefix(cfg.Gateway.REST.BaseURL, "http://") && !strings.HasPrefix(cfg.Gateway.REST.BaseURL, "https://") {
			return errors.New("gateway.rest.base_url must be http(s)")
		}
	default:
		return fmt.Errorf("gateway.driver has unsupported value %q", cfg.Gateway.Driver)
	}

	switch cfg.Ledger.Backend {
	case LedgerBackendMemory, LedgerBackendNATS, LedgerBackendRedis:
	case LedgerBackendSQL:
		if !cfg.Gateway.IsSQL() {
			return errors.New("ledger.backend=sql requires gateway.driver sqlite or postgres")
		}
	default:
		return fmt.Errorf("ledger.backend has unsupported value %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.Backend == LedgerBackendNATS {
		for i, url := range cfg.Ledger.NATS.URL {
			if url == "" {
				return fmt.Errorf("ledger.nats.url[%d] is empty", i)
			}
		}
	}
	if cfg.Ledger.Backend == LedgerBackendRedis && cfg.Ledger.Redis.DB < 0 {
		return errors.New("ledger.redis.db must be >=0")
	}

	if cfg.Ingest.NATS.Enabled {
		for i, url := range cfg.Ingest.NATS.URL {
			if url == "" {
				return fmt.Errorf("ingest.nats.url[%d] is empty", i)
			}
		}
		if cfg.Ingest.NATS.Workers <= 0 {
			return errors.New("ingest.nats.workers must be >0 when ingest.nats.enabled=true")
		}
		if cfg.Ingest.NATS.AckWaitSec <= 0 {
			return errors.New("ingest.nats.ack_wait_sec must be >0 when ingest.nats.enabled=true")
		}
		if cfg.Ingest.NATS.NackDelayMS < 0 {
			return errors.New("ingest.nats.nack_delay_ms must be >=0")
		}
		if cfg.Ingest.NATS.MaxDeliver == 0 || cfg.Ingest.NATS.MaxDeliver < -1 {
			return errors.New("ingest.nats.max_deliver must be -1 or >0")
		}
		if cfg.Ingest.NATS.MaxAckPending <= 0 {
			return errors.New("ingest.nats.max_ack_pending must be >0")
		}
	}

	if !cfg.HTTP.Enabled && !cfg.Ingest.NATS.Enabled && cfg.Service.SweepInterval() == 0 && !cfg.Service.SweepOnStart {
		return errors.New("nothing to run: enable http, ingest.nats, or a sweep schedule")
	}
	return nil
}

// normalizeNATSURLs trims spaces around each configured NATS URL.
// Params: raw URL list from config.
// Returns: normalized URL list preserving element count for validation.
func normalizeNATSURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, len(urls))
	for i := range urls {
		out[i] = strings.TrimSpace(urls[i])
	}
	return out
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
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
