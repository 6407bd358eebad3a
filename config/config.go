package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/robfig/cron"

	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/pkg/tlsutil"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Store      StoreConfig      `json:"store"`
	Ontologies []OntologyConfig `json:"ontologies"`
	Update     UpdateConfig     `json:"update"`
	NATS       NATSConfig       `json:"nats"`
	Metrics    MetricsConfig    `json:"metrics"`
	Schedule   ScheduleConfig   `json:"schedule"`
}

// StoreConfig selects the term store backend.
type StoreConfig struct {
	Driver       string      `json:"driver"`
	DSN          string      `json:"dsn,omitempty"`
	ConnectRetry RetryConfig `json:"connect_retry"`
}

// RetryConfig is the backoff policy used when opening a connection.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
}

// OntologyConfig declares one ontology source and its database.
type OntologyConfig struct {
	ID           string `json:"id"`
	Database     string `json:"database,omitempty"`
	DatabaseAC   string `json:"database_ac,omitempty"`
	Namespace    string `json:"namespace,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	SnapshotPath string `json:"snapshot_path"`
	CacheSize    int    `json:"cache_size,omitempty"`
}

// UpdateConfig holds the reconciliation options.
type UpdateConfig struct {
	ImportNewTerms          bool     `json:"import_new_terms"`
	IncludeObsoleteOnImport bool     `json:"include_obsolete_on_import"`
	OntologiesOrder         []string `json:"ontologies_order,omitempty"`
}

// NATSConfig defines NATS connection and publishing settings
type NATSConfig struct {
	Enabled        bool                 `json:"enabled"`
	URLs           []string             `json:"urls,omitempty"`
	ClientName     string               `json:"client_name,omitempty"`
	MaxReconnects  int                  `json:"max_reconnects,omitempty"`
	ReconnectWait  time.Duration        `json:"reconnect_wait,omitempty"`
	PingInterval   time.Duration        `json:"ping_interval,omitempty"`
	ConnectTimeout time.Duration        `json:"connect_timeout,omitempty"`
	DrainTimeout   time.Duration        `json:"drain_timeout,omitempty"`
	Username       string               `json:"username,omitempty"`
	Password       string               `json:"password,omitempty"`
	Token          string               `json:"token,omitempty"`
	TLS            tlsutil.ClientConfig `json:"tls"`
	ConnectRetry   RetryConfig          `json:"connect_retry"`
	Stream         string               `json:"stream,omitempty"`
	StreamMaxAge   time.Duration        `json:"stream_max_age,omitempty"`
	SubjectPrefix  string               `json:"subject_prefix,omitempty"`
	ReportBucket   string               `json:"report_bucket,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// ScheduleConfig holds the cron expression of periodic runs. Empty runs once.
type ScheduleConfig struct {
	Cron string `json:"cron,omitempty"`
}

// Ontology returns the declaration of one ontology id.
func (c *Config) Ontology(id string) (OntologyConfig, bool) {
	for _, o := range c.Ontologies {
		if o.ID == id {
			return o, true
		}
	}
	return OntologyConfig{}, false
}

// RunOrder returns the ontology ids in run order: ontologies_order first,
// then the remaining declared ontologies in file order.
func (c *Config) RunOrder() []string {
	order := slices.Clone(c.Update.OntologiesOrder)
	for _, o := range c.Ontologies {
		if !slices.Contains(order, o.ID) {
			order = append(order, o.ID)
		}
	}
	return order
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SafeConfig", "Update", "config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Validate checks the configuration and reports the first problem found.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid configuration")
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver %q is not one of sqlite, postgres, memory", c.Store.Driver)
	}
	if err := c.Store.ConnectRetry.validate("store.connect_retry"); err != nil {
		return err
	}

	if len(c.Ontologies) == 0 {
		return stderrors.New("at least one ontology is required")
	}
	seen := make(map[string]bool)
	for i, o := range c.Ontologies {
		if o.ID == "" {
			return fmt.Errorf("ontologies[%d].id is required", i)
		}
		if seen[o.ID] {
			return fmt.Errorf("ontology %q declared twice", o.ID)
		}
		seen[o.ID] = true
		if o.SnapshotPath == "" {
			return fmt.Errorf("ontology %s: snapshot_path is required", o.ID)
		}
		if o.CacheSize < 0 {
			return fmt.Errorf("ontology %s: cache_size must not be negative", o.ID)
		}
		if o.Namespace != "" && o.Database == "" {
			return fmt.Errorf("ontology %s: database is required with a namespace", o.ID)
		}
	}
	for _, id := range c.Update.OntologiesOrder {
		if !seen[id] {
			return fmt.Errorf("update.ontologies_order names unknown ontology %q", id)
		}
	}

	if c.NATS.Enabled {
		if len(c.NATS.URLs) == 0 {
			return stderrors.New("nats.urls is required when nats is enabled")
		}
		if c.NATS.SubjectPrefix != "" && !isValidNATSSubject(c.NATS.SubjectPrefix) {
			return fmt.Errorf("nats.subject_prefix %q is not a valid NATS subject", c.NATS.SubjectPrefix)
		}
		if err := c.NATS.ConnectRetry.validate("nats.connect_retry"); err != nil {
			return err
		}
		if c.NATS.ReconnectWait < 0 || c.NATS.PingInterval < 0 || c.NATS.ConnectTimeout < 0 || c.NATS.DrainTimeout < 0 {
			return stderrors.New("nats timings must not be negative")
		}
		if err := c.NATS.TLS.Validate(); err != nil {
			return fmt.Errorf("nats.tls: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d is out of range", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
		}
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.Parse(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}
	return nil
}

func (r RetryConfig) validate(field string) error {
	if r.MaxAttempts < 0 || r.InitialDelay < 0 || r.MaxDelay < 0 {
		return fmt.Errorf("%s values must not be negative", field)
	}
	if r.MaxDelay > 0 && r.MaxDelay < r.InitialDelay {
		return fmt.Errorf("%s.max_delay must be >= initial_delay", field)
	}
	return nil
}

// isValidNATSSubject checks a dot separated subject without wildcards.
func isValidNATSSubject(s string) bool {
	for _, token := range strings.Split(s, ".") {
		if token == "" {
			return false
		}
		for _, r := range token {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
				return false
			}
		}
	}
	return true
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "CVSYNC",
		getenv:    os.Getenv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every file layer and the environment, in that order.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		raw, err := l.loadRawJSON(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		cfg, err = mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "apply environment")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "file:cvsync.db",
			ConnectRetry: RetryConfig{
				MaxAttempts:  10,
				InitialDelay: 50 * time.Millisecond,
				MaxDelay:     time.Second,
			},
		},
		NATS: NATSConfig{
			URLs:           []string{"nats://localhost:4222"},
			ClientName:     "cvupdate",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			PingInterval:   30 * time.Second,
			ConnectTimeout: 5 * time.Second,
			DrainTimeout:   5 * time.Second,
			ConnectRetry: RetryConfig{
				MaxAttempts:  5,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     10 * time.Second,
			},
			Stream:        "CV_EVENTS",
			StreamMaxAge:  7 * 24 * time.Hour,
			SubjectPrefix: "cv.events",
			ReportBucket:  "CV_REPORTS",
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
	}
}

func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateJSONDepth(data); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := validateLayer(data); err != nil {
		return nil, err
	}
	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// durationFields lists the duration valued keys per section.
var durationFields = map[string][]string{
	"store": {"connect_retry.initial_delay", "connect_retry.max_delay"},
	"nats": {
		"reconnect_wait", "ping_interval", "connect_timeout", "drain_timeout", "stream_max_age",
		"connect_retry.initial_delay", "connect_retry.max_delay",
	},
}

// parseDurations converts duration strings ("2s", "14d") to nanoseconds so
// they unmarshal into time.Duration.
func parseDurations(raw map[string]any) error {
	for section, fields := range durationFields {
		m, ok := raw[section].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range fields {
			parent, key := m, field
			if i := strings.IndexByte(field, '.'); i >= 0 {
				nested, ok := m[field[:i]].(map[string]any)
				if !ok {
					continue
				}
				parent, key = nested, field[i+1:]
			}
			s, ok := parent[key].(string)
			if !ok {
				continue
			}
			d, err := parseDurationWithDays(s)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", section, field, err)
			}
			parent[key] = d.Nanoseconds()
		}
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// mergeFromMap overrides only the fields present in the raw layer. Arrays
// replace rather than merge.
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies <prefix>_* environment variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	env := func(name string) (string, error) {
		key := l.envPrefix + "_" + name
		val := l.getenv(key)
		return val, validateEnvVar(key, val)
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"STORE_DRIVER", &cfg.Store.Driver},
		{"STORE_DSN", &cfg.Store.DSN},
		{"NATS_USERNAME", &cfg.NATS.Username},
		{"NATS_PASSWORD", &cfg.NATS.Password},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix},
		{"NATS_REPORT_BUCKET", &cfg.NATS.ReportBucket},
		{"SCHEDULE_CRON", &cfg.Schedule.Cron},
	}
	for _, s := range strs {
		val, err := env(s.name)
		if err != nil {
			return err
		}
		if val != "" {
			*s.dst = val
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"NATS_ENABLED", &cfg.NATS.Enabled},
		{"METRICS_ENABLED", &cfg.Metrics.Enabled},
		{"UPDATE_IMPORT_NEW_TERMS", &cfg.Update.ImportNewTerms},
		{"UPDATE_INCLUDE_OBSOLETE_ON_IMPORT", &cfg.Update.IncludeObsoleteOnImport},
	}
	for _, b := range bools {
		val, err := env(b.name)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		v, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s_%s: %w", l.envPrefix, b.name, err)
		}
		*b.dst = v
	}

	if val, err := env("NATS_URLS"); err != nil {
		return err
	} else if val != "" {
		cfg.NATS.URLs = splitList(val)
	}
	if val, err := env("UPDATE_ONTOLOGIES_ORDER"); err != nil {
		return err
	} else if val != "" {
		cfg.Update.OntologiesOrder = splitList(val)
	}
	if val, err := env("METRICS_PORT"); err != nil {
		return err
	} else if val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_METRICS_PORT: %w", l.envPrefix, err)
		}
		cfg.Metrics.Port = port
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "marshal config")
	}
	return safeWriteFile(path, data)
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := c.Clone()
	for _, secret := range []*string{&masked.NATS.Password, &masked.NATS.Token} {
		if *secret != "" {
			*secret = "***"
		}
	}
	if masked.Store.DSN != "" && strings.Contains(masked.Store.DSN, "password=") {
		masked.Store.DSN = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}
