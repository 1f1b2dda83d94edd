package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/audit"
	"github.com/ruslano69/tdtp-mysqldump/pkg/brokers"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dump"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
	"github.com/ruslano69/tdtp-mysqldump/pkg/resilience"
	"github.com/ruslano69/tdtp-mysqldump/pkg/resultlog"
	"github.com/ruslano69/tdtp-mysqldump/pkg/retry"
	"github.com/ruslano69/tdtp-mysqldump/pkg/storage"
	"github.com/ruslano69/tdtp-mysqldump/pkg/writer"
)

// PasswordEnv is consulted when the config file carries no password
const PasswordEnv = "MYSQLDUMP_PASSWORD"

// Dump sections accepted in dump.sections
const (
	SectionSchema    = "schema"
	SectionData      = "data"
	SectionTrigger   = "trigger"
	SectionProcedure = "procedure"
)

// Config represents the main configuration structure
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Dump       DumpConfig       `yaml:"dump"`
	Output     OutputConfig     `yaml:"output"`
	Resilience ResilienceConfig `yaml:"resilience,omitempty"`
	Audit      AuditConfig      `yaml:"audit,omitempty"`
	Log        LogConfig        `yaml:"log,omitempty"`
	ResultLog  ResultLogConfig  `yaml:"result_log,omitempty"`
	Broker     BrokerConfig     `yaml:"broker,omitempty"`
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
	Report     ReportConfig     `yaml:"report,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Type     string        `yaml:"type"`               // mysql, sqlite
	Host     string        `yaml:"host,omitempty"`     // default: localhost
	Port     int           `yaml:"port,omitempty"`     // default: 3306
	Database string        `yaml:"database"`           // Database name or SQLite file path
	User     string        `yaml:"user,omitempty"`     // Username
	Password string        `yaml:"password,omitempty"` // Password, falls back to MYSQLDUMP_PASSWORD
	Charset  string        `yaml:"charset,omitempty"`  // default: utf8mb4
	TLS      string        `yaml:"tls,omitempty"`      // go-sql-driver tls parameter
	DSN      string        `yaml:"dsn,omitempty"`      // Overrides the fields above
	Timeout  time.Duration `yaml:"timeout,omitempty"`  // Dial timeout
}

// DumpConfig selects tables and sections
type DumpConfig struct {
	Tables   []string `yaml:"tables,omitempty"`
	Exclude  bool     `yaml:"exclude,omitempty"` // Treat tables as a blacklist
	Sections []string `yaml:"sections"`

	Schema    dump.SchemaOptions  `yaml:"schema"`
	Data      dump.DataOptions    `yaml:"data"`
	Trigger   dump.RoutineOptions `yaml:"trigger"`
	Procedure dump.RoutineOptions `yaml:"procedure"`
}

// OutputConfig contains dump file settings
type OutputConfig struct {
	File     string `yaml:"file,omitempty"`     // Empty: write to stdout
	Append   bool   `yaml:"append,omitempty"`   // Append to an existing file
	Compress string `yaml:"compress,omitempty"` // "", gzip, zstd
	Level    int    `yaml:"level,omitempty"`    // Codec level, 0 = codec default
}

// ResilienceConfig contains circuit breaker and retry settings
type ResilienceConfig struct {
	CircuitBreaker resilience.Config `yaml:"circuit_breaker,omitempty"`
	Retry          retry.Config      `yaml:"retry,omitempty"`
}

// AuditConfig for audit logging settings
type AuditConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Level      string        `yaml:"level"` // minimal, standard, full
	Async      bool          `yaml:"async,omitempty"`
	File       string        `yaml:"file,omitempty"`
	MaxSize    int           `yaml:"max_size_mb,omitempty"` // Max file size in MB
	MaxBackups int           `yaml:"max_backups,omitempty"`
	JSON       bool          `yaml:"json,omitempty"`      // JSON lines in the audit file
	Database   string        `yaml:"database,omitempty"`  // SQLite file for queryable audit
	Retention  time.Duration `yaml:"retention,omitempty"` // Entries older than this are purged at startup
	Console    bool          `yaml:"console,omitempty"`   // Mirror entries to the process log
}

// LogConfig for the process log
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// ResultLogConfig publishes the dump outcome to Redis
type ResultLogConfig struct {
	Enabled          bool `yaml:"enabled"`
	resultlog.Config `yaml:",inline"`
}

// BrokerConfig sends a dump-completed event
type BrokerConfig struct {
	Enabled        bool `yaml:"enabled"`
	brokers.Config `yaml:",inline"`
}

// StorageConfig for uploading the finished file
type StorageConfig struct {
	S3 S3Config `yaml:"s3,omitempty"`
}

// S3Config enables the S3 uploader
type S3Config struct {
	Enabled        bool `yaml:"enabled"`
	storage.Config `yaml:",inline"`
}

// MetricsConfig for Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	PushURL string `yaml:"push_url,omitempty"` // Pushgateway for one-shot runs
	Job     string `yaml:"job,omitempty"`
	Runtime bool   `yaml:"runtime,omitempty"` // Include Go and process collectors
}

// ReportConfig for the xlsx run report
type ReportConfig struct {
	File string `yaml:"file,omitempty"`
}

// ServerConfig for serve mode
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
	// WriteTimeout bounds a whole streamed dump; 0 disables it
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// DefaultConfig returns a configuration with every optional feature disabled
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "mysql",
		},
		Dump: DumpConfig{
			Sections:  []string{SectionSchema, SectionData, SectionTrigger},
			Schema:    *dump.DefaultSchemaOptions(),
			Data:      *dump.DefaultDataOptions(),
			Trigger:   *dump.DefaultRoutineOptions(),
			Procedure: *dump.DefaultRoutineOptions(),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: resilience.DefaultConfig(),
			Retry:          retry.DefaultConfig(),
		},
		Audit: AuditConfig{
			Level: "standard",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Job: "mysqldump",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			ReadTimeout: 10 * time.Second,
		},
	}
}

// LoadConfig loads configuration from YAML file.
// Missing keys keep the values of DefaultConfig.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %w", dumperr.ErrConfig, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %w", dumperr.ErrConfig, err)
	}

	if config.Database.Password == "" {
		config.Database.Password = os.Getenv(PasswordEnv)
	}

	return config, nil
}

// SaveConfig saves configuration to YAML file
func SaveConfig(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateSampleConfig creates a sample configuration with every section filled in
func CreateSampleConfig() *Config {
	config := DefaultConfig()

	config.Database.Host = "localhost"
	config.Database.Port = 3306
	config.Database.Database = "mydb"
	config.Database.User = "root"
	config.Database.Password = "password"

	config.Dump.Data.MaxRowsPerInsertStatement = 100
	config.Output.File = "mydb.sql.gz"
	config.Output.Compress = writer.CodecGzip

	config.Resilience.Retry = retry.EnableRetry(3, time.Second)

	config.Audit.Enabled = true
	config.Audit.File = "audit.log"
	config.Audit.MaxSize = 100

	config.ResultLog.Config = resultlog.Config{
		Name:    "mydb",
		Address: "localhost:6379",
		TTL:     86400,
	}
	config.Broker.Config = brokers.Config{
		Type:    "kafka",
		Brokers: []string{"localhost:9092"},
		Topic:   "mysqldump.events",
	}
	config.Storage.S3.Config = storage.Config{
		Bucket: "backups",
		Region: "us-east-1",
		Prefix: "mysql",
	}
	config.Metrics.PushURL = "http://localhost:9091"

	return config
}

// AdapterConfig converts the database section into adapter settings
func (c *DatabaseConfig) AdapterConfig() adapters.Config {
	return adapters.Config{
		Type:     c.Type,
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		Charset:  c.Charset,
		TLS:      c.TLS,
		DSN:      c.dsn(),
		Timeout:  c.Timeout,
	}
}

// SQLite is addressed by its file path
func (c *DatabaseConfig) dsn() string {
	if c.DSN == "" && c.Type == "sqlite" {
		return c.Database
	}
	return c.DSN
}

// Name returns the database name used in results and keys
func (c *DatabaseConfig) Name() string {
	if c.Type == "sqlite" {
		return strings.TrimSuffix(filepath.Base(c.Database), filepath.Ext(c.Database))
	}
	return c.Database
}

// Validate checks the configuration before anything is opened
func (c *Config) Validate() error {
	db := c.Database.AdapterConfig().WithDefaults()
	if err := db.Validate(); err != nil {
		return err
	}
	if db.Type == "mysql" && db.DSN == "" && db.Password == "" {
		return dumperr.ErrMissingConnectionPassword
	}

	if len(c.Dump.Sections) == 0 {
		return fmt.Errorf("%w: dump.sections is empty", dumperr.ErrConfig)
	}
	for _, s := range c.Dump.Sections {
		switch s {
		case SectionSchema, SectionData, SectionTrigger, SectionProcedure:
		default:
			return fmt.Errorf("%w: unknown dump section %q", dumperr.ErrConfig, s)
		}
	}
	breaker := c.Resilience.CircuitBreaker
	if err := breaker.Validate(); err != nil {
		return err
	}
	if c.Dump.Data.MaxRowsPerInsertStatement < 1 {
		return fmt.Errorf("%w: dump.data.max_rows_per_insert_statement must be >= 1", dumperr.ErrConfig)
	}

	if c.Storage.S3.Enabled {
		if err := c.Storage.S3.Validate(); err != nil {
			return err
		}
		if c.Output.File == "" {
			return fmt.Errorf("%w: s3 upload requires output.file", dumperr.ErrConfig)
		}
	}
	if c.Audit.Enabled {
		if _, err := audit.ParseLevel(c.Audit.Level); err != nil {
			return err
		}
	}
	if c.Broker.Enabled && c.Broker.Type == "" {
		return fmt.Errorf("%w: broker.type is required", dumperr.ErrConfig)
	}
	if c.ResultLog.Enabled && c.ResultLog.Address == "" {
		return fmt.Errorf("%w: result_log.address is required", dumperr.ErrConfig)
	}

	opts := c.DumpOptions()
	return opts.Validate()
}

// DumpOptions builds dump options for the configured sections.
// Each call returns fresh copies, so callers may adjust them.
func (c *Config) DumpOptions() dump.Options {
	opts := dump.Options{
		Tables:        append([]string(nil), c.Dump.Tables...),
		ExcludeTables: c.Dump.Exclude,
		DumpToFile:    c.Output.File,
		Append:        c.Output.Append,
		Compress:      c.Output.Compress,
		CompressLevel: c.Output.Level,
	}

	for _, s := range c.Dump.Sections {
		switch s {
		case SectionSchema:
			schema := c.Dump.Schema
			opts.Schema = &schema
		case SectionData:
			data := c.Dump.Data
			data.Where = make(map[string]string, len(c.Dump.Data.Where))
			for k, v := range c.Dump.Data.Where {
				data.Where[k] = v
			}
			opts.Data = &data
		case SectionTrigger:
			trigger := c.Dump.Trigger
			opts.Trigger = &trigger
		case SectionProcedure:
			procedure := c.Dump.Procedure
			opts.Procedure = &procedure
		}
	}

	return opts
}

// hasSection reports whether section is enabled
func (d *DumpConfig) hasSection(section string) bool {
	for _, s := range d.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// setSection enables or disables a section keeping the dump order
func (d *DumpConfig) setSection(section string, on bool) {
	if d.hasSection(section) == on {
		return
	}
	var out []string
	for _, s := range []string{SectionSchema, SectionData, SectionTrigger, SectionProcedure} {
		keep := d.hasSection(s)
		if s == section {
			keep = on
		}
		if keep {
			out = append(out, s)
		}
	}
	d.Sections = out
}
