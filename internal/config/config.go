package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultWorkers           = 4
	defaultExtractTimeout    = 2 * time.Minute
	defaultTotalRecordsLimit = 300000
	defaultCSVSeparator      = "|"
	defaultOutputDir         = "docs"
	defaultSchemaReport      = "schema_comparison.xlsx"
	defaultEventsReport      = "events_comparison.xlsx"
)

// Filter holds the raw connection selection settings. registry.FilterSpec validates them.
type Filter struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	Regex   string   `yaml:"regex"`
}

// IsZero reports whether no selection setting is present.
func (f Filter) IsZero() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0 && f.Regex == ""
}

// Limits guards extraction. Event rows are read in full; a connection with
// more than TotalRecordsLimit rows is reported unavailable.
type Limits struct {
	TotalRecordsLimit int `yaml:"total_records_limit"`
}

type Reports struct {
	Schema string `yaml:"schema"`
	Events string `yaml:"events"`
}

// Config is built once per run by Load and only read afterwards.
type Config struct {
	Connections    []Connection
	Environments   EnvironmentSet
	Filter         Filter
	Limits         Limits
	Reports        Reports
	Workers        int
	ExtractTimeout time.Duration
	OutputDir      string
	CSVSeparator   string
}

// Lookup returns the connection with the given composite key.
func (c *Config) Lookup(id string) (Connection, bool) {
	for _, conn := range c.Connections {
		if conn.ID() == id {
			return conn, true
		}
	}
	return Connection{}, false
}

type fileConfig struct {
	Environments   []string         `yaml:"environments"`
	Workers        int              `yaml:"workers"`
	ExtractTimeout time.Duration    `yaml:"extract_timeout"`
	OutputDir      string           `yaml:"output_dir"`
	CSVSeparator   string           `yaml:"csv_separator"`
	Limits         Limits           `yaml:"limits"`
	Filter         Filter           `yaml:"filter"`
	Reports        Reports          `yaml:"reports"`
	Connections    []fileConnection `yaml:"connections"`
}

type fileConnection struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Driver      string `yaml:"driver"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ServiceName string `yaml:"service_name"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Owner       string `yaml:"owner"`
}

// PasswordSource supplies passwords for connections configured without one.
type PasswordSource interface {
	Password(id string) (string, bool, error)
}

// Overrides carries command-line values; zero fields leave the loaded value alone.
type Overrides struct {
	Filter         Filter
	Workers        int
	ExtractTimeout time.Duration
	OutputDir      string
}

type LoadOptions struct {
	// Path is the YAML file. A missing file is tolerated only when Path is empty
	// and the default location is used.
	Path string
	// EnvFile is an optional .env file read with godotenv.
	EnvFile string
	// Environ is the process environment (os.Environ()); it wins over EnvFile.
	Environ   []string
	Overrides Overrides
	Passwords PasswordSource
}

func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".envdiff")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return "", err
		}
	}
	return configDir, nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds the run configuration from the YAML file, the .env file, the
// environment and the overrides, in that order of increasing precedence.
func Load(opts LoadOptions) (*Config, error) {
	fc, err := readFileConfig(opts.Path)
	if err != nil {
		return nil, err
	}

	vars, err := readEnv(opts.EnvFile, opts.Environ)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environments:   DefaultEnvironments().With(fc.Environments...).With(splitList(vars[envExtraEnvironments])...),
		Filter:         cleanFilter(fc.Filter),
		Limits:         fc.Limits,
		Reports:        fc.Reports,
		Workers:        fc.Workers,
		ExtractTimeout: fc.ExtractTimeout,
		OutputDir:      fc.OutputDir,
		CSVSeparator:   fc.CSVSeparator,
	}
	if err := applyEnvSettings(cfg, vars); err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts.Overrides)
	applyDefaults(cfg)

	seen := map[string]bool{}
	for i, fconn := range fc.Connections {
		key, err := ParseKey(fconn.Key, cfg.Environments)
		if err != nil {
			return nil, fmt.Errorf("connections[%d]: %w", i, err)
		}
		conn := Connection{
			Key:         key,
			Name:        fconn.Name,
			Driver:      fconn.Driver,
			Host:        fconn.Host,
			Port:        fconn.Port,
			ServiceName: fconn.ServiceName,
			User:        fconn.User,
			Password:    fconn.Password,
			Owner:       fconn.Owner,
		}
		if seen[conn.ID()] {
			return nil, fmt.Errorf("connection %s is declared more than once", conn.ID())
		}
		seen[conn.ID()] = true
		cfg.Connections = append(cfg.Connections, conn)
	}

	envConns, err := connectionsFromEnv(vars, cfg.Environments)
	if err != nil {
		return nil, err
	}
	for _, conn := range envConns {
		if seen[conn.ID()] {
			return nil, fmt.Errorf("connection %s is defined both in the config file and the environment", conn.ID())
		}
		seen[conn.ID()] = true
		cfg.Connections = append(cfg.Connections, conn)
	}

	for i := range cfg.Connections {
		if err := finalizeConnection(&cfg.Connections[i], opts.Passwords); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func readFileConfig(path string) (*fileConfig, error) {
	explicit := path != ""
	if !explicit {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

func applyOverrides(cfg *Config, o Overrides) {
	if !o.Filter.IsZero() {
		cfg.Filter = cleanFilter(o.Filter)
	}
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.ExtractTimeout > 0 {
		cfg.ExtractTimeout = o.ExtractTimeout
	}
	if o.OutputDir != "" {
		cfg.OutputDir = o.OutputDir
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = defaultExtractTimeout
	}
	if cfg.Limits.TotalRecordsLimit <= 0 {
		cfg.Limits.TotalRecordsLimit = defaultTotalRecordsLimit
	}
	if cfg.CSVSeparator == "" {
		cfg.CSVSeparator = defaultCSVSeparator
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if cfg.Reports.Schema == "" {
		cfg.Reports.Schema = defaultSchemaReport
	}
	if cfg.Reports.Events == "" {
		cfg.Reports.Events = defaultEventsReport
	}
}

func defaultPort(driver string) int {
	switch driver {
	case DriverPostgres:
		return 5432
	case DriverMySQL:
		return 3306
	default:
		return 1521
	}
}

func finalizeConnection(conn *Connection, passwords PasswordSource) error {
	conn.Driver = NormalizeDriver(conn.Driver)
	if !IsSupportedDriver(conn.Driver) {
		return fmt.Errorf("connection %s: unsupported driver %q", conn.ID(), conn.Driver)
	}
	if conn.Host == "" {
		return fmt.Errorf("connection %s: host is required", conn.ID())
	}
	if conn.ServiceName == "" {
		return fmt.Errorf("connection %s: service name is required", conn.ID())
	}
	if conn.Port == 0 {
		conn.Port = defaultPort(conn.Driver)
	}
	if conn.Owner == "" {
		conn.Owner = conn.User
	}
	if conn.Password == "" && passwords != nil {
		pw, ok, err := passwords.Password(conn.ID())
		if err != nil {
			return fmt.Errorf("connection %s: resolve password: %w", conn.ID(), err)
		}
		if ok {
			conn.Password = pw
		}
	}
	return nil
}
