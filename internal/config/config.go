// Package config loads settings from an optional YAML file, .env files and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"moodle-sync/internal/store"
)

type Config struct {
	Moodle   Moodle   `yaml:"moodle" envPrefix:"MOODLE_"`
	Database Database `yaml:"database" envPrefix:"DB_"`
	Import   Import   `yaml:"import" envPrefix:"IMPORT_"`
	Report   Report   `yaml:"report" envPrefix:"REPORT_"`
	SFTP     SFTP     `yaml:"sftp" envPrefix:"SFTP_"`
	Log      Log      `yaml:"log" envPrefix:"LOG_"`
}

type Moodle struct {
	Token   string        `yaml:"token" env:"TOKEN"`
	URL     string        `yaml:"company_url" env:"URL"`
	Workers int           `yaml:"workers" env:"WORKERS"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	SkipShortNames     []string `yaml:"skip_shortnames" env:"SKIP_SHORTNAMES"`
	ExcludedFirstNames []string `yaml:"excluded_firstnames" env:"EXCLUDED_FIRSTNAMES"`
	ModularFormats     []string `yaml:"modular_formats" env:"MODULAR_FORMATS"`
}

type Database struct {
	// Driver is mysql, postgres or sqlite.
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	// Name is the schema, or the file path for sqlite.
	Name string `yaml:"name" env:"NAME"`

	BatchSize    int           `yaml:"batch_size" env:"BATCH_SIZE"`
	IDStep       int64         `yaml:"id_step" env:"ID_STEP"`
	LockName     string        `yaml:"lock_name" env:"LOCK_NAME"`
	LockTimeout  time.Duration `yaml:"lock_timeout" env:"LOCK_TIMEOUT"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// Timezone used to read moodle epoch timestamps, e.g. "Europe/Moscow".
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
}

type Import struct {
	Source            string `yaml:"source" env:"SOURCE"`
	ProgressFromStart bool   `yaml:"progress_from_start" env:"PROGRESS_FROM_START"`
	BcryptCost        int    `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

type Report struct {
	// Path of the CSV run report. Empty disables it.
	Path string `yaml:"path" env:"PATH"`
}

type SFTP struct {
	Host                  string `yaml:"host" env:"HOST"`
	Port                  int    `yaml:"port" env:"PORT"`
	User                  string `yaml:"user" env:"USER"`
	Password              string `yaml:"password" env:"PASS"`
	RemoteDir             string `yaml:"remote_dir" env:"REMOTE_DIR"`
	KnownHosts            string `yaml:"known_hosts" env:"KNOWN_HOSTS"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key" env:"INSECURE_IGNORE_HOST_KEY"`
}

type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

func Default() Config {
	return Config{
		Moodle: Moodle{Workers: 4, Timeout: time.Minute},
		Database: Database{
			Driver:      "mysql",
			BatchSize:   500,
			IDStep:      1,
			LockName:    "moodle-sync.import",
			LockTimeout: 30 * time.Second,
		},
		Import: Import{Source: "moodle", BcryptCost: 10},
		SFTP:   SFTP{Port: 22, RemoteDir: "/"},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (skipped
// when path is empty), then envFiles (".env" when none are given, missing files
// are ignored), then the process environment. Values from .env files never
// override variables that are already set.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, nil
}

// Location resolves Database.Timezone, falling back to the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Database.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Database.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Database.Timezone, err)
	}
	return loc, nil
}

// ErrMissingKey is matched by every *MissingKeysError.
var ErrMissingKey = errors.New("missing required config key")

// MissingKeysError lists all required keys that are empty.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "config: missing required keys: " + strings.Join(e.Keys, ", ")
}

func (e *MissingKeysError) Unwrap() error { return ErrMissingKey }

// Validate checks everything a sync run needs.
func (c Config) Validate() error {
	return missing(append(c.moodleMissing(), c.databaseMissing()...))
}

// ValidateMoodle checks only the moodle connection settings.
func (c Config) ValidateMoodle() error {
	return missing(c.moodleMissing())
}

// ValidateDatabase checks only the database settings.
func (c Config) ValidateDatabase() error {
	return missing(c.databaseMissing())
}

func (c Config) moodleMissing() []string {
	var keys []string
	if c.Moodle.Token == "" {
		keys = append(keys, "moodle.token")
	}
	if c.Moodle.URL == "" {
		keys = append(keys, "moodle.company_url")
	}
	return keys
}

func (c Config) databaseMissing() []string {
	var keys []string
	if c.Database.Name == "" {
		keys = append(keys, "database.name")
	}
	// sqlite only needs a file name
	if d, err := store.DialectFor(c.Database.Driver); err == nil && d.Name == store.SQLite.Name {
		return keys
	}
	if c.Database.Host == "" {
		keys = append(keys, "database.host")
	}
	if c.Database.User == "" {
		keys = append(keys, "database.user")
	}
	return keys
}

func missing(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return &MissingKeysError{Keys: keys}
}
