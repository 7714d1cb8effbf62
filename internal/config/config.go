package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env        string `yaml:"env"`
	BaseURL    string `yaml:"base_url"`
	Shortener  `yaml:"shortener"`
	Reaper     `yaml:"reaper"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	GeoIP      `yaml:"geoip"`
	Telemetry  `yaml:"telemetry"`
}

// Shortener controls short code generation and link validity.
type Shortener struct {
	ShortCodeLength    int `yaml:"short_code_length"`
	MaxAttempts        int `yaml:"max_attempts"`
	DefaultValidityMin int `yaml:"default_validity_min"`
}

var defaultShortener = Shortener{
	ShortCodeLength:    8,
	MaxAttempts:        10,
	DefaultValidityMin: 30,
}

// Reaper controls the background sweep of expired links.
type Reaper struct {
	Interval time.Duration `yaml:"interval"`
}

var defaultReaper = Reaper{
	Interval: 5 * time.Minute,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// GeoIP points at a local MaxMind country database. An empty path disables
// lookups and clicks are recorded with an "Unknown" location.
type GeoIP struct {
	DBPath string `yaml:"db_path"`
}

// Telemetry configures the remote log sink. An empty endpoint disables it.
type Telemetry struct {
	Endpoint  string        `yaml:"endpoint"`
	Token     string        `yaml:"token"`
	Stack     string        `yaml:"stack"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

var defaultTelemetry = Telemetry{
	Stack:     "backend",
	QueueSize: 256,
	Timeout:   5 * time.Second,
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.Shortener = defaultShortener
	cfg.Reaper = defaultReaper
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Telemetry = defaultTelemetry
}
