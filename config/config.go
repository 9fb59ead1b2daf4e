// Package config loads the process configuration from the environment and
// the satellites file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/satellite"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the whole process configuration.
type Config struct {
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogConsole       bool          `env:"LOG_CONSOLE"`
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL      string        `env:"DATABASE_URL,required"`
	EventCodec       string        `env:"EVENT_CODEC" envDefault:"json"`
	SatellitesFile   string        `env:"SATELLITES_FILE"`
	SatelliteTimeout time.Duration `env:"SATELLITE_TIMEOUT" envDefault:"2s"`
	SectionTimeout   time.Duration `env:"SECTION_TIMEOUT" envDefault:"2s"`
	Kafka            Kafka         `envPrefix:"KAFKA_"`
	Backends         Backends      `envPrefix:"BACKEND_"`
	Sweep            Sweep         `envPrefix:"SWEEP_"`
	Relay            Relay         `envPrefix:"RELAY_"`

	// Satellites is read from SatellitesFile.
	Satellites []satellite.Definition `env:"-"`
}

type Kafka struct {
	Brokers      string        `env:"BROKERS" envDefault:"localhost:9092"`
	GroupID      string        `env:"GROUP_ID" envDefault:"asd-platform"`
	PollTimeout  time.Duration `env:"POLL_TIMEOUT" envDefault:"500ms"`
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"1s"`
}

// Backends holds the base URLs of the generic backends feeding the
// dashboard. An empty URL leaves its section out.
type Backends struct {
	MembersURL      string        `env:"MEMBERS_URL"`
	ComplianceURL   string        `env:"COMPLIANCE_URL"`
	FinanceURL      string        `env:"FINANCE_URL"`
	CompetitionsURL string        `env:"COMPETITIONS_URL"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"2s"`
}

type Sweep struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Window    time.Duration `env:"WINDOW" envDefault:"720h"`
	Interval  time.Duration `env:"INTERVAL" envDefault:"1h"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"100"`
}

type Relay struct {
	Enabled         bool          `env:"ENABLED" envDefault:"true"`
	PollingInterval time.Duration `env:"POLLING_INTERVAL" envDefault:"3s"`
	BatchSize       int           `env:"BATCH_SIZE" envDefault:"100"`
	MaxPerInterval  int           `env:"MAX_PER_INTERVAL" envDefault:"-1"`
}

type satellitesFile struct {
	Satellites []satellite.Definition `yaml:"satellites"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(environment map[string]string) (*Config, error) {
	return load(env.Options{Environment: environment})
}

func load(opts env.Options) (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if c.SatellitesFile != "" {
		defs, err := LoadSatellites(c.SatellitesFile)
		if err != nil {
			return nil, err
		}
		c.Satellites = defs
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadSatellites reads the satellite definitions from a YAML file shaped as
// `satellites: [{disciplina, name, baseUrl}]`.
func LoadSatellites(path string) ([]satellite.Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading satellites file: %w", err)
	}
	var f satellitesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing satellites file %s: %w", path, err)
	}
	return f.Satellites, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.EventCodec != "json" && c.EventCodec != "msgpack" {
		errs = append(errs, fmt.Errorf("unsupported event codec '%s'", c.EventCodec))
	}
	if c.Kafka.Brokers == "" {
		errs = append(errs, errors.New("kafka brokers are required"))
	}
	if c.Sweep.Window <= 0 {
		errs = append(errs, errors.New("sweep window must be positive"))
	}
	if c.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.Sweep.BatchSize <= 0 {
		errs = append(errs, errors.New("sweep batch size must be positive"))
	}
	if c.Relay.BatchSize <= 0 {
		errs = append(errs, errors.New("relay batch size must be positive"))
	}
	return errors.Join(errs...)
}
