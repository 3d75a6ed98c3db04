package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

// Instrument is one price series to simulate on, read from a Yahoo-style CSV.
type Instrument struct {
	Name          string `yaml:"name"`
	Path          string `yaml:"path"`
	AdjustedClose bool   `yaml:"adjusted_close"`
}

// Synthetic describes the generated series used when no instrument is configured.
type Synthetic struct {
	Instruments int    `yaml:"instruments"`
	Bars        int    `yaml:"bars"`
	Seed        uint64 `yaml:"seed"`
}

type Config struct {
	Model    string `yaml:"model"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	Seed     uint64 `yaml:"seed"`

	Instruments []Instrument `yaml:"instruments"`
	Synthetic   Synthetic    `yaml:"synthetic"`

	EpisodeLength int     `yaml:"episode_length"`
	TradingCost   float64 `yaml:"trading_cost"`

	RoundsPerStep int     `yaml:"rounds_per_step"`
	ExploreRate   float64 `yaml:"explore_rate"`
	Temperature   float64 `yaml:"temperature"`
	CPuct         float64 `yaml:"c_puct"`

	Workers       int           `yaml:"workers"`
	WorkerTimeout time.Duration `yaml:"worker_timeout"`
	SimCount      int           `yaml:"sim_count"`
	BatchSize     int           `yaml:"batch_size"`
}

func Default() Config {
	return Config{
		Model:         "linear",
		DataDir:       "./sim_data",
		LogLevel:      "info",
		Seed:          1,
		Synthetic:     Synthetic{Instruments: 2, Bars: 500, Seed: 1},
		EpisodeLength: 30,
		TradingCost:   1e-3,
		RoundsPerStep: 23,
		ExploreRate:   0.1,
		Temperature:   1.0,
		CPuct:         0.95,
		Workers:       2,
		WorkerTimeout: 10 * time.Minute,
		SimCount:      1000,
		BatchSize:     2,
	}
}

// Load decodes YAML over the defaults, so omitted keys keep their default values.
// Unknown keys are rejected.
func Load(r io.Reader) (Config, error) {
	c := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (c Config) Validate() error {
	switch {
	case c.Model == "":
		return fmt.Errorf("%w: empty model name", ErrInvalid)
	case c.EpisodeLength <= 0:
		return fmt.Errorf("%w: episode_length must be positive, got %d", ErrInvalid, c.EpisodeLength)
	case c.TradingCost < 0 || c.TradingCost >= 1:
		return fmt.Errorf("%w: trading_cost must be in [0, 1), got %v", ErrInvalid, c.TradingCost)
	case c.RoundsPerStep <= 0:
		return fmt.Errorf("%w: rounds_per_step must be positive, got %d", ErrInvalid, c.RoundsPerStep)
	case c.ExploreRate < 0 || c.ExploreRate > 1:
		return fmt.Errorf("%w: explore_rate must be in [0, 1], got %v", ErrInvalid, c.ExploreRate)
	case c.Temperature <= 0:
		return fmt.Errorf("%w: temperature must be positive, got %v", ErrInvalid, c.Temperature)
	case c.CPuct < 0:
		return fmt.Errorf("%w: c_puct must not be negative, got %v", ErrInvalid, c.CPuct)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	case c.WorkerTimeout <= 0:
		return fmt.Errorf("%w: worker_timeout must be positive, got %v", ErrInvalid, c.WorkerTimeout)
	case c.SimCount <= 0 || c.BatchSize <= 0:
		return fmt.Errorf("%w: sim_count and batch_size must be positive", ErrInvalid)
	case len(c.Instruments) == 0 && (c.Synthetic.Instruments <= 0 || c.Synthetic.Bars <= c.EpisodeLength+1):
		return fmt.Errorf("%w: no instruments and no usable synthetic series", ErrInvalid)
	}
	for i, in := range c.Instruments {
		if in.Name == "" || in.Path == "" {
			return fmt.Errorf("%w: instrument %d needs a name and a path", ErrInvalid, i)
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
