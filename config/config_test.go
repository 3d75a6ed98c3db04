package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults for an empty document", func(t *testing.T) {
		c, err := Load(strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, Default(), c)
		require.Equal(t, 30, c.EpisodeLength)
		require.Equal(t, 23, c.RoundsPerStep)
		require.Equal(t, 0.1, c.ExploreRate)
		require.Equal(t, 2, c.Workers)
	})

	t.Run("overriding only the keys given", func(t *testing.T) {
		doc := `
model: resnet
rounds_per_step: 100
worker_timeout: 90s
log_level: debug
instruments:
  - name: AAPL
    path: data/AAPL.csv
    adjusted_close: true
`
		c, err := Load(strings.NewReader(doc))
		require.NoError(t, err)

		require.Equal(t, "resnet", c.Model)
		require.Equal(t, 100, c.RoundsPerStep)
		require.Equal(t, 90*time.Second, c.WorkerTimeout)
		require.Equal(t, []Instrument{{Name: "AAPL", Path: "data/AAPL.csv", AdjustedClose: true}}, c.Instruments)
		require.Equal(t, zerolog.DebugLevel, c.Level())
		require.Equal(t, 30, c.EpisodeLength, "Omitted keys keep defaults")
	})

	t.Run("rejecting unknown keys", func(t *testing.T) {
		_, err := Load(strings.NewReader("rounds: 3\n"))
		require.Error(t, err)
	})

	t.Run("loading from a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.yaml")
		require.NoError(t, os.WriteFile(path, []byte("workers: 8\n"), 0644))

		c, err := LoadFile(path)
		require.NoError(t, err)
		require.Equal(t, 8, c.Workers)

		_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"empty model", func(c *Config) { c.Model = "" }},
		{"non-positive episode length", func(c *Config) { c.EpisodeLength = 0 }},
		{"trading cost of one", func(c *Config) { c.TradingCost = 1 }},
		{"non-positive rounds per step", func(c *Config) { c.RoundsPerStep = 0 }},
		{"explore rate above one", func(c *Config) { c.ExploreRate = 1.5 }},
		{"zero temperature", func(c *Config) { c.Temperature = 0 }},
		{"negative c_puct", func(c *Config) { c.CPuct = -1 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no timeout", func(c *Config) { c.WorkerTimeout = 0 }},
		{"no batch size", func(c *Config) { c.BatchSize = 0 }},
		{"synthetic series shorter than an episode", func(c *Config) { c.Synthetic.Bars = 31 }},
		{"instrument without path", func(c *Config) { c.Instruments = []Instrument{{Name: "AAPL"}} }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tc := range cases {
		t.Run("rejecting "+tc.name, func(t *testing.T) {
			c := Default()
			tc.modify(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}

	t.Run("accepting the defaults", func(t *testing.T) {
		require.NoError(t, Default().Validate())
	})
}
