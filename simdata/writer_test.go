package simdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trader/env"
	"trader/searcher"
	"trader/trajectory"
)

func fixedWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(filepath.Join(t.TempDir(), "sim_data"))
	require.NoError(t, err)
	w.now = func() time.Time { return time.Unix(1700000000, 0) }
	return w
}

func TestWriteRecords(t *testing.T) {
	records := []trajectory.Record{
		{Step: 0, Observation: env.Observation{0, 0}, QTable: []float64{0.25, 0.75}, Action: 1, Reward: 0, FinalReward: 1.05},
		{Step: 1, Observation: env.Observation{1.5, -2}, QTable: []float64{1, 0}, Action: 0, Reward: 1.05, FinalReward: 1.05},
	}

	t.Run("naming files by model and timestamp", func(t *testing.T) {
		w := fixedWriter(t)

		path, err := w.WriteRecords("linear", records)
		require.NoError(t, err)
		require.Equal(t, filepath.Join(w.Dir(), "linear.1700000000.csv"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Equal(t, "step,action,reward,final_reward,q_table,observation", lines[0])
		require.Equal(t, "0,1,0,1.05,0.25;0.75,0;0", lines[1])
		require.Len(t, lines, 3)
	})

	t.Run("never overwriting a batch from the same second", func(t *testing.T) {
		w := fixedWriter(t)

		first, err := w.WriteRecords("linear", records)
		require.NoError(t, err)
		second, err := w.WriteRecords("linear", records[:1])
		require.NoError(t, err)

		require.NotEqual(t, first, second)
		require.Equal(t, filepath.Join(w.Dir(), "linear.1700000000.1.csv"), second)
		read, err := ReadRecords(first)
		require.NoError(t, err)
		require.Len(t, read, 2)
	})

	t.Run("reading back written records", func(t *testing.T) {
		w := fixedWriter(t)
		path, err := w.WriteRecords("linear", records)
		require.NoError(t, err)

		read, err := ReadRecords(path)
		require.NoError(t, err)
		require.Equal(t, records, read)
	})

	t.Run("rejecting malformed rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.csv")
		require.NoError(t, os.WriteFile(path, []byte("step,action,reward,final_reward,q_table,observation\nx,1,0,0,1,1\n"), 0644))

		_, err := ReadRecords(path)
		require.ErrorContains(t, err, "row 2")
	})
}

func TestWriteBatchMetrics(t *testing.T) {
	t.Run("writing one row per batch", func(t *testing.T) {
		w := fixedWriter(t)
		metrics := []BatchMetric{
			{Batch: 1, StartTime: time.Unix(0, 0), Duration: time.Second, Jobs: 2, Succeeded: 2, Records: 60, MeanFinalReward: 1.5,
				Search: searcher.SearchMetrics{Episodes: 1380, Expansions: 1000, TerminalBackups: 380}},
			{Batch: 2, StartTime: time.Unix(0, 0), Jobs: 2, Failed: 1, TimedOut: 1},
		}

		path, err := w.WriteBatchMetrics("linear", metrics)
		require.NoError(t, err)
		require.Equal(t, filepath.Join(w.Dir(), "linear.batches.csv"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 3)
		require.Equal(t, "1,1970-01-01T00:00:00Z,1s,2,2,0,0,60,1.5,1380,1000,380,0", lines[1])
		require.Equal(t, "2,1970-01-01T00:00:00Z,0s,2,0,1,1,0,0,0,0,0,0", lines[2])
	})
}

func TestCollector(t *testing.T) {
	t.Run("accounting for concurrent reports", func(t *testing.T) {
		c := NewCollector()
		c.Start(3, 10)

		done := make(chan struct{})
		for i := 0; i < 6; i++ {
			go func() {
				c.AddSuccess(30)
				done <- struct{}{}
			}()
		}
		for i := 0; i < 6; i++ {
			<-done
		}
		c.AddFailure()
		c.AddTimeout(3)

		m := c.Complete()
		require.Equal(t, 3, m.Batch)
		require.Equal(t, int64(10), m.Jobs)
		require.Equal(t, int64(6), m.Succeeded)
		require.Equal(t, int64(1), m.Failed)
		require.Equal(t, int64(3), m.TimedOut)
		require.Equal(t, int64(180), m.Records)
	})

	t.Run("restarting clears counts", func(t *testing.T) {
		c := NewCollector()
		c.Start(1, 2)
		c.AddSuccess(5)
		c.Start(2, 2)

		m := c.Complete()
		require.Equal(t, 2, m.Batch)
		require.Zero(t, m.Succeeded)
		require.Zero(t, m.Records)
	})
}

func TestWriteBatchChart(t *testing.T) {
	t.Run("rendering an html page per run", func(t *testing.T) {
		w := fixedWriter(t)
		metrics := []BatchMetric{
			{Batch: 1, Succeeded: 2, MeanFinalReward: 1.02},
			{Batch: 2, Succeeded: 1, MeanFinalReward: 0.98},
		}

		path, err := w.WriteBatchChart("linear", metrics)
		require.NoError(t, err)
		require.Equal(t, filepath.Join(w.Dir(), "linear.batches.html"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(data), "linear simulation batches")
		require.Contains(t, string(data), "mean final reward")
	})
}
