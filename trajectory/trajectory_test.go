package trajectory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"trader/env"
	"trader/policy"
	"trader/searcher"
)

const days = 5

func setup(t *testing.T) (*env.Trading, env.Factory) {
	t.Helper()
	bars, err := env.SyntheticBars("SYN", 60, 42)
	require.NoError(t, err)
	main, err := env.NewTrading(bars, days, env.WithSeed(7))
	require.NoError(t, err)
	_, err = main.Reset()
	require.NoError(t, err)
	return main, env.NewTradingFactory(bars, days)
}

func TestTrajectoryRun(t *testing.T) {
	t.Run("recording every step with the final reward", func(t *testing.T) {
		main, factory := setup(t)
		start := main.Observe()
		tr := New(main, factory, policy.Uniform(2), WithRoundsPerStep(6), WithSeed(3))

		records, err := tr.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, records, days)
		require.Equal(t, records, tr.History())
		require.Equal(t, start, records[0].Observation, "Records should carry the observation at the decision point")
		final := records[days-1].Reward
		for i, r := range records {
			require.Equal(t, i, r.Step)
			require.Equal(t, final, r.FinalReward)
			require.Len(t, r.QTable, 2)
			require.InDelta(t, 1.0, r.QTable[0]+r.QTable[1], 1e-9)
			require.Len(t, r.Observation, days*env.Features)
		}
		require.Positive(t, final, "Forced sell pays the nav")

		_, _, _, _, err = main.Step(env.Flat)
		require.ErrorIs(t, err, env.ErrEpisodeOver, "Main environment should be played to completion")
	})

	t.Run("exploiting the most visited action", func(t *testing.T) {
		main, factory := setup(t)
		guide := policy.Guided(policy.Fixed(env.Long), policy.Uniform(2))
		tr := New(main, factory, guide, WithRoundsPerStep(4), WithExploreRate(0))

		records, err := tr.Run(context.Background())
		require.NoError(t, err)

		for _, r := range records {
			require.Equal(t, env.Long, r.Action)
			require.Equal(t, []float64{0, 1}, r.QTable)
		}
	})

	t.Run("reusing the subtree of the chosen action", func(t *testing.T) {
		main, factory := setup(t)
		collector := searcher.NewCollector()
		guide := policy.Guided(policy.Fixed(env.Long), policy.Uniform(2))
		tr := New(main, factory, guide, WithRoundsPerStep(4), WithExploreRate(0), WithMetrics(collector))

		_, err := tr.Run(context.Background())
		require.NoError(t, err)

		metrics := collector.Complete()
		require.True(t, metrics.TreeReused)
		require.Equal(t, int64(days*4), metrics.Episodes)
		require.Zero(t, metrics.Aborted)
	})

	t.Run("sharpening the q-table with temperature", func(t *testing.T) {
		main, factory := setup(t)
		tr := New(main, factory, policy.Uniform(2), WithRoundsPerStep(8), WithTemperature(1e-4), WithExploreRate(0))

		records, err := tr.Run(context.Background())
		require.NoError(t, err)

		for _, r := range records {
			peak := floats.Max(r.QTable)
			require.Equal(t, peak, r.QTable[r.Action])
			for _, p := range r.QTable {
				require.True(t, p == 0 || p == peak, "Low temperature should split mass among the most visited actions")
			}
		}
	})
}

func TestTrajectoryFailures(t *testing.T) {
	t.Run("stopping on a cancelled context", func(t *testing.T) {
		main, factory := setup(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(main, factory, policy.Uniform(2)).Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("propagating factory errors", func(t *testing.T) {
		main, _ := setup(t)
		boom := errors.New("boom")
		factory := func() (env.Environment, error) { return nil, boom }

		_, err := New(main, factory, policy.Uniform(2)).Run(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("propagating evaluator contract violations", func(t *testing.T) {
		main, factory := setup(t)

		_, err := New(main, factory, policy.Uniform(3)).Run(context.Background())
		require.ErrorIs(t, err, searcher.ErrPriorShape)
	})
}
