package env

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const yahooCSV = `Date,Open,High,Low,Close,Adj Close,Volume
2017-01-03,10.0,11.0,9.5,10.5,10.4,1000000
2017-01-04,10.5,12.0,10.0,11.0,10.9,2000000
2017-01-05,null,null,null,null,null,null
2017-01-06,11.0,11.5,10.5,11.0,10.9,
2017-01-09,11.0,11.5,10.0,12.1,12.0,3000000
`

func TestLoadBars(t *testing.T) {
	t.Run("skipping rows without prices or volume", func(t *testing.T) {
		bars, err := LoadBars("000333.SZ", strings.NewReader(yahooCSV), false)
		require.NoError(t, err)
		require.Equal(t, 3, bars.Len())
		require.Equal(t, "000333.SZ", bars.Name())
	})

	t.Run("computing close ratios and scaling volume", func(t *testing.T) {
		bars, err := LoadBars("X", strings.NewReader(yahooCSV), false)
		require.NoError(t, err)
		require.Equal(t, 1.0, bars.CloseRatio(0), "First ratio has no predecessor")
		require.InDelta(t, 11.0/10.5, bars.CloseRatio(1), 1e-12)
		require.InDelta(t, 12.1/11.0, bars.CloseRatio(2), 1e-12)
		require.InDelta(t, 2.0, bars.rows[1][Features-1], 1e-12)
	})

	t.Run("using adjusted close when requested", func(t *testing.T) {
		bars, err := LoadBars("X", strings.NewReader(yahooCSV), true)
		require.NoError(t, err)
		require.InDelta(t, 10.9/10.4, bars.CloseRatio(1), 1e-12)
	})

	t.Run("rejecting a header without required columns", func(t *testing.T) {
		_, err := LoadBars("X", strings.NewReader("Date,Open\n2017-01-03,1\n"), false)
		require.Error(t, err)
	})

	t.Run("rejecting an empty series", func(t *testing.T) {
		_, err := LoadBars("X", strings.NewReader("Date,Open,High,Low,Close,Adj Close,Volume\n"), false)
		require.ErrorIs(t, err, ErrNoBars)
	})
}

func TestNewBars(t *testing.T) {
	t.Run("zero predecessor yields a neutral ratio", func(t *testing.T) {
		bars, err := NewBars("Z", []Bar{
			{Open: 0, High: 0, Low: 0, Close: 0, Volume: 1},
			{Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		})
		require.NoError(t, err)
		require.Equal(t, 1.0, bars.CloseRatio(1))
	})

	t.Run("dropping suspended days", func(t *testing.T) {
		bars, err := NewBars("S", []Bar{
			{Close: 1, Volume: 1},
			{Close: 2, Volume: math.NaN()},
			{Close: 3, Volume: 1},
		})
		require.NoError(t, err)
		require.Equal(t, 2, bars.Len())
		require.Equal(t, 3.0, bars.CloseRatio(1))
	})
}

func TestSyntheticBars(t *testing.T) {
	t.Run("same seed gives the same series", func(t *testing.T) {
		a, err := SyntheticBars("A", 50, 42)
		require.NoError(t, err)
		b, err := SyntheticBars("A", 50, 42)
		require.NoError(t, err)
		require.Equal(t, a.rows, b.rows)
		for i := 0; i < a.Len(); i++ {
			require.Greater(t, a.CloseRatio(i), 0.0)
		}
	})
}
