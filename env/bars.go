package env

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/rand"
)

// Features per bar: open, high, low, close, volume
const Features = 5

const closeColumn = 3

// VolumeScale normalizes raw share volume.
const VolumeScale = 1000000.0

var ErrNoBars = errors.New("no bars")

type Bar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bars is an immutable price series shared read-only by every environment built on it.
type Bars struct {
	name   string
	rows   [][Features]float64
	ratios [][Features]float64
}

// NewBars drops rows without volume (suspended trading days), scales volume and
// precomputes per-column change ratios.
func NewBars(name string, bars []Bar) (*Bars, error) {
	rows := make([][Features]float64, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Volume) {
			continue
		}
		rows = append(rows, [Features]float64{b.Open, b.High, b.Low, b.Close, b.Volume})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("load %s: %w", name, ErrNoBars)
	}

	ratios := make([][Features]float64, len(rows))
	for i := range rows {
		for j := 0; j < Features; j++ {
			ratios[i][j] = 1.0
			if i > 0 && rows[i-1][j] != 0 {
				ratios[i][j] = rows[i][j] / rows[i-1][j]
			}
		}
	}
	for i := range rows {
		rows[i][Features-1] /= VolumeScale
	}

	return &Bars{name: name, rows: rows, ratios: ratios}, nil
}

func (b *Bars) Name() string {
	return b.name
}

func (b *Bars) Len() int {
	return len(b.rows)
}

// CloseRatio returns close[i] / close[i-1].
func (b *Bars) CloseRatio(i int) float64 {
	return b.ratios[i][closeColumn]
}

// LoadBars reads a Yahoo-style CSV (Date,Open,High,Low,Close,Adj Close,Volume).
// Rows with missing volume ("null", "NaN" or empty) are skipped.
func LoadBars(name string, r io.Reader, useAdjustedClose bool) (*Bars, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read bars header: %w", err)
	}

	closeName := "close"
	if useAdjustedClose {
		closeName = "adj close"
	}
	columns := map[string]int{}
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	wanted := []string{"open", "high", "low", closeName, "volume"}
	indices := make([]int, len(wanted))
	for i, w := range wanted {
		idx, ok := columns[w]
		if !ok {
			return nil, fmt.Errorf("bars header missing column %q", w)
		}
		indices[i] = idx
	}

	var bars []Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read bars line %d: %w", line, err)
		}

		var values [Features]float64
		for i, idx := range indices {
			values[i] = parseValue(record[idx])
		}
		if math.IsNaN(values[0]) || math.IsNaN(values[closeColumn]) {
			continue
		}
		bars = append(bars, Bar{
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}

	return NewBars(name, bars)
}

func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// SyntheticBars generates a geometric random walk, for runs without market data.
func SyntheticBars(name string, n int, seed uint64) (*Bars, error) {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		price *= math.Exp(0.01 * rng.NormFloat64())
		spread := math.Abs(0.005 * rng.NormFloat64() * price)
		bars[i] = Bar{
			Open:   open,
			High:   math.Max(open, price) + spread,
			Low:    math.Min(open, price) - spread,
			Close:  price,
			Volume: float64(500000 + rng.Intn(1000000)),
		}
	}
	return NewBars(name, bars)
}
