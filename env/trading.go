package env

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/exp/rand"
	"golang.org/x/exp/slices"
)

const (
	Flat = 0
	Long = 1
)

// DefaultTradingCost is charged as a fraction of nav whenever the position is closed.
const DefaultTradingCost = 1e-3

type TradingOption func(t *Trading)

func WithTradingCost(cost float64) TradingOption {
	return func(t *Trading) {
		if cost >= 0 && cost < 1 {
			t.cost = cost
		}
	}
}

func WithSeed(seed uint64) TradingOption {
	return func(t *Trading) {
		t.seed = seed
	}
}

// Trading simulates a single instrument over a window of `days` contiguous bars. Each
// step the agent is either FLAT or LONG; nav only compounds while LONG.
type Trading struct {
	bars    *Bars
	days    int
	cost    float64
	actions []int
	seed    uint64
	rng     *rand.Rand

	// Episode cursor, captured by Snapshot
	start     int
	step      int
	done      bool
	positions []int
	navs      []float64
}

type tradingSnapshot struct {
	name      string
	days      int
	start     int
	step      int
	done      bool
	positions []int
	navs      []float64
}

func (s *tradingSnapshot) EnvName() string {
	return s.name
}

func NewTrading(bars *Bars, days int, options ...TradingOption) (*Trading, error) {
	if days <= 0 {
		return nil, fmt.Errorf("invalid episode length %d", days)
	}
	if bars.Len()-days <= 1 {
		return nil, fmt.Errorf("%s with %d bars for %d days: %w", bars.Name(), bars.Len(), days, ErrDataTooShort)
	}
	t := &Trading{
		bars:      bars,
		days:      days,
		cost:      DefaultTradingCost,
		actions:   []int{Flat, Long},
		seed:      1,
		positions: make([]int, days),
		navs:      make([]float64, days),
	}
	for _, option := range options {
		option(t)
	}
	t.rng = rand.New(rand.NewSource(t.seed))
	t.clear()
	return t, nil
}

// NewTradingFactory returns a factory whose environments share bars but nothing else.
// The n-th environment built draws its start days from seed+n.
func NewTradingFactory(bars *Bars, days int, options ...TradingOption) Factory {
	var created atomic.Uint64
	return func() (Environment, error) {
		t, err := NewTrading(bars, days, options...)
		if err != nil {
			return nil, err
		}
		t.rng.Seed(t.seed + created.Add(1) - 1)
		return t, nil
	}
}

func (t *Trading) Name() string {
	return t.bars.Name()
}

func (t *Trading) Days() int {
	return t.days
}

func (t *Trading) Actions() []int {
	return slices.Clone(t.actions)
}

func (t *Trading) Reset() (Observation, error) {
	t.start = 1 + t.rng.Intn(t.bars.Len()-t.days-1)
	t.clear()
	return t.Observe(), nil
}

func (t *Trading) clear() {
	t.step = 0
	t.done = false
	for i := range t.positions {
		t.positions[i] = Flat
		t.navs[i] = 1.0
	}
}

// Observe returns the bars seen so far, padded with zero rows to `days` rows.
func (t *Trading) Observe() Observation {
	obs := make(Observation, t.days*Features)
	for i := 0; i < t.step && i < t.days; i++ {
		row := t.bars.rows[t.start+i]
		copy(obs[i*Features:(i+1)*Features], row[:])
	}
	return obs
}

func (t *Trading) Step(action int) (Observation, float64, bool, Info, error) {
	if !slices.Contains(t.actions, action) {
		return nil, 0, false, nil, fmt.Errorf("%w: %d", ErrIllegalAction, action)
	}
	if t.done || t.step >= t.days {
		return nil, 0, false, nil, ErrEpisodeOver
	}

	k := t.step
	t.positions[k] = action
	last := 1.0
	if k > 0 {
		last = t.navs[k-1]
	}
	nav := last
	if action == Long {
		nav *= t.bars.CloseRatio(t.start + k + 1)
	}
	t.navs[k] = nav
	t.step++

	done := t.step >= t.days || nav <= 0
	reward := 0.0
	if k > 0 && t.positions[k-1] != action {
		reward = nav * (1 - t.cost)
	}
	if done {
		// Forced sell at the end of the episode
		reward = nav * (1 - t.cost)
		t.done = true
	}

	info := Info{
		"step":   float64(k),
		"nav":    nav,
		"reward": reward,
	}
	return t.Observe(), reward, done, info, nil
}

func (t *Trading) Snapshot() Snapshot {
	return &tradingSnapshot{
		name:      t.bars.Name(),
		days:      t.days,
		start:     t.start,
		step:      t.step,
		done:      t.done,
		positions: slices.Clone(t.positions),
		navs:      slices.Clone(t.navs),
	}
}

func (t *Trading) Recover(snapshot Snapshot) error {
	s, ok := snapshot.(*tradingSnapshot)
	if !ok || s == nil {
		return fmt.Errorf("%w: unexpected snapshot type %T", ErrSnapshotMismatch, snapshot)
	}
	if s.name != t.bars.Name() || s.days != t.days || len(s.positions) != t.days || len(s.navs) != t.days {
		return fmt.Errorf("%w: %s/%d days", ErrSnapshotMismatch, s.name, s.days)
	}
	t.start = s.start
	t.step = s.step
	t.done = s.done
	copy(t.positions, s.positions)
	copy(t.navs, s.navs)
	return nil
}
