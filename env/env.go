package env

import "errors"

var (
	ErrIllegalAction    = errors.New("illegal action")
	ErrEpisodeOver      = errors.New("episode is over")
	ErrSnapshotMismatch = errors.New("snapshot does not match environment")
	ErrDataTooShort     = errors.New("data too short for episode length")
)

// Observation is a row-major window of market data visible to the agent.
type Observation []float64

// Info carries auxiliary per-step values (e.g. "step", "nav").
type Info map[string]float64

// Snapshot is an immutable capture of environment state. Recovering from it must
// reproduce the exact state at the time it was taken.
type Snapshot interface {
	EnvName() string
}

// Environment is a steppable simulation with a fixed, dense set of legal actions.
type Environment interface {
	Name() string
	Actions() []int
	Reset() (Observation, error)
	Observe() Observation
	Step(action int) (Observation, float64, bool, Info, error)
	Snapshot() Snapshot
	Recover(snapshot Snapshot) error
}

// Factory builds a fresh environment that shares only immutable data with its siblings.
type Factory func() (Environment, error)
