package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"trader/env"
	"trader/policy"
	"trader/searcher"
	"trader/simdata"
	"trader/trajectory"
)

const (
	Workers       = 2
	WorkerTimeout = 10 * time.Minute
)

var ErrNoData = errors.New("batch produced no results")

// RecordWriter persists the records of one non-empty batch.
type RecordWriter interface {
	WriteRecords(model string, records []trajectory.Record) (string, error)
}

// Job is one trajectory to simulate: a start state and the factory able to restore it.
type Job struct {
	Factory  env.Factory
	Snapshot env.Snapshot
	Seed     uint64
}

// Batch holds the trajectories of the jobs that completed in time.
type Batch struct {
	Results [][]trajectory.Record
	Metric  simdata.BatchMetric
}

func (b *Batch) Records() []trajectory.Record {
	var records []trajectory.Record
	for _, result := range b.Results {
		records = append(records, result...)
	}
	return records
}

// MeanFinalReward averages the final reward over completed trajectories.
func (b *Batch) MeanFinalReward() (float64, error) {
	if len(b.Results) == 0 {
		return 0, ErrNoData
	}
	finals := make([]float64, len(b.Results))
	for i, result := range b.Results {
		finals[i] = result[len(result)-1].FinalReward
	}
	return stat.Mean(finals, nil), nil
}

type Option func(g *Generator)

func WithWorkers(workers int) Option {
	return func(g *Generator) {
		if workers > 0 {
			g.workers = workers
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(g *Generator) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

func WithWriter(writer RecordWriter) Option {
	return func(g *Generator) {
		g.writer = writer
	}
}

// WithTrajectoryOptions configures every trajectory the generator runs.
func WithTrajectoryOptions(options ...trajectory.Option) Option {
	return func(g *Generator) {
		g.trajectoryOptions = append(g.trajectoryOptions, options...)
	}
}

// Generator produces training records by simulating trajectories on independent
// workers. Only environment snapshots and the read-only policy cross worker boundaries.
type Generator struct {
	model     string
	factories []env.Factory
	policy    policy.Evaluator

	workers           int
	timeout           time.Duration
	rng               *rand.Rand
	writer            RecordWriter
	trajectoryOptions []trajectory.Option

	metrics []simdata.BatchMetric
}

// NewGenerator panics without environments to simulate on. The policy is shared by all
// workers and must be safe for concurrent evaluation.
func NewGenerator(model string, factories []env.Factory, p policy.Evaluator, options ...Option) *Generator {
	if len(factories) == 0 {
		panic("must provide at least one environment")
	}
	g := &Generator{ // Default values
		model:     model,
		factories: factories,
		policy:    p,
		workers:   Workers,
		timeout:   WorkerTimeout,
		rng:       rand.New(rand.NewSource(1)),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// Metrics returns the statistics of every batch run so far.
func (g *Generator) Metrics() []simdata.BatchMetric {
	return g.metrics
}

// Jobs draws n start states, each on a freshly reset environment of a random instrument.
func (g *Generator) Jobs(n int) ([]Job, error) {
	jobs := make([]Job, 0, n)
	for i := 0; i < n; i++ {
		factory := g.factories[g.rng.Intn(len(g.factories))]
		e, err := factory()
		if err != nil {
			return nil, fmt.Errorf("create environment: %w", err)
		}
		if _, err := e.Reset(); err != nil {
			return nil, fmt.Errorf("reset %s: %w", e.Name(), err)
		}
		jobs = append(jobs, Job{Factory: factory, Snapshot: e.Snapshot(), Seed: g.rng.Uint64()})
	}
	return jobs, nil
}

type result struct {
	job     int
	records []trajectory.Record
	err     error
}

// RunBatch simulates the jobs on the worker pool and waits for all of them or the
// timeout. Failed and timed-out jobs are logged and excluded from the batch.
func (g *Generator) RunBatch(ctx context.Context, jobs []Job) *Batch {
	collector := simdata.NewCollector()
	collector.Start(len(g.metrics)+1, len(jobs))
	search := searcher.NewCollector()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	task := make(chan int, len(jobs))
	for i := range jobs {
		task <- i
	}
	close(task)

	// Buffered so late workers never block after a timeout
	results := make(chan result, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < g.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := range task {
				if ctx.Err() != nil {
					return
				}
				records, err := g.simulate(ctx, jobs[j], search)
				results <- result{job: j, records: records, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	batch := &Batch{}
	received := 0
	for received < len(jobs) {
		select {
		case r, ok := <-results:
			if !ok {
				// Workers stopped early on cancellation
				collector.AddTimeout(len(jobs) - received)
				received = len(jobs)
				continue
			}
			received++
			if r.err != nil {
				if ctx.Err() != nil && errors.Is(r.err, ctx.Err()) {
					collector.AddTimeout(1)
					continue
				}
				log.Error().Err(r.err).Msgf("simulation %d failed", r.job)
				collector.AddFailure()
				continue
			}
			log.Debug().Msgf("simulation %d finished with %d records", r.job, len(r.records))
			collector.AddSuccess(len(r.records))
			batch.Results = append(batch.Results, r.records)
		case <-ctx.Done():
			log.Error().Msgf("simulation batch timed out with %d of %d jobs pending", len(jobs)-received, len(jobs))
			collector.AddTimeout(len(jobs) - received)
			received = len(jobs)
		}
	}

	metric := collector.Complete()
	metric.Search = search.Complete()
	if mean, err := batch.MeanFinalReward(); err == nil {
		metric.MeanFinalReward = mean
	}
	batch.Metric = metric
	g.metrics = append(g.metrics, metric)
	return batch
}

// simulate runs one job to completion. Panics are recovered into errors so one broken
// worker cannot take the batch down.
func (g *Generator) simulate(ctx context.Context, job Job, search searcher.Collector) (records []trajectory.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simulation panicked: %v", r)
		}
	}()

	main, err := job.Factory()
	if err != nil {
		return nil, fmt.Errorf("create environment: %w", err)
	}
	if err := main.Recover(job.Snapshot); err != nil {
		return nil, fmt.Errorf("recover environment: %w", err)
	}
	options := append([]trajectory.Option{
		trajectory.WithSeed(job.Seed),
		trajectory.WithMetrics(search),
	}, g.trajectoryOptions...)
	return trajectory.New(main, job.Factory, g.policy, options...).Run(ctx)
}

// Run simulates total trajectories in batches, persisting every non-empty batch. It
// returns the paths written.
func (g *Generator) Run(ctx context.Context, total, batchSize int) ([]string, error) {
	if total <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("invalid simulation count %d with batch size %d", total, batchSize)
	}

	var paths []string
	for count := 0; count < total; {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		n := min(batchSize, total-count)
		jobs, err := g.Jobs(n)
		if err != nil {
			return paths, fmt.Errorf("prepare batch: %w", err)
		}

		batch := g.RunBatch(ctx, jobs)
		count += n
		mean, err := batch.MeanFinalReward()
		if err != nil {
			log.Warn().Err(err).Msgf("skipping batch %d (%d of %d simulations)", batch.Metric.Batch, count, total)
			continue
		}
		log.Info().Msgf("batch %d: %d of %d simulations, %d records, mean final reward %.4f",
			batch.Metric.Batch, count, total, batch.Metric.Records, mean)

		if g.writer == nil {
			continue
		}
		path, err := g.writer.WriteRecords(g.model, batch.Records())
		if err != nil {
			return paths, fmt.Errorf("persist batch %d: %w", batch.Metric.Batch, err)
		}
		log.Info().Msgf("stored records in %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}
