package simdata

import (
	"sync/atomic"
	"time"

	"trader/searcher"
)

type BatchMetric struct {
	Batch           int
	StartTime       time.Time
	Duration        time.Duration
	Jobs            int64
	Succeeded       int64
	Failed          int64
	TimedOut        int64
	Records         int64
	MeanFinalReward float64
	Search          searcher.SearchMetrics
}

// Collector accounts for the jobs of one batch. Workers report concurrently.
type Collector interface {
	Start(batch, jobs int)
	AddSuccess(records int)
	AddFailure()
	AddTimeout(jobs int)
	Complete() BatchMetric
}

type collector struct {
	batch     int
	jobs      int64
	startTime time.Time
	succeeded atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64
	records   atomic.Int64
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start(batch, jobs int) {
	m.startTime = time.Now()
	m.batch = batch
	m.jobs = int64(jobs)
	m.succeeded.Store(0)
	m.failed.Store(0)
	m.timedOut.Store(0)
	m.records.Store(0)
}

func (m *collector) AddSuccess(records int) {
	m.succeeded.Add(1)
	m.records.Add(int64(records))
}

func (m *collector) AddFailure() {
	m.failed.Add(1)
}

func (m *collector) AddTimeout(jobs int) {
	m.timedOut.Add(int64(jobs))
}

func (m *collector) Complete() BatchMetric {
	return BatchMetric{
		Batch:     m.batch,
		StartTime: m.startTime,
		Duration:  time.Since(m.startTime),
		Jobs:      m.jobs,
		Succeeded: m.succeeded.Load(),
		Failed:    m.failed.Load(),
		TimedOut:  m.timedOut.Load(),
		Records:   m.records.Load(),
	}
}
