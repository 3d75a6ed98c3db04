package searcher

import (
	"sync/atomic"
	"time"
)

type SearchMetrics struct {
	StartTime       time.Time
	Duration        time.Duration
	Episodes        int64
	Expansions      int64
	TerminalBackups int64
	Aborted         int64
	TreeReused      bool
}

// Collector records search statistics. Implementations are safe for concurrent use, so
// one collector may be shared by engines running in different goroutines.
type Collector interface {
	Start()
	AddEpisode()
	AddExpansion()
	AddTerminalBackup()
	AddAbort()
	ReusedTree()
	Complete() SearchMetrics
}

type collector struct {
	startTime       time.Time
	episodes        atomic.Int64
	expansions      atomic.Int64
	terminalBackups atomic.Int64
	aborted         atomic.Int64
	treeReused      atomic.Bool
}

func NewCollector() Collector {
	return &collector{startTime: time.Now()}
}

func (m *collector) Start() {
	m.startTime = time.Now()
}

func (m *collector) AddEpisode() {
	m.episodes.Add(1)
}

func (m *collector) AddExpansion() {
	m.expansions.Add(1)
}

func (m *collector) AddTerminalBackup() {
	m.terminalBackups.Add(1)
}

func (m *collector) AddAbort() {
	m.aborted.Add(1)
}

func (m *collector) ReusedTree() {
	m.treeReused.Store(true)
}

func (m *collector) Complete() SearchMetrics {
	return SearchMetrics{
		StartTime:       m.startTime,
		Duration:        time.Since(m.startTime),
		Episodes:        m.episodes.Load(),
		Expansions:      m.expansions.Load(),
		TerminalBackups: m.terminalBackups.Load(),
		Aborted:         m.aborted.Load(),
		TreeReused:      m.treeReused.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start()                  {}
func (m *dummyCollector) AddEpisode()             {}
func (m *dummyCollector) AddExpansion()           {}
func (m *dummyCollector) AddTerminalBackup()      {}
func (m *dummyCollector) AddAbort()               {}
func (m *dummyCollector) ReusedTree()             {}
func (m *dummyCollector) Complete() SearchMetrics { return SearchMetrics{} }
