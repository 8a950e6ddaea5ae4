package stats

import (
	"sync"
	"time"

	"github.com/cevaris/ordered_map"
	"github.com/relloyd/cdcpipe/logger"
)

type StatsFetcher interface {
	GetStats() []Stats
}

// Manager holds the StreamWatcher of every table stream in a run and logs their stats periodically.
type Manager struct {
	mu              sync.Mutex
	log             logger.Logger
	ticker          *time.Ticker
	tickerDone      chan struct{}
	tickerFrequency time.Duration
	watchers        *ordered_map.OrderedMap // table name -> *StreamWatcher, in the order streams were added.
}

// SetStatsDumpFrequency returns an option for NewManager. Zero disables dumping.
func SetStatsDumpFrequency(d time.Duration) func(m *Manager) {
	return func(m *Manager) {
		m.tickerFrequency = d
	}
}

func NewManager(log logger.Logger, options ...func(m *Manager)) *Manager {
	m := &Manager{log: log, tickerFrequency: DefaultStatsDumpFrequency, watchers: ordered_map.NewOrderedMap()}
	for _, option := range options {
		option(m)
	}
	return m
}

var DefaultStatsDumpFrequency = 30 * time.Second

// AddStreamWatcher creates and saves a watcher for table, replacing any earlier one.
func (m *Manager) AddStreamWatcher(table string, mode string, runID string) *StreamWatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := NewStreamWatcher(table, mode, runID)
	m.watchers.Set(table, w)
	return w
}

// Get returns the stats of table's stream.
func (m *Manager) Get(table string) (Stats, bool) {
	m.mu.Lock()
	v, ok := m.watchers.Get(table)
	m.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return v.(*StreamWatcher).RenderStats(), true
}

// GetStats implements interface StatsFetcher{}.
func (m *Manager) GetStats() []Stats {
	m.mu.Lock()
	watchers := make([]*StreamWatcher, 0, m.watchers.Len())
	iter := m.watchers.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		watchers = append(watchers, kv.Value.(*StreamWatcher))
	}
	m.mu.Unlock()
	retval := make([]Stats, len(watchers))
	for idx, w := range watchers {
		retval[idx] = w.RenderStats()
	}
	return retval
}

func (m *Manager) StartDumping() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker != nil {
		m.log.Debug("stats dumper ticker already running")
		return
	}
	if m.tickerFrequency <= 0 {
		m.log.Debug("stats dumper disabled")
		return
	}
	m.ticker = time.NewTicker(m.tickerFrequency)
	m.tickerDone = make(chan struct{})
	ticker, done := m.ticker, m.tickerDone
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.logStats()
			}
		}
	}()
}

// StopDumping stops the ticker and logs the current stats if StartDumping was called.
func (m *Manager) StopDumping() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	close(m.tickerDone)
	m.ticker = nil
	m.mu.Unlock()
	m.logStats()
}

func (m *Manager) logStats() {
	for _, s := range m.GetStats() {
		m.log.Info(s.String())
	}
}
