// Package resource implements the Resource Manager: OS memory polling,
// the under_pressure/critical predicates, idle-triggered model
// offloading, and the circuit breaker that gates non-critical
// scheduled tasks (§4.9). Grounded on resource_manager.rs's
// ResourceManager/CircuitBreaker/ResourceAwareScheduler, translated to
// gopsutil-backed polling instead of hand-parsing /proc/meminfo.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// Usage is one memory measurement.
type Usage struct {
	TotalMB     uint64
	UsedMB      uint64
	AvailableMB uint64
	UsedPercent float64
	Timestamp   time.Time
}

// UnderPressure reports whether used memory exceeds 85%.
func (u Usage) UnderPressure() bool { return u.UsedPercent > 85.0 }

// Critical reports whether used memory exceeds 95%.
func (u Usage) Critical() bool { return u.UsedPercent > 95.0 }

// historyCap bounds the retained measurement history.
const historyCap = 100

// Config tunes the manager's polling and offload behavior.
type Config struct {
	CheckInterval      time.Duration // default 30s
	OffloadTimeout     time.Duration // default 600s
	EnableModelOffload bool
}

// DefaultConfig matches the original's 8GB-environment defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:      30 * time.Second,
		OffloadTimeout:     600 * time.Second,
		EnableModelOffload: true,
	}
}

// Offloader stops or restarts the provider process backing model
// inference. A nil Offloader makes ShouldOffloadModel advisory only.
type Offloader interface {
	Offload(ctx context.Context) error
	Load(ctx context.Context) error
}

// Manager polls memory, tracks plugin/provider activity for idle
// detection, and keeps a bounded measurement history.
type Manager struct {
	cfg          Config
	offloader    Offloader
	mu           sync.Mutex
	lastActivity time.Time
	modelLoaded  bool
	history      []Usage
	now          func() time.Time
	readMem      func() (Usage, error)
}

// New builds a Manager with cfg, optionally offloading the provider
// process through offloader when idle and under pressure.
func New(cfg Config, offloader Offloader) *Manager {
	return &Manager{
		cfg:          cfg,
		offloader:    offloader,
		lastActivity: time.Now(),
		modelLoaded:  true,
		now:          time.Now,
		readMem:      readSystemMemory,
	}
}

func readSystemMemory() (Usage, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return Usage{}, err
	}
	const mb = 1024 * 1024
	return Usage{
		TotalMB:     stat.Total / mb,
		UsedMB:      stat.Used / mb,
		AvailableMB: stat.Available / mb,
		UsedPercent: stat.UsedPercent,
		Timestamp:   time.Now(),
	}, nil
}

// Poll takes one memory measurement, appends it to the bounded
// history, and returns it.
func (m *Manager) Poll() (Usage, error) {
	usage, err := m.readMem()
	if err != nil {
		return Usage{}, err
	}
	usage.Timestamp = m.now()

	m.mu.Lock()
	m.history = append(m.history, usage)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
	m.mu.Unlock()
	return usage, nil
}

// RecordActivity resets the idle timer; any plugin or provider call
// should call this.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

// ShouldOffloadModel reports whether the provider process has been
// idle beyond OffloadTimeout and memory is tight enough to justify
// unloading it.
func (m *Manager) ShouldOffloadModel(usage Usage) bool {
	if !m.cfg.EnableModelOffload {
		return false
	}
	m.mu.Lock()
	idle := m.now().Sub(m.lastActivity)
	loaded := m.modelLoaded
	m.mu.Unlock()
	if !loaded || idle < m.cfg.OffloadTimeout {
		return false
	}
	return usage.UsedPercent > 80.0
}

// OffloadModel unloads the provider process via the configured
// Offloader, if any, and marks the model unloaded.
func (m *Manager) OffloadModel(ctx context.Context) error {
	if m.offloader != nil {
		if err := m.offloader.Offload(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.modelLoaded = false
	m.mu.Unlock()
	return nil
}

// LoadModel restarts the provider process, if it was offloaded, and
// resets the idle timer.
func (m *Manager) LoadModel(ctx context.Context) error {
	m.mu.Lock()
	alreadyLoaded := m.modelLoaded
	m.mu.Unlock()
	if alreadyLoaded {
		return nil
	}
	if m.offloader != nil {
		if err := m.offloader.Load(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.modelLoaded = true
	m.lastActivity = m.now()
	m.mu.Unlock()
	return nil
}

// ModelLoaded reports whether the provider process is currently
// believed to be loaded.
func (m *Manager) ModelLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelLoaded
}

// History returns a snapshot of retained measurements, oldest first.
func (m *Manager) History() []Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Usage, len(m.history))
	copy(out, m.history)
	return out
}

// AverageUsedPercent returns the mean used-percent over retained
// history, or (0, false) if no measurements have been taken.
func (m *Manager) AverageUsedPercent() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return 0, false
	}
	var sum float64
	for _, u := range m.history {
		sum += u.UsedPercent
	}
	return sum / float64(len(m.history)), true
}
