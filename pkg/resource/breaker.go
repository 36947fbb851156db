package resource

import (
	"sync"
	"time"
)

// TaskPriority orders scheduled background work for resource gating.
// Critical always runs; everything else is subject to the circuit
// breaker and a feasibility check against available memory.
type TaskPriority int

const (
	Critical TaskPriority = iota
	High
	Medium
	Low
)

// Task is one unit of schedulable background work.
type Task struct {
	ID                string
	Priority          TaskPriority
	EstimatedMemoryMB uint64
}

// CanRun reports whether Task fits within availableMB.
func (t Task) CanRun(availableMB uint64) bool {
	return t.EstimatedMemoryMB <= availableMB
}

// defaultCooldown is the breaker's trip duration, matching the
// original's one-minute scheduler default.
const defaultCooldown = 60 * time.Second

// CircuitBreaker blocks non-Critical tasks for a cooldown window once
// tripped, reopening automatically once the cooldown elapses.
type CircuitBreaker struct {
	mu       sync.Mutex
	open     bool
	lastTrip time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewCircuitBreaker builds a breaker with the given cooldown.
func NewCircuitBreaker(cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{cooldown: cooldown, now: time.Now}
}

// AllowTask reports whether a task may proceed, auto-resetting the
// breaker if the cooldown has elapsed since it tripped.
func (b *CircuitBreaker) AllowTask() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open && b.now().Sub(b.lastTrip) > b.cooldown {
		b.open = false
	}
	return !b.open
}

// Trip opens the breaker, blocking non-Critical tasks until cooldown.
func (b *CircuitBreaker) Trip() {
	b.mu.Lock()
	b.open = true
	b.lastTrip = b.now()
	b.mu.Unlock()
}

// Reset closes the breaker immediately.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	b.open = false
	b.mu.Unlock()
}

// IsOpen reports the breaker's current state without resetting it.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Scheduler gates background task execution on the resource manager's
// memory state: Critical tasks always run; High/Medium/Low tasks must
// pass both the circuit breaker and an estimated_memory_mb ≤
// available_mb feasibility check, and a Critical usage reading trips
// the breaker for future tasks.
type Scheduler struct {
	manager *Manager
	breaker *CircuitBreaker
}

// NewScheduler builds a Scheduler over manager with the default
// one-minute breaker cooldown.
func NewScheduler(manager *Manager) *Scheduler {
	return &Scheduler{manager: manager, breaker: NewCircuitBreaker(defaultCooldown)}
}

// ShouldSchedule decides whether task may run right now.
func (s *Scheduler) ShouldSchedule(task Task) (bool, error) {
	if task.Priority == Critical {
		return true, nil
	}
	if !s.breaker.AllowTask() {
		return false, nil
	}

	usage, err := s.manager.Poll()
	if err != nil {
		return false, err
	}
	if usage.Critical() {
		s.breaker.Trip()
		return false, nil
	}
	return task.CanRun(usage.AvailableMB), nil
}
