package plugin

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// maxRestarts bounds how many times a crashed plugin is automatically
// restarted before the runtime gives up and leaves it unhealthy
// (§4.8).
const maxRestarts = 5

// restartBaseDelay is the base unit the restart backoff multiplies by
// restart_count, per §4.8's "exponential backoff (base · restart_count)".
const restartBaseDelay = 2 * time.Second

// linearBackOff implements backoff.BackOff with the restart-count
// scaled delay the runtime's crash recovery uses, rather than the
// package's usual geometric growth.
type linearBackOff struct {
	base  time.Duration
	max   int
	count int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	if b.count >= b.max {
		return backoff.Stop
	}
	delay := time.Duration(b.count) * b.base
	b.count++
	return delay
}

func (b *linearBackOff) Reset() { b.count = 0 }

// envelope tracks one installed plugin's health and restart history.
type envelope struct {
	plugin       Plugin
	grant        Permission
	mu           sync.Mutex
	healthy      bool
	lastCheck    time.Time
	restartCount int
}

// Runtime owns every installed plugin's isolation envelope and
// dispatches handler calls under the per-kind deadlines.
type Runtime struct {
	store     store.Storer
	mu        sync.RWMutex
	envelopes map[string]*envelope
}

// NewRuntime builds an empty Runtime over s.
func NewRuntime(s store.Storer) *Runtime {
	return &Runtime{store: s, envelopes: make(map[string]*envelope)}
}

// Install registers p, rejecting it if its required permission exceeds
// granted, and records the grant for later installs to check against
// without re-prompting (§4.8).
func (r *Runtime) Install(ctx context.Context, p Plugin, granted Permission) error {
	meta := p.Metadata()
	if meta.RequiredPermission > granted {
		return memerr.New(memerr.KindPermission,
			"plugin "+meta.ID+" requires a higher permission than granted")
	}

	env := &envelope{plugin: p, grant: granted, healthy: true, lastCheck: time.Now()}
	r.mu.Lock()
	r.envelopes[meta.ID] = env
	r.mu.Unlock()

	if err := r.store.PutPluginGrant(&store.PluginGrant{
		PluginID:    meta.ID,
		Name:        meta.Name,
		Version:     meta.Version,
		Permission:  int(granted),
		InstalledAt: time.Now().UnixMilli(),
	}); err != nil {
		return err
	}

	return r.invoke(ctx, env, InitDeadline, func(ctx context.Context) error {
		return p.Initialize(ctx, NewMemory(r.store, meta.ID, granted))
	})
}

// Healthy reports whether pluginID is currently considered healthy.
func (r *Runtime) Healthy(pluginID string) bool {
	env, ok := r.lookup(pluginID)
	if !ok {
		return false
	}
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.healthy
}

func (r *Runtime) lookup(pluginID string) (*envelope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.envelopes[pluginID]
	return env, ok
}

// Dispatch routes event to every installed plugin whose subscription
// matches, in no particular order, collecting the first error but
// still attempting every plugin.
func (r *Runtime) Dispatch(ctx context.Context, event Event) error {
	r.mu.RLock()
	targets := make([]*envelope, 0, len(r.envelopes))
	for _, env := range r.envelopes {
		if env.plugin.Metadata().Subscription.Matches(event.Action, event.Target) {
			targets = append(targets, env)
		}
	}
	r.mu.RUnlock()

	var firstErr error
	for _, env := range targets {
		meta := env.plugin.Metadata()
		err := r.invoke(ctx, env, QueryDeadline, func(ctx context.Context) error {
			return env.plugin.OnEvent(ctx, event, NewMemory(r.store, meta.ID, env.grant))
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Query runs pluginID's on_query handler under the query deadline.
func (r *Runtime) Query(ctx context.Context, pluginID, text string) (string, error) {
	env, ok := r.lookup(pluginID)
	if !ok {
		return "", memerr.New(memerr.KindPlugin, "unknown plugin: "+pluginID)
	}
	meta := env.plugin.Metadata()

	var result string
	err := r.invoke(ctx, env, QueryDeadline, func(ctx context.Context) error {
		res, err := env.plugin.OnQuery(ctx, text, NewMemory(r.store, meta.ID, env.grant))
		result = res
		return err
	})
	return result, err
}

// Uninstall runs pluginID's cleanup handler under the cleanup deadline
// and removes it from the runtime.
func (r *Runtime) Uninstall(ctx context.Context, pluginID string) error {
	env, ok := r.lookup(pluginID)
	if !ok {
		return memerr.New(memerr.KindPlugin, "unknown plugin: "+pluginID)
	}
	err := r.invoke(ctx, env, CleanupDeadline, env.plugin.Cleanup)

	r.mu.Lock()
	delete(r.envelopes, pluginID)
	r.mu.Unlock()
	return err
}

// invoke runs fn under deadline, marking env unhealthy on timeout or
// error (§4.8). It schedules no restart; restarts happen only through
// Restart.
func (r *Runtime) invoke(ctx context.Context, env *envelope, deadline time.Duration, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case err := <-done:
		env.mu.Lock()
		env.lastCheck = time.Now()
		env.healthy = err == nil
		env.mu.Unlock()
		if err != nil {
			return memerr.Wrap(memerr.KindPlugin, "plugin handler failed", err)
		}
		return nil
	case <-callCtx.Done():
		env.mu.Lock()
		env.healthy = false
		env.lastCheck = time.Now()
		env.mu.Unlock()
		return memerr.New(memerr.KindPlugin, "plugin handler exceeded its deadline")
	}
}

// RestartDelay returns how long the runtime should wait before
// retrying a crashed plugin, or ok=false once restartCount has hit the
// cap and the plugin should stay unhealthy. It drives linearBackOff
// directly so the restart-count-scaled formula has one implementation,
// shared with Restart below.
func RestartDelay(restartCount int) (time.Duration, bool) {
	policy := &linearBackOff{base: restartBaseDelay, max: maxRestarts, count: restartCount}
	delay := policy.NextBackOff()
	if delay == backoff.Stop {
		return 0, false
	}
	return delay, true
}

// Restart attempts to bring pluginID back up after a crash, applying
// the restart-count-scaled backoff delay and re-running Initialize.
// It gives up once the restart cap is hit, leaving the plugin
// unhealthy.
func (r *Runtime) Restart(ctx context.Context, pluginID string) error {
	env, ok := r.lookup(pluginID)
	if !ok {
		return memerr.New(memerr.KindPlugin, "unknown plugin: "+pluginID)
	}

	env.mu.Lock()
	if env.restartCount >= maxRestarts {
		env.mu.Unlock()
		return memerr.New(memerr.KindPlugin, "plugin "+pluginID+" exceeded restart cap")
	}
	delay, ok := RestartDelay(env.restartCount)
	env.restartCount++
	env.mu.Unlock()
	if !ok {
		return memerr.New(memerr.KindPlugin, "plugin "+pluginID+" exceeded restart cap")
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	meta := env.plugin.Metadata()
	return r.invoke(ctx, env, InitDeadline, func(ctx context.Context) error {
		return env.plugin.Initialize(ctx, NewMemory(r.store, meta.ID, env.grant))
	})
}
