package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
)

type fakePlugin struct {
	meta        Metadata
	initErr     error
	initDelay   time.Duration
	onEventErr  error
	onQueryResp string
	onQueryErr  error
	initCalls   int
	cleanupErr  error
}

func (f *fakePlugin) Metadata() Metadata { return f.meta }

func (f *fakePlugin) Initialize(ctx context.Context, mem Memory) error {
	f.initCalls++
	if f.initDelay > 0 {
		select {
		case <-time.After(f.initDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.initErr
}

func (f *fakePlugin) OnEvent(ctx context.Context, event Event, mem Memory) error {
	return f.onEventErr
}

func (f *fakePlugin) OnQuery(ctx context.Context, text string, mem Memory) (string, error) {
	return f.onQueryResp, f.onQueryErr
}

func (f *fakePlugin) Cleanup(ctx context.Context) error { return f.cleanupErr }

func newTestRuntime(t *testing.T) (*Runtime, store.Storer) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewRuntime(s), s
}

func TestInstallRejectsInsufficientGrant(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := &fakePlugin{meta: Metadata{ID: "p1", RequiredPermission: ReadWriteEvents}}
	err := rt.Install(context.Background(), p, ReadOnly)
	require.Error(t, err)
}

func TestInstallRunsInitializeAndMarksHealthy(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := &fakePlugin{meta: Metadata{ID: "p1", Name: "tracker", Version: "1.0"}}
	err := rt.Install(context.Background(), p, ReadOnly)
	require.NoError(t, err)
	require.True(t, rt.Healthy("p1"))
	require.Equal(t, 1, p.initCalls)
}

func TestInstallMarksUnhealthyOnInitializeTimeout(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := &fakePlugin{
		meta:      Metadata{ID: "p1"},
		initDelay: 200 * time.Millisecond,
	}
	// Install blocks on Initialize under InitDeadline; shrink the wait by
	// passing Install a context that expires after 10ms so the test
	// doesn't take a full minute.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = rt.Install(ctx, p, ReadOnly)
	require.False(t, rt.Healthy("p1"))
}

func TestDispatchOnlyReachesMatchingSubscribers(t *testing.T) {
	rt, _ := newTestRuntime(t)
	matched := &fakePlugin{meta: Metadata{ID: "p1", Subscription: Subscription{Kind: SubscribeActions, Actions: []string{"eat"}}}}
	unmatched := &fakePlugin{
		meta:       Metadata{ID: "p2", Subscription: Subscription{Kind: SubscribeActions, Actions: []string{"sleep"}}},
		onEventErr: errors.New("unmatched plugin received event"),
	}
	require.NoError(t, rt.Install(context.Background(), matched, ReadOnly))
	require.NoError(t, rt.Install(context.Background(), unmatched, ReadOnly))

	err := rt.Dispatch(context.Background(), Event{Action: "eat", Target: "apple"})
	require.NoError(t, err)
}

func TestQueryReturnsHandlerResponse(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := &fakePlugin{meta: Metadata{ID: "p1"}, onQueryResp: "habit: daily coffee"}
	require.NoError(t, rt.Install(context.Background(), p, ReadOnly))

	resp, err := rt.Query(context.Background(), "p1", "what are my habits?")
	require.NoError(t, err)
	require.Equal(t, "habit: daily coffee", resp)
}

func TestQueryUnknownPluginErrors(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := rt.Query(context.Background(), "ghost", "hi")
	require.Error(t, err)
}

func TestUninstallRunsCleanupAndForgetsPlugin(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := &fakePlugin{meta: Metadata{ID: "p1"}}
	require.NoError(t, rt.Install(context.Background(), p, ReadOnly))

	err := rt.Uninstall(context.Background(), "p1")
	require.NoError(t, err)
	require.False(t, rt.Healthy("p1"))

	_, err = rt.Query(context.Background(), "p1", "hi")
	require.Error(t, err)
}

func TestRestartDelayScalesWithCountAndCaps(t *testing.T) {
	d0, ok := RestartDelay(0)
	require.True(t, ok)
	require.Equal(t, time.Duration(0), d0)

	d3, ok := RestartDelay(3)
	require.True(t, ok)
	require.Equal(t, 3*restartBaseDelay, d3)

	_, ok = RestartDelay(maxRestarts)
	require.False(t, ok)
}

func TestRestartGivesUpPastCap(t *testing.T) {
	rt, _ := newTestRuntime(t)
	p := &fakePlugin{meta: Metadata{ID: "p1"}}
	require.NoError(t, rt.Install(context.Background(), p, ReadOnly))

	env, ok := rt.lookup("p1")
	require.True(t, ok)
	env.restartCount = maxRestarts

	err := rt.Restart(context.Background(), "p1")
	require.Error(t, err)
}
