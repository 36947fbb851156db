package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/pkg/provider"
)

func TestServiceFallsBackToRuleOnProviderError(t *testing.T) {
	stub := &provider.Stub{
		ChatFn: func(ctx context.Context, messages []provider.Message, opts provider.ChatOptions) (provider.ChatResponse, error) {
			return provider.ChatResponse{}, context.DeadlineExceeded
		},
	}
	svc, err := NewService(stub, time.UTC)
	require.NoError(t, err)

	events, _, err := svc.Extract(context.Background(), "吃了3个苹果", time.Now())
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, MethodRule, events[0].Method)
}

func TestServiceUsesProviderWhenAvailable(t *testing.T) {
	stub := &provider.Stub{
		ChatFn: func(ctx context.Context, messages []provider.Message, opts provider.ChatOptions) (provider.ChatResponse, error) {
			return provider.ChatResponse{Content: `[{"action":"喝","target":"茶","confidence":0.95}]`}, nil
		},
	}
	svc, err := NewService(stub, time.UTC)
	require.NoError(t, err)

	events, _, err := svc.Extract(context.Background(), "喝了一杯茶", time.Now())
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, MethodProvider, events[0].Method)
	require.Equal(t, "喝", events[0].Action)
}

func TestServiceResolvesTimestampFromPhrase(t *testing.T) {
	svc, err := NewService(nil, time.UTC)
	require.NoError(t, err)

	fallback := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	_, timestamps, err := svc.Extract(context.Background(), "昨天吃了苹果", fallback)
	require.NoError(t, err)
	require.Len(t, timestamps, 1)
	require.NotEqual(t, fallback, timestamps[0])
}

func TestServiceDefaultsToFallbackTimeWithoutPhrase(t *testing.T) {
	svc, err := NewService(nil, time.UTC)
	require.NoError(t, err)

	fallback := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	_, timestamps, err := svc.Extract(context.Background(), "吃了苹果", fallback)
	require.NoError(t, err)
	require.Len(t, timestamps, 1)
	require.Equal(t, fallback, timestamps[0])
}
