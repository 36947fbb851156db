package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/cryptobox"
	"github.com/kittclouds/memoria/pkg/extraction"
	"github.com/kittclouds/memoria/pkg/provider"
)

func newTestIngestStore(t *testing.T, opts ...Option) (*Store, store.Storer) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, opts...), s
}

func TestPutTextStoresPlaintextWithoutBox(t *testing.T) {
	ing, raw := newTestIngestStore(t)
	result, err := ing.Put(context.Background(), "alice", Input{
		ContentType: store.ContentText,
		Text:        "drank coffee",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.RawMemoryID)

	got, err := raw.GetRawMemory(result.RawMemoryID)
	require.NoError(t, err)
	require.Equal(t, "drank coffee", *got.Plaintext)
}

func TestPutEncryptsWithBox(t *testing.T) {
	key := make([]byte, 32)
	box, err := cryptobox.NewFromKey(key)
	require.NoError(t, err)

	ing, raw := newTestIngestStore(t, WithBox(box))
	result, err := ing.Put(context.Background(), "alice", Input{
		ContentType: store.ContentText,
		Text:        "secret note",
	})
	require.NoError(t, err)

	got, err := raw.GetRawMemory(result.RawMemoryID)
	require.NoError(t, err)
	require.Nil(t, got.Plaintext)
	require.NotEmpty(t, got.Ciphertext)

	_, plaintext, err := ing.Get(result.RawMemoryID)
	require.NoError(t, err)
	require.Equal(t, "secret note", plaintext)
}

func TestPutBinaryBase64Encodes(t *testing.T) {
	ing, raw := newTestIngestStore(t)
	result, err := ing.Put(context.Background(), "alice", Input{
		ContentType: store.ContentImage,
		Binary:      []byte{0xff, 0xd8, 0xff},
	})
	require.NoError(t, err)

	got, err := raw.GetRawMemory(result.RawMemoryID)
	require.NoError(t, err)
	require.NotEmpty(t, *got.Plaintext)
}

func TestPutRejectsEmptyTextInput(t *testing.T) {
	ing, _ := newTestIngestStore(t)
	_, err := ing.Put(context.Background(), "alice", Input{ContentType: store.ContentText})
	require.Error(t, err)
}

func TestPutExtractsEventsAndPersistsThem(t *testing.T) {
	svc, err := extraction.NewService(nil, time.UTC)
	require.NoError(t, err)
	ing, raw := newTestIngestStore(t, WithExtractor(svc))

	result, err := ing.Put(context.Background(), "alice", Input{
		ContentType: store.ContentText,
		Text:        "吃了3个苹果",
	})
	require.NoError(t, err)
	require.Len(t, result.EventIDs, 1)

	events, err := raw.ListEventsByRawMemory(result.RawMemoryID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "吃", events[0].Action)
}

func TestPutBackfillsEmbeddingNonFatally(t *testing.T) {
	stub := &provider.Stub{
		EmbedFn: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{0.1, 0.2}, nil
		},
	}
	ing, raw := newTestIngestStore(t, WithEmbeddingProvider(stub))

	result, err := ing.Put(context.Background(), "alice", Input{
		ContentType: store.ContentText,
		Text:        "went for a walk",
	})
	require.NoError(t, err)

	got, err := raw.GetRawMemory(result.RawMemoryID)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float32{0.1, 0.2}, got.Embedding, 1e-6)
}

func TestPutSwallowsEmbeddingFailure(t *testing.T) {
	stub := &provider.Stub{
		EmbedFn: func(ctx context.Context, text string) ([]float32, error) {
			return nil, context.DeadlineExceeded
		},
	}
	ing, raw := newTestIngestStore(t, WithEmbeddingProvider(stub))

	result, err := ing.Put(context.Background(), "alice", Input{
		ContentType: store.ContentText,
		Text:        "went for a walk",
	})
	require.NoError(t, err)

	got, err := raw.GetRawMemory(result.RawMemoryID)
	require.NoError(t, err)
	require.Empty(t, got.Embedding)
}
