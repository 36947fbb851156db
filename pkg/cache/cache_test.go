package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddingFIFOEviction(t *testing.T) {
	c := NewEmbedding(2)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Put("c", []float32{3}) // evicts "a", the oldest, even though "a" was never re-read

	_, ok := c.Get("a")
	require.False(t, ok)
	v, ok := c.Get("b")
	require.True(t, ok)
	require.Equal(t, []float32{2}, v)
	v, ok = c.Get("c")
	require.True(t, ok)
	require.Equal(t, []float32{3}, v)
	require.Equal(t, 2, c.Len())
}

func TestEmbeddingOverwriteDoesNotEvict(t *testing.T) {
	c := NewEmbedding(2)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Put("a", []float32{9}) // overwrite, not a new key
	c.Put("c", []float32{3}) // now evicts "a" since it is still oldest by insertion order

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestResponseLRU(t *testing.T) {
	c := NewResponse(2)
	c.Put("k1", "v1")
	c.Put("k2", "v2")
	c.Get("k1") // touch k1, so k2 becomes least recently used
	c.Put("k3", "v3")

	_, ok := c.Get("k2")
	require.False(t, ok)
	v, ok := c.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v1", v)
}
