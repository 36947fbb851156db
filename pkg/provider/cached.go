package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// EmbeddingCache and ResponseCache are the minimal shapes Cached needs.
// pkg/cache's Embedding and Response satisfy these without pkg/provider
// importing pkg/cache — the engine wires the concrete caches in.
type EmbeddingCache interface {
	Get(text string) ([]float32, bool)
	Put(text string, vec []float32)
}

// ResponseCache caches a chat call's textual response by a key derived
// from its messages and options.
type ResponseCache interface {
	Get(key string) (string, bool)
	Put(key, value string)
}

// Cached wraps a Provider so repeated Embed/Chat calls for the same
// input are served from cache rather than the network, per spec.md
// §9's embedding/response cache note.
type Cached struct {
	Provider
	embeddings EmbeddingCache
	responses  ResponseCache
}

// NewCached wraps p. Either cache may be nil to disable that half.
func NewCached(p Provider, embeddings EmbeddingCache, responses ResponseCache) *Cached {
	return &Cached{Provider: p, embeddings: embeddings, responses: responses}
}

// Embed serves text's vector from cache when present, otherwise calls
// through to the wrapped provider and caches the result.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embeddings != nil {
		if v, ok := c.embeddings.Get(text); ok {
			return v, nil
		}
	}
	v, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if c.embeddings != nil {
		c.embeddings.Put(text, v)
	}
	return v, nil
}

// Chat serves a cached response for an identical (messages, opts) pair
// when present, otherwise calls through and caches the content.
func (c *Cached) Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatResponse, error) {
	key := chatKey(messages, opts)
	if c.responses != nil {
		if v, ok := c.responses.Get(key); ok {
			return ChatResponse{Content: v, Model: c.Provider.ModelName()}, nil
		}
	}
	resp, err := c.Provider.Chat(ctx, messages, opts)
	if err != nil {
		return ChatResponse{}, err
	}
	if c.responses != nil {
		c.responses.Put(key, resp.Content)
	}
	return resp, nil
}

func chatKey(messages []Message, opts ChatOptions) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteByte('\x1f')
		b.WriteString(m.Content)
		b.WriteByte('\x1e')
	}
	fmt.Fprintf(&b, "t=%.3f;n=%d", opts.Temperature, opts.MaxTokens)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
