package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultResponseCapacity bounds the provider-response cache used to
// dedupe repeated Chat/Embed calls with identical prompts across
// plugins sharing one provider.
const defaultResponseCapacity = 256

// Response is an LRU cache of provider-call keys to their serialized
// responses. Unlike Embedding, eviction here should favor recently
// used entries, so it is backed directly by golang-lru/v2 rather than
// hand-rolled (AKJUS-bsc-erigon uses the same package for its state
// caches; see DESIGN.md).
type Response struct {
	lru *lru.Cache[string, string]
}

// NewResponse builds a Response cache bounded to capacity entries.
func NewResponse(capacity int) *Response {
	if capacity <= 0 {
		capacity = defaultResponseCapacity
	}
	c, _ := lru.New[string, string](capacity)
	return &Response{lru: c}
}

// Get returns the cached response for key, if present.
func (r *Response) Get(key string) (string, bool) {
	return r.lru.Get(key)
}

// Put inserts or overwrites key's cached response.
func (r *Response) Put(key, value string) {
	r.lru.Add(key, value)
}

// Len returns the current entry count.
func (r *Response) Len() int {
	return r.lru.Len()
}
