// Package router implements the Command Router: it parses user input
// against the `@plugin query` command form, picks the target plugin,
// and logs every routed exchange as a chat_with_plugin event so plugin
// conversations become first-class memory (§4.8 routing clause).
package router

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// chatWithPluginAction is the event action recorded for every routed
// exchange, per the routing clause.
const chatWithPluginAction = "chat_with_plugin"

// Querier runs a query against a named plugin. *plugin.Runtime
// satisfies this.
type Querier interface {
	Query(ctx context.Context, pluginID, text string) (string, error)
}

// Router dispatches `@plugin query` commands to the named plugin or
// falls back to a configured default conversation plugin, logging the
// exchange as an event either way.
type Router struct {
	runtime       Querier
	store         store.Storer
	defaultPlugin string
}

// New builds a Router over runtime, recording routed exchanges in s
// and falling back to defaultPlugin when input carries no `@plugin`
// prefix.
func New(runtime Querier, s store.Storer, defaultPlugin string) *Router {
	return &Router{runtime: runtime, store: s, defaultPlugin: defaultPlugin}
}

// Parsed is the result of splitting a command line into its target
// plugin and query text.
type Parsed struct {
	PluginID string
	Query    string
	Explicit bool // true if the input carried an @plugin prefix
}

// Parse splits input into a target plugin id and query text. Input of
// the form "@word rest..." routes to "word"; anything else is left
// unaddressed (Explicit=false) for the caller to route to the default
// plugin.
func Parse(input string, defaultPlugin string) Parsed {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "@") {
		return Parsed{PluginID: defaultPlugin, Query: trimmed, Explicit: false}
	}

	rest := trimmed[1:]
	sp := strings.IndexFunc(rest, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' })
	if sp < 0 {
		return Parsed{PluginID: rest, Query: "", Explicit: true}
	}
	return Parsed{PluginID: rest[:sp], Query: strings.TrimSpace(rest[sp+1:]), Explicit: true}
}

// Route parses input, invokes the resolved plugin's query handler, and
// records a chat_with_plugin event referencing the exchange. The raw
// message is persisted first so the event's RawMemoryID references a
// real row, per §3's "parent raw-memory must exist" invariant.
func (r *Router) Route(ctx context.Context, owner, actor, input string) (string, error) {
	parsed := Parse(input, r.defaultPlugin)
	if parsed.PluginID == "" {
		return "", memerr.New(memerr.KindValidation, "no plugin resolved for input and no default configured")
	}

	resp, err := r.runtime.Query(ctx, parsed.PluginID, parsed.Query)
	if err != nil {
		return "", err
	}

	plaintext := input
	raw := &store.RawMemory{
		ID:          uuid.NewString(),
		Owner:       owner,
		CreatedAt:   nowMillis(),
		ContentType: store.ContentText,
		Plaintext:   &plaintext,
	}
	if err := r.store.PutRawMemory(raw); err != nil {
		return resp, err
	}

	event := &store.EventMemory{
		ID:              uuid.NewString(),
		RawMemoryID:     raw.ID,
		Owner:           owner,
		Timestamp:       raw.CreatedAt,
		Action:          chatWithPluginAction,
		Target:          parsed.PluginID,
		Confidence:      1.0,
		ExtractorMethod: "rule",
		ExtractorVer:    "v1",
	}
	if actor != "" {
		event.Actor = &actor
	}
	if err := r.store.PutEvents([]*store.EventMemory{event}); err != nil {
		return resp, err
	}
	return resp, nil
}
