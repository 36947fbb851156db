// Package plugin implements the Plugin Runtime: the capability object
// model, permission lattice, and isolation envelope that let untrusted
// handler code run alongside the memory engine without destabilizing
// it (§4.8).
package plugin

import (
	"context"
	"time"

	"github.com/kittclouds/memoria/pkg/memerr"
)

// Permission is the linear lattice a plugin is granted at install
// time. A higher value always implies every lower capability.
type Permission int

const (
	// ReadOnly permits stats-only reads.
	ReadOnly Permission = 1
	// ReadWriteDerived additionally permits creating views and reading
	// entities.
	ReadWriteDerived Permission = 2
	// ReadWriteEvents additionally permits creating events.
	ReadWriteEvents Permission = 3
)

func (p Permission) satisfies(required Permission) bool { return p >= required }

// SubscriptionKind discriminates which events a plugin's on_event
// handler wants delivered.
type SubscriptionKind int

const (
	SubscribeAll SubscriptionKind = iota
	SubscribeActions
	SubscribeTargetPattern
	SubscribeCustom
)

// Subscription narrows which events reach a plugin's on_event
// handler.
type Subscription struct {
	Kind    SubscriptionKind
	Actions []string // for SubscribeActions
	Pattern string    // for SubscribeTargetPattern (substring match)
}

// Matches reports whether event (action, target) passes sub's filter.
func (sub Subscription) Matches(action, target string) bool {
	switch sub.Kind {
	case SubscribeAll:
		return true
	case SubscribeActions:
		for _, a := range sub.Actions {
			if a == action {
				return true
			}
		}
		return false
	case SubscribeTargetPattern:
		return containsSubstring(target, sub.Pattern)
	default:
		return false
	}
}

func containsSubstring(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Metadata describes one plugin's identity and declared requirements.
type Metadata struct {
	ID                 string
	Name               string
	Version            string
	RequiredPermission Permission
	Subscription       Subscription
}

// Plugin is the capability object every installed plugin implements.
// Every handler call is wrapped by the runtime in a per-kind deadline
// (§4.8).
type Plugin interface {
	Metadata() Metadata
	Initialize(ctx context.Context, mem Memory) error
	OnEvent(ctx context.Context, event Event, mem Memory) error
	OnQuery(ctx context.Context, text string, mem Memory) (string, error)
	Cleanup(ctx context.Context) error
}

// Event is the subset of an EventMemory a plugin handler is given.
type Event struct {
	ID        string
	Action    string
	Target    string
	Timestamp int64
}

// Default per-handler deadlines (§4.8).
const (
	QueryDeadline = 30 * time.Second
	InitDeadline  = 60 * time.Second
	CleanupDeadline = 10 * time.Second
)

// ErrPermissionDenied is returned by a Memory implementation when a
// plugin attempts an operation above its granted permission.
func ErrPermissionDenied(pluginID string, attempted Permission) error {
	return memerr.New(memerr.KindPermission, "plugin "+pluginID+" lacks permission for operation requiring level "+permName(attempted))
}

func permName(p Permission) string {
	switch p {
	case ReadOnly:
		return "ReadOnly"
	case ReadWriteDerived:
		return "ReadWriteDerived"
	case ReadWriteEvents:
		return "ReadWriteEvents"
	default:
		return "Unknown"
	}
}
