package extraction

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kittclouds/memoria/pkg/memerr"
)

// providerEvent is the wire shape requested from the provider; fields
// are pointers/optional so partial JSON still round-trips.
type providerEvent struct {
	Actor      *string  `json:"actor"`
	Action     string   `json:"action"`
	Target     string   `json:"target"`
	Quantity   *float64 `json:"quantity"`
	Unit       *string  `json:"unit"`
	Confidence float64  `json:"confidence"`
}

// ParseProviderResponse parses a provider's raw completion into
// ExtractedEvents. It strips markdown code fences and, on outright
// JSON failure, attempts a regex-based repair pass before giving up —
// the same two-stage strategy the teacher's extraction parser used for
// entity/relation JSON, adapted to the event schema.
func ParseProviderResponse(raw string) ([]ExtractedEvent, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, nil
	}

	var items []providerEvent
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		return filterEvents(items), nil
	}

	// A single object rather than an array is also accepted.
	var single providerEvent
	if err := json.Unmarshal([]byte(cleaned), &single); err == nil {
		return filterEvents([]providerEvent{single}), nil
	}

	repaired := repairEvents(cleaned)
	if len(repaired) == 0 {
		return nil, memerr.New(memerr.KindProvider, "failed to parse provider event response")
	}
	return filterEvents(repaired), nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func filterEvents(items []providerEvent) []ExtractedEvent {
	out := make([]ExtractedEvent, 0, len(items))
	for _, it := range items {
		action := strings.TrimSpace(it.Action)
		target := strings.TrimSpace(it.Target)
		if action == "" || target == "" {
			continue
		}
		// quantity/unit must be both-or-neither per spec §3; drop the
		// lone half rather than persist an invalid event.
		if (it.Quantity == nil) != (it.Unit == nil) {
			it.Quantity = nil
			it.Unit = nil
		}
		conf := it.Confidence
		if conf <= 0 {
			conf = 0.8
		}
		if conf > 1 {
			conf = 1
		}
		actor := ""
		if it.Actor != nil {
			actor = strings.TrimSpace(*it.Actor)
		}
		out = append(out, ExtractedEvent{
			Actor:      actor,
			Action:     action,
			Target:     target,
			Quantity:   it.Quantity,
			Unit:       it.Unit,
			Confidence: conf,
			Method:     MethodProvider,
		})
	}
	return out
}

var eventObjectPattern = regexp.MustCompile(
	`\{\s*"action"\s*:\s*"[^"]+"\s*,\s*"target"\s*:\s*"[^"]+"\s*(?:,\s*"[^"]+"\s*:\s*(?:"[^"]*"|[\d.]+|null|true|false))*\s*\}`,
)

// repairEvents recovers complete event objects from otherwise
// malformed JSON via regex, the same last-resort strategy the teacher
// applied to entity/relation extraction.
func repairEvents(raw string) []providerEvent {
	matches := eventObjectPattern.FindAllString(raw, -1)
	out := make([]providerEvent, 0, len(matches))
	for _, m := range matches {
		var ev providerEvent
		if err := json.Unmarshal([]byte(m), &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}
