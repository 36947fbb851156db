package extraction

import "fmt"

// MaxTextLength bounds the text sent to the provider, mirroring the
// teacher's 8000-character cap on a single extraction call.
const MaxTextLength = 8000

// SystemPrompt instructs the provider to return structured JSON only,
// adapted from the teacher's extraction system prompt to the
// {action, target, quantity?, unit?, confidence} event schema.
const SystemPrompt = `You are an event extraction assistant. Extract structured behavioral
events from the given text. Return ONLY a valid JSON array of objects,
each with this shape:
{"actor": string|null, "action": string, "target": string, "quantity": number|null, "unit": string|null, "confidence": number}
No markdown, no explanation. Start with [ and end with ].`

// BuildUserPrompt constructs the extraction prompt for one raw memory's
// text, truncated to MaxTextLength.
func BuildUserPrompt(text string) string {
	if len(text) > MaxTextLength {
		text = text[:MaxTextLength]
	}
	return fmt.Sprintf(
		"Extract every distinct event from this text as a JSON array. "+
			"quantity and unit must both be present or both be null. "+
			"confidence is 0.0-1.0.\n\nTEXT:\n%s", text)
}
