package extraction

import (
	"context"
	"time"

	"github.com/kittclouds/memoria/pkg/provider"
)

// Service is the Event Extractor: provider-first, rule-fallback, per
// spec §4.2. Provider errors (timeout, invalid JSON, unreachable) are
// recovered locally by falling back to the rule engine and are never
// surfaced to the caller — only a rule-engine failure (a malformed
// quantity word) propagates.
type Service struct {
	prov provider.Provider
	rule *RuleEngine
	loc  *time.Location
}

// NewService builds an extractor against prov (may be nil to force the
// rule-only path) using loc as the install's local zone for time-phrase
// resolution.
func NewService(prov provider.Provider, loc *time.Location) (*Service, error) {
	rule, err := NewRuleEngine()
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{prov: prov, rule: rule, loc: loc}, nil
}

// Extract runs the provider-first/rule-fallback pipeline over text,
// returning the event list with timestamps already resolved against
// fallbackTime (normally the parent raw memory's created-at).
func (s *Service) Extract(ctx context.Context, text string, fallbackTime time.Time) ([]ExtractedEvent, []time.Time, error) {
	events, err := s.extractEvents(ctx, text)
	if err != nil {
		return nil, nil, err
	}

	ts := fallbackTime
	if s.rule.HasTimeInfo(text) {
		if parsed, ok := ParseTimePhrase(extractTimePhrase(text), time.Now(), s.loc); ok {
			ts = parsed
		}
	}

	timestamps := make([]time.Time, len(events))
	for i := range events {
		timestamps[i] = ts
	}
	return events, timestamps, nil
}

func (s *Service) extractEvents(ctx context.Context, text string) ([]ExtractedEvent, error) {
	if s.prov != nil {
		if events, err := s.extractViaProvider(ctx, text); err == nil {
			return events, nil
		}
		// Provider failure (timeout, invalid JSON, unreachable) is
		// recovered locally; fall through to the rule engine.
	}
	return s.rule.Extract(text)
}

func (s *Service) extractViaProvider(ctx context.Context, text string) ([]ExtractedEvent, error) {
	resp, err := s.prov.Chat(ctx, []provider.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: BuildUserPrompt(text)},
	}, provider.ChatOptions{Temperature: 0.2, MaxTokens: 2048})
	if err != nil {
		return nil, err
	}
	return ParseProviderResponse(resp.Content)
}

// timePhraseTokens lists recognized phrases with each longer phrase
// ahead of any shorter phrase it contains, so "今天上午" is matched
// before "今天" within the same text.
var timePhraseTokens = []string{
	"the day before yesterday", "the day after tomorrow",
	"this morning", "today morning", "today afternoon", "this afternoon",
	"this evening", "tonight",
	"今天上午", "今天早上", "今天下午", "今天晚上", "今天夜里",
	"前天", "后天", "昨天", "明天", "今天",
	"yesterday", "tomorrow", "today",
}

// extractTimePhrase returns the first listed time token found inside
// text, for ParseTimePhrase to resolve. Weekday and "N days ago"
// phrases are not in the list; for those the whole text is returned,
// and ParseTimePhrase resolves it only if the whole text is one such
// phrase.
func extractTimePhrase(text string) string {
	for _, tok := range timePhraseTokens {
		if containsToken(text, tok) {
			return tok
		}
	}
	return text
}

func containsToken(text, tok string) bool {
	for i := 0; i+len(tok) <= len(text); i++ {
		if text[i:i+len(tok)] == tok {
			return true
		}
	}
	return false
}
