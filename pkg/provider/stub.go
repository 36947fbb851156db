package provider

import "context"

// Stub is an in-memory Provider used by tests and by callers that want
// to force the rule-fallback path deterministically.
type Stub struct {
	ChatFn    func(ctx context.Context, messages []Message, opts ChatOptions) (ChatResponse, error)
	EmbedFn   func(ctx context.Context, text string) ([]float32, error)
	Healthy   bool
	ModelTag  string
}

func (s *Stub) Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatResponse, error) {
	if s.ChatFn != nil {
		return s.ChatFn(ctx, messages, opts)
	}
	return ChatResponse{}, context.DeadlineExceeded
}

func (s *Stub) StreamChat(ctx context.Context, messages []Message, opts ChatOptions) (<-chan ChatChunk, error) {
	resp, err := s.Chat(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	out := make(chan ChatChunk, 2)
	out <- ChatChunk{Content: resp.Content}
	out <- ChatChunk{Done: true}
	close(out)
	return out, nil
}

func (s *Stub) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.EmbedFn != nil {
		return s.EmbedFn(ctx, text)
	}
	return make([]float32, 8), nil
}

func (s *Stub) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *Stub) HealthCheck(ctx context.Context) bool { return s.Healthy }

func (s *Stub) ModelName() string {
	if s.ModelTag == "" {
		return "stub"
	}
	return s.ModelTag
}
