package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kittclouds/memoria/pkg/memerr"
)

// HTTPAPI talks to an HTTP API provider shape: an OpenAI-compatible
// endpoint exposing /v1/chat/completions (SSE `data: ...` frames
// terminated by `data: [DONE]`), /v1/embeddings, and /v1/models, using
// bearer-token auth.
type HTTPAPI struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// NewHTTPAPI builds an HTTPAPI provider against baseURL (e.g.
// "https://api.openai.com") using the given model and bearer token.
func NewHTTPAPI(baseURL, model, apiKey string) *HTTPAPI {
	return &HTTPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (p *HTTPAPI) ModelName() string { return p.model }

type httpChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type httpChatRequest struct {
	Model       string             `json:"model"`
	Messages    []httpChatMessage  `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Stream      bool               `json:"stream"`
}

type httpChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *HTTPAPI) newRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return req, nil
}

func (p *HTTPAPI) Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatResponse, error) {
	req := httpChatRequest{
		Model:       p.model,
		Messages:    toHTTPMessages(messages),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, memerr.Wrap(memerr.KindProvider, "marshal chat request", err)
	}

	httpReq, err := p.newRequest(ctx, "/v1/chat/completions", body)
	if err != nil {
		return ChatResponse{}, err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, memerr.Wrap(memerr.KindProvider, "HTTP provider unreachable", err)
	}
	defer resp.Body.Close()

	var parsed httpChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ChatResponse{}, memerr.Wrap(memerr.KindProvider, "non-JSON response body", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return ChatResponse{}, memerr.New(memerr.KindProvider, "HTTP provider error: "+msg)
	}
	if len(parsed.Choices) == 0 {
		return ChatResponse{}, memerr.New(memerr.KindProvider, "empty choices in response")
	}
	return ChatResponse{Content: parsed.Choices[0].Message.Content, Model: parsed.Model}, nil
}

func (p *HTTPAPI) StreamChat(ctx context.Context, messages []Message, opts ChatOptions) (<-chan ChatChunk, error) {
	req := httpChatRequest{
		Model:       p.model,
		Messages:    toHTTPMessages(messages),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "marshal chat request", err)
	}
	httpReq, err := p.newRequest(ctx, "/v1/chat/completions", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "HTTP provider unreachable", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, memerr.New(memerr.KindProvider, fmt.Sprintf("HTTP provider status %d", resp.StatusCode))
	}

	out := make(chan ChatChunk)
	go func() {
		defer resp.Body.Close()
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				out <- ChatChunk{Done: true}
				return
			}
			var parsed httpChatResponse
			if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
				return
			}
			if len(parsed.Choices) > 0 {
				out <- ChatChunk{Content: parsed.Choices[0].Delta.Content}
			}
		}
	}()
	return out, nil
}

type httpEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type httpEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *HTTPAPI) embedBatchRaw(ctx context.Context, texts []string) ([][]float32, error) {
	req := httpEmbedRequest{Model: p.model, Input: texts}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "marshal embed request", err)
	}
	httpReq, err := p.newRequest(ctx, "/v1/embeddings", body)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "HTTP provider unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, memerr.New(memerr.KindProvider, fmt.Sprintf("HTTP provider status %d", resp.StatusCode))
	}
	var parsed httpEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "non-JSON embed response", err)
	}
	vecs := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (p *HTTPAPI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embedBatchRaw(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, memerr.New(memerr.KindProvider, "empty embedding response")
	}
	return vecs[0], nil
}

func (p *HTTPAPI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedBatchRaw(ctx, texts)
}

func (p *HTTPAPI) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func toHTTPMessages(in []Message) []httpChatMessage {
	out := make([]httpChatMessage, len(in))
	for i, m := range in {
		out[i] = httpChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
