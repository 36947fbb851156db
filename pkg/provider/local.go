package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kittclouds/memoria/pkg/memerr"
)

// LocalProcess talks to a local-process provider shape: a daemon
// exposing /api/chat, /api/embed, and /api/tags, streaming chat replies
// as newline-delimited JSON objects (the Ollama wire shape).
type LocalProcess struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewLocalProcess builds a LocalProcess provider against baseURL (e.g.
// "http://localhost:11434") using the given model name.
func NewLocalProcess(baseURL, model string) *LocalProcess {
	return &LocalProcess{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (p *LocalProcess) ModelName() string { return p.model }

type localChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localChatRequest struct {
	Model    string              `json:"model"`
	Messages []localChatMessage  `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  *localChatReqOption `json:"options,omitempty"`
}

type localChatReqOption struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type localChatResponseLine struct {
	Model   string            `json:"model"`
	Message localChatMessage  `json:"message"`
	Done    bool              `json:"done"`
}

func (p *LocalProcess) toMessages(in []Message) []localChatMessage {
	out := make([]localChatMessage, len(in))
	for i, m := range in {
		out[i] = localChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func (p *LocalProcess) buildRequest(messages []Message, opts ChatOptions, stream bool) localChatRequest {
	req := localChatRequest{
		Model:    p.model,
		Messages: p.toMessages(messages),
		Stream:   stream,
	}
	if opts.Temperature > 0 || opts.MaxTokens > 0 {
		req.Options = &localChatReqOption{Temperature: opts.Temperature, NumPredict: opts.MaxTokens}
	}
	return req
}

func (p *LocalProcess) Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatResponse, error) {
	req := p.buildRequest(messages, opts, false)
	body, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, memerr.Wrap(memerr.KindProvider, "marshal chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, memerr.Wrap(memerr.KindProvider, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, memerr.Wrap(memerr.KindProvider, "local provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, memerr.New(memerr.KindProvider, fmt.Sprintf("local provider status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, memerr.Wrap(memerr.KindProvider, "read response body", err)
	}

	var line localChatResponseLine
	if err := json.Unmarshal(raw, &line); err != nil {
		return ChatResponse{}, memerr.Wrap(memerr.KindProvider, "non-JSON response body", err)
	}

	return ChatResponse{Content: line.Message.Content, Model: line.Model}, nil
}

func (p *LocalProcess) StreamChat(ctx context.Context, messages []Message, opts ChatOptions) (<-chan ChatChunk, error) {
	req := p.buildRequest(messages, opts, true)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "marshal chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "local provider unreachable", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, memerr.New(memerr.KindProvider, fmt.Sprintf("local provider status %d", resp.StatusCode))
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
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var parsed localChatResponseLine
			if err := json.Unmarshal(line, &parsed); err != nil {
				// streaming interrupted by a non-JSON line: stop, caller
				// sees a short stream rather than a silently truncated one.
				return
			}
			if parsed.Done {
				out <- ChatChunk{Done: true}
				return
			}
			out <- ChatChunk{Content: parsed.Message.Content}
		}
	}()
	return out, nil
}

type localEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *LocalProcess) embedBatchRaw(ctx context.Context, texts []string) ([][]float32, error) {
	req := localEmbedRequest{Model: p.model, Input: texts}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "marshal embed request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "local provider unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, memerr.New(memerr.KindProvider, fmt.Sprintf("local provider status %d", resp.StatusCode))
	}

	var parsed localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, memerr.Wrap(memerr.KindProvider, "non-JSON embed response", err)
	}
	return parsed.Embeddings, nil
}

func (p *LocalProcess) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embedBatchRaw(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, memerr.New(memerr.KindProvider, "empty embedding response")
	}
	return vecs[0], nil
}

func (p *LocalProcess) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedBatchRaw(ctx, texts)
}

func (p *LocalProcess) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
