package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaProvider implements Provider against a local Ollama server.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider creates a provider talking to the Ollama native API.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOllamaBaseURL
	}
	// The native client wants the server root, not the OpenAI-compatible /v1.
	base = strings.TrimSuffix(strings.TrimSuffix(base, "/"), "/v1")

	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base URL %q: %w", base, err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &OllamaProvider{
		client: api.NewClient(parsed, httpClient),
		model:  cfg.Model,
	}, nil
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := modelFor(req, p.model)
	stream := false

	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: buildOllamaMessages(req),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if req.Temperature > 0 {
		chatReq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}
	if req.Schema != nil {
		format, err := json.Marshal(req.Schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		chatReq.Format = format
	}

	var resp api.ChatResponse
	err := p.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return nil, mapOllamaError(err, model)
	}

	raw := json.RawMessage(resp.Message.Content)
	if len(strings.TrimSpace(resp.Message.Content)) == 0 {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("empty content in Ollama response")}
	}
	if req.Schema != nil && resp.DoneReason == "length" {
		return nil, &ErrMaxTokensExceeded{Content: raw}
	}

	content, err := validateResponse(req.Schema, raw)
	if err != nil {
		return nil, err
	}

	served := resp.Model
	if served == "" {
		served = model
	}
	return &Response{
		Content: content,
		Usage: Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
			TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
		},
		Model:      served,
		StopReason: mapOllamaDoneReason(resp.DoneReason),
	}, nil
}

func (p *OllamaProvider) ModelID() string {
	return p.model
}

// ListModels returns the models installed on the Ollama server.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	list, err := p.client.List(ctx)
	if err != nil {
		return nil, mapOllamaError(err, "")
	}
	out := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, ModelInfo{
			Name:          m.Name,
			ParameterSize: m.Details.ParameterSize,
		})
	}
	return out, nil
}

func buildOllamaMessages(req Request) []api.Message {
	msgs := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Content})
	}
	return msgs
}

func mapOllamaDoneReason(reason string) string {
	if reason == "length" {
		return "max_tokens"
	}
	return "end"
}

func mapOllamaError(err error, model string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return &ErrRateLimit{Err: err}
		case statusErr.StatusCode == http.StatusNotFound && model != "":
			return &ErrModelNotFound{Model: model, Err: err}
		}
	}
	return &ErrProviderUnavailable{Err: err}
}
