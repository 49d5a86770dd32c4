package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// OllamaProvider calls Ollama's native /api/chat endpoint with stream=false.
type OllamaProvider struct {
	host   string
	client *http.Client
	retry  RetryPolicy
	log    zerolog.Logger
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.client = c }
}

// WithRetry replaces the default retry policy.
func WithRetry(r RetryPolicy) OllamaOption {
	return func(p *OllamaProvider) { p.retry = r }
}

// NewOllamaProvider returns a provider for the Ollama server at host.
func NewOllamaProvider(host string, log zerolog.Logger, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		host:   strings.TrimRight(strings.TrimSpace(host), "/"),
		client: &http.Client{},
		retry:  DefaultRetryPolicy(),
		log:    log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

// Complete posts the conversation and returns the reply text and any tool
// calls. Connection failures and 5xx responses are retried per the retry
// policy; other failures are returned at once.
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	endpoint := p.host + "/api/chat"
	messages := make([]ollamaMessage, 0, req.Snapshot.Len()+1)
	for _, m := range buildMessages(req) {
		messages = append(messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	body := map[string]any{
		"model":    req.Model,
		"stream":   false,
		"messages": messages,
		"options":  map[string]any{"temperature": temperatureOr(req.Temperature, 0.2)},
	}
	if len(req.Tools) > 0 {
		tools := make([]ollamaTool, 0, len(req.Tools))
		for _, spec := range req.Tools {
			var t ollamaTool
			t.Type = "function"
			t.Function.Name = spec.Name
			t.Function.Description = spec.Description
			t.Function.Parameters = schemaOrEmpty(spec.Parameters)
			tools = append(tools, t)
		}
		body["tools"] = tools
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return Completion{}, fmt.Errorf("encode ollama request: %w", err)
	}

	p.log.Debug().Str("model", req.Model).Int("messages", len(messages)).Int("tools", len(req.Tools)).Msg("sending request to ollama")

	var payload []byte
	err = p.retry.Do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
		if err != nil {
			return Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := p.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return Permanent(ctx.Err())
			}
			p.log.Warn().Err(err).Msg("ollama request failed, retrying")
			return fmt.Errorf("ollama request failed on /api/chat: %w", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read ollama response: %w", err)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("ollama http %d: %s", resp.StatusCode, compactSingleLine(string(data), 240))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return Permanent(fmt.Errorf("ollama http %d: %s", resp.StatusCode, compactSingleLine(string(data), 240)))
		}
		payload = data
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Completion{}, err
		}
		return Completion{}, fmt.Errorf("%w\n\n%s", err, OllamaHint(req.Model))
	}

	var parsed struct {
		Message ollamaMessage `json:"message"`
		Error   string        `json:"error"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Completion{}, fmt.Errorf("ollama returned non-json payload")
	}
	if parsed.Error != "" {
		return Completion{}, fmt.Errorf("ollama error: %s", parsed.Error)
	}

	out := Completion{Text: strings.TrimSpace(parsed.Message.Content)}
	for _, call := range parsed.Message.ToolCalls {
		args := strings.TrimSpace(string(call.Function.Arguments))
		if args == "" || args == "null" {
			args = "{}"
		}
		// Some models send arguments as a JSON string instead of an object.
		var asString string
		if json.Unmarshal(call.Function.Arguments, &asString) == nil {
			args = asString
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        ensureCallID(call.ID),
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	p.log.Debug().Int("chars", len(out.Text)).Int("tool_calls", len(out.ToolCalls)).Msg("received response")
	return out, nil
}

// OllamaHint is appended to transport errors.
func OllamaHint(model string) string {
	return fmt.Sprintf("Make sure Ollama is running (`ollama serve`) and the model is pulled (`ollama pull %s`).", model)
}

func schemaOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return raw
}

func temperatureOr(value, fallback float64) float64 {
	if value <= 0 {
		return fallback
	}
	return value
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	if len(compact) <= limit {
		return compact
	}
	if limit <= 3 {
		return compact[:limit]
	}
	return compact[:limit-3] + "..."
}
