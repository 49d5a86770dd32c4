package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// OpenAIConfig holds configuration for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	// BaseURL is the API root, e.g. http://localhost:11434/v1.
	BaseURL string
	// APIKey may be any non-empty string for Ollama.
	APIKey string
	// Model is the default model; Request.Model overrides it per call.
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// OpenAIProvider implements Provider on top of an eino ChatModel.
type OpenAIProvider struct {
	chatModel model.ToolCallingChatModel
	config    OpenAIConfig
	retry     RetryPolicy
	log       zerolog.Logger
}

// OpenAIBaseURL turns an Ollama host into its OpenAI-compatible API root.
func OpenAIBaseURL(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if strings.HasSuffix(host, "/v1") {
		return host
	}
	return host + "/v1"
}

// NewOpenAIProvider creates the eino chat model.
func NewOpenAIProvider(ctx context.Context, cfg OpenAIConfig, log zerolog.Logger) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		cfg.APIKey = "ollama"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	mc := &openai.ChatModelConfig{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		MaxTokens: &maxTokens,
	}
	if cfg.HTTPClient != nil {
		mc.HTTPClient = cfg.HTTPClient
	}
	chatModel, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
	}
	return &OpenAIProvider{
		chatModel: chatModel,
		config:    cfg,
		retry:     DefaultRetryPolicy(),
		log:       log,
	}, nil
}

// SetRetry replaces the retry policy.
func (p *OpenAIProvider) SetRetry(r RetryPolicy) { p.retry = r }

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete runs a non-streaming Generate call.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	chatModel := p.chatModel
	if len(req.Tools) > 0 {
		bound, err := chatModel.WithTools(ConvertToEinoTools(req.Tools))
		if err != nil {
			return Completion{}, fmt.Errorf("failed to bind tools: %w", err)
		}
		chatModel = bound
	}

	messages := make([]*schema.Message, 0, req.Snapshot.Len()+1)
	for _, m := range buildMessages(req) {
		role := schema.User
		switch m.Role {
		case "system":
			role = schema.System
		case "assistant":
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: m.Content})
	}

	opts := []model.Option{model.WithTemperature(float32(temperatureOr(req.Temperature, 0.2)))}
	if req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}

	p.log.Debug().Str("model", req.Model).Int("messages", len(messages)).Msg("sending request to openai-compatible endpoint")

	var reply *schema.Message
	err := p.retry.Do(ctx, func() error {
		out, err := chatModel.Generate(ctx, messages, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return Permanent(ctx.Err())
			}
			return fmt.Errorf("openai request failed: %w", err)
		}
		reply = out
		return nil
	})
	if err != nil {
		return Completion{}, err
	}

	out := Completion{Text: strings.TrimSpace(reply.Content)}
	for _, call := range reply.ToolCalls {
		args := strings.TrimSpace(call.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        ensureCallID(call.ID),
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// ConvertToEinoTools converts tool specs to eino tool definitions.
func ConvertToEinoTools(tools []ToolSpec) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}
		result[i] = &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}
	required := make(map[string]bool, len(jsonSchema.Required))
	for _, r := range jsonSchema.Required {
		required[r] = true
	}
	params := make(map[string]*schema.ParameterInfo, len(jsonSchema.Properties))
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}
		info := &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: required[name],
		}
		if paramType == schema.Array {
			info.ElemInfo = &schema.ParameterInfo{Type: schema.String}
		}
		params[name] = info
	}
	return params
}
