// Package llm implements the chat-completion client the agent loop engine
// (pkg/agent/engine) calls into: Gemini function-calling over
// google.golang.org/genai, replacing the teacher's gRPC sidecar to a
// Python LLM service with a direct SDK call.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/nextlevelbuilder/acontext/pkg/config"
	"github.com/nextlevelbuilder/acontext/pkg/tool"
)

// Conversation message roles, mirroring the teacher's pkg/agent.RoleX
// constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []tool.Call // set on assistant messages that requested tools
	ToolCallID string      // set on tool-result messages
	ToolName   string      // set on tool-result messages
}

// Usage reports token consumption for one Complete call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the model's reply: either a final text answer or a set of
// tool calls the engine must execute and feed back.
type Response struct {
	Text      string
	ToolCalls []tool.Call
	Usage     Usage
}

// Client wraps a genai client bound to one model.
type Client struct {
	genai      *genai.Client
	model      string
	timeout    time.Duration
	maxRetries int
}

// NewClient constructs a Client from LLM configuration.
func NewClient(ctx context.Context, cfg *config.LLMConfig) (*Client, error) {
	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gc, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		genai:      gc,
		model:      cfg.Model,
		timeout:    cfg.RequestTimeout,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Complete sends a conversation, with an optional bound tool set, and
// returns the model's reply. Retries any failed call, whatever the
// error, up to maxRetries times with a short linear backoff.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []tool.Definition) (*Response, error) {
	contents, systemInstruction := buildContents(messages)
	genConfig := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		genConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	if len(tools) > 0 {
		genaiTools, err := buildTools(tools)
		if err != nil {
			return nil, fmt.Errorf("build tool schemas: %w", err)
		}
		genConfig.Tools = genaiTools
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying LLM completion", "attempt", attempt, "error", lastErr)
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.genai.Models.GenerateContent(callCtx, c.model, contents, genConfig)
		cancel()
		if err == nil {
			return parseResponse(resp)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("LLM completion failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func buildContents(messages []Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			systemInstruction = m.Content
		case RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		case RoleAssistant:
			parts := []*genai.Part{}
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case RoleTool:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.ToolName,
					Response: map[string]any{"result": m.Content},
				},
			}}})
		}
	}
	return contents, systemInstruction
}

func buildTools(tools []tool.Definition) ([]*genai.Tool, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var schemaMap map[string]any
		if t.ParametersSchema != "" {
			if err := json.Unmarshal([]byte(t.ParametersSchema), &schemaMap); err != nil {
				return nil, fmt.Errorf("tool %q has invalid schema: %w", t.Name, err)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGenaiSchema(schemaMap),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// toGenaiSchema translates a plain JSON-Schema map (as produced by
// pkg/tool.SchemaFor) into genai's typed Schema, the same hand-rolled
// walk kadirpekel-hector's gemini provider uses.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	return s
}

func parseResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from LLM")
	}
	candidate := resp.Candidates[0]

	out := &Response{}
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			argsRaw, _ := json.Marshal(part.FunctionCall.Args)
			callID := part.FunctionCall.ID
			if callID == "" {
				callID = part.FunctionCall.Name
			}
			out.ToolCalls = append(out.ToolCalls, tool.Call{
				ID:        callID,
				Name:      part.FunctionCall.Name,
				Arguments: string(argsRaw),
			})
		}
	}

	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}
