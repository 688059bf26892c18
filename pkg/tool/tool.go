// Package tool implements the in-process tool registry the bounded agent
// loop (pkg/agent/engine) dispatches against: OpenAI-style function-tool
// definitions, JSON-Schema-derived parameters, and panic-safe execution.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// Definition describes a tool to the LLM in the same shape the teacher's
// pkg/agent.ToolDefinition uses.
type Definition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema
}

// Call is an LLM's request to invoke a tool.
type Call struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// Result is what a tool handler returns to the conversation.
type Result struct {
	Content string
	IsError bool
}

// Handler runs a tool body against decoded JSON arguments and returns the
// content to feed back to the LLM. A handler that fails returns ("", err):
// wrap store.ErrValidation when the mistake is the LLM's own and it should
// retry with corrected input; return any other error — store.ErrNotFound,
// store.ErrConflict, store.ErrBadRequest, or an unwrapped transport/DB
// error — to signal a real failure. Execute classifies the two cases;
// only the former becomes tool-response text, the latter aborts the agent
// loop (spec §4.F).
type Handler func(ctx context.Context, argumentsJSON string) (string, error)

// Tool bundles a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Pool is the set of tools available to one agent loop invocation.
type Pool struct {
	tools map[string]Tool
	order []string
}

// NewPool builds an empty tool pool.
func NewPool() *Pool {
	return &Pool{tools: make(map[string]Tool)}
}

// Register adds a tool, preserving registration order for Definitions.
func (p *Pool) Register(t Tool) {
	if _, exists := p.tools[t.Definition.Name]; !exists {
		p.order = append(p.order, t.Definition.Name)
	}
	p.tools[t.Definition.Name] = t
}

// Definitions returns every registered tool's definition, in registration
// order, for inclusion in the LLM request.
func (p *Pool) Definitions() []Definition {
	defs := make([]Definition, 0, len(p.order))
	for _, name := range p.order {
		defs = append(defs, p.tools[name].Definition)
	}
	return defs
}

// Has reports whether name is registered.
func (p *Pool) Has(name string) bool {
	_, ok := p.tools[name]
	return ok
}

// Execute dispatches one tool call. A missing tool is reported as a
// non-fatal error Result rather than surfaced as a Go error, matching the
// agent loop's requirement that an unknown tool name never aborts the
// conversation (spec: tool-not-found is non-fatal).
//
// A handler error is classified: store.ErrValidation becomes a
// non-aborting Result{IsError:true} so the LLM can self-correct; every
// other error (bad_request, not_found, conflict, llm_error, internal, or a
// panic) is returned as a Go error so the caller aborts the agent loop
// with it, per spec §4.F's "abort the whole agent with that error" rule —
// only validation is named as the self-correctable exception.
func (p *Pool) Execute(ctx context.Context, call Call) (result Result, err error) {
	t, ok := p.tools[call.Name]
	if !ok {
		return Result{Content: fmt.Sprintf("unknown tool %q", call.Name), IsError: true}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = fmt.Errorf("tool %q panicked: %v", call.Name, r)
		}
	}()

	content, handlerErr := t.Handler(ctx, call.Arguments)
	if handlerErr != nil {
		if errors.Is(handlerErr, store.ErrValidation) {
			return Result{Content: fmt.Sprintf("tool %q failed: %v", call.Name, handlerErr), IsError: true}, nil
		}
		return Result{}, fmt.Errorf("tool %q: %w", call.Name, handlerErr)
	}
	return Result{Content: content}, nil
}

// DecodeArguments unmarshals a call's JSON arguments into dst. A malformed
// payload is the LLM's own mistake (spec §4.F.d: "parse failure ⇒ emit
// error tool-response"), so the returned error wraps store.ErrValidation —
// handlers can return it straight to Execute, which will surface it as a
// non-aborting tool response rather than abort the run.
func DecodeArguments(argumentsJSON string, dst any) error {
	if argumentsJSON == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(argumentsJSON), dst); err != nil {
		return fmt.Errorf("%w: invalid arguments: %v", store.ErrValidation, err)
	}
	return nil
}
