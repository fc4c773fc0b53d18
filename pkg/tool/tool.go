// Package tool declares the callable tools, validates their arguments, and
// dispatches tool calls to the registered handlers.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mpatwa/resolute/pkg/domain"
)

// Param describes a single named argument of a tool.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string" or "integer"
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Spec is the static declaration of a tool: its name, the routing hint shown
// to the model, its argument schema, and its routing policy.
type Spec struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`

	// Terminal marks tools whose result is returned to the user as-is.
	// Results of non-terminal (advisory) tools are fed back to the model
	// for a final phrased answer.
	Terminal bool `json:"terminal"`

	// Authoritative marks tools whose failures must abort the turn instead
	// of flowing back into history as an error result. Used for ticketing
	// operations where a silent failure would misreport authoritative data.
	Authoritative bool `json:"-"`
}

// Handler executes a tool with validated, string-bound arguments.
type Handler func(ctx context.Context, args map[string]string) (string, error)

// Registry keeps the fixed set of tools available to the decision loop.
// Tools are registered once at process start.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]Spec
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:    make(map[string]Spec),
		handlers: make(map[string]Handler),
	}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(spec Spec, h Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if h == nil {
		return fmt.Errorf("tool %s: handler is nil", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	r.handlers[spec.Name] = h
	return nil
}

// Specs returns all registered tool specs sorted by name.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Terminal reports whether the named tool's result ends the turn. Unknown
// names are advisory so the model gets a chance to recover conversationally.
func (r *Registry) Terminal(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[name].Terminal
}

// Dispatch validates and executes a tool call, wrapping the outcome in the
// canonical result envelope.
//
// Validation failures and handler errors of non-authoritative tools are
// reported as error-bearing results so the model can recover (e.g. ask the
// user for a missing field). Handler errors of authoritative tools are
// returned as errors and abort the turn.
func (r *Registry) Dispatch(ctx context.Context, tc *domain.ToolCall) (*domain.ToolResult, error) {
	r.mu.RLock()
	spec, ok := r.specs[tc.Name]
	h := r.handlers[tc.Name]
	r.mu.RUnlock()

	if !ok {
		return errResult(tc, fmt.Sprintf("unknown tool: %s", tc.Name)), nil
	}

	args, err := bindArgs(spec, tc.Input)
	if err != nil {
		return errResult(tc, fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	content, err := h(ctx, args)
	if err != nil {
		if spec.Authoritative {
			return nil, fmt.Errorf("tool %s: %w", tc.Name, err)
		}
		return errResult(tc, fmt.Sprintf("tool %s failed: %v", tc.Name, err)), nil
	}

	return &domain.ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    content,
	}, nil
}

// bindArgs checks the call's input against the spec and binds each declared
// parameter to its string form.
func bindArgs(spec Spec, input map[string]any) (map[string]string, error) {
	args := make(map[string]string, len(spec.Params))
	for _, p := range spec.Params {
		v, ok := input[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, fmt.Errorf("missing required argument %q", p.Name)
			}
			continue
		}
		switch p.Type {
		case "string":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must be a string", p.Name)
			}
			if s == "" && p.Required {
				return nil, fmt.Errorf("missing required argument %q", p.Name)
			}
			args[p.Name] = s
		case "integer":
			switch n := v.(type) {
			case float64:
				args[p.Name] = fmt.Sprintf("%d", int64(n))
			case int:
				args[p.Name] = fmt.Sprintf("%d", n)
			case string:
				args[p.Name] = n
			default:
				return nil, fmt.Errorf("argument %q must be an integer", p.Name)
			}
		default:
			args[p.Name] = fmt.Sprint(v)
		}
	}
	return args, nil
}

func errResult(tc *domain.ToolCall, msg string) *domain.ToolResult {
	return &domain.ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    msg,
		IsError:    true,
	}
}
