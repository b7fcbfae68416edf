package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/model"
)

// DefaultInvokeTimeout bounds a single handler execution when the caller does
// not override it.
const DefaultInvokeTimeout = 15 * time.Second

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	// DefaultTimeout applies to Invoke calls that do not set their own.
	DefaultTimeout time.Duration
	// Logger receives tool.call.* events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry maps tool names to schema-described capabilities. Schemas are
// compiled once at registration; Invoke validates arguments against the
// compiled schema, then executes the handler isolated in its own goroutine
// under a deadline, converting panics into tool failures.
//
// A Registry is safe for concurrent use: registration takes the write lock,
// invocations share the read lock and no mutable state beyond it.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registration
	opts  RegistryOptions
}

type registration struct {
	tool       Tool
	schema     *jsonschema.Schema
	definition model.ToolDefinition
}

// NewRegistry creates an empty tool registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		DefaultTimeout: DefaultInvokeTimeout,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Registry{tools: make(map[string]*registration), opts: opts}
}

// Register adds a tool, compiling its parameter schema. It fails with
// *DuplicateToolError if the name exists and with a compile error if the
// schema is malformed; in both cases the registry is left unchanged.
func (r *Registry) Register(t Tool) error {
	name := t.Name()

	raw, err := json.Marshal(t.Parameters())
	if err != nil {
		return fmt.Errorf("marshal schema for %q: %w", name, err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.tools[name] = &registration{
		tool:   t,
		schema: compiled,
		definition: model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        name,
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		},
	}
	r.opts.Logger.Debug("tool.registered", "tool", name)
	return nil
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the wire declarations for the given tool names (or all
// registered tools when names is empty), sorted by name. The parameter
// schemas are exactly what Invoke validates against.
func (r *Registry) Definitions(names ...string) []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		names = make([]string, 0, len(r.tools))
		for name := range r.tools {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		if reg, ok := r.tools[name]; ok {
			defs = append(defs, reg.definition)
		}
	}
	return defs
}

// InvokeOptions configure a single Invoke call.
type InvokeOptions struct {
	// Timeout bounds handler execution; 0 falls back to the registry default.
	Timeout time.Duration
}

// Invoke dispatches a tool call. Resolution order: unknown name →
// *UnknownToolError; malformed or non-conforming arguments →
// *SchemaValidationError (the handler never runs); handler exceeding the
// deadline → *ToolTimeoutError; handler panic or error → *ToolError. Caller
// context cancellation surfaces as *core.CancelledError. No outcome is
// retried here; retry policy belongs to the agent layer.
func (r *Registry) Invoke(ctx context.Context, call core.ToolCall, optFns ...func(o *InvokeOptions)) (interface{}, error) {
	opts := InvokeOptions{Timeout: r.opts.DefaultTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultInvokeTimeout
	}

	r.mu.RLock()
	reg, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownToolError{Name: call.Name}
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return nil, &SchemaValidationError{Tool: call.Name, Causes: []string{err.Error()}}
	}
	if result := reg.schema.Validate(args); !result.IsValid() {
		causes := make([]string, 0, len(result.Errors))
		for _, evalErr := range result.Errors {
			causes = append(causes, evalErr.Error())
		}
		sort.Strings(causes)
		r.opts.Logger.Warn("tool.call.validation_failed", "tool", call.Name, "causes", len(causes))
		return nil, &SchemaValidationError{Tool: call.Name, Causes: causes}
	}

	return r.execute(ctx, reg, call, args, opts.Timeout)
}

type outcome struct {
	result interface{}
	err    error
}

// execute runs the handler in its own goroutine so a panic or a hang can
// never take down or block the caller.
func (r *Registry) execute(ctx context.Context, reg *registration, call core.ToolCall, args map[string]interface{}, timeout time.Duration) (interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.opts.Logger.Debug("tool.call.start", "tool", call.Name, "call_id", call.ID)
	start := time.Now()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.opts.Logger.Error("tool.call.panic", "tool", call.Name, "recover", rec, "stack", string(debug.Stack()))
				done <- outcome{err: NewToolError(call.Name, fmt.Sprintf("panic: %v", rec), CodeExecutionError)}
			}
		}()
		result, err := reg.tool.Call(callCtx, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		if ctx.Err() != nil {
			r.opts.Logger.Warn("tool.call.cancelled", "tool", call.Name, "call_id", call.ID)
			return nil, core.NewCancelledError("tool.invoke", ctx)
		}
		r.opts.Logger.Error("tool.call.timeout", "tool", call.Name, "timeout_ms", timeout.Milliseconds())
		return nil, &ToolTimeoutError{Tool: call.Name, Timeout: timeout}
	case oc := <-done:
		dur := time.Since(start)
		if oc.err != nil {
			r.opts.Logger.Error("tool.call.error", "tool", call.Name, "duration_ms", dur.Milliseconds(), "error", oc.err.Error())
			if toolErr, ok := oc.err.(*ToolError); ok {
				return nil, toolErr
			}
			return nil, NewToolError(call.Name, oc.err.Error(), CodeExecutionError)
		}
		r.opts.Logger.Info("tool.call.success", "tool", call.Name, "duration_ms", dur.Milliseconds())
		return oc.result, nil
	}
}

func parseArguments(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
