// Package worker runs named, pure computation tasks (document parsing and
// mapping) either inline or on a pool of goroutines. Callers do not know
// which runner is active.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUnknownTask is returned for a task name with no registered handler.
	ErrUnknownTask = errors.New("worker: unknown task")
	// ErrClosed is returned by a runner after Close.
	ErrClosed = errors.New("worker: runner closed")
)

// Request is a named task invocation.
type Request struct {
	ID       uuid.UUID       `json:"id"`
	TaskName string          `json:"taskName"`
	Params   json.RawMessage `json:"params,omitempty"`
}

// Response is the outcome of a Request. Exactly one of Response and Error
// is set.
type Response struct {
	ID       uuid.UUID       `json:"id"`
	TaskName string          `json:"taskName"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`

	// cause keeps the typed error for in-process runners.
	cause error
}

// Err returns the task error, or nil.
func (r Response) Err() error {
	if r.Error == "" {
		return nil
	}
	if r.cause != nil {
		return r.cause
	}
	return &TaskError{TaskName: r.TaskName, Message: r.Error}
}

// TaskError is a task failure that crossed a serialization boundary.
type TaskError struct {
	TaskName string
	Message  string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("worker: task %s failed: %s", e.TaskName, e.Message)
}

// TaskFunc handles one task. It must not touch the network or the cache.
type TaskFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Registry maps task names to handlers.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]TaskFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]TaskFunc)}
}

// HandleFunc registers fn for name, replacing any earlier handler.
func (r *Registry) HandleFunc(name string, fn TaskFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = fn
}

func (r *Registry) lookup(name string) (TaskFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tasks[name]
	return fn, ok
}

// execute runs req against the registry and builds its response. Task
// failures are reported in the response, not as the returned error.
func (r *Registry) execute(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID, TaskName: req.TaskName}
	fn, ok := r.lookup(req.TaskName)
	if !ok {
		resp.cause = fmt.Errorf("%w: %s", ErrUnknownTask, req.TaskName)
		resp.Error = resp.cause.Error()
		return resp
	}
	out, err := fn(ctx, req.Params)
	if err != nil {
		resp.cause = err
		resp.Error = err.Error()
		return resp
	}
	data, err := json.Marshal(out)
	if err != nil {
		resp.cause = fmt.Errorf("worker: encode %s response: %w", req.TaskName, err)
		resp.Error = resp.cause.Error()
		return resp
	}
	resp.Response = data
	return resp
}

// Runner executes requests.
type Runner interface {
	// Run executes req. The returned error reports runner failures (closed,
	// cancelled); task failures are carried by the Response.
	Run(ctx context.Context, req Request) (Response, error)
	Close() error
}

// NewRequest builds a Request with a fresh id and params encoded as JSON.
func NewRequest(taskName string, params any) (Request, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return Request{}, fmt.Errorf("worker: encode %s params: %w", taskName, err)
	}
	return Request{ID: uuid.New(), TaskName: taskName, Params: data}, nil
}

// Call runs the task name with params on r and decodes its response.
func Call[T any](ctx context.Context, r Runner, name string, params any) (T, error) {
	var out T
	req, err := NewRequest(name, params)
	if err != nil {
		return out, err
	}
	resp, err := r.Run(ctx, req)
	if err != nil {
		return out, err
	}
	if err := resp.Err(); err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Response, &out); err != nil {
		return out, fmt.Errorf("worker: decode %s response: %w", name, err)
	}
	return out, nil
}
