// Package sheetstest provides an in-memory backend transport for tests.
package sheetstest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler answers one action. The returned value is JSON-encoded as the
// envelope data; a returned error is passed to the caller unchanged.
type Handler func(payload map[string]any) (any, error)

type Call struct {
	Action  string
	Method  string // GET, RETRY or POST
	Payload map[string]any
}

// Fake records every call and dispatches to registered handlers. Unregistered
// actions succeed with null data.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

func New() *Fake {
	return &Fake{handlers: map[string]Handler{}}
}

func (f *Fake) On(action string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[action] = h
	return f
}

// Reply registers a handler returning a fixed value.
func (f *Fake) Reply(action string, v any) *Fake {
	return f.On(action, func(map[string]any) (any, error) { return v, nil })
}

func (f *Fake) Fail(action string, err error) *Fake {
	return f.On(action, func(map[string]any) (any, error) { return nil, err })
}

func (f *Fake) Calls(action string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Call(ctx context.Context, action string, payload, out any) error {
	return f.dispatch(ctx, "GET", action, payload, out)
}

func (f *Fake) CallWithRetry(ctx context.Context, action string, payload, out any) error {
	return f.dispatch(ctx, "RETRY", action, payload, out)
}

func (f *Fake) Post(ctx context.Context, action string, body, out any) error {
	return f.dispatch(ctx, "POST", action, body, out)
}

func (f *Fake) dispatch(_ context.Context, method, action string, payload, out any) error {
	p := map[string]any{}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, &p); err != nil {
			return fmt.Errorf("sheetstest: %s payload is not an object: %w", action, err)
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Action: action, Method: method, Payload: p})
	h := f.handlers[action]
	f.mu.Unlock()

	if h == nil {
		return nil
	}
	v, err := h(p)
	if err != nil {
		return err
	}
	if out == nil || v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
