/*
Copyright 2026 TradeFlow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package dispatch routes a confirmed action's operation name to the
// collaborator that performs its side effect. The state machine stays
// callback-based; this registry is the host-side adapter behind the HTTP
// confirm endpoints.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/tradeflowhq/tradeflow/internal/request"
)

// Operation performs the external side effect for one operation name. It
// must tolerate being invoked at most once per acquired confirmation; the
// state machine never retries it.
type Operation interface {
	Execute(ctx context.Context, payload json.RawMessage) error
}

// OperationFunc adapts a function to the Operation interface.
type OperationFunc func(ctx context.Context, payload json.RawMessage) error

func (f OperationFunc) Execute(ctx context.Context, payload json.RawMessage) error {
	return f(ctx, payload)
}

// Registry maps operation names to their executors. Safe for concurrent
// registration and lookup.
type Registry struct {
	mu         sync.RWMutex
	operations map[string]Operation
}

func NewRegistry() *Registry {
	return &Registry{operations: make(map[string]Operation)}
}

// Register binds an operation name to an executor, replacing any previous
// binding.
func (r *Registry) Register(name string, op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[name] = op
}

// Resolve returns the executor bound to an operation name.
func (r *Registry) Resolve(name string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operations[name]
	if !ok {
		return nil, fmt.Errorf("no operation registered for %q", name)
	}
	return op, nil
}

// WebhookOperation forwards a confirmed action's payload to an external
// HTTP endpoint, standing in for the email/declaration/payment providers
// that live outside this service.
type WebhookOperation struct {
	URL     string
	Headers map[string]string
}

func (w *WebhookOperation) Execute(ctx context.Context, payload json.RawMessage) error {
	body, err := request.ToJsonReq(&payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.URL, body)
	if err != nil {
		return err
	}
	for key, value := range w.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("operation endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
