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

package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	var got json.RawMessage
	registry.Register("send_email", OperationFunc(func(ctx context.Context, payload json.RawMessage) error {
		got = payload
		return nil
	}))

	op, err := registry.Resolve("send_email")
	assert.NoError(t, err)

	payload := json.RawMessage(`{"to":"ops@example.com"}`)
	err = op.Execute(context.Background(), payload)
	assert.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = registry.Resolve("execute_payment")
	assert.Error(t, err)
}

func TestWebhookOperation(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	url := "https://collaborators.example.com/send_email"
	httpmock.RegisterResponder("POST", url,
		httpmock.NewStringResponder(200, `{"delivered":true}`))

	op := &WebhookOperation{URL: url, Headers: map[string]string{"X-Api-Key": "test"}}
	err := op.Execute(context.Background(), json.RawMessage(`{"to":"ops@example.com"}`))
	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestWebhookOperation_ErrorStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	url := "https://collaborators.example.com/send_email"
	httpmock.RegisterResponder("POST", url,
		httpmock.NewStringResponder(502, `{"error":"upstream down"}`))

	op := &WebhookOperation{URL: url}
	err := op.Execute(context.Background(), json.RawMessage(`{"to":"ops@example.com"}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
