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
package model

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	tradeflow "github.com/tradeflowhq/tradeflow"
)

// ProposeAction is the request body for registering a new confirmable
// action on behalf of a conversation session.
type ProposeAction struct {
	SessionID         string                 `json:"session_id"`
	ActionKind        string                 `json:"action_kind"`
	OperationName     string                 `json:"operation_name"`
	Payload           map[string]interface{} `json:"payload"`
	FingerprintFields []string               `json:"fingerprint_fields"`
	PreviewSummary    string                 `json:"preview_summary"`
	TTLSeconds        int                    `json:"ttl_seconds,omitempty"`
}

func (p *ProposeAction) ValidateProposeAction() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.SessionID, validation.Required),
		validation.Field(&p.ActionKind, validation.Required),
		validation.Field(&p.OperationName, validation.Required),
		validation.Field(&p.Payload, validation.Required),
		validation.Field(&p.TTLSeconds, validation.Min(0)),
	)
}

func (p *ProposeAction) ToRegisterIntentRequest() (tradeflow.RegisterIntentRequest, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return tradeflow.RegisterIntentRequest{}, err
	}
	return tradeflow.RegisterIntentRequest{
		SessionID:         p.SessionID,
		ActionKind:        p.ActionKind,
		OperationName:     p.OperationName,
		Payload:           payload,
		FingerprintFields: p.FingerprintFields,
		PreviewSummary:    p.PreviewSummary,
		TTL:               time.Duration(p.TTLSeconds) * time.Second,
	}, nil
}

// ConfirmSession is the request body for a free-form "yes, do it"
// confirmation scoped to a session and action kind.
type ConfirmSession struct {
	ActionKind string `json:"action_kind"`
}

func (c *ConfirmSession) ValidateConfirmSession() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ActionKind, validation.Required),
	)
}

// CancelAction is the request body for cancelling a pending action.
type CancelAction struct {
	Notes string `json:"notes,omitempty"`
}
