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

package tradeflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tradeflowhq/tradeflow/config"
	"github.com/tradeflowhq/tradeflow/internal/apierror"
	"github.com/tradeflowhq/tradeflow/internal/fingerprint"
	"github.com/tradeflowhq/tradeflow/model"
)

var tracer = otel.Tracer("confirmable.intent")

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// RegisterIntentRequest carries everything the conversational layer knows
// about a proposed action. FingerprintFields picks the payload keys that
// define the action's identity; volatile fields (reformatted message bodies
// and the like) stay out so repeated previews dedup to one intent.
type RegisterIntentRequest struct {
	SessionID         string
	ActionKind        string
	OperationName     string
	Payload           json.RawMessage
	FingerprintFields []string
	PreviewSummary    string
	TTL               time.Duration
}

// RegisterIntent registers a proposed action as a PENDING intent.
// Registration is idempotent per (session, kind, fingerprint): while an
// equivalent intent is still pending, the existing record comes back
// unchanged. A genuinely new intent supersedes any other pending intents of
// the same kind in the session, keeping one active action per kind the
// normal case.
func (l *TradeFlow) RegisterIntent(ctx context.Context, req RegisterIntentRequest) (*model.PendingAction, error) {
	ctx, span := tracer.Start(ctx, "Registering pending action")
	defer span.End()

	if req.SessionID == "" || req.ActionKind == "" || req.OperationName == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "session_id, action_kind and operation_name are required", nil)
	}

	hash, err := fingerprint.Compute(req.Payload, req.FingerprintFields)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Failed to fingerprint payload", err)
	}

	existing, err := l.datasource.FindActiveIntentByFingerprint(ctx, req.SessionID, req.ActionKind, hash)
	if err == nil {
		if !existing.IsExpired(l.now()) {
			span.AddEvent("duplicate registration, returning existing intent")
			return existing, nil
		}
		// retire the stale row before the replacement, or its PENDING
		// status would trip the partial unique index
		if _, err := l.datasource.TryIntentTransition(ctx, existing.IntentID, model.StatusPending, model.StatusExpired, "confirmation window elapsed"); err != nil {
			return nil, logAndRecordError(span, "expiring stale pending action error: ", err)
		}
	} else if !apierror.IsNotFound(err) {
		return nil, logAndRecordError(span, "fingerprint lookup error: ", err)
	}

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = cnf.Confirmation.TTLFor(req.ActionKind)
	}

	now := l.now()
	intent := &model.PendingAction{
		IntentID:           model.GenerateUUIDWithSuffix("int"),
		SessionID:          req.SessionID,
		ActionKind:         req.ActionKind,
		OperationName:      req.OperationName,
		Payload:            req.Payload,
		PayloadFingerprint: hash,
		PreviewSummary:     fingerprint.CapSummary(fingerprint.MaskSummary(req.PreviewSummary), cnf.Confirmation.MaxPreviewLength),
		Status:             model.StatusPending,
		CreatedAt:          now,
		ExpiresAt:          now.Add(ttl),
	}

	intent, err = l.datasource.RecordIntent(ctx, intent)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
			// lost the insert race to an equivalent registration
			return l.datasource.FindActiveIntentByFingerprint(ctx, req.SessionID, req.ActionKind, hash)
		}
		return nil, logAndRecordError(span, "saving pending action to db error: ", err)
	}

	superseded, err := l.datasource.SupersedePendingIntents(ctx, req.SessionID, req.ActionKind, intent.IntentID,
		fmt.Sprintf("superseded by %s", intent.IntentID))
	if err != nil {
		return nil, logAndRecordError(span, "superseding pending actions error: ", err)
	}
	if superseded > 0 {
		logrus.Infof("superseded %d pending %s action(s) in session %s", superseded, req.ActionKind, req.SessionID)
	}

	if l.queue != nil {
		if err := l.queue.queueIntentExpiry(intent.IntentID, intent.ExpiresAt); err != nil {
			// the periodic sweep still catches it
			logrus.Errorf("Error scheduling expiry for intent %s: %v", intent.IntentID, err)
		}
	}

	return intent, nil
}

// AcquireIntentForExecution attempts the PENDING -> EXECUTING transition.
// This is the only way execution may begin; the persisted EXECUTING status
// is the lock, visible across instances and restarts. A false return means
// another caller holds it or the intent already left PENDING.
func (l *TradeFlow) AcquireIntentForExecution(ctx context.Context, intentID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Acquiring pending action for execution")
	defer span.End()

	ok, err := l.datasource.TryIntentTransition(ctx, intentID, model.StatusPending, model.StatusExecuting, "")
	if err != nil {
		return false, logAndRecordError(span, "acquire transition error: ", err)
	}
	return ok, nil
}

// CompleteIntent records a successful execution: EXECUTING -> EXECUTED.
// Must only be called after the external side effect succeeded.
func (l *TradeFlow) CompleteIntent(ctx context.Context, intentID, notes string) (bool, error) {
	return l.transitionIntent(ctx, intentID, model.StatusExecuting, model.StatusExecuted, notes)
}

// FailIntent records a failed execution: EXECUTING -> EXPIRED. The action is
// not retried automatically; retrying a possibly-partially-applied side
// effect is unsafe without collaborator-level idempotency.
func (l *TradeFlow) FailIntent(ctx context.Context, intentID, notes string) (bool, error) {
	return l.transitionIntent(ctx, intentID, model.StatusExecuting, model.StatusExpired, notes)
}

// CancelIntent cancels a still-pending action: PENDING -> CANCELLED.
func (l *TradeFlow) CancelIntent(ctx context.Context, intentID, notes string) (bool, error) {
	return l.transitionIntent(ctx, intentID, model.StatusPending, model.StatusCancelled, notes)
}

func (l *TradeFlow) transitionIntent(ctx context.Context, intentID, from, to, notes string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Transitioning pending action")
	defer span.End()

	if !model.CanTransition(from, to) {
		return false, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("illegal transition %s -> %s", from, to), nil)
	}

	ok, err := l.datasource.TryIntentTransition(ctx, intentID, from, to, notes)
	if err != nil {
		return false, logAndRecordError(span, "transition error: ", err)
	}

	if ok && from == model.StatusPending && to != model.StatusExpired && l.queue != nil {
		// the scheduled expiry task has nothing left to do
		if err := l.queue.dequeueIntentExpiry(intentID); err != nil {
			logrus.Errorf("Error dequeuing expiry for intent %s: %v", intentID, err)
		}
	}
	return ok, nil
}
