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

	"github.com/sirupsen/logrus"

	"github.com/tradeflowhq/tradeflow/model"
)

// ExecuteFunc is the external side effect supplied per confirmation:
// actually send the email, call the declaration API, move the money. The
// payload is opaque to this package. The function is invoked at most once
// per successful acquisition and never retried here.
type ExecuteFunc func(ctx context.Context, payload json.RawMessage) error

// ProposeAction registers a proposed action and returns the pending intent
// whose preview the conversational layer shows the user.
func (l *TradeFlow) ProposeAction(ctx context.Context, req RegisterIntentRequest) (*model.PendingAction, error) {
	return l.RegisterIntent(ctx, req)
}

// ResolveCandidates returns the session's still-confirmable actions of a
// kind, newest first. An empty kind returns every pending action in the
// session. Rows whose window already closed are excluded (and lazily
// retired), so callers can branch on len(): zero means nothing to confirm,
// one proceeds automatically, more than one needs the user to disambiguate.
func (l *TradeFlow) ResolveCandidates(ctx context.Context, sessionID, actionKind string) ([]*model.PendingAction, error) {
	ctx, span := tracer.Start(ctx, "Resolving confirmation candidates")
	defer span.End()

	pending, err := l.datasource.ListIntents(ctx, sessionID, model.StatusPending, actionKind, 50)
	if err != nil {
		return nil, logAndRecordError(span, "listing pending actions error: ", err)
	}

	now := l.now()
	candidates := make([]*model.PendingAction, 0, len(pending))
	for _, intent := range pending {
		if intent.IsExpired(now) {
			if _, err := l.datasource.TryIntentTransition(ctx, intent.IntentID, model.StatusPending, model.StatusExpired, "confirmation window elapsed"); err != nil {
				logrus.Errorf("Error retiring expired intent %s: %v", intent.IntentID, err)
			}
			continue
		}
		candidates = append(candidates, intent)
	}
	return candidates, nil
}

// ConfirmSession maps a bare "yes, do it" to a target intent and runs it.
// Exactly one candidate confirms automatically; zero or several come back
// as none_pending / ambiguous outcomes for the conversational layer to
// handle. Mapping "the second one" to an explicit intent id is the
// caller's job, after which it calls ConfirmIntent directly.
func (l *TradeFlow) ConfirmSession(ctx context.Context, sessionID, actionKind string, execute ExecuteFunc) (*model.ConfirmationOutcome, error) {
	candidates, err := l.ResolveCandidates(ctx, sessionID, actionKind)
	if err != nil {
		return nil, err
	}

	switch len(candidates) {
	case 0:
		return &model.ConfirmationOutcome{Result: model.OutcomeNonePending}, nil
	case 1:
		return l.ConfirmIntent(ctx, candidates[0].IntentID, execute)
	default:
		return &model.ConfirmationOutcome{Result: model.OutcomeAmbiguous, Candidates: candidates}, nil
	}
}

// ConfirmIntent drives a confirmed action through acquire -> execute ->
// finalize. The EXECUTING row is the lock: of any number of concurrent
// confirmations for the same intent, exactly one wins the compare-and-swap
// and runs the callback; every other caller gets a status-mirroring outcome
// without touching the side effect.
func (l *TradeFlow) ConfirmIntent(ctx context.Context, intentID string, execute ExecuteFunc) (*model.ConfirmationOutcome, error) {
	ctx, span := tracer.Start(ctx, "Confirming pending action")
	defer span.End()

	intent, err := l.datasource.GetIntent(ctx, intentID)
	if err != nil {
		return nil, logAndRecordError(span, "fetch pending action error: ", err)
	}

	if intent.Status != model.StatusPending {
		span.AddEvent("intent not pending, mirroring status")
		return &model.ConfirmationOutcome{Result: model.OutcomeForStatus(intent.Status), Intent: intent}, nil
	}

	if intent.IsExpired(l.now()) {
		// never execute past the window; the CAS keeps this race-safe
		// against a concurrent confirmation that got there first
		if _, err := l.datasource.TryIntentTransition(ctx, intentID, model.StatusPending, model.StatusExpired, "confirmation window elapsed"); err != nil {
			return nil, logAndRecordError(span, "expiring stale pending action error: ", err)
		}
		return &model.ConfirmationOutcome{Result: model.OutcomeExpired, Intent: intent}, nil
	}

	acquired, err := l.AcquireIntentForExecution(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		span.AddEvent("lost acquisition race")
		return &model.ConfirmationOutcome{Result: model.OutcomeInProgress, Intent: intent}, nil
	}

	if err := execute(ctx, intent.Payload); err != nil {
		logrus.Errorf("Execution failed for intent %s: %v", intentID, err)
		if _, failErr := l.FailIntent(ctx, intentID, err.Error()); failErr != nil {
			return nil, logAndRecordError(span, "recording execution failure error: ", failErr)
		}
		return &model.ConfirmationOutcome{Result: model.OutcomeFailed, Intent: intent, Reason: err.Error()}, nil
	}

	completed, err := l.CompleteIntent(ctx, intentID, "")
	if err != nil {
		return nil, logAndRecordError(span, "completing pending action error: ", err)
	}
	if !completed {
		// the sweeper reclaimed the lock mid-execution; the side effect
		// still happened, so report success and keep the audit trail honest
		logrus.Warnf("Intent %s finished after its executing lock was reclaimed", intentID)
		if err := l.datasource.MarkIntentTerminal(ctx, intentID, model.StatusExecuted, "completed after recovery timeout"); err != nil {
			return nil, logAndRecordError(span, "marking late completion error: ", err)
		}
	}

	return &model.ConfirmationOutcome{Result: model.OutcomeSucceeded, Intent: intent}, nil
}

// CancelPendingAction cancels a still-pending action on the user's behalf.
// Returns false when the action already left PENDING.
func (l *TradeFlow) CancelPendingAction(ctx context.Context, intentID, notes string) (bool, error) {
	if notes == "" {
		notes = "cancelled by user"
	}
	return l.CancelIntent(ctx, intentID, notes)
}

// GetIntentByID exposes a single pending action for UI rendering.
func (l *TradeFlow) GetIntentByID(ctx context.Context, intentID string) (*model.PendingAction, error) {
	return l.datasource.GetIntent(ctx, intentID)
}

// ListSessionIntents lists a session's actions of any status for audit
// surfaces, newest first.
func (l *TradeFlow) ListSessionIntents(ctx context.Context, sessionID, status, actionKind string, limit int) ([]*model.PendingAction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.datasource.ListIntents(ctx, sessionID, status, actionKind, limit)
}
