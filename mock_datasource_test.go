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
	"sort"
	"sync"
	"time"

	"github.com/tradeflowhq/tradeflow/internal/apierror"
	"github.com/tradeflowhq/tradeflow/model"
)

// mockDataSource is an in-memory stand-in for the Postgres store. It mirrors
// the store's compare-and-swap semantics under a mutex, which is what the
// state-machine tests exercise: of concurrent transitions from the same
// status, exactly one succeeds.
type mockDataSource struct {
	mu      sync.Mutex
	intents map[string]*model.PendingAction
}

func newMockDataSource() *mockDataSource {
	return &mockDataSource{intents: make(map[string]*model.PendingAction)}
}

func (m *mockDataSource) RecordIntent(_ context.Context, intent *model.PendingAction) (*model.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.intents {
		if existing.Status == model.StatusPending &&
			existing.SessionID == intent.SessionID &&
			existing.ActionKind == intent.ActionKind &&
			existing.PayloadFingerprint == intent.PayloadFingerprint {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "A pending action with the same fingerprint already exists", nil)
		}
	}

	stored := *intent
	m.intents[intent.IntentID] = &stored
	return intent, nil
}

func (m *mockDataSource) GetIntent(_ context.Context, id string) (*model.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Pending action not found", nil)
	}
	clone := *intent
	return &clone, nil
}

func (m *mockDataSource) ListIntents(_ context.Context, sessionID, status, actionKind string, limit int) ([]*model.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.PendingAction
	for _, intent := range m.intents {
		if intent.SessionID != sessionID {
			continue
		}
		if status != "" && intent.Status != status {
			continue
		}
		if actionKind != "" && intent.ActionKind != actionKind {
			continue
		}
		clone := *intent
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockDataSource) FindActiveIntentByFingerprint(_ context.Context, sessionID, actionKind, fingerprint string) (*model.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, intent := range m.intents {
		if intent.Status == model.StatusPending &&
			intent.SessionID == sessionID &&
			intent.ActionKind == actionKind &&
			intent.PayloadFingerprint == fingerprint {
			clone := *intent
			return &clone, nil
		}
	}
	return nil, apierror.NewAPIError(apierror.ErrNotFound, "No active pending action for fingerprint", nil)
}

func (m *mockDataSource) TryIntentTransition(_ context.Context, id, fromStatus, toStatus, notes string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok || intent.Status != fromStatus {
		return false, nil
	}

	now := time.Now()
	intent.Status = toStatus
	if toStatus == model.StatusExecuting {
		intent.ExecutingSince = &now
	} else {
		intent.ExecutingSince = nil
	}
	if model.IsTerminalStatus(toStatus) {
		intent.FinishedAt = &now
	}
	if notes != "" {
		intent.Notes = notes
	}
	return true, nil
}

func (m *mockDataSource) MarkIntentTerminal(_ context.Context, id, status, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "Pending action not found", nil)
	}
	now := time.Now()
	intent.Status = status
	intent.ExecutingSince = nil
	intent.FinishedAt = &now
	if notes != "" {
		intent.Notes = notes
	}
	return nil
}

func (m *mockDataSource) SupersedePendingIntents(_ context.Context, sessionID, actionKind, exceptID, notes string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var count int64
	for _, intent := range m.intents {
		if intent.Status == model.StatusPending &&
			intent.SessionID == sessionID &&
			intent.ActionKind == actionKind &&
			intent.IntentID != exceptID {
			intent.Status = model.StatusSuperseded
			intent.FinishedAt = &now
			intent.Notes = notes
			count++
		}
	}
	return count, nil
}

func (m *mockDataSource) ListExpiredPendingIntents(_ context.Context, now time.Time, limit int) ([]*model.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.PendingAction
	for _, intent := range m.intents {
		if intent.Status == model.StatusPending && !intent.ExpiresAt.After(now) {
			clone := *intent
			out = append(out, &clone)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockDataSource) ListStuckExecutingIntents(_ context.Context, cutoff time.Time, limit int) ([]*model.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.PendingAction
	for _, intent := range m.intents {
		if intent.Status == model.StatusExecuting && intent.ExecutingSince != nil && intent.ExecutingSince.Before(cutoff) {
			clone := *intent
			out = append(out, &clone)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// status reads an intent's stored status directly, bypassing the service.
func (m *mockDataSource) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok {
		return ""
	}
	return intent.Status
}
