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

package database

import (
	"context"
	"time"

	"github.com/tradeflowhq/tradeflow/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	intent // Interface for pending-action (intent) operations
}

// intent defines methods for persisting and transitioning pending actions.
// TryIntentTransition is the compare-and-swap every state-machine guarantee
// is built on: under concurrent callers exactly one observes true for a
// given (id, from, to) triple.
type intent interface {
	RecordIntent(ctx context.Context, intent *model.PendingAction) (*model.PendingAction, error)                                       // Inserts a new pending action
	GetIntent(ctx context.Context, id string) (*model.PendingAction, error)                                                            // Retrieves a pending action by intent id
	ListIntents(ctx context.Context, sessionID, status, actionKind string, limit int) ([]*model.PendingAction, error)                  // Lists a session's actions, newest first
	FindActiveIntentByFingerprint(ctx context.Context, sessionID, actionKind, fingerprint string) (*model.PendingAction, error)        // Finds the PENDING action with a matching fingerprint
	TryIntentTransition(ctx context.Context, id, fromStatus, toStatus, notes string) (bool, error)                                     // Conditional status update (CAS)
	MarkIntentTerminal(ctx context.Context, id, status, notes string) error                                                            // Unconditional terminal write for cleanup paths
	SupersedePendingIntents(ctx context.Context, sessionID, actionKind, exceptID, notes string) (int64, error)                         // Supersedes all other PENDING actions of a kind
	ListExpiredPendingIntents(ctx context.Context, now time.Time, limit int) ([]*model.PendingAction, error)                           // PENDING rows whose confirmation window closed
	ListStuckExecutingIntents(ctx context.Context, cutoff time.Time, limit int) ([]*model.PendingAction, error)                        // EXECUTING rows holding the lock past the recovery timeout
}
