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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pending action statuses. An intent only ever moves forward along the
// transition table below; the four terminal statuses have no outgoing edges.
const (
	StatusPending    = "PENDING"
	StatusExecuting  = "EXECUTING"
	StatusExecuted   = "EXECUTED"
	StatusCancelled  = "CANCELLED"
	StatusExpired    = "EXPIRED"
	StatusSuperseded = "SUPERSEDED"
)

// Well-known action kinds. The set is open; the core never interprets a
// kind beyond using it as a dedup scope.
const (
	ActionSendEmail         = "send_email"
	ActionCreateDeclaration = "create_declaration"
	ActionExecutePayment    = "execute_payment"
)

// legalTransitions maps each status to the statuses it may move to.
// EXECUTING -> EXPIRED covers both execution failure and crash recovery.
var legalTransitions = map[string][]string{
	StatusPending:   {StatusExecuting, StatusCancelled, StatusExpired, StatusSuperseded},
	StatusExecuting: {StatusExecuted, StatusExpired},
}

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// CanTransition reports whether moving an intent from one status to another
// is a legal forward step.
func CanTransition(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether a status has no outgoing transitions.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusExecuted, StatusCancelled, StatusExpired, StatusSuperseded:
		return true
	}
	return false
}

// IsExpired reports whether a pending intent's confirmation window has
// closed. Only meaningful while the intent is still PENDING; once executing,
// staleness is judged from ExecutingSince instead.
func (intent *PendingAction) IsExpired(now time.Time) bool {
	return intent.Status == StatusPending && !intent.ExpiresAt.After(now)
}

// IsStuck reports whether an executing intent has held its lock for longer
// than the recovery timeout and should be reclaimed by the sweeper.
func (intent *PendingAction) IsStuck(now time.Time, recoveryTimeout time.Duration) bool {
	if intent.Status != StatusExecuting || intent.ExecutingSince == nil {
		return false
	}
	return now.Sub(*intent.ExecutingSince) > recoveryTimeout
}
