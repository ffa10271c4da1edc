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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending to executing", StatusPending, StatusExecuting, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to expired", StatusPending, StatusExpired, true},
		{"pending to superseded", StatusPending, StatusSuperseded, true},
		{"pending to executed skips executing", StatusPending, StatusExecuted, false},
		{"executing to executed", StatusExecuting, StatusExecuted, true},
		{"executing to expired", StatusExecuting, StatusExpired, true},
		{"executing to cancelled", StatusExecuting, StatusCancelled, false},
		{"executing to superseded", StatusExecuting, StatusSuperseded, false},
		{"executed is terminal", StatusExecuted, StatusExpired, false},
		{"cancelled is terminal", StatusCancelled, StatusExecuting, false},
		{"expired is terminal", StatusExpired, StatusPending, false},
		{"superseded is terminal", StatusSuperseded, StatusExecuting, false},
		{"no self transition", StatusPending, StatusPending, false},
		{"unknown status", "UNKNOWN", StatusExecuting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	assert.False(t, IsTerminalStatus(StatusPending))
	assert.False(t, IsTerminalStatus(StatusExecuting))
	assert.True(t, IsTerminalStatus(StatusExecuted))
	assert.True(t, IsTerminalStatus(StatusCancelled))
	assert.True(t, IsTerminalStatus(StatusExpired))
	assert.True(t, IsTerminalStatus(StatusSuperseded))
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	pendingLive := &PendingAction{Status: StatusPending, ExpiresAt: now.Add(time.Hour)}
	assert.False(t, pendingLive.IsExpired(now))

	pendingStale := &PendingAction{Status: StatusPending, ExpiresAt: now.Add(-time.Second)}
	assert.True(t, pendingStale.IsExpired(now))

	// Deadline exactly now counts as closed.
	pendingBoundary := &PendingAction{Status: StatusPending, ExpiresAt: now}
	assert.True(t, pendingBoundary.IsExpired(now))

	// Executing intents are never judged by expires_at.
	executing := &PendingAction{Status: StatusExecuting, ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, executing.IsExpired(now))
}

func TestIsStuck(t *testing.T) {
	now := time.Now()
	recoveryTimeout := 10 * time.Minute

	longAgo := now.Add(-time.Hour)
	stuck := &PendingAction{Status: StatusExecuting, ExecutingSince: &longAgo}
	assert.True(t, stuck.IsStuck(now, recoveryTimeout))

	recently := now.Add(-time.Minute)
	fresh := &PendingAction{Status: StatusExecuting, ExecutingSince: &recently}
	assert.False(t, fresh.IsStuck(now, recoveryTimeout))

	pending := &PendingAction{Status: StatusPending}
	assert.False(t, pending.IsStuck(now, recoveryTimeout))

	noTimestamp := &PendingAction{Status: StatusExecuting}
	assert.False(t, noTimestamp.IsStuck(now, recoveryTimeout))
}

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("int")
	assert.True(t, strings.HasPrefix(id, "int_"))

	other := GenerateUUIDWithSuffix("int")
	assert.NotEqual(t, id, other)
}

func TestOutcomeForStatus(t *testing.T) {
	assert.Equal(t, OutcomeAlreadyExecuted, OutcomeForStatus(StatusExecuted))
	assert.Equal(t, OutcomeInProgress, OutcomeForStatus(StatusExecuting))
	assert.Equal(t, OutcomeExpired, OutcomeForStatus(StatusExpired))
	assert.Equal(t, OutcomeCancelled, OutcomeForStatus(StatusCancelled))
	assert.Equal(t, OutcomeSuperseded, OutcomeForStatus(StatusSuperseded))
}
