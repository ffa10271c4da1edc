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
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/tradeflowhq/tradeflow/config"
	"github.com/tradeflowhq/tradeflow/model"
)

func TestSweepIntents_RetiresExpiredPending(t *testing.T) {
	tf, ds, clock := newTestTradeFlow(t)
	ctx := context.Background()

	stale, err := tf.RegisterIntent(ctx, emailRequest(gofakeit.UUID()))
	assert.NoError(t, err)

	fresh := emailRequest(gofakeit.UUID())
	fresh.TTL = 24 * time.Hour
	kept, err := tf.RegisterIntent(ctx, fresh)
	assert.NoError(t, err)

	clock.Advance(config.DefaultActionTTL + time.Minute)

	err = tf.SweepIntents(ctx)
	assert.NoError(t, err)

	assert.Equal(t, model.StatusExpired, ds.status(stale.IntentID))
	assert.Equal(t, model.StatusPending, ds.status(kept.IntentID))

	retired, err := tf.GetIntentByID(ctx, stale.IntentID)
	assert.NoError(t, err)
	assert.Equal(t, "confirmation window elapsed", retired.Notes)
}

func TestSweepIntents_RetiresOnExactDeadline(t *testing.T) {
	tf, ds, clock := newTestTradeFlow(t)
	ctx := context.Background()

	intent, err := tf.RegisterIntent(ctx, emailRequest(gofakeit.UUID()))
	assert.NoError(t, err)

	// a window closing exactly now is already closed
	clock.Advance(config.DefaultActionTTL)

	err = tf.SweepIntents(ctx)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusExpired, ds.status(intent.IntentID))
}

func TestSweepIntents_RecoversStuckExecuting(t *testing.T) {
	tf, ds, clock := newTestTradeFlow(t)
	ctx := context.Background()

	intent, err := tf.RegisterIntent(ctx, emailRequest(gofakeit.UUID()))
	assert.NoError(t, err)

	acquired, err := tf.AcquireIntentForExecution(ctx, intent.IntentID)
	assert.NoError(t, err)
	assert.True(t, acquired)

	// the process holding the lock crashes; the row stays EXECUTING
	clock.Advance(config.DefaultRecoveryTimeout + time.Minute)

	err = tf.SweepIntents(ctx)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusExpired, ds.status(intent.IntentID))

	recovered, err := tf.GetIntentByID(ctx, intent.IntentID)
	assert.NoError(t, err)
	assert.Equal(t, "recovered stuck executing lock", recovered.Notes)

	// the reclaimed action cannot be confirmed anymore
	outcome, err := tf.ConfirmIntent(ctx, intent.IntentID, func(ctx context.Context, payload json.RawMessage) error {
		t.Fatal("reclaimed action must not execute")
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, model.OutcomeExpired, outcome.Result)
}

func TestSweepIntents_LeavesHealthyExecutingAlone(t *testing.T) {
	tf, ds, clock := newTestTradeFlow(t)
	ctx := context.Background()

	intent, err := tf.RegisterIntent(ctx, emailRequest(gofakeit.UUID()))
	assert.NoError(t, err)

	acquired, err := tf.AcquireIntentForExecution(ctx, intent.IntentID)
	assert.NoError(t, err)
	assert.True(t, acquired)

	clock.Advance(time.Minute)

	err = tf.SweepIntents(ctx)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusExecuting, ds.status(intent.IntentID))
}

func TestConfirmIntent_CompletionAfterLockReclaimed(t *testing.T) {
	tf, ds, clock := newTestTradeFlow(t)
	ctx := context.Background()

	intent, err := tf.RegisterIntent(ctx, emailRequest(gofakeit.UUID()))
	assert.NoError(t, err)

	// Execution outlives the recovery timeout: the sweeper reclaims the
	// lock mid-flight, but the side effect still completes.
	outcome, err := tf.ConfirmIntent(ctx, intent.IntentID, func(ctx context.Context, payload json.RawMessage) error {
		clock.Advance(config.DefaultRecoveryTimeout + time.Minute)
		return tf.SweepIntents(ctx)
	})
	assert.NoError(t, err)
	assert.Equal(t, model.OutcomeSucceeded, outcome.Result)

	// the audit trail records the execution, not the reclaim
	assert.Equal(t, model.StatusExecuted, ds.status(intent.IntentID))
	final, err := tf.GetIntentByID(ctx, intent.IntentID)
	assert.NoError(t, err)
	assert.Equal(t, "completed after recovery timeout", final.Notes)
}

func TestExpireIntent(t *testing.T) {
	tf, ds, _ := newTestTradeFlow(t)
	ctx := context.Background()

	intent, err := tf.RegisterIntent(ctx, emailRequest(gofakeit.UUID()))
	assert.NoError(t, err)

	err = tf.ExpireIntent(ctx, intent.IntentID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusExpired, ds.status(intent.IntentID))

	// expiring a row that already left PENDING is a no-op
	err = tf.ExpireIntent(ctx, intent.IntentID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusExpired, ds.status(intent.IntentID))
}
