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

	"github.com/sirupsen/logrus"

	"github.com/tradeflowhq/tradeflow/config"
	"github.com/tradeflowhq/tradeflow/internal/notification"
	"github.com/tradeflowhq/tradeflow/model"
)

// SweepIntents runs both maintenance jobs once: retiring pending actions
// whose confirmation window closed, and reclaiming executing locks lost to
// a crash. Every retirement goes through the compare-and-swap, so a sweep
// can never clobber a transition that raced it.
func (l *TradeFlow) SweepIntents(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Sweeping pending actions")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	expired, err := l.sweepExpiredPending(ctx, cnf.Confirmation.SweepBatchSize)
	if err != nil {
		notification.NotifyError(err)
		return logAndRecordError(span, "ttl sweep error: ", err)
	}

	recovered, err := l.sweepStuckExecuting(ctx, cnf)
	if err != nil {
		notification.NotifyError(err)
		return logAndRecordError(span, "recovery sweep error: ", err)
	}

	if expired > 0 || recovered > 0 {
		logrus.Infof("sweep retired %d expired and recovered %d stuck action(s)", expired, recovered)
	}
	return nil
}

// ExpireIntent retires a single pending action whose window closed. Driven
// by the per-intent expiry task; a false CAS means someone confirmed or
// cancelled it first, which is fine.
func (l *TradeFlow) ExpireIntent(ctx context.Context, intentID string) error {
	ok, err := l.datasource.TryIntentTransition(ctx, intentID, model.StatusPending, model.StatusExpired, "confirmation window elapsed")
	if err != nil {
		return err
	}
	if ok {
		logrus.Infof(" [*] Pending action expired %s", intentID)
	}
	return nil
}

func (l *TradeFlow) sweepExpiredPending(ctx context.Context, batchSize int) (int, error) {
	stale, err := l.datasource.ListExpiredPendingIntents(ctx, l.now(), batchSize)
	if err != nil {
		return 0, err
	}

	retired := 0
	for _, intent := range stale {
		ok, err := l.datasource.TryIntentTransition(ctx, intent.IntentID, model.StatusPending, model.StatusExpired, "confirmation window elapsed")
		if err != nil {
			return retired, err
		}
		if ok {
			retired++
		}
	}
	return retired, nil
}

func (l *TradeFlow) sweepStuckExecuting(ctx context.Context, cnf *config.Configuration) (int, error) {
	cutoff := l.now().Add(-cnf.Confirmation.RecoveryTimeout())
	stuck, err := l.datasource.ListStuckExecutingIntents(ctx, cutoff, cnf.Confirmation.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, intent := range stuck {
		// The process that held this lock is presumed dead, with no source
		// of truth for whether the side effect happened. Retiring the
		// intent makes it unavailable for confirmation; the user must
		// re-initiate, which is the only safe default.
		ok, err := l.datasource.TryIntentTransition(ctx, intent.IntentID, model.StatusExecuting, model.StatusExpired, "recovered stuck executing lock")
		if err != nil {
			return recovered, err
		}
		if ok {
			logrus.Warnf("recovered stuck executing action %s (executing since %v)", intent.IntentID, intent.ExecutingSince)
			recovered++
		}
	}
	return recovered, nil
}
