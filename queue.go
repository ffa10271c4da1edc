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
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradeflowhq/tradeflow/config"
	redis_db "github.com/tradeflowhq/tradeflow/internal/redis-db"
)

// Queue schedules maintenance tasks for pending actions.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueIntentExpiry enqueues a task that fires when a pending action's
// confirmation window closes. The task id is the intent id, so re-enqueues
// for the same intent dedup instead of stacking.
func (q *Queue) queueIntentExpiry(intentID string, expiresAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(intentID)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(intentID),
		asynq.Queue(cfg.Queue.IntentExpiryQueue),
		asynq.ProcessIn(time.Until(expiresAt)),
	}
	task := asynq.NewTask(cfg.Queue.IntentExpiryQueue, payload, taskOptions...)
	_, err = q.Client.Enqueue(task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			// already scheduled for this intent
			return nil
		}
		return err
	}
	return nil
}

// dequeueIntentExpiry drops the scheduled expiry task for an intent that
// already left PENDING. Best-effort: a task that fires anyway loses its
// compare-and-swap and does nothing.
func (q *Queue) dequeueIntentExpiry(intentID string) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	err = q.Inspector.DeleteTask(cfg.Queue.IntentExpiryQueue, intentID)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		return err
	}
	return nil
}
