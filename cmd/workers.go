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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tradeflowhq/tradeflow/config"
	redis_db "github.com/tradeflowhq/tradeflow/internal/redis-db"
)

// processIntentExpiry retires a single pending action whose confirmation
// window closed. The task was scheduled at registration time.
func (b *tradeflowInstance) processIntentExpiry(ctx context.Context, t *asynq.Task) error {
	var intentID string
	if err := json.Unmarshal(t.Payload(), &intentID); err != nil {
		logrus.Error(err)
		return err
	}

	if err := b.tradeflow.ExpireIntent(ctx, intentID); err != nil {
		return err
	}

	return nil
}

// processRecoverySweep runs the full sweep: TTL expiry plus reclaiming
// executing locks lost to a crash.
func (b *tradeflowInstance) processRecoverySweep(ctx context.Context, _ *asynq.Task) error {
	if err := b.tradeflow.SweepIntents(ctx); err != nil {
		return err
	}
	log.Println(" [*] Sweep completed")
	return nil
}

func initializeQueues(cfg *config.Configuration) map[string]int {
	queues := make(map[string]int)
	queues[cfg.Queue.IntentExpiryQueue] = 3
	queues[cfg.Queue.IntentRecoveryQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisOption.Addr,
			Password: redisOption.Password,
			DB:       redisOption.DB,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeScheduler(conf *config.Configuration) (*asynq.Scheduler, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     redisOption.Addr,
			Password: redisOption.Password,
			DB:       redisOption.DB,
		},
		nil,
	)

	sweepTask := asynq.NewTask(conf.Queue.IntentRecoveryQueue, nil, asynq.Queue(conf.Queue.IntentRecoveryQueue))
	interval := fmt.Sprintf("@every %s", conf.Confirmation.SweepInterval())
	if _, err := scheduler.Register(interval, sweepTask); err != nil {
		return nil, err
	}

	return scheduler, nil
}

func initializeTaskHandlers(b *tradeflowInstance, mux *asynq.ServeMux) {
	cfg := b.cnf
	mux.HandleFunc(cfg.Queue.IntentExpiryQueue, b.processIntentExpiry)
	mux.HandleFunc(cfg.Queue.IntentRecoveryQueue, b.processRecoverySweep)
}

// workerCommands defines the "workers" command that consumes the expiry and
// recovery queues.
func workerCommands(b *tradeflowInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start tradeflow workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues(conf)
			server, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			scheduler, err := initializeScheduler(conf)
			if err != nil {
				log.Fatal(err)
			}
			go func() {
				if err := scheduler.Run(); err != nil {
					log.Fatal(err)
				}
			}()

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			if err := server.Run(mux); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
