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

// Package tradeflow implements the confirmable-action state machine behind
// the TradeFlow back-office assistant: durable pending actions that execute
// at most once, only after explicit user confirmation, surviving duplicate
// confirmations, races and process restarts.
package tradeflow

import (
	"time"

	"github.com/tradeflowhq/tradeflow/config"
	"github.com/tradeflowhq/tradeflow/database"
)

// TradeFlow is the main service struct. It is a stateless wrapper over the
// datasource: the persisted pending-action row is the only shared mutable
// state, so one instance can be shared by any number of request handlers.
type TradeFlow struct {
	queue      *Queue
	datasource database.IDataSource
	now        func() time.Time
}

// NewTradeFlow initializes the service with the provided datasource. The
// datasource and queue are constructed once at process start and passed
// down explicitly.
func NewTradeFlow(db database.IDataSource) (*TradeFlow, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	newTradeFlow := &TradeFlow{
		datasource: db,
		queue:      newQueue,
		now:        time.Now,
	}
	return newTradeFlow, nil
}
