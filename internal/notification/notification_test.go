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

package notification

import (
	"errors"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/tradeflowhq/tradeflow/config"
)

func TestSlackNotification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	webhookURL := "https://hooks.slack.com/services/TEST/WEBHOOK"
	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: webhookURL},
		},
	})

	httpmock.RegisterResponder("POST", webhookURL,
		httpmock.NewStringResponder(200, `{}`))

	SlackNotification(errors.New("sweep failed"))

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSlackNotification_RetriesOnFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	webhookURL := "https://hooks.slack.com/services/TEST/WEBHOOK"
	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: webhookURL},
		},
	})

	httpmock.RegisterResponder("POST", webhookURL,
		httpmock.NewErrorResponder(errors.New("connection refused")))

	SlackNotification(errors.New("sweep failed"))

	// initial attempt plus three retries
	assert.Equal(t, 4, httpmock.GetTotalCallCount())
}
