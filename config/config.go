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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"

	// DefaultActionTTL bounds how long a proposed action stays confirmable.
	DefaultActionTTL = 2 * time.Hour

	// DefaultRecoveryTimeout bounds how long an action may sit in EXECUTING
	// before the sweeper reclaims it as a crashed lock.
	DefaultRecoveryTimeout = 10 * time.Minute

	// DefaultSweepInterval is how often the periodic sweep runs.
	DefaultSweepInterval = time.Minute

	// DefaultMaxPreviewLength caps stored preview summaries.
	DefaultMaxPreviewLength = 280
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"TRADEFLOW_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"TRADEFLOW_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"TRADEFLOW_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"TRADEFLOW_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"TRADEFLOW_REDIS_DNS"`
}

type QueueConfig struct {
	IntentExpiryQueue   string `json:"intent_expiry_queue" envconfig:"TRADEFLOW_QUEUE_INTENT_EXPIRY"`
	IntentRecoveryQueue string `json:"intent_recovery_queue" envconfig:"TRADEFLOW_QUEUE_INTENT_RECOVERY"`
}

// ConfirmationConfig tunes the confirmable-action state machine. TTLs are
// configurable per action kind; unknown kinds fall back to the default.
type ConfirmationConfig struct {
	DefaultTTLSeconds  int            `json:"default_ttl_seconds" envconfig:"TRADEFLOW_CONFIRMATION_DEFAULT_TTL_SEC"`
	KindTTLSeconds     map[string]int `json:"kind_ttl_seconds"`
	RecoveryTimeoutSec int            `json:"recovery_timeout_seconds" envconfig:"TRADEFLOW_CONFIRMATION_RECOVERY_TIMEOUT_SEC"`
	SweepIntervalSec   int            `json:"sweep_interval_seconds" envconfig:"TRADEFLOW_CONFIRMATION_SWEEP_INTERVAL_SEC"`
	MaxPreviewLength   int            `json:"max_preview_length" envconfig:"TRADEFLOW_CONFIRMATION_MAX_PREVIEW_LENGTH"`
	SweepBatchSize     int            `json:"sweep_batch_size" envconfig:"TRADEFLOW_CONFIRMATION_SWEEP_BATCH_SIZE"`
}

// TTLFor resolves the confirmation TTL for an action kind.
func (c ConfirmationConfig) TTLFor(actionKind string) time.Duration {
	if seconds, ok := c.KindTTLSeconds[actionKind]; ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if c.DefaultTTLSeconds > 0 {
		return time.Duration(c.DefaultTTLSeconds) * time.Second
	}
	return DefaultActionTTL
}

// RecoveryTimeout resolves the stuck-execution reclaim window.
func (c ConfirmationConfig) RecoveryTimeout() time.Duration {
	if c.RecoveryTimeoutSec > 0 {
		return time.Duration(c.RecoveryTimeoutSec) * time.Second
	}
	return DefaultRecoveryTimeout
}

// SweepInterval resolves how often the periodic sweep runs.
func (c ConfirmationConfig) SweepInterval() time.Duration {
	if c.SweepIntervalSec > 0 {
		return time.Duration(c.SweepIntervalSec) * time.Second
	}
	return DefaultSweepInterval
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"TRADEFLOW_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"TRADEFLOW_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"TRADEFLOW_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string             `json:"project_name" envconfig:"TRADEFLOW_PROJECT_NAME"`
	Server       ServerConfig       `json:"server"`
	DataSource   DataSourceConfig   `json:"data_source"`
	Redis        RedisConfig        `json:"redis"`
	Queue        QueueConfig        `json:"queue"`
	Confirmation ConfirmationConfig `json:"confirmation"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
	Notification Notification       `json:"notification"`
	OtlpEndpoint string             `json:"otlp_endpoint" envconfig:"TRADEFLOW_OTLP_ENDPOINT"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("tradeflow", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called tradeflow.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "TradeFlow Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.IntentExpiryQueue == "" {
		cnf.Queue.IntentExpiryQueue = "intent_expiry"
	}
	if cnf.Queue.IntentRecoveryQueue == "" {
		cnf.Queue.IntentRecoveryQueue = "intent_recovery"
	}

	if cnf.Confirmation.DefaultTTLSeconds == 0 {
		cnf.Confirmation.DefaultTTLSeconds = int(DefaultActionTTL.Seconds())
	}
	if cnf.Confirmation.RecoveryTimeoutSec == 0 {
		cnf.Confirmation.RecoveryTimeoutSec = int(DefaultRecoveryTimeout.Seconds())
	}
	if cnf.Confirmation.SweepIntervalSec == 0 {
		cnf.Confirmation.SweepIntervalSec = int(DefaultSweepInterval.Seconds())
	}
	if cnf.Confirmation.MaxPreviewLength == 0 {
		cnf.Confirmation.MaxPreviewLength = DefaultMaxPreviewLength
	}
	if cnf.Confirmation.SweepBatchSize == 0 {
		cnf.Confirmation.SweepBatchSize = 500
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyTestDefaults()
	ConfigStore.Store(mockConfig)
}

func (cnf *Configuration) applyTestDefaults() {
	if cnf.Confirmation.DefaultTTLSeconds == 0 {
		cnf.Confirmation.DefaultTTLSeconds = int(DefaultActionTTL.Seconds())
	}
	if cnf.Confirmation.RecoveryTimeoutSec == 0 {
		cnf.Confirmation.RecoveryTimeoutSec = int(DefaultRecoveryTimeout.Seconds())
	}
	if cnf.Confirmation.MaxPreviewLength == 0 {
		cnf.Confirmation.MaxPreviewLength = DefaultMaxPreviewLength
	}
	if cnf.Confirmation.SweepBatchSize == 0 {
		cnf.Confirmation.SweepBatchSize = 500
	}
	if cnf.Queue.IntentExpiryQueue == "" {
		cnf.Queue.IntentExpiryQueue = "intent_expiry"
	}
	if cnf.Queue.IntentRecoveryQueue == "" {
		cnf.Queue.IntentRecoveryQueue = "intent_recovery"
	}
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
