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
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/tradeflowhq/tradeflow/api"
	"github.com/tradeflowhq/tradeflow/config"
	"github.com/tradeflowhq/tradeflow/dispatch"
	"github.com/tradeflowhq/tradeflow/internal/traces"
)

func initializeRouter(b *tradeflowInstance) (*gin.Engine, error) {
	a, err := api.NewAPI(b.tradeflow, initializeOperations(b.cnf))
	if err != nil {
		return nil, fmt.Errorf("error creating api: %v", err)
	}
	return a.Router(), nil
}

// initializeOperations builds the operation registry the confirm endpoints
// dispatch through. Each well-known operation forwards to the collaborator
// endpoint configured for it; real providers live outside this service.
func initializeOperations(cfg *config.Configuration) *dispatch.Registry {
	registry := dispatch.NewRegistry()
	if cfg.Notification.Webhook.Url != "" {
		forward := &dispatch.WebhookOperation{
			URL:     cfg.Notification.Webhook.Url,
			Headers: cfg.Notification.Webhook.Headers,
		}
		for _, name := range []string{"send_email", "create_declaration", "execute_payment"} {
			registry.Register(name, forward)
		}
	}
	return registry
}

func initializeTracing(ctx context.Context) (func(context.Context) error, error) {
	shutdown, err := traces.SetupOTelSDK(ctx, "TRADEFLOW")
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands returns the Cobra command responsible for starting the HTTP server.
func serverCommands(b *tradeflowInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start tradeflow server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			router, err := initializeRouter(b)
			if err != nil {
				log.Fatal(err)
			}

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			if cfg.OtlpEndpoint != "" {
				shutdown, err := initializeTracing(ctx)
				if err != nil {
					log.Printf("Tracing initialization error: %v", err)
				} else {
					defer func() {
						if err := shutdown(ctx); err != nil {
							log.Printf("Error during shutdown: %v", err)
						}
					}()
				}
			}

			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
