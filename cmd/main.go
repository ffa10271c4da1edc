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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	tradeflow "github.com/tradeflowhq/tradeflow"
	"github.com/tradeflowhq/tradeflow/config"
	"github.com/tradeflowhq/tradeflow/database"
	"github.com/tradeflowhq/tradeflow/internal/notification"
)

// TradeFlowCLI represents the CLI application, encapsulating the root Cobra command.
type TradeFlowCLI struct {
	cmd *cobra.Command
}

// tradeflowInstance holds the service instance and its configuration, shared
// by the server and worker commands.
type tradeflowInstance struct {
	tradeflow *tradeflow.TradeFlow
	cnf       *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the service instance
// before running any command.
func preRun(app *tradeflowInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("tradeflow.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newTradeflow, err := setupTradeFlow(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.tradeflow = newTradeflow
		app.cnf = cnf

		return nil
	}
}

// setupTradeFlow connects the datasource and builds the service instance.
func setupTradeFlow(cfg *config.Configuration) (*tradeflow.TradeFlow, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newTradeflow, err := tradeflow.NewTradeFlow(db)
	if err != nil {
		return nil, fmt.Errorf("error creating tradeflow: %v", err)
	}
	return newTradeflow, nil
}

// NewCLI creates the command-line interface for the TradeFlow service.
func NewCLI() *TradeFlowCLI {
	var configFile string
	b := &tradeflowInstance{}

	var rootCmd = &cobra.Command{
		Use:   "tradeflow",
		Short: "customs-brokerage assistant backend",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./tradeflow.json", "Configuration file for the tradeflow service")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))

	return &TradeFlowCLI{cmd: rootCmd}
}

func (w TradeFlowCLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
