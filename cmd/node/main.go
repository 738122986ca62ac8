/*
 * Copyright 2025 The OpenClaw Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openclaw/openclaw-node/pkg/agent"
	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to node config file")
	generateConfig := flag.Bool("generate-config", false, "Write a default config and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("openclaw-node-agent", version.Full())
		return nil
	}

	path := *configPath
	if path == "" {
		var err error

		path, err = agent.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	if *generateConfig {
		return generateConfigFile(path)
	}

	cfg, err := agent.LoadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("No config found at %s\nRun with -generate-config to create one.\n", path)
			return err
		}

		return err
	}

	nodeLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	dispatcher := agent.NewDispatcher(cfg.Platform, nodeLogger)
	dispatcher.Load(cfg.Plugins)

	nodeLogger.Info().
		Str("node_id", cfg.NodeID).
		Str("platform", cfg.Platform).
		Strs("plugins", dispatcher.Plugins()).
		Msg("Starting OpenClaw node agent")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return agent.New(cfg, dispatcher, nodeLogger).Run(ctx)
}

func generateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	cfg, err := agent.GenerateDefaultConfig()
	if err != nil {
		return err
	}

	if err := agent.WriteConfig(path, cfg); err != nil {
		return err
	}

	fmt.Printf("Config written to %s\n", path)
	fmt.Printf("Generated auth token: %s\n", cfg.AuthToken)
	fmt.Println("Register this token on the server, then edit server_url and restart.")

	return nil
}
