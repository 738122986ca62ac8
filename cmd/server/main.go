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
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/openclaw/openclaw-node/pkg/auth"
	"github.com/openclaw/openclaw-node/pkg/core"
	"github.com/openclaw/openclaw-node/pkg/core/api"
	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to server config file")
	listenAddr := flag.String("listen", "", "Listen address override")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("openclaw-node-server", version.Full())
		return nil
	}

	cfg, err := core.LoadServerConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	serverLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	provider, err := auth.NewTokenProvider(cfg.TokensFile, serverLogger)
	if err != nil {
		return fmt.Errorf("failed to load auth tokens: %w", err)
	}

	registry := core.NewRegistry()
	conns := core.NewConnTable(serverLogger)
	router := core.NewRouter(conns, cfg.DefaultTimeout.Duration(), serverLogger)
	sessions := core.NewSessionHandler(provider, registry, conns, router, serverLogger)

	apiServer := api.NewServer(registry, conns, router, serverLogger)
	if cfg.APIKey != "" {
		apiServer.UseAPIKey(cfg.APIKey)
	}

	apiServer.Router().Handle("/ws/{node_id}", sessions)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		serverLogger.Info().
			Str("listen_addr", cfg.ListenAddr).
			Str("auth_provider", provider.Name()).
			Int("tokens", provider.TokenCount()).
			Str("version", version.Full()).
			Msg("OpenClaw node server initialized")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	serverLogger.Info().Msg("OpenClaw node server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
