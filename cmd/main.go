// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/config"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/constants"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/device"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/env"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/metrics"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/sentry"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/starvationchecker"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/subscription"
)

// appVersion is stamped at build time with -ldflags "-X main.appVersion=<version>".
var appVersion = constants.DefaultAppVersion

func main() {
	logger.Initialize()
	sentry.InitSentry(appVersion, true)

	log := logger.For(logger.ComponentCore)
	log.Infof("Starting acquisition agent %s", appVersion)

	configPath, err := env.GetAsString("CONFIG_PATH", false, constants.DefaultConfigPath)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to read CONFIG_PATH: %w", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to load config: %w", err)
		os.Exit(1)
	}

	if cfg.Agent.LogLevel != "" {
		logger.SetLevel(cfg.Agent.LogLevel)
		log = logger.For(logger.ComponentCore)
	}

	root, err := device.Build(cfg.Devices)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to build devices: %w", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.Agent.MetricsPort))
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %w", err)
		}
	}()

	downloader := subscription.NewDownloader(
		subscription.WithName("agent"),
		subscription.WithConcurrency(cfg.Acquisition.Concurrency),
		subscription.WithValueTTL(cfg.Acquisition.ValueTTL),
	)

	metrics.RegisterDebugProvider("downloader", downloader)
	defer metrics.UnregisterDebugProvider("downloader")

	if _, err := newReporter(downloader, root, logger.For(logger.ComponentDevice)); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to subscribe device endpoints: %w", err)
		os.Exit(1)
	}

	checker := starvationchecker.NewStarvationChecker("agent", cfg.Acquisition.StarvationThreshold)
	defer checker.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return downloader.Run(gctx, cfg.Acquisition.Period,
			subscription.WithFailureBackoff(cfg.Acquisition.FailureBackoffMax),
			subscription.WithStarvationChecker(checker),
		)
	})

	log.Infow("Acquisition running",
		"period", cfg.Acquisition.Period,
		"endpoints", len(root.Endpoints()),
		"metricsPort", cfg.Agent.MetricsPort)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "Acquisition loop failed: %w", err)
	}

	log.Info("Acquisition agent stopped")
}
