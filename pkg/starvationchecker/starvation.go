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

package starvationchecker

import (
	"context"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/metrics"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/sentry"
	"go.uber.org/zap"
)

// StarvationChecker detects acquisition loops that stopped completing cycles,
// for example because a transport blocks on an unreachable device.
//
// A background goroutine compares the time since the last completed cycle with
// the threshold every check interval. When exceeded, it adds the starved time to
// the starvation metric and reports a warning.
type StarvationChecker struct {
	lastCycleTime       time.Time
	ctx                 context.Context //nolint:containedctx // background service lifecycle
	logger              *zap.SugaredLogger
	cancel              context.CancelFunc
	name                string
	wg                  sync.WaitGroup
	starvationThreshold time.Duration
	checkInterval       time.Duration
	starved             int
	mutex               sync.RWMutex
	stopOnce            sync.Once
}

// NewStarvationChecker creates and starts a checker for the loop called name.
// It must be stopped with Stop() when no longer needed.
func NewStarvationChecker(name string, threshold time.Duration) *StarvationChecker {
	return newStarvationChecker(name, threshold, time.Second)
}

func newStarvationChecker(name string, threshold, checkInterval time.Duration) *StarvationChecker {
	ctx, cancel := context.WithCancel(context.Background())
	checker := &StarvationChecker{
		name:                name,
		starvationThreshold: threshold,
		checkInterval:       checkInterval,
		lastCycleTime:       time.Now(),
		logger:              logger.For(logger.ComponentStarvationChecker).With("loop", name),
		ctx:                 ctx,
		cancel:              cancel,
	}

	checker.wg.Add(1)

	go checker.checkStarvationLoop()

	checker.logger.Debugf("Starvation checker created with threshold %s", threshold)

	return checker
}

func (s *StarvationChecker) checkStarvationLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			sinceLastCycle := time.Since(s.GetLastCycleTime())
			if sinceLastCycle <= s.starvationThreshold {
				continue
			}

			s.mutex.Lock()
			s.starved++
			s.mutex.Unlock()

			metrics.AddStarvationTime(s.name, s.checkInterval.Seconds())
			sentry.ReportIssuef(sentry.IssueTypeWarning, s.logger, "acquisition loop %s starved: %.2f seconds since last cycle", s.name, sinceLastCycle.Seconds())
		}
	}
}

// Stop terminates the background goroutine. It is safe to call more than once.
func (s *StarvationChecker) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.logger.Debug("Starvation checker stopped")
	})
}

// UpdateLastCycleTime marks the current time as the end of the most recent cycle.
func (s *StarvationChecker) UpdateLastCycleTime() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastCycleTime = time.Now()
}

// GetLastCycleTime returns the end of the most recent cycle.
func (s *StarvationChecker) GetLastCycleTime() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.lastCycleTime
}

// StarvedChecks returns how many checks found the loop starved.
func (s *StarvationChecker) StarvedChecks() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.starved
}
