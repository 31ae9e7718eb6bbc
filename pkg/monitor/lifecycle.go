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

package monitor

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/metrics"
	"go.uber.org/zap"
)

const (
	StateIdle    = "idle"
	StateRunning = "running"
	StatePaused  = "paused"
	StateStopped = "stopped"

	EventStart  = "start"
	EventPause  = "pause"
	EventResume = "resume"
	EventStop   = "stop"
)

// lifecycle guards the order of Start, Pause, Resume and Stop calls.
type lifecycle struct {
	fsm      *fsm.FSM
	logger   *zap.SugaredLogger
	instance string
}

func newLifecycle(instance string, log *zap.SugaredLogger) *lifecycle {
	l := &lifecycle{instance: instance, logger: log}

	l.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventStart, Src: []string{StateIdle}, Dst: StateRunning},
			{Name: EventPause, Src: []string{StateRunning}, Dst: StatePaused},
			{Name: EventResume, Src: []string{StatePaused}, Dst: StateRunning},
			{Name: EventStop, Src: []string{StateIdle, StateRunning, StatePaused}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.logger.Debugf("monitor %s: %s -> %s", l.instance, e.Src, e.Dst)
				metrics.UpdateMonitorState(l.instance, e.Dst)
			},
		},
	)

	metrics.UpdateMonitorState(instance, StateIdle)

	return l
}

func (l *lifecycle) send(event string) error {
	if err := l.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("monitor %s cannot %s while %s: %w", l.instance, event, l.fsm.Current(), err)
	}

	return nil
}

func (l *lifecycle) current() string {
	return l.fsm.Current()
}
