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

package sentry

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// debounceWindow is how long an issue with the same title and level stays muted after being sent.
const debounceWindow = 2 * time.Hour

var (
	lastSent   = make(map[string]time.Time)
	lastSentMu sync.Mutex
)

// reportFatal sends a fatal error to Sentry and panics afterwards.
func reportFatal(err error, log *zap.SugaredLogger, context map[string]any) {
	log.Error("The acquisition agent has encountered a fatal error and will now terminate.")
	log.Errorf("Error: %s", err)
	log.Errorf("Stack trace: %s", string(debug.Stack()))

	sendSentryEvent(createSentryEventWithContext(sentry.LevelFatal, err, context))
	sentry.Flush(time.Second * 5)

	log.Panic("Fatal error")
}

// debounced reports whether an issue with this key was sent within the debounce window,
// and records the current time if it was not.
func debounced(key string) bool {
	if !shouldDebounceErrors {
		return false
	}

	lastSentMu.Lock()
	defer lastSentMu.Unlock()

	if sent, ok := lastSent[key]; ok && time.Since(sent) < debounceWindow {
		return true
	}

	lastSent[key] = time.Now()

	return false
}

func report(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]any) {
	level := sentry.LevelError
	if issueType == IssueTypeWarning {
		level = sentry.LevelWarning
	}

	if level == sentry.LevelWarning {
		log.Warn(err)
	} else {
		log.Error(err)
	}

	if debounced(string(issueType) + ":" + issueTitle(err)) {
		return
	}

	sendSentryEvent(createSentryEventWithContext(level, err, context))
}
