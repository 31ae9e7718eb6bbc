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

package standarderrors

import "errors"

var (
	// ErrDisconnected is returned by every operation on a subscription
	// connection after it (or one of its ancestors) was disconnected.
	ErrDisconnected = errors.New("connection disconnected")

	// ErrStopRun ends a run loop without being treated as a failure.
	// Success callbacks return it to stop the loop driving them.
	ErrStopRun = errors.New("run stopped")

	// ErrAlreadyRunning is returned when a loop is started twice.
	ErrAlreadyRunning = errors.New("already running")
)
