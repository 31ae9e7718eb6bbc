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

package dispatch

import (
	"errors"
	"fmt"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
)

var (
	// ErrUnresolvedInput is returned when a derived endpoint is evaluated before one of its inputs.
	// This happens when derived endpoints were registered in an order the evaluation cannot follow.
	ErrUnresolvedInput = errors.New("derived endpoint input not resolved")

	// ErrDerivedCycle is returned when a derived endpoint depends on itself.
	ErrDerivedCycle = errors.New("derived endpoint depends on itself")
)

// TransferError reports the failure of one group's batch collector.
type TransferError struct {
	Err       error
	Group     endpoint.GroupID
	Operation string
	Endpoints int
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s of %d endpoints in group %s failed: %v", e.Operation, e.Endpoints, endpoint.GroupName(e.Group), e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
