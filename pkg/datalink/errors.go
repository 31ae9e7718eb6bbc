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

package datalink

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrNotFound    = errors.New("not found")
	// ErrNotEndpoint is returned when a value field's locator resolves to something that is not an endpoint.
	ErrNotEndpoint = errors.New("not an endpoint")
	// ErrInvalidRecord is returned for records that are not non-nil pointers to structs.
	ErrInvalidRecord = errors.New("record must be a non-nil pointer to a struct")
	// ErrInvalidTag is returned for malformed link struct tags.
	ErrInvalidTag = errors.New("invalid link tag")
	// ErrValueField is returned when a single endpoint is linked to a record without exactly one value field.
	ErrValueField = errors.New("record needs exactly one value field to link a single endpoint")
	// ErrMissingValue is returned by Apply when a readable endpoint has no value in the map.
	ErrMissingValue = errors.New("no value for endpoint")
)

// MatchError reports a record field whose locator cannot be resolved against the source.
type MatchError struct {
	Err   error
	Field string
	Path  Path
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("cannot link field %s to %s: %v", e.Field, e.Path, e.Err)
}

func (e *MatchError) Unwrap() error {
	return e.Err
}
