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
	"context"
	"sync"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"golang.org/x/sync/errgroup"
)

// runGroups calls fn for every group index, sequentially or with up to concurrency goroutines.
// The first error cancels the context handed to the remaining calls and is returned.
func runGroups(ctx context.Context, count, concurrency int, fn func(ctx context.Context, i int) error) error {
	if concurrency < 2 || count < 2 {
		for i := range count {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := fn(ctx, i); err != nil {
				return err
			}
		}

		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for i := range count {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			return fn(egCtx, i)
		})
	}

	return eg.Wait()
}

// lockedValues serializes merges of per-group results into a shared value map.
type lockedValues struct {
	values endpoint.Values
	mu     sync.Mutex
}

func (l *lockedValues) merge(from endpoint.Values) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ep, v := range from {
		l.values[ep] = v
	}
}
