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

package subscription

import (
	"sync"
	"time"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/constants"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"
)

type options struct {
	logger      *zap.SugaredLogger
	instance    string
	concurrency int
	valueTTL    time.Duration
}

// Option configures a Downloader or Uploader.
type Option func(*options)

// WithName sets the instance label used in metrics, logs and debug output.
func WithName(instance string) Option {
	return func(o *options) {
		o.instance = instance
	}
}

// WithLogger replaces the subscription component logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithConcurrency transfers up to n transport groups at the same time.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithValueTTL drops values from a Downloader's last value cache when they were not
// read again within ttl. Without it, values are kept until overwritten.
func WithValueTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.valueTTL = ttl
	}
}

func newOptions(opts []Option) options {
	o := options{
		instance:    constants.DefaultInstanceName,
		concurrency: constants.DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// valueCache holds the last value read for every endpoint of a Downloader.
type valueCache interface {
	store(values endpoint.Values)
	load(ep endpoint.Endpoint) (any, bool)
	snapshot() endpoint.Values
}

func newValueCache(ttl time.Duration) valueCache {
	if ttl > 0 {
		return &expiringCache{values: expiremap.NewEx[endpoint.Endpoint, any](ttl, ttl)}
	}

	return &mapCache{values: endpoint.Values{}}
}

type mapCache struct {
	values endpoint.Values
	mu     sync.RWMutex
}

func (c *mapCache) store(values endpoint.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ep, v := range values {
		c.values[ep] = v
	}
}

func (c *mapCache) load(ep endpoint.Endpoint) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[ep]

	return v, ok
}

func (c *mapCache) snapshot() endpoint.Values {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.values.Clone()
}

type expiringCache struct {
	values *expiremap.ExpireMap[endpoint.Endpoint, any]
}

func (c *expiringCache) store(values endpoint.Values) {
	for ep, v := range values {
		c.values.Set(ep, v)
	}
}

func (c *expiringCache) load(ep endpoint.Endpoint) (any, bool) {
	v, ok := c.values.Load(ep)
	if !ok {
		return nil, false
	}

	return *v, true
}

func (c *expiringCache) snapshot() endpoint.Values {
	out := endpoint.Values{}

	c.values.Range(func(ep endpoint.Endpoint, v any) bool {
		out[ep] = v

		return true
	})

	return out
}
