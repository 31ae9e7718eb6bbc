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
	"github.com/united-manufacturing-hub/acquisition-core/pkg/constants"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
	"go.uber.org/zap"
)

type options struct {
	logger      *zap.SugaredLogger
	instance    string
	concurrency int
}

// Option configures a Reader or Writer.
type Option func(*options)

// WithConcurrency transfers up to n groups at the same time. Values below 2 keep transfers sequential.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithName sets the instance label used in metrics and logs.
func WithName(instance string) Option {
	return func(o *options) {
		o.instance = instance
	}
}

// WithLogger replaces the dispatch component logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = log
	}
}

func newOptions(opts []Option) options {
	o := options{
		concurrency: constants.DefaultConcurrency,
		instance:    constants.DefaultInstanceName,
	}

	for _, opt := range opts {
		opt(&o)
	}

	o.logger = logger.OrDefault(o.logger, logger.ComponentDispatch)

	return o
}
