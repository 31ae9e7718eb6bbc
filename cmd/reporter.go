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
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/device"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/subscription"
)

// reporter subscribes every device endpoint and logs the values of each cycle.
type reporter struct {
	conn      *subscription.DownloaderConnection
	log       *zap.SugaredLogger
	paths     []string
	endpoints []endpoint.Endpoint
}

func newReporter(parent *subscription.Downloader, root *device.Device, log *zap.SugaredLogger) (*reporter, error) {
	conn, err := parent.NewConnection()
	if err != nil {
		return nil, err
	}

	r := &reporter{conn: conn, log: log}

	root.Walk(func(path string, ep endpoint.Endpoint) {
		r.paths = append(r.paths, path)
		r.endpoints = append(r.endpoints, ep)
	})

	if err := conn.AddNode(r.endpoints...); err != nil {
		return nil, err
	}

	if _, err := conn.AddCallback(r.report, 0); err != nil {
		return nil, err
	}

	if _, err := conn.AddFailureCallback(r.failed); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *reporter) report() error {
	fields := make([]any, 0, 2*len(r.endpoints))

	for i, ep := range r.endpoints {
		v, _ := r.conn.Get(ep)
		fields = append(fields, r.paths[i], v)
	}

	r.log.Debugw("Cycle values", fields...)

	return nil
}

func (r *reporter) failed(err error) {
	if err == nil {
		r.log.Info("Device endpoints readable again")

		return
	}

	r.log.Warnw("Failed to read device endpoints", "error", err)
}
