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
	"context"
	"fmt"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/dispatch"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/metrics"
)

type downloadConn struct {
	conn
}

// Downloader is the root of a download tree.
type Downloader struct {
	downloadConn
}

// DownloaderConnection is a child node of a download tree.
type DownloaderConnection struct {
	downloadConn
}

// NewDownloader creates a download tree with an empty root.
func NewDownloader(opts ...Option) *Downloader {
	o := newOptions(opts)
	o.logger = logger.OrDefault(o.logger, logger.ComponentDownloader)

	t := newTree(metrics.ComponentDownloader, true, o)

	return &Downloader{downloadConn{conn{tree: t, node: t.nodes[RootToken], token: RootToken}}}
}

// NewConnection creates a child node below this one.
func (d *downloadConn) NewConnection() (*DownloaderConnection, error) {
	token, n, err := d.tree.addChild(d.token)
	if err != nil {
		return nil, err
	}

	return &DownloaderConnection{downloadConn{conn{tree: d.tree, node: n, token: token}}}, nil
}

// Disconnect removes the connection and all connections below it from the tree.
// Their endpoints are no longer read by the ancestors' downloads.
func (c *DownloaderConnection) Disconnect() error {
	return c.tree.detach(c.token)
}

// AddNode registers endpoints for download. Adding an endpoint twice has no effect.
func (d *downloadConn) AddNode(eps ...endpoint.Endpoint) error {
	if _, err := dispatch.NewReader(eps, d.tree.dispatchOptions()...); err != nil {
		return fmt.Errorf("cannot subscribe: %w", err)
	}

	return d.tree.mutate(d.token, func(n *node) (bool, error) {
		changed := false

		for _, ep := range eps {
			if _, ok := n.values[ep]; !ok {
				n.values[ep] = nil
				n.order = append(n.order, ep)
				changed = true
			}
		}

		return changed, nil
	})
}

// RemoveNode unregisters endpoints of this node. Endpoints it does not hold are ignored.
func (d *downloadConn) RemoveNode(eps ...endpoint.Endpoint) error {
	return d.removeNode(eps)
}

// Download reads every endpoint of the node and its descendants, applies the values to
// their data links and runs the success callbacks.
func (d *downloadConn) Download(ctx context.Context) error {
	return d.cycle(ctx, d.tree.read)
}

// Get returns the last value read for ep by any node of the tree.
func (d *downloadConn) Get(ep endpoint.Endpoint) (any, bool) {
	return d.tree.cache.load(ep)
}

// Data returns a copy of the last values read by the tree.
func (d *downloadConn) Data() endpoint.Values {
	return d.tree.cache.snapshot()
}

func (t *tree) read(ctx context.Context, p *plan) error {
	values := make(endpoint.Values, len(p.endpoints))

	if err := p.reader.Read(ctx, values); err != nil {
		return err
	}

	t.cache.store(values)

	for _, l := range p.links {
		if err := l.Apply(values); err != nil {
			return err
		}
	}

	return nil
}
