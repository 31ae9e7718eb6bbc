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

type uploadConn struct {
	conn
}

// Uploader is the root of an upload tree.
type Uploader struct {
	uploadConn
}

// UploaderConnection is a child node of an upload tree.
type UploaderConnection struct {
	uploadConn
}

// NewUploader creates an upload tree with an empty root.
func NewUploader(opts ...Option) *Uploader {
	o := newOptions(opts)
	o.logger = logger.OrDefault(o.logger, logger.ComponentUploader)

	t := newTree(metrics.ComponentUploader, false, o)

	return &Uploader{uploadConn{conn{tree: t, node: t.nodes[RootToken], token: RootToken}}}
}

// NewConnection creates a child node below this one.
func (u *uploadConn) NewConnection() (*UploaderConnection, error) {
	token, n, err := u.tree.addChild(u.token)
	if err != nil {
		return nil, err
	}

	return &UploaderConnection{uploadConn{conn{tree: u.tree, node: n, token: token}}}, nil
}

// Disconnect removes the connection and all connections below it from the tree.
func (c *UploaderConnection) Disconnect() error {
	return c.tree.detach(c.token)
}

// AddNode registers a value to upload to ep, replacing the previous one.
func (u *uploadConn) AddNode(ep endpoint.Endpoint, value any) error {
	return u.AddNodes(endpoint.Values{ep: value})
}

// AddNodes registers values to upload. When a child and an ancestor both hold a value
// for the same endpoint, the child's value is uploaded.
func (u *uploadConn) AddNodes(values endpoint.Values) error {
	if _, err := dispatch.NewWriter(values, u.tree.dispatchOptions()...); err != nil {
		return fmt.Errorf("cannot subscribe: %w", err)
	}

	return u.tree.mutate(u.token, func(n *node) (bool, error) {
		for ep, v := range values {
			if _, ok := n.values[ep]; !ok {
				n.order = append(n.order, ep)
			}

			n.values[ep] = v
		}

		return len(values) > 0, nil
	})
}

func (u *uploadConn) RemoveNode(eps ...endpoint.Endpoint) error {
	return u.removeNode(eps)
}

// Upload writes the registered values and the writable fields of all data links of the
// node and its descendants, then runs the success callbacks.
func (u *uploadConn) Upload(ctx context.Context) error {
	return u.cycle(ctx, u.tree.write)
}

func (t *tree) write(ctx context.Context, p *plan) error {
	values := p.values.Clone()

	for _, l := range p.links {
		if err := l.Collect(values); err != nil {
			return err
		}
	}

	return dispatch.Write(ctx, values, t.dispatchOptions()...)
}
