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
	"fmt"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
)

// NodeInfo describes a node of a subscription tree for the debug endpoint.
type NodeInfo struct {
	Token              string     `json:"token"`
	Fingerprint        string     `json:"fingerprint"`
	Endpoints          []string   `json:"endpoints"`
	Children           []NodeInfo `json:"children,omitempty"`
	EffectiveEndpoints int        `json:"effective_endpoints"`
	Links              int        `json:"links"`
	Callbacks          int        `json:"callbacks"`
	FailureCallbacks   int        `json:"failure_callbacks"`
	Failing            bool       `json:"failing"`
}

// GetDebugInfo dumps the tree below this node. It implements metrics.DebugProvider.
func (c *conn) GetDebugInfo() any {
	c.tree.mu.Lock()
	defer c.tree.mu.Unlock()

	if _, ok := c.tree.nodes[c.token]; !ok {
		return map[string]string{"status": "disconnected"}
	}

	return c.tree.describe(c.token)
}

// describe is called with t.mu held.
func (t *tree) describe(token Token) NodeInfo {
	n := t.nodes[token]
	p := n.plan.Load()

	info := NodeInfo{
		Token:              token.String(),
		Fingerprint:        fmt.Sprintf("%016x", p.fingerprint),
		Endpoints:          make([]string, 0, len(n.order)),
		EffectiveEndpoints: len(p.endpoints),
		Links:              len(n.links),
		Callbacks:          len(n.callbacks),
		FailureCallbacks:   len(n.failures),
		Failing:            n.failed.Load(),
	}

	for _, ep := range n.order {
		info.Endpoints = append(info.Endpoints, endpoint.GroupName(ep.GroupID())+"/"+ep.Key())
	}

	for _, child := range n.children {
		info.Children = append(info.Children, t.describe(child))
	}

	return info
}
