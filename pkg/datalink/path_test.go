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

package datalink_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
)

type tree struct {
	children map[string]any
}

func (t tree) Child(name string) (any, bool) {
	for k, v := range t.children {
		if datalink.MatchName(k, name) {
			return v, true
		}
	}

	return nil, false
}

type spindle struct {
	Speed  float64
	Limits map[string]float64
	Axes   []string
}

func (s *spindle) MaxSpeed() float64 {
	return s.Limits["speed"]
}

var _ = Describe("Path", func() {
	DescribeTable("parses",
		func(in string, want datalink.Path) {
			p, err := datalink.ParsePath(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(want))
		},
		Entry("the empty path", "", datalink.Path{}),
		Entry("the dot", ".", datalink.Path{}),
		Entry("attributes", "stat.pos_actual", datalink.Path{datalink.Attr("stat"), datalink.Attr("pos_actual")}),
		Entry("indexes", "axes[2].pos", datalink.Path{datalink.Attr("axes"), datalink.Index(2), datalink.Attr("pos")}),
		Entry("negative indexes", "axes[-1]", datalink.Path{datalink.Attr("axes"), datalink.Index(-1)}),
		Entry("double quoted keys", `cfg["velocity"]`, datalink.Path{datalink.Attr("cfg"), datalink.Key("velocity")}),
		Entry("single quoted keys", `cfg['a.b']`, datalink.Path{datalink.Attr("cfg"), datalink.Key("a.b")}),
	)

	DescribeTable("rejects",
		func(in string) {
			_, err := datalink.ParsePath(in)
			Expect(err).To(MatchError(datalink.ErrInvalidPath))
		},
		Entry("empty segments", "a..b"),
		Entry("trailing dots", "a."),
		Entry("unclosed brackets", "a[1"),
		Entry("bad indexes", "a[x]"),
	)

	It("prints in parseable form", func() {
		p := datalink.MustParsePath(`axes[1].cfg["max"]`)
		Expect(p.String()).To(Equal(`axes[1].cfg["max"]`))
		Expect(datalink.Path{}.String()).To(Equal("."))
	})

	Describe("Resolve", func() {
		var root tree

		BeforeEach(func() {
			root = tree{children: map[string]any{
				"spindle": &spindle{Speed: 1200, Limits: map[string]float64{"speed": 3000}, Axes: []string{"x", "y", "z"}},
				"plain":   map[string]int{"a": 1},
			}}
		})

		DescribeTable("finds",
			func(path string, want any) {
				Expect(datalink.MustParsePath(path).Resolve(root)).To(Equal(want))
			},
			Entry("navigable children ignoring case", "Spindle.speed", 1200.0),
			Entry("map entries by attribute", "spindle.limits.speed", 3000.0),
			Entry("map entries by attribute ignoring case", "spindle.limits.Speed", 3000.0),
			Entry("map entries by key", `spindle.limits["speed"]`, 3000.0),
			Entry("slice elements", "spindle.axes[1]", "y"),
			Entry("slice elements from the end", "spindle.axes[-1]", "z"),
			Entry("getter methods", "spindle.max_speed", 3000.0),
			Entry("typed map keys", `plain["a"]`, 1),
		)

		It("returns the root for the empty path", func() {
			Expect(datalink.Path{}.Resolve(root)).To(Equal(root))
		})

		DescribeTable("fails with ErrNotFound",
			func(path string) {
				_, err := datalink.MustParsePath(path).Resolve(root)
				Expect(err).To(MatchError(datalink.ErrNotFound))
			},
			Entry("unknown children", "feeder"),
			Entry("unknown fields", "spindle.torque"),
			Entry("out of range indexes", "spindle.axes[3]"),
			Entry("indexing a struct", "spindle[0]"),
			Entry("missing map keys", `spindle.limits["feed"]`),
			Entry("map keys differing in case", `spindle.limits["Speed"]`),
		)

		It("names the failing prefix", func() {
			_, err := datalink.MustParsePath("spindle.torque.max").Resolve(root)
			Expect(err.Error()).To(HavePrefix("spindle.torque:"))
		})
	})

	It("matches names ignoring case and separators", func() {
		Expect(datalink.MatchName("pos_actual", "PosActual")).To(BeTrue())
		Expect(datalink.MatchName("pos-actual", "POSACTUAL")).To(BeTrue())
		Expect(datalink.MatchName("pos", "position")).To(BeFalse())
	})
})
