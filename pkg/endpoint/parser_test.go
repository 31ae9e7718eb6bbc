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

package endpoint_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
)

var _ = Describe("Parsers", func() {
	DescribeTable("conversions",
		func(p endpoint.Parser, in, want any) {
			Expect(p.Parse(in)).To(Equal(want))
		},
		Entry("bool from string", endpoint.Bool, "true", true),
		Entry("bool from number", endpoint.Bool, 0, false),
		Entry("int from float", endpoint.Int, 3.0, 3),
		Entry("int from string", endpoint.Int, "12", 12),
		Entry("float from int", endpoint.Float, 4, 4.0),
		Entry("float from string", endpoint.Float, "0.25", 0.25),
		Entry("string from int", endpoint.String, 7, "7"),
		Entry("clip above", endpoint.Clip(0, 10), 12, 10.0),
		Entry("clip below", endpoint.Clip(0, 10), -3, 0.0),
		Entry("round", endpoint.Round(2), 3.14159, 3.14),
		Entry("chain", endpoint.Chain(endpoint.Float, endpoint.Clip(0, 1)), "1.7", 1.0),
	)

	It("fails on values that cannot be converted", func() {
		_, err := endpoint.Float.Parse("fast")
		Expect(err).To(MatchError(endpoint.ErrInvalidValue))

		_, err = endpoint.Int.Parse(nil)
		Expect(err).To(MatchError(endpoint.ErrInvalidValue))
	})

	It("validates with validator tags", func() {
		p := endpoint.Validate("gte=0,lte=100")
		Expect(p.Parse(50)).To(Equal(50))

		_, err := p.Parse(150)
		Expect(err).To(MatchError(endpoint.ErrInvalidValue))
	})

	It("stops a chain at the first failure", func() {
		p := endpoint.Chain(endpoint.Int, endpoint.Validate("lte=10"))
		_, err := p.Parse("11")
		Expect(err).To(MatchError(endpoint.ErrInvalidValue))
	})
})
