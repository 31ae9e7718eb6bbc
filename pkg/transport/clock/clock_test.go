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

package clock_test

import (
	"context"
	"time"

	"github.com/cactus/tai64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/dispatch"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/clock"
)

var _ = Describe("Clock", func() {
	var (
		calls int
		at    time.Time
		c     *clock.Clock
	)

	BeforeEach(func() {
		calls = 0
		at = time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC)
		c = clock.New("plant", clock.WithNow(func() time.Time {
			calls++

			return at.Add(time.Duration(calls) * time.Second)
		}))
	})

	mustEndpoint := func(f clock.Format) endpoint.Endpoint {
		ep, err := c.Endpoint(f)
		Expect(err).NotTo(HaveOccurred())

		return ep
	}

	It("reads all formats from one instant per batch", func() {
		utc := mustEndpoint(clock.FormatUTC)
		unix := mustEndpoint(clock.FormatUnix)
		text := mustEndpoint(clock.FormatRFC3339)
		label := mustEndpoint(clock.FormatTAI64N)

		values, err := dispatch.Read(context.Background(), []endpoint.Endpoint{utc, unix, text, label})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))

		want := at.Add(time.Second)
		Expect(values[utc]).To(BeTemporally("==", want))
		Expect(values[unix]).To(BeNumerically("~", float64(want.UnixNano())/1e9, 1e-3))
		Expect(values[text]).To(Equal("2025-03-14T15:09:27.535897932Z"))

		parsed, err := tai64.Parse(values[label].(string))
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Equal(want)).To(BeTrue())
	})

	It("rejects unknown formats", func() {
		_, err := c.Endpoint("julian")
		Expect(err).To(HaveOccurred())
	})

	It("is read only", func() {
		Expect(mustEndpoint(clock.FormatUTC).Set(context.Background(), time.Now())).To(MatchError(endpoint.ErrReadOnly))
	})

	It("groups endpoints by clock", func() {
		Expect(mustEndpoint(clock.FormatUTC).GroupID()).To(Equal(mustEndpoint(clock.FormatUnix).GroupID()))
		Expect(endpoint.GroupName(mustEndpoint(clock.FormatUTC).GroupID())).To(Equal("clock:plant"))
	})
})
