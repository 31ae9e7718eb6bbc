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

package prometheus_test

import (
	"context"

	"github.com/h2non/gock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/dispatch"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/prometheus"
)

const targetURL = "http://10.0.0.21:9100"

const exposition = `# HELP process_cpu_seconds_total Total user and system CPU time spent in seconds.
# TYPE process_cpu_seconds_total counter
process_cpu_seconds_total 12.5
# HELP http_requests_total Requests served.
# TYPE http_requests_total counter
http_requests_total{code="200",method="GET"} 1027
http_requests_total{code="500",method="GET"} 3
http_requests_total{code="200",method="POST"} 4
# HELP spindle_temperature_celsius Spindle temperature.
# TYPE spindle_temperature_celsius gauge
spindle_temperature_celsius 41.25
# HELP request_duration_seconds Request latency.
# TYPE request_duration_seconds summary
request_duration_seconds{quantile="0.5"} 0.05
request_duration_seconds{quantile="0.9"} 0.2
request_duration_seconds_sum 88.5
request_duration_seconds_count 1200
`

var _ = Describe("Target", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		gock.OffAll()
	})

	newTarget := func(opts ...prometheus.Option) *prometheus.Target {
		t := prometheus.NewTarget("node", targetURL+"/metrics", opts...)
		gock.InterceptClient(t.Client())

		return t
	}

	mustEndpoint := func(t *prometheus.Target, selector string) *prometheus.Endpoint {
		ep, err := t.Endpoint(selector)
		Expect(err).NotTo(HaveOccurred())

		return ep
	}

	scrape := func() {
		gock.New(targetURL).
			Get("/metrics").
			MatchHeader("Accept", "text/plain").
			Reply(200).
			BodyString(exposition)
	}

	It("names endpoints after the target and the selector", func() {
		t := newTarget()
		ep := mustEndpoint(t, `http_requests_total{code="500"}`)

		Expect(ep.Key()).To(Equal(`node/http_requests_total{code="500"}`))
		Expect(ep.Selector()).To(Equal(`http_requests_total{code="500"}`))
		Expect(ep.GroupID()).To(BeIdenticalTo(t))
		Expect(t.String()).To(Equal("prometheus:node"))
	})

	DescribeTable("reads a batch with a single scrape",
		func(opts ...prometheus.Option) {
			t := newTarget(opts...)
			cpu := mustEndpoint(t, "process_cpu_seconds_total")
			failed := mustEndpoint(t, `http_requests_total{code="500"}`)
			posts := mustEndpoint(t, `http_requests_total{method=~"P.*"}`)
			temp := mustEndpoint(t, "spindle_temperature_celsius")
			sum := mustEndpoint(t, "request_duration_seconds_sum")
			count := mustEndpoint(t, "request_duration_seconds_count")
			scrape()

			reader, err := dispatch.NewReader([]endpoint.Endpoint{cpu, failed, posts, temp, sum, count})
			Expect(err).NotTo(HaveOccurred())
			Expect(reader.Groups()).To(Equal(1))

			values := endpoint.Values{}
			Expect(reader.Read(ctx, values)).To(Succeed())
			Expect(values[cpu]).To(Equal(12.5))
			Expect(values[failed]).To(Equal(3.0))
			Expect(values[posts]).To(Equal(4.0))
			Expect(values[temp]).To(Equal(41.25))
			Expect(values[sum]).To(Equal(88.5))
			Expect(values[count]).To(Equal(1200.0))
			Expect(gock.IsDone()).To(BeTrue())
		},
		Entry("decoded into metric families"),
		Entry("streamed series by series", prometheus.WithFastParser()),
	)

	DescribeTable("rejects selectors matching several series",
		func(opts ...prometheus.Option) {
			ep := mustEndpoint(newTarget(opts...), `http_requests_total{method="GET"}`)
			scrape()

			_, err := ep.Get(ctx)
			Expect(err).To(MatchError(prometheus.ErrAmbiguousSeries))
		},
		Entry("decoded into metric families"),
		Entry("streamed series by series", prometheus.WithFastParser()),
	)

	DescribeTable("fails for series missing in the scrape",
		func(opts ...prometheus.Option) {
			ep := mustEndpoint(newTarget(opts...), `http_requests_total{code="404"}`)
			scrape()

			_, err := ep.Get(ctx)
			Expect(err).To(MatchError(prometheus.ErrSeriesNotFound))
		},
		Entry("decoded into metric families"),
		Entry("streamed series by series", prometheus.WithFastParser()),
	)

	It("selects quantiles when streaming", func() {
		ep := mustEndpoint(newTarget(prometheus.WithFastParser()), `request_duration_seconds{quantile="0.9"}`)
		scrape()

		Expect(ep.Get(ctx)).To(Equal(0.2))
	})

	It("rejects selectors without a metric name", func() {
		t := newTarget()

		_, err := t.Endpoint(`{code="200"}`)
		Expect(err).To(MatchError(prometheus.ErrInvalidSelector))

		_, err = t.Endpoint(`http_requests_total{code=`)
		Expect(err).To(MatchError(prometheus.ErrInvalidSelector))
	})

	It("reports HTTP errors", func() {
		ep := mustEndpoint(newTarget(), "process_cpu_seconds_total")
		gock.New(targetURL).
			Get("/metrics").
			Reply(503)

		_, err := ep.Get(ctx)
		Expect(err).To(MatchError(prometheus.ErrBadResponse))
	})

	It("reports malformed scrapes", func() {
		ep := mustEndpoint(newTarget(), "process_cpu_seconds_total")
		gock.New(targetURL).
			Get("/metrics").
			Reply(200).
			BodyString("process_cpu_seconds_total twelve\n")

		_, err := ep.Get(ctx)
		Expect(err).To(MatchError(prometheus.ErrBadResponse))
	})

	It("cannot be written", func() {
		ep := mustEndpoint(newTarget(), "spindle_temperature_celsius")

		Expect(ep.Set(ctx, 40.0)).To(MatchError(endpoint.ErrReadOnly))
		Expect(dispatch.Write(ctx, endpoint.Values{ep: 40.0})).To(MatchError(endpoint.ErrReadOnly))
		Expect(gock.HasUnmatchedRequest()).To(BeFalse())
	})
})
