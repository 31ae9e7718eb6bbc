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

// Package prometheus reads series of a Prometheus text exposition endpoint as read-only
// endpoints. All endpoints of one Target form one transport group: a read batch is a
// single scrape.
package prometheus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/model/textparse"
	"github.com/prometheus/prometheus/promql/parser"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
)

const acceptHeader = "text/plain;version=0.0.4;q=1,*/*;q=0.1"

var (
	// ErrInvalidSelector is returned for selectors that do not parse or name no metric.
	ErrInvalidSelector = errors.New("invalid series selector")
	// ErrSeriesNotFound is returned when no scraped series matches a selector.
	ErrSeriesNotFound = errors.New("series not found")
	// ErrAmbiguousSeries is returned when more than one scraped series matches a selector.
	ErrAmbiguousSeries = errors.New("selector matches more than one series")
	// ErrBadResponse is returned when the scrape answer cannot be understood.
	ErrBadResponse = errors.New("unexpected response from metrics endpoint")
)

// Target is a metrics endpoint serving the Prometheus text format.
type Target struct {
	client *http.Client
	log    *zap.SugaredLogger
	url    string
	name   string
	fast   bool
}

// Option configures a Target.
type Option func(*Target)

// WithClient replaces the default HTTP client.
func WithClient(c *http.Client) Option {
	return func(t *Target) {
		t.client = c
	}
}

// WithTimeout sets the timeout of every scrape made by the default client.
func WithTimeout(d time.Duration) Option {
	return func(t *Target) {
		t.client.Timeout = d
	}
}

// WithLogger replaces the Prometheus transport logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *Target) {
		t.log = log
	}
}

// WithFastParser walks the scrape with the streaming series parser instead of decoding
// it into metric families. Quantile and bucket series can only be selected this way.
func WithFastParser() Option {
	return func(t *Target) {
		t.fast = true
	}
}

// NewTarget creates a target scraped at url, e.g. "http://10.0.0.17:9100/metrics".
func NewTarget(name, url string, opts ...Option) *Target {
	t := &Target{name: name, url: url, client: defaultClient()}
	for _, opt := range opts {
		opt(t)
	}

	t.log = logger.OrDefault(t.log, logger.ComponentPrometheusTransport).With("target", name)

	return t
}

func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: time.Second,
		},
	}
}

func (t *Target) String() string {
	return "prometheus:" + t.name
}

// Client returns the HTTP client used for scrapes.
func (t *Target) Client() *http.Client {
	return t.client
}

// Endpoint returns an endpoint reading the series picked by selector, e.g.
// `process_cpu_seconds_total` or `http_requests_total{code="200",method=~"GET|POST"}`.
// The selector must name the metric.
func (t *Target) Endpoint(selector string, opts ...endpoint.Option) (*Endpoint, error) {
	matchers, err := parser.ParseMetricSelector(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}

	var name string
	for _, m := range matchers {
		if m.Name == labels.MetricName && m.Type == labels.MatchEqual {
			name = m.Value
		}
	}

	if name == "" {
		return nil, fmt.Errorf("%w %q: no metric name", ErrInvalidSelector, selector)
	}

	return &Endpoint{
		Base:     endpoint.NewBase(t.name+"/"+selector, opts...),
		target:   t,
		selector: selector,
		name:     name,
		matchers: matchers,
	}, nil
}

func (t *Target) scrape(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", acceptHeader)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape of %s failed: %w", t, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s answered HTTP %d", ErrBadResponse, t, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape of %s: %w", t, err)
	}

	return body, nil
}

func (t *Target) read(ctx context.Context, endpoints []*Endpoint, values endpoint.Values) error {
	body, err := t.scrape(ctx)
	if err != nil {
		return err
	}

	var found map[*Endpoint][]float64
	if t.fast {
		found, err = matchSeries(body, endpoints)
	} else {
		found, err = matchFamilies(body, endpoints)
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadResponse, t, err)
	}

	t.log.Debugw("Scraped", "bytes", len(body), "endpoints", len(endpoints))

	for _, e := range endpoints {
		switch samples := found[e]; len(samples) {
		case 0:
			return fmt.Errorf("%w: %s", ErrSeriesNotFound, e.Key())
		case 1:
			values[e] = samples[0]
		default:
			return fmt.Errorf("%w: %s matches %d series", ErrAmbiguousSeries, e.Key(), len(samples))
		}
	}

	return nil
}

// matchSeries streams over every series line of body.
func matchSeries(body []byte, endpoints []*Endpoint) (map[*Endpoint][]float64, error) {
	byName := make(map[string][]*Endpoint, len(endpoints))
	for _, e := range endpoints {
		byName[e.name] = append(byName[e.name], e)
	}

	found := make(map[*Endpoint][]float64, len(endpoints))
	p := textparse.NewPromParser(body, labels.NewSymbolTable())

	for {
		typ, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		if typ != textparse.EntrySeries {
			continue
		}

		_, _, val := p.Series()

		var lbls labels.Labels
		p.Labels(&lbls)

		for _, e := range byName[lbls.Get(labels.MetricName)] {
			if e.matches(lbls.Get) {
				found[e] = append(found[e], val)
			}
		}
	}

	return found, nil
}

// matchFamilies decodes body into metric families. The _sum and _count series of
// summaries and histograms are found under their family.
func matchFamilies(body []byte, endpoints []*Endpoint) (map[*Endpoint][]float64, error) {
	var p expfmt.TextParser

	families, err := p.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	found := make(map[*Endpoint][]float64, len(endpoints))

	for _, e := range endpoints {
		family, suffix := lookupFamily(families, e.name)
		if family == nil {
			continue
		}

		for _, m := range family.GetMetric() {
			val, ok := sampleValue(m, suffix)
			if !ok {
				continue
			}

			label := func(name string) string {
				if name == labels.MetricName {
					return e.name
				}

				return labelValue(m, name)
			}

			if e.matches(label) {
				found[e] = append(found[e], val)
			}
		}
	}

	return found, nil
}

func lookupFamily(families map[string]*dto.MetricFamily, name string) (*dto.MetricFamily, string) {
	if family, ok := families[name]; ok {
		return family, ""
	}

	for _, suffix := range []string{"_sum", "_count"} {
		if base, ok := strings.CutSuffix(name, suffix); ok {
			if family, ok := families[base]; ok {
				return family, suffix
			}
		}
	}

	return nil, ""
}

func sampleValue(m *dto.Metric, suffix string) (float64, bool) {
	switch suffix {
	case "_sum":
		switch {
		case m.Summary != nil:
			return m.Summary.GetSampleSum(), true
		case m.Histogram != nil:
			return m.Histogram.GetSampleSum(), true
		}
	case "_count":
		switch {
		case m.Summary != nil:
			return float64(m.Summary.GetSampleCount()), true
		case m.Histogram != nil:
			return float64(m.Histogram.GetSampleCount()), true
		}
	default:
		switch {
		case m.Counter != nil:
			return m.Counter.GetValue(), true
		case m.Gauge != nil:
			return m.Gauge.GetValue(), true
		case m.Untyped != nil:
			return m.Untyped.GetValue(), true
		}
	}

	return 0, false
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}

	return ""
}

// Endpoint is a series of a Target.
type Endpoint struct {
	target   *Target
	selector string
	name     string
	matchers []*labels.Matcher
	endpoint.Base
}

func (e *Endpoint) GroupID() endpoint.GroupID {
	return e.target
}

// Selector returns the series selector the endpoint was created with.
func (e *Endpoint) Selector() string {
	return e.selector
}

// matches reports whether the series with the given label lookup satisfies every
// matcher. Absent labels read as empty.
func (e *Endpoint) matches(label func(name string) string) bool {
	for _, m := range e.matchers {
		if !m.Matches(label(m.Name)) {
			return false
		}
	}

	return true
}

func (e *Endpoint) Get(ctx context.Context) (any, error) {
	values := make(endpoint.Values, 1)
	if err := e.target.read(ctx, []*Endpoint{e}, values); err != nil {
		return nil, err
	}

	return values[e], nil
}

func (e *Endpoint) Set(_ context.Context, _ any) error {
	return fmt.Errorf("%w: %s", endpoint.ErrReadOnly, e.Key())
}

func (e *Endpoint) ReadCollector() endpoint.ReadCollector {
	return &readCollector{target: e.target, seen: make(map[*Endpoint]struct{})}
}

func (e *Endpoint) WriteCollector() endpoint.WriteCollector {
	return endpoint.NewSequentialWriteCollector()
}

type readCollector struct {
	target    *Target
	seen      map[*Endpoint]struct{}
	endpoints []*Endpoint
}

func (c *readCollector) Add(ep endpoint.Endpoint) {
	e, ok := ep.(*Endpoint)
	if !ok || e.target != c.target {
		panic(fmt.Sprintf("target %s cannot read endpoint %s", c.target.name, ep.Key()))
	}

	if _, ok := c.seen[e]; ok {
		return
	}

	c.seen[e] = struct{}{}
	c.endpoints = append(c.endpoints, e)
}

func (c *readCollector) Execute(ctx context.Context, values endpoint.Values) error {
	if len(c.endpoints) == 0 {
		return nil
	}

	return c.target.read(ctx, c.endpoints, values)
}
