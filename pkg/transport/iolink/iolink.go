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

// Package iolink reads and writes process data of an IO-Link master through its JSON
// interface. All endpoints of one Master form one transport group: a read batch is a
// single /getdatamulti request.
package iolink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
)

const (
	codeOK        = 200
	addrGetMulti  = "/getdatamulti"
	addrSetSuffix = "/setdata"
)

var (
	// ErrPointUnavailable is returned when the master answers a data point with a non-200 code.
	ErrPointUnavailable = errors.New("data point unavailable")
	// ErrBadResponse is returned when the master answer cannot be understood.
	ErrBadResponse = errors.New("unexpected response from io-link master")
)

type request struct {
	Data any    `json:"data"`
	Code string `json:"code"`
	Adr  string `json:"adr"`
	Cid  int64  `json:"cid"`
}

type multiData struct {
	DataToSend []string `json:"datatosend"`
}

type setData struct {
	NewValue any `json:"newvalue"`
}

type point struct {
	Data any `json:"data"`
	Code int `json:"code"`
}

type response struct {
	Data json.RawMessage `json:"data"`
	Cid  int64           `json:"cid"`
	Code int             `json:"code"`
}

// Master is an IO-Link master reachable over HTTP.
type Master struct {
	client *http.Client
	log    *zap.SugaredLogger
	url    string
	name   string
	cid    atomic.Int64
}

// Option configures a Master.
type Option func(*Master)

// WithClient replaces the default HTTP client.
func WithClient(c *http.Client) Option {
	return func(m *Master) {
		m.client = c
	}
}

// WithTimeout sets the timeout of every request made by the default client.
func WithTimeout(d time.Duration) Option {
	return func(m *Master) {
		m.client.Timeout = d
	}
}

// WithLogger replaces the IO-Link transport logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(m *Master) {
		m.log = log
	}
}

// NewMaster creates a master reachable at url, e.g. "http://10.0.0.17/".
func NewMaster(name, url string, opts ...Option) *Master {
	m := &Master{name: name, url: url, client: defaultClient()}
	for _, opt := range opts {
		opt(m)
	}

	m.log = logger.OrDefault(m.log, logger.ComponentIOLinkTransport).With("master", name)

	return m
}

func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       10 * time.Second,
			TLSHandshakeTimeout:   time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

func (m *Master) String() string {
	return "iolink:" + m.name
}

// Client returns the HTTP client used for requests.
func (m *Master) Client() *http.Client {
	return m.client
}

// Endpoint returns an endpoint bound to a data point address of the master.
func (m *Master) Endpoint(addr string, opts ...endpoint.Option) *Endpoint {
	return &Endpoint{Base: endpoint.NewBase(m.name+addr, opts...), master: m, addr: addr}
}

// PortEndpoint returns an endpoint bound to a field of the device on port, e.g.
// PortEndpoint(1, "iolinkdevice/pdin").
func (m *Master) PortEndpoint(port int, field string, opts ...endpoint.Option) *Endpoint {
	return m.Endpoint(fmt.Sprintf("/iolinkmaster/port[%d]/%s", port, field), opts...)
}

func (m *Master) post(ctx context.Context, adr string, data any) (json.RawMessage, error) {
	cid := m.cid.Add(1)

	body, err := json.Marshal(request{Code: "request", Cid: cid, Adr: adr, Data: data})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", m, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read answer of %s: %w", m, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s answered HTTP %d", ErrBadResponse, m, resp.StatusCode)
	}

	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	if r.Cid != cid {
		m.log.Debugw("Correlation id mismatch", "sent", cid, "received", r.Cid)

		return nil, fmt.Errorf("%w: cid %d, expected %d", ErrBadResponse, r.Cid, cid)
	}

	if r.Code != codeOK {
		return nil, fmt.Errorf("%w: %s answered code %d", ErrBadResponse, m, r.Code)
	}

	return r.Data, nil
}

func (m *Master) read(ctx context.Context, endpoints []*Endpoint, values endpoint.Values) error {
	addrs := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		addrs = append(addrs, e.addr)
	}

	raw, err := m.post(ctx, addrGetMulti, multiData{DataToSend: addrs})
	if err != nil {
		return err
	}

	var points map[string]point
	if err := json.Unmarshal(raw, &points); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	for _, e := range endpoints {
		p, ok := points[e.addr]
		if !ok {
			return fmt.Errorf("%w: %s missing in answer", ErrPointUnavailable, e.Key())
		}

		if p.Code != codeOK {
			return fmt.Errorf("%w: %s answered code %d", ErrPointUnavailable, e.Key(), p.Code)
		}

		values[e] = p.Data
	}

	return nil
}

// write parses value with the endpoint parser before sending it.
func (m *Master) write(ctx context.Context, e *Endpoint, value any) error {
	parsed, err := endpoint.Parse(e, value)
	if err != nil {
		return fmt.Errorf("failed to parse value for %s: %w", e.Key(), err)
	}

	if _, err := m.post(ctx, e.addr+addrSetSuffix, setData{NewValue: parsed}); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.Key(), err)
	}

	return nil
}

// Endpoint is a data point of a Master.
type Endpoint struct {
	master *Master
	addr   string
	endpoint.Base
}

func (e *Endpoint) GroupID() endpoint.GroupID {
	return e.master
}

// Address returns the data point address on the master.
func (e *Endpoint) Address() string {
	return e.addr
}

func (e *Endpoint) Get(ctx context.Context) (any, error) {
	values := make(endpoint.Values, 1)
	if err := e.master.read(ctx, []*Endpoint{e}, values); err != nil {
		return nil, err
	}

	return values[e], nil
}

func (e *Endpoint) Set(ctx context.Context, value any) error {
	return e.master.write(ctx, e, value)
}

func (e *Endpoint) ReadCollector() endpoint.ReadCollector {
	return &readCollector{master: e.master, seen: make(map[*Endpoint]struct{})}
}

// WriteCollector writes one data point per request; the master has no multi-write address.
func (e *Endpoint) WriteCollector() endpoint.WriteCollector {
	return endpoint.NewSequentialWriteCollector()
}

type readCollector struct {
	master    *Master
	seen      map[*Endpoint]struct{}
	endpoints []*Endpoint
}

func (c *readCollector) Add(ep endpoint.Endpoint) {
	e, ok := ep.(*Endpoint)
	if !ok || e.master != c.master {
		panic(fmt.Sprintf("master %s cannot read endpoint %s", c.master.name, ep.Key()))
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

	return c.master.read(ctx, c.endpoints, values)
}
