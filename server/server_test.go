// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/siemens/logtally/internal/test"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

// failingCollector always fails collecting its single metric.
type failingCollector struct {
	desc *prometheus.Desc
}

func newFailingCollector() *failingCollector {
	return &failingCollector{
		desc: prometheus.NewDesc("failing", "Always fails.", nil, nil),
	}
}

func (c *failingCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *failingCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.NewInvalidMetric(c.desc, errors.New("D'oh!"))
}

// get issues a request to the metrics endpoint, returning the status code
// and body.
func get(client *http.Client, method string, url string) (int, string) {
	GinkgoHelper()
	req := Successful(http.NewRequest(method, url, nil))
	resp := Successful(client.Do(req))
	defer resp.Body.Close()
	body := Successful(io.ReadAll(resp.Body))
	return resp.StatusCode, string(body)
}

var _ = Describe("metrics server", func() {

	var client *http.Client

	BeforeEach(test.LogToGinkgo)

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(goroutinesUnwindTimeout).WithPolling(goroutinesUnwindPolling).
				ShouldNot(HaveLeaked(goodgos))
		})
		client = &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		DeferCleanup(client.CloseIdleConnections)
	})

	// serve runs the specified server in the background until the end of
	// the current test.
	serve := func(s *Server) string {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- s.Serve(ctx) }()
		DeferCleanup(func() {
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})
		return fmt.Sprintf("http://%s%s", s.Addr(), MetricsPath)
	}

	It("serves metrics", func() {
		reg := prometheus.NewRegistry()
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_per_domain_total",
			Help: "A counter of requests per domain.",
		}, []string{"domain", "status_code"})
		counter.WithLabelValues("example.com", "200").Add(42)
		reg.MustRegister(counter)

		url := serve(Successful(New("127.0.0.1:0", reg)))
		status, body := get(client, http.MethodGet, url)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(
			`requests_per_domain_total{domain="example.com",status_code="200"} 42`))
	})

	It("only serves GET requests at the metrics path", func() {
		url := serve(Successful(New("127.0.0.1:0", prometheus.NewRegistry())))
		status, _ := get(client, http.MethodPost, url)
		Expect(status).To(Equal(http.StatusMethodNotAllowed))
		status, _ = get(client, http.MethodGet, strings.TrimSuffix(url, MetricsPath)+"/foo")
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("reports failed gathering", func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(newFailingCollector())
		url := serve(Successful(New("127.0.0.1:0", reg)))
		status, _ := get(client, http.MethodGet, url)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(GinkgoWriter.(fmt.Stringer).String()).To(ContainSubstring("metrics endpoint: "))
	})

	It("fails when the address is already in use", func() {
		s := Successful(New("127.0.0.1:0", prometheus.NewRegistry()))
		_ = serve(s)
		Expect(New(s.Addr().String(), prometheus.NewRegistry())).Error().To(
			MatchError(ContainSubstring("cannot listen on")))
	})

	It("fails on an invalid address", func() {
		Expect(New("127.0.0.1:-1", prometheus.NewRegistry())).Error().To(HaveOccurred())
	})

})
