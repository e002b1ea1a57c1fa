// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package store

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricName is the name of the exported counter family.
const MetricName = "requests_per_domain_total"

type collector struct {
	store *Store
	desc  *prometheus.Desc
}

var _ prometheus.Collector = (*collector)(nil)

// NewCollector returns a Prometheus collector exporting the series of the
// specified store as a counter family with “domain” and “status_code” labels.
// Series evicted from the store simply vanish from the exported family.
func NewCollector(s *Store) prometheus.Collector {
	return &collector{
		store: s,
		desc: prometheus.NewDesc(
			MetricName,
			"A counter of requests per domain.",
			[]string{"domain", "status_code"}, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for _, sample := range c.store.Snapshot() {
		m, err := prometheus.NewConstMetric(c.desc, prometheus.CounterValue,
			float64(sample.Count),
			sample.Domain, strconv.FormatUint(uint64(sample.Status), 10))
		if err != nil {
			// e.g. a domain label that isn't valid UTF-8; let the gatherer
			// report it instead of panicking.
			m = prometheus.NewInvalidMetric(c.desc, err)
		}
		ch <- m
	}
}
