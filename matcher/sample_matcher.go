// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package matcher

import (
	"fmt"

	"github.com/siemens/logtally/store"

	g "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
)

// HaveSample succeeds if ACTUAL is either a store.Sample or *store.Sample for
// the specified domain and status code, with its count matching count.
// Instead of a plain count, a GomegaMatcher can also be specified for
// matching the count, such as BeNumerically(">=", 1).
func HaveSample(domain string, status uint16, count interface{}) types.GomegaMatcher {
	var countMatcher types.GomegaMatcher
	switch count := count.(type) {
	case int:
		countMatcher = g.BeEquivalentTo(count)
	case uint64:
		countMatcher = g.Equal(count)
	case types.GomegaMatcher:
		countMatcher = count
	default:
		panic("count argument must be int, uint64, or GomegaMatcher")
	}
	return g.WithTransform(func(actual interface{}) (store.Sample, error) {
		switch sample := actual.(type) {
		case store.Sample:
			return sample, nil
		case *store.Sample:
			if sample == nil {
				return store.Sample{}, fmt.Errorf("HaveSample expects a non-nil *store.Sample")
			}
			return *sample, nil
		}
		return store.Sample{}, fmt.Errorf("HaveSample expects a store.Sample or *store.Sample, but got %T", actual)
	}, g.And(
		g.HaveField("Domain", domain),
		g.HaveField("Status", status),
		g.HaveField("Count", countMatcher),
	))
}
