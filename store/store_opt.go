// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package store

import "time"

// Option represents options to New when creating a new store.
type Option func(s *Store, numshards *int)

// WithClock sets the function used to read the current time when recording
// and sweeping. Tests use this to control the passage of time.
func WithClock(now func() time.Time) Option {
	return func(s *Store, _ *int) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShards sets the number of shards the series are spread over. A number
// of zero or less is taken as a single shard.
func WithShards(num int) Option {
	return func(_ *Store, numshards *int) {
		*numshards = num
	}
}
