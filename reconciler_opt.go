// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package logtally

import (
	"time"

	"github.com/siemens/logtally/extractor"
)

// NewOption represents options to New when creating a new reconciler.
type NewOption func(*Reconciler)

// WithPollInterval sets the interval between container discoveries. Zero or
// negative durations are ignored.
func WithPollInterval(d time.Duration) NewOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithRetryInterval sets the (usually shorter) interval before the next
// container discovery after a discovery has failed. Zero or negative
// durations are ignored.
func WithRetryInterval(d time.Duration) NewOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.retryInterval = d
		}
	}
}

// WithBackoff sets the delay before a watcher tries to follow the log output
// of its container again after the log stream broke or ended. Zero or
// negative durations are ignored.
func WithBackoff(d time.Duration) NewOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.backoff = d
		}
	}
}

// WithExtractor sets the extractor for finding requests in log lines, instead
// of the default “urlsgrab” extractor plugin.
func WithExtractor(x extractor.Extractor) NewOption {
	return func(r *Reconciler) {
		r.extractor = x
	}
}

// WithMaxOpening limits the number of log streams being opened at the same
// time across all watchers, so that an engine coming back after a hiccup
// doesn't get swamped with reconnects. A maximum of zero or less means no
// limit.
func WithMaxOpening(num int) NewOption {
	return func(r *Reconciler) {
		r.maxopening = num
	}
}
