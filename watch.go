// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package logtally

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/containerd/errdefs"
	"github.com/thediveo/lxkns/log"
)

// watch follows the log output of the container of the specified watcher,
// counting the requests found in the log lines, until the passed context gets
// cancelled. When the log stream ends or breaks, watch waits for the backoff
// duration and then follows the log output again, starting from the then
// current time. Log lines written during the backoff are thus lost.
//
// watch never gives up on its own: only cancelling the context ends it.
func (r *Reconciler) watch(ctx context.Context, h *watcherHandle) {
	for ctx.Err() == nil {
		err := r.follow(ctx, h)
		if ctx.Err() != nil {
			break
		}
		switch {
		case err == nil:
			log.Warnf("log stream of container %s/%s ended, reconnecting in %s",
				h.name, h.id, r.backoff)
		case errdefs.IsNotFound(err):
			log.Warnf("container %s/%s has vanished, retrying in %s",
				h.name, h.id, r.backoff)
		default:
			log.Warnf("watcher for container %s/%s had an issue, reconnecting in %s, reason: %s",
				h.name, h.id, r.backoff, err.Error())
		}
		wecker := time.NewTimer(r.backoff)
		select {
		case <-ctx.Done():
			if !wecker.Stop() {
				<-wecker.C
			}
		case <-wecker.C:
		}
	}
	log.Infof("stopped watcher for container %s/%s, session %s", h.name, h.id, h.session)
}

// follow opens a new log stream of the watcher's container and processes it
// line by line until the stream ends (returning nil), breaks (returning an
// error), or the context gets cancelled. The stream is closed as soon as the
// context gets cancelled, so that even a stalled stream won't block a
// watcher from terminating.
func (r *Reconciler) follow(ctx context.Context, h *watcherHandle) error {
	if r.opensem != nil {
		if err := r.opensem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	logs, err := r.engine.Logs(ctx, h.id, time.Now())
	if r.opensem != nil {
		r.opensem.Release(1)
	}
	if err != nil {
		return err
	}
	closeLogs := sync.OnceValue(logs.Close)
	defer closeLogs()
	stop := context.AfterFunc(ctx, func() { _ = closeLogs() })
	defer stop()
	log.Debugf("following log output of container %s/%s", h.name, h.id)

	lines := bufio.NewReader(logs)
	for {
		line, err := lines.ReadBytes('\n')
		if len(line) > 0 {
			// The reader might still have buffered lines when we got
			// cancelled, but these must not be counted anymore.
			if ctx.Err() != nil {
				return nil
			}
			r.process(h, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("line read loop failed: %w", err)
		}
	}
}

// process a single log line, recording the request outcome if the line
// reports one. Lines with unparseable status codes are logged and dropped,
// domains that aren't valid UTF-8 are silently dropped.
func (r *Reconciler) process(h *watcherHandle, line []byte) {
	statustext, domain, ok := r.extractor.Extract(line)
	if !ok {
		return
	}
	status, err := strconv.ParseUint(string(statustext), 10, 16)
	if err != nil {
		log.Errorf("container %s/%s: cannot parse status code '%s' as uint16",
			h.name, h.id, statustext)
		return
	}
	if !utf8.Valid(domain) {
		return
	}
	r.recorder.Record(string(domain), uint16(status))
}
