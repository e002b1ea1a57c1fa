/*
Package logtally watches the log output of containers created from certain
images and counts the requests per domain and HTTP status code that show up in
these logs. The counts are kept in a [store.Store] that forgets about
domain/status combinations not seen for some time, and then can be served as
Prometheus metrics.

# Quick Start

	eng, _ := moby.New("/var/run/docker.sock")
	metrics := store.New()
	r := logtally.New(eng, metrics, []string{"atdr.meo.ws/archiveteam/urls-grab"})
	go metrics.Run(ctx, store.DefaultSweepInterval, store.DefaultTTL)
	_ = r.Run(ctx)

# Discovery and Reconciliation

A [Reconciler] regularly lists the running containers of its container engine
(every 60s by default), and picks those containers whose image names match one
of the configured image names exactly, ignoring image tags and digests. For
each newly matching container it then starts a watcher in the background,
while it stops the watchers of containers that have vanished. When listing the
containers fails, the existing watchers are kept and listing is retried sooner
(after 10s by default).

# Watchers

A watcher follows the log output of its container, starting with the log output
written after it started watching. It hands each log line to an
[extractor.Extractor] that finds the request status code and domain, if any.
When the log stream ends or breaks, the watcher waits a short time (1s by
default) and then follows the log output again, from the then current time.
Lines logged in between are not counted.

Cancelling a watcher immediately stops it, even when it is stuck in reading a
stalled log stream. After cancellation, a watcher doesn't count any further
requests.
*/
package logtally
