// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package logtally

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siemens/logtally/engine"
	"github.com/siemens/logtally/extractor"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/semaphore"

	_ "github.com/siemens/logtally/extractor/all" // pull in the log line extractor plugins
)

// Default intervals for container discovery and log stream reconnects.
const (
	DefaultPollInterval  = 60 * time.Second
	DefaultRetryInterval = 10 * time.Second
	DefaultBackoff       = 1 * time.Second
)

// Recorder records the outcome of a single request to a domain.
// [store.Store] objects implement the Recorder interface.
type Recorder interface {
	Record(domain string, status uint16)
}

// Watched describes a container whose log output is currently being watched.
type Watched struct {
	ID      string // container ID.
	Name    string // container name, or ID if the container has no name.
	Session string // unique ID of this watch, for correlating log messages.
}

// Reconciler keeps a set of container log watchers in sync with the set of
// running containers of certain images. Containers appearing get a new
// watcher, watchers of containers that vanished are stopped.
//
// A Reconciler is run by calling [Reconciler.Run] exactly once; the watched
// containers can be queried from other goroutines while it runs.
type Reconciler struct {
	engine        engine.Engine
	recorder      Recorder
	images        []string            // image names to watch, without tags.
	extractor     extractor.Extractor // finds requests in log lines.
	pollInterval  time.Duration       // between successful discoveries.
	retryInterval time.Duration       // after a failed discovery.
	backoff       time.Duration       // before reconnecting a log stream.
	maxopening    int                 // max. concurrent log stream opens; unbounded if zero or less.
	opensem       *semaphore.Weighted // nil when unbounded.

	mu       sync.Mutex                // protects the following field against readers, Run is its only writer.
	watchers map[string]*watcherHandle // by container ID.
}

// watcherHandle represents the running log watcher of a single container.
type watcherHandle struct {
	id      string
	name    string
	session string
	cancel  context.CancelFunc // stops only this particular watcher.
	done    chan struct{}      // closed after the watcher goroutine has finished.
}

// New returns a Reconciler that watches the logs of all running containers of
// the specified engine that were created from one of the listed images,
// passing the requests found in their logs to the specified recorder. Image
// names must not include tags; tags of container images are ignored when
// matching.
//
// Further options ([NewOption], such as [WithPollInterval] and
// [WithBackoff]) allow to customize the Reconciler object returned.
func New(eng engine.Engine, rec Recorder, images []string, opts ...NewOption) *Reconciler {
	r := &Reconciler{
		engine:        eng,
		recorder:      rec,
		images:        slices.Clone(images),
		pollInterval:  DefaultPollInterval,
		retryInterval: DefaultRetryInterval,
		backoff:       DefaultBackoff,
		watchers:      map[string]*watcherHandle{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.extractor == nil {
		r.extractor = extractor.Named(extractor.DefaultName)
	}
	if r.maxopening > 0 {
		r.opensem = semaphore.NewWeighted(int64(r.maxopening))
	}
	return r
}

// Run discovers the matching containers and reconciles the watchers with
// them in regular intervals, until the passed context gets cancelled. Failing
// discoveries never touch the existing watchers, but are retried sooner.
//
// When the context gets cancelled, Run stops all watchers and waits for them
// to finish before returning.
func (r *Reconciler) Run(ctx context.Context) error {
	log.Infof("watching containers with images: %s", strings.Join(r.images, ", "))
	defer r.stopAll()
	for {
		delay := r.pollInterval
		if err := r.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warnf("cannot discover containers, retrying in %s, reason: %s",
				r.retryInterval, err.Error())
			delay = r.retryInterval
		}
		wecker := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !wecker.Stop() { // drain the timer, if necessary.
				<-wecker.C
			}
			return nil
		case <-wecker.C:
		}
	}
}

// Watched returns the containers currently being watched, sorted by their
// IDs. Watchers that terminated abnormally and are still waiting for their
// replacement are not included.
func (r *Reconciler) Watched() []Watched {
	r.mu.Lock()
	watched := make([]Watched, 0, len(r.watchers))
	for _, h := range r.watchers {
		select {
		case <-h.done:
			continue
		default:
		}
		watched = append(watched, Watched{ID: h.id, Name: h.name, Session: h.session})
	}
	r.mu.Unlock()
	slices.SortFunc(watched, func(a, b Watched) int {
		return strings.Compare(a.ID, b.ID)
	})
	return watched
}

// poll queries the engine for its running containers and then reconciles the
// watchers.
func (r *Reconciler) poll(ctx context.Context) error {
	containers, err := r.engine.Containers(ctx)
	if err != nil {
		return err
	}
	r.reconcile(ctx, containers)
	return nil
}

// reconcile starts watchers for newly seen containers with a matching image
// and stops the watchers of containers not present anymore. Watchers that
// terminated abnormally get replaced. New watchers are derived from the
// passed context.
//
// Only the goroutine running the Reconciler calls reconcile, so reading the
// watcher map here doesn't need locking; changing it does, as other
// goroutines might ask for the Watched containers.
func (r *Reconciler) reconcile(ctx context.Context, containers []engine.Container) {
	alive := make(map[string]struct{}, len(containers))
	for _, cntr := range containers {
		if !r.tracks(cntr.Image) {
			continue
		}
		if _, ok := alive[cntr.ID]; ok {
			continue
		}
		alive[cntr.ID] = struct{}{}
		if h, ok := r.watchers[cntr.ID]; ok {
			select {
			case <-h.done: // terminated abnormally, so replace it.
				log.Warnf("replacing abnormally terminated watcher for container %s/%s, session %s",
					h.name, h.id, h.session)
				h.cancel()
			default:
				continue
			}
		}
		h := r.startWatcher(ctx, cntr)
		r.mu.Lock()
		r.watchers[cntr.ID] = h
		r.mu.Unlock()
	}
	// Retire the watchers of containers gone missing: signal all of them
	// first so they can wind down in parallel, then wait for each of them to
	// finish before forgetting about them.
	gone := []*watcherHandle{}
	for id, h := range r.watchers {
		if _, ok := alive[id]; ok {
			continue
		}
		log.Infof("stopping watcher for container %s/%s", h.name, h.id)
		h.cancel()
		gone = append(gone, h)
	}
	for _, h := range gone {
		<-h.done
		r.mu.Lock()
		delete(r.watchers, h.id)
		r.mu.Unlock()
	}
}

// tracks returns true if the specified image reference is one of the images
// to watch.
func (r *Reconciler) tracks(imageref string) bool {
	return slices.Contains(r.images, imageName(imageref))
}

// startWatcher starts watching the log output of the specified container in
// the background, returning the handle to the watcher.
func (r *Reconciler) startWatcher(ctx context.Context, cntr engine.Container) *watcherHandle {
	name := cntr.Name
	if name == "" {
		name = cntr.ID
	}
	wctx, cancel := context.WithCancel(ctx)
	h := &watcherHandle{
		id:      cntr.ID,
		name:    name,
		session: uuid.NewString(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	log.Infof("starting watcher for container %s (id %s), session %s", h.name, h.id, h.session)
	go func() {
		defer close(h.done)
		defer func() {
			if p := recover(); p != nil {
				log.Errorf("watcher for container %s/%s terminated abnormally: %v", h.name, h.id, p)
			}
		}()
		r.watch(wctx, h)
	}()
	return h
}

// stopAll stops all watchers and waits for them to finish.
func (r *Reconciler) stopAll() {
	for _, h := range r.watchers {
		h.cancel()
	}
	for _, h := range r.watchers {
		<-h.done
	}
	r.mu.Lock()
	r.watchers = map[string]*watcherHandle{}
	r.mu.Unlock()
	log.Infof("all container watchers stopped")
}
