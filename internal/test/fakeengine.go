// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package test

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siemens/logtally/engine"
	"golang.org/x/exp/slices"
)

// FakeEngine is an in-memory container engine for testing: tests control the
// list of running containers and feed the log streams opened by watchers.
type FakeEngine struct {
	mu         sync.Mutex
	containers []engine.Container
	listerr    error
	lists      int
	openerr    map[string]error
	streams    map[string][]*FakeStream
	opened     chan string
}

var _ engine.Engine = (*FakeEngine)(nil)

// NewFakeEngine returns a new FakeEngine without any containers.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		openerr: map[string]error{},
		streams: map[string][]*FakeStream{},
		opened:  make(chan string, 1024),
	}
}

// SetContainers sets the containers reported by subsequent container
// listings, also clearing any listing failure.
func (f *FakeEngine) SetContainers(containers ...engine.Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers = slices.Clone(containers)
	f.listerr = nil
}

// FailListing lets subsequent container listings fail with the specified
// error.
func (f *FakeEngine) FailListing(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listerr = err
}

// FailOpening lets opening log streams of the specified container fail with
// the specified error; a nil error lets opening succeed again.
func (f *FakeEngine) FailOpening(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.openerr, id)
		return
	}
	f.openerr[id] = err
}

// Lists returns the number of container listings so far, including failed
// ones.
func (f *FakeEngine) Lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// Containers returns the containers set by the test.
func (f *FakeEngine) Containers(ctx context.Context) ([]engine.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listerr != nil {
		return nil, f.listerr
	}
	return slices.Clone(f.containers), nil
}

// Logs returns a new log stream for the specified container that is fed by
// the test through the corresponding [FakeStream].
func (f *FakeEngine) Logs(ctx context.Context, id string, since time.Time) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openerr[id]; err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	s := &FakeStream{pr: pr, pw: pw, Since: since}
	f.streams[id] = append(f.streams[id], s)
	select {
	case f.opened <- id:
	default:
	}
	return s, nil
}

// Opened returns a channel receiving the container IDs of newly opened log
// streams.
func (f *FakeEngine) Opened() <-chan string {
	return f.opened
}

// Streams returns all log streams opened so far for the specified container,
// oldest first.
func (f *FakeEngine) Streams(id string) []*FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.streams[id])
}

// Stream returns the most recently opened log stream of the specified
// container, or nil.
func (f *FakeEngine) Stream(id string) *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	streams := f.streams[id]
	if len(streams) == 0 {
		return nil
	}
	return streams[len(streams)-1]
}

// FakeStream is a log stream of a FakeEngine container.
type FakeStream struct {
	pr     *io.PipeReader
	pw     *io.PipeWriter
	closed atomic.Bool
	Since  time.Time // start time requested when opening the stream.
}

// Read reads log output written by the test.
func (s *FakeStream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Close closes the stream from the reading watcher's side.
func (s *FakeStream) Close() error {
	s.closed.Store(true)
	return s.pr.Close()
}

// Closed returns true if the watcher has closed this stream.
func (s *FakeStream) Closed() bool {
	return s.closed.Load()
}

// WriteLines writes the specified lines in a single write, each line
// terminated by a newline. It blocks until the watcher has read all lines or
// closed the stream.
func (s *FakeStream) WriteLines(lines ...string) error {
	_, err := s.pw.Write([]byte(strings.Join(lines, "\n") + "\n"))
	return err
}

// Write writes raw log output.
func (s *FakeStream) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

// End ends the stream, as if the container had terminated.
func (s *FakeStream) End() {
	_ = s.pw.Close()
}

// Break makes the stream fail with the specified error.
func (s *FakeStream) Break(err error) {
	_ = s.pw.CloseWithError(err)
}
