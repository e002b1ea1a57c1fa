// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"io"
	"time"
)

// Container describes a running container as seen by a single container list
// query.
type Container struct {
	ID    string // unique container ID, stable for the lifetime of the container.
	Name  string // container name; falls back to the ID if the engine doesn't tell.
	Image string // image reference as reported by the engine, including any tag.
}

// Engine gives access to the containers of a container engine and their log
// output.
type Engine interface {
	// Containers returns the currently running containers.
	Containers(ctx context.Context) ([]Container, error)

	// Logs opens a following stream of the log output of the specified
	// container, starting at the specified point in time. The stream carries
	// plain newline-delimited log lines and ends when the container
	// terminates, the engine closes the stream, or the context gets
	// cancelled. Callers must close the returned stream.
	Logs(ctx context.Context, id string, since time.Time) (io.ReadCloser, error)
}
