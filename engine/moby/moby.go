// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

/*
Package moby implements the engine interface for Docker (Moby) container
engines, talking to the engine's API endpoint using the official Docker Go
client.
*/
package moby

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/siemens/logtally/engine"
	"github.com/thediveo/lxkns/log"
)

// DefaultSocket is the well-known API endpoint of a Docker daemon.
const DefaultSocket = "/var/run/docker.sock"

// Engine implements the engine.Engine interface for a Docker engine.
type Engine struct {
	client client.APIClient
	owned  bool // client created by us, so we need to close it.
}

var _ engine.Engine = (*Engine)(nil)

// New returns an Engine for the Docker daemon at the specified API endpoint.
// The endpoint can be either a plain unix domain socket path, such as
// “/var/run/docker.sock”, or a Docker host URL, such as
// “unix:///var/run/docker.sock” and “tcp://localhost:2375”. The API version is
// negotiated with the daemon.
func New(endpoint string, opts ...client.Opt) (*Engine, error) {
	if endpoint == "" {
		endpoint = DefaultSocket
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "unix://" + endpoint
	}
	opts = append([]client.Opt{
		client.WithHost(endpoint),
		client.WithAPIVersionNegotiation(),
	}, opts...)
	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create Docker client for %s: %w", endpoint, err)
	}
	log.Debugf("using Docker engine API at %s", endpoint)
	return &Engine{client: c, owned: true}, nil
}

// NewWithClient returns an Engine using the specified Docker API client. The
// caller remains responsible for closing the client.
func NewWithClient(c client.APIClient) *Engine {
	return &Engine{client: c}
}

// Close releases the Docker client, if it was created by New.
func (e *Engine) Close() error {
	if !e.owned {
		return nil
	}
	return e.client.Close()
}

// Containers returns the currently running containers.
func (e *Engine) Containers(ctx context.Context) ([]engine.Container, error) {
	list, err := e.client.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("cannot list containers: %w", err)
	}
	containers := make([]engine.Container, 0, len(list))
	for _, cntr := range list {
		name := cntr.ID
		if len(cntr.Names) > 0 {
			if n := strings.TrimPrefix(cntr.Names[0], "/"); n != "" {
				name = n
			}
		}
		containers = append(containers, engine.Container{
			ID:    cntr.ID,
			Name:  name,
			Image: cntr.Image,
		})
	}
	return containers, nil
}

// Logs opens a following stream of the stdout log output of the specified
// container, starting at the specified time. Docker's time resolution for
// “since” is seconds.
//
// Containers without a TTY get their output multiplexed by Docker; such
// streams are transparently demultiplexed, so that callers always get the
// plain log lines.
func (e *Engine) Logs(ctx context.Context, id string, since time.Time) (io.ReadCloser, error) {
	info, err := e.client.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cannot inspect container %s: %w", id, err)
	}
	logs, err := e.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		Follow:     true,
		Since:      strconv.FormatInt(since.Unix(), 10),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot follow logs of container %s: %w", id, err)
	}
	if info.Config != nil && info.Config.Tty {
		return logs, nil
	}
	return demux(logs), nil
}

// demuxed is a demultiplexed log stream: closing it also closes the
// underlying multiplexed stream, so that the demultiplexing goroutine
// terminates.
type demuxed struct {
	*io.PipeReader
	src io.ReadCloser
}

func (d *demuxed) Close() error {
	err := d.src.Close()
	_ = d.PipeReader.Close()
	return err
}

// demux returns a stream with the stdout payload of the multiplexed src
// stream.
func demux(src io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, io.Discard, src)
		pw.CloseWithError(err) // nil err properly ends in io.EOF
	}()
	return &demuxed{PipeReader: pr, src: src}
}
