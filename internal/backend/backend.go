// Package backend contains the HTTP clients for the two upstreams the
// gateway fronts: the local inference engine and the cloud aggregator.
package backend

import (
	"context"
	"io"
	"time"

	"inferproxy/pkg/types"
)

// Client is the uniform surface the gateway uses to talk to one upstream.
// Every operation applies its own timeout independent of the others.
type Client interface {
	// Name identifies the upstream (local or cloud).
	Name() types.Backend
	// ListModels fetches the upstream's model catalog.
	ListModels(ctx context.Context) ([]types.ModelInfo, error)
	// ChatCompletion forwards an OpenAI-style chat payload verbatim and
	// returns the live response on 2xx. Non-2xx replies come back as a
	// status error carrying the upstream's status and body; network
	// failures come back as an unavailable error.
	ChatCompletion(ctx context.Context, payload []byte) (*Response, error)
	// HealthCheck probes the upstream's liveness endpoint and reports the
	// round-trip latency.
	HealthCheck(ctx context.Context) (time.Duration, error)
}

// UsageClient is implemented by backends that expose account usage.
type UsageClient interface {
	KeyUsage(ctx context.Context) (*Response, error)
}

// Response is a successful upstream reply whose body has not been consumed.
// The caller owns Body and must close it.
type Response struct {
	Backend     types.Backend
	Status      int
	ContentType string
	Body        io.ReadCloser
}

// cancelReadCloser ties a request-scoped cancel func to the body so the
// timeout context stays alive until the caller finishes reading.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
