package gateway

import (
	"context"
	"sync"
	"time"

	"inferproxy/internal/backend"
	"inferproxy/pkg/types"
)

// healthSnapshot is the process-wide read-mostly view of the last probe.
// Readers take it without locking; concurrent probes race harmlessly with
// last-writer-wins semantics.
type healthSnapshot struct {
	local types.BackendHealth
	cloud types.BackendHealth
}

// Health probes both backends concurrently and publishes the result. The
// aggregate is healthy when at least one backend is reachable. Probes are
// always live; the stored snapshot only feeds Ready.
func (g *Gateway) Health(ctx context.Context) types.HealthResponse {
	var snap healthSnapshot
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap.local = probeOne(ctx, g.local)
	}()
	go func() {
		defer wg.Done()
		snap.cloud = probeOne(ctx, g.cloud)
	}()
	wg.Wait()
	g.health.Store(&snap)

	status := "unhealthy"
	if snap.local.Reachable || snap.cloud.Reachable {
		status = "healthy"
	}
	return types.HealthResponse{
		Status:        status,
		Version:       g.version,
		UptimeSeconds: int64(time.Since(g.startTime).Seconds()),
		Local:         snap.local,
		Cloud:         snap.cloud,
	}
}

func probeOne(ctx context.Context, c backend.Client) types.BackendHealth {
	latency, err := c.HealthCheck(ctx)
	h := types.BackendHealth{CheckedAtUnix: time.Now().Unix()}
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Reachable = true
	h.LatencyMS = latency.Milliseconds()
	return h
}

// Ready reports whether the last probe saw at least one reachable
// backend. Before the first probe completes the gateway is not ready.
func (g *Gateway) Ready() bool {
	s := g.health.Load()
	return s != nil && (s.local.Reachable || s.cloud.Reachable)
}
