package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferproxy/internal/backend"
	"inferproxy/pkg/types"
)

// catalogSnapshot is the selector's view of which ids live where. Local
// ids are stored under both base name and full tag so either form matches.
type catalogSnapshot struct {
	localIDs map[string]bool
	cloudIDs map[string]bool
	takenAt  time.Time
}

func (s *catalogSnapshot) lookup(model string) (inLocal, inCloud bool) {
	inLocal = s.localIDs[model] || s.localIDs[backend.BaseModelName(model)]
	inCloud = s.cloudIDs[model]
	return inLocal, inCloud
}

// catalog fetches and merges the two backends' model lists. The /models
// endpoint always fetches live; the selector goes through snapshot, which
// reuses the last result for up to ttl.
type catalog struct {
	local backend.Client
	cloud backend.Client
	ttl   time.Duration
	log   zerolog.Logger

	mu   sync.RWMutex
	snap *catalogSnapshot
}

// snapshot returns a selector view no older than ttl, refreshing
// synchronously when stale. Concurrent refreshes race harmlessly; the
// last writer wins.
func (c *catalog) snapshot(ctx context.Context) *catalogSnapshot {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil && time.Since(snap.takenAt) < c.ttl {
		return snap
	}
	local, _, cloud, _ := c.fetchBoth(ctx)
	fresh := buildSnapshot(local, cloud)
	c.mu.Lock()
	c.snap = fresh
	c.mu.Unlock()
	return fresh
}

// fetchBoth lists both catalogs concurrently. A failed side comes back
// nil with its error; the caller decides whether partial results suffice.
func (c *catalog) fetchBoth(ctx context.Context) (local []types.ModelInfo, localErr error, cloud []types.ModelInfo, cloudErr error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		local, localErr = c.fetchOne(ctx, c.local)
	}()
	go func() {
		defer wg.Done()
		cloud, cloudErr = c.fetchOne(ctx, c.cloud)
	}()
	wg.Wait()
	return local, localErr, cloud, cloudErr
}

func (c *catalog) fetchOne(ctx context.Context, cl backend.Client) ([]types.ModelInfo, error) {
	models, err := cl.ListModels(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("backend", string(cl.Name())).Msg("catalog fetch failed")
		return nil, err
	}
	if cl.Name() == types.BackendLocal {
		localModelsAvailable.Set(float64(len(models)))
	}
	return models, nil
}

// merge builds the /models response. A backend that fails is omitted
// rather than failing the whole call, so one side being down never hides
// the other side's models.
func (c *catalog) merge(ctx context.Context, filter types.Backend) types.ModelList {
	var local, cloud []types.ModelInfo
	switch filter {
	case types.BackendLocal:
		local, _ = c.fetchOne(ctx, c.local)
	case types.BackendCloud:
		cloud, _ = c.fetchOne(ctx, c.cloud)
	default:
		var localErr, cloudErr error
		local, localErr, cloud, cloudErr = c.fetchBoth(ctx)
		// A full merge is also a fresh selector view.
		if localErr == nil || cloudErr == nil {
			fresh := buildSnapshot(local, cloud)
			c.mu.Lock()
			c.snap = fresh
			c.mu.Unlock()
		}
	}
	data := make([]types.ModelInfo, 0, len(local)+len(cloud))
	data = append(data, local...)
	data = append(data, cloud...)
	return types.ModelList{Object: "list", Data: data}
}

func buildSnapshot(local, cloud []types.ModelInfo) *catalogSnapshot {
	s := &catalogSnapshot{
		localIDs: make(map[string]bool, 2*len(local)),
		cloudIDs: make(map[string]bool, len(cloud)),
		takenAt:  time.Now(),
	}
	for _, m := range local {
		s.localIDs[m.ID] = true
		if m.Name != "" {
			s.localIDs[m.Name] = true
		}
	}
	for _, m := range cloud {
		s.cloudIDs[m.ID] = true
	}
	return s
}

// ListModels merges the two catalogs live. Partial results are returned
// when one backend fails; both failing yields an empty list, not an error.
func (g *Gateway) ListModels(ctx context.Context, filter types.Backend) types.ModelList {
	return g.catalog.merge(ctx, filter)
}
