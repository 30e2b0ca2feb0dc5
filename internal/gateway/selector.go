package gateway

import (
	"context"

	"inferproxy/pkg/types"
)

// decision is the resolved routing for one request: a single concrete
// target plus whether one fallback to the alternate backend is permitted.
// Resolved once per request, never re-evaluated mid-flight.
type decision struct {
	target   types.Backend
	fallback bool
	method   string // "manual" or "auto"
	reason   string
}

// selectBackend applies the selection policy. An explicit hint is always
// honored with no fallback. In auto mode the merged catalog decides:
// local-only and cloud-only ids go straight to their backend, an id
// present in both goes local with cloud as the safety net, and an unknown
// id is treated as a cloud-qualified model string since the cloud catalog
// is effectively open-ended.
func (g *Gateway) selectBackend(ctx context.Context, req ChatRequest) decision {
	var d decision
	switch req.Hint {
	case types.BackendLocal, types.BackendCloud:
		d = decision{target: req.Hint, method: "manual", reason: "explicit hint"}
	default:
		snap := g.catalog.snapshot(ctx)
		inLocal, inCloud := snap.lookup(req.Model)
		switch {
		case inLocal && inCloud:
			d = decision{target: types.BackendLocal, fallback: true, method: "auto", reason: "model in both catalogs, local preferred"}
		case inLocal:
			d = decision{target: types.BackendLocal, method: "auto", reason: "model only in local catalog"}
		case inCloud:
			d = decision{target: types.BackendCloud, method: "auto", reason: "model only in cloud catalog"}
		default:
			d = decision{target: types.BackendCloud, method: "auto", reason: "unknown model, deferring to cloud"}
		}
	}
	selectionTotal.WithLabelValues(string(d.target), d.method).Inc()
	return d
}
