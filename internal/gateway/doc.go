// Package gateway holds the routing core of the proxy: backend selection,
// catalog merging, chat dispatch with single fallback, and health probing.
// It is structured into small files by concern:
//
//   - gateway.go: core Gateway type, Config, constructor, Info.
//   - request.go: inbound chat envelope parsing and hint extraction.
//   - selector.go: backend selection policy (hint vs catalog lookup).
//   - catalog.go: merged model catalog with a TTL-cached selector view.
//   - chat.go: dispatch, fallback, and token accounting.
//   - health.go: concurrent probes and the read-mostly health snapshot.
//   - errors.go: gateway-synthesized error types and predicates.
//   - metrics.go: Prometheus collectors for selection and dispatch.
//
// The HTTP layer should treat this package as the policy layer and use
// public methods only (NewWithConfig, ChatCompletion, ListModels, Health,
// Ready, Usage, Info). Internal types are subject to change.
package gateway
