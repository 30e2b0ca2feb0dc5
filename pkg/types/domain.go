package types

import "fmt"

// Backend identifies which upstream serves a request or catalog entry.
type Backend string

const (
	// BackendLocal is the on-host inference engine (no auth, finite catalog).
	BackendLocal Backend = "local"
	// BackendCloud is the remote model aggregator (bearer auth, metered).
	BackendCloud Backend = "cloud"
	// BackendAuto lets the selector infer the target from the model catalog.
	BackendAuto Backend = "auto"
)

// ParseBackend validates a backend hint from a query parameter or config.
// The empty string maps to BackendAuto.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendLocal, BackendCloud, BackendAuto:
		return Backend(s), nil
	case "":
		return BackendAuto, nil
	default:
		return "", fmt.Errorf("invalid backend %q (want local, cloud, or auto)", s)
	}
}

// Other returns the alternate concrete backend. Only meaningful for
// BackendLocal and BackendCloud.
func (b Backend) Other() Backend {
	if b == BackendLocal {
		return BackendCloud
	}
	return BackendLocal
}
