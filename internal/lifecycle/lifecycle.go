package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown flips the drain flag. main sets it on SIGTERM/SIGINT; GET /health then
// answers 503 "shutting-down" so the load balancer stops routing searches here.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
