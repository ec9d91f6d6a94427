package health

import "sync/atomic"

// ready gates the readiness probe during startup and graceful shutdown.
// It starts true so single-binary deployments without an explicit warmup
// phase report ready as soon as the router is up.
var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the readiness gate. Call with false before draining
// connections so load balancers stop routing new transactions.
func SetReady(v bool) {
	ready.Store(v)
}

// Ready reports the current state of the readiness gate.
func Ready() bool {
	return ready.Load()
}
