// Package health provides composable probes and the liveness and readiness
// handlers served on both listeners.
//
// [ShutdownGate] fails readiness as soon as shutdown starts so the load
// balancer stops routing new requests while in-flight ones drain.
package health
