/*
Package middleware provides composable wrappers for the light session store:
AES-GCM encryption of values at rest (with zero-downtime key rotation) and
Prometheus instrumentation of every operation.

Middlewares are applied at composition time, before the store is handed to
the persistence manager; the manager and its callers keep seeing the plain
ports.LightStore contract.
*/
package middleware
