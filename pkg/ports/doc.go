/*
Package ports defines the driven-side contracts of the persistence core: the
light session store, the durable session factory, and the per-key locker.

Adapters under pkg/adapters implement these interfaces; the manager in
pkg/persist composes them. RunLightStoreContract is the shared test suite
every LightStore implementation must pass.
*/
package ports
