/*
Package persist implements the persistence session manager: the lifecycle
owner and composition point for the light session backend and the durable
session factory.

Bot state splits into two classes. Short-lived conversational state (flow
position, transient flags) must be cheap and low-latency; durable business
records must survive restarts and support transactional queries. One storage
engine serves both badly, so the manager routes each class to its own
backend behind a uniform entry point:

	light, _ := mgr.Light()                    // get/set/delete, TTL
	_ = mgr.Durable(ctx, func(ctx, sess) ... ) // scoped transaction

Lifecycle is init → serving → closed. Data operations before Initialize fail
with domain.ErrNotInitialized; operations after Close fail with
domain.ErrBackendClosed; a second Close is a no-op. The manager propagates
backend errors unchanged and never retries; retry policy is domain-specific
to the calling flow.
*/
package persist
