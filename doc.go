/*
Package quail is the persistence core of a conversational bot: a session
manager that routes short-lived conversational state to a fast "light"
backend (in-process memory, or Redis when replicas must share it) and
durable business records to a transactional relational store.

# Concept

Bot state falls into two classes. Flow position and transient flags are
read and written on every incoming event, so they need cheap, low-latency
storage and can tolerate loss on restart (in-memory) or live in Redis when
they must not. Business records need transactions and survival across
restarts. Quail gives the application one composition point, the
persistence session manager, and keeps the storage split behind it.

# Usage

	app, err := quail.Open(ctx, quail.Options{
		RedisURL:    os.Getenv("QUAIL_REDIS_URL"), // empty => in-process
		DatabaseDSN: "file:quail.db",
		SessionTTL:  24 * time.Hour,
	})
	if err != nil {
		log.Fatal(err) // a failed handshake must abort startup
	}
	defer app.Close()

	// Per-event flow state, TTL'd, behind the light backend:
	_ = app.Flow.Update(ctx, userID, "start", func(s *domain.State) error {
		s.Step = "menu"
		return nil
	})

	// Durable unit of work, committed or rolled back on every exit path:
	_ = app.Manager.Durable(ctx, func(ctx context.Context, sess ports.Session) error {
		_, err := sess.ExecContext(ctx, `INSERT INTO orders (...) VALUES (...)`)
		return err
	})

# Architecture

pkg/ports defines the contracts, pkg/adapters the backends (memory, redis,
sqlite), pkg/persist the manager and its middleware, pkg/flow the typed
flow-state surface. The bot framework glue (routing, keyboards, rendering)
is intentionally absent: quail is the storage spine such a bot stands on.
*/
package quail
