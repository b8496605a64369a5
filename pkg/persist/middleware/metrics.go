package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quailbot/quail/pkg/ports"
)

// Metrics holds the Prometheus collectors for light-store operations.
type Metrics struct {
	ops      *prometheus.CounterVec
	errs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the light-store collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quail_light_store_ops_total",
				Help: "Total light-store operations by kind.",
			},
			[]string{"op"},
		),
		errs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quail_light_store_errors_total",
				Help: "Light-store operations that returned an error.",
			},
			[]string{"op"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quail_light_store_op_duration_seconds",
				Help:    "Latency of light-store operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.ops, m.errs, m.duration)
	return m
}

type metricsMiddleware struct {
	next ports.LightStore
	m    *Metrics
}

// NewInstrumentation creates a middleware that records operation counts,
// errors, and latency for every light-store call.
func NewInstrumentation(m *Metrics) Middleware {
	return func(next ports.LightStore) ports.LightStore {
		return &metricsMiddleware{next: next, m: m}
	}
}

func (mw *metricsMiddleware) observe(op string, start time.Time, err error) {
	mw.m.ops.WithLabelValues(op).Inc()
	mw.m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		mw.m.errs.WithLabelValues(op).Inc()
	}
}

func (mw *metricsMiddleware) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	start := time.Now()
	defer func() { mw.observe("get", start, err) }()
	val, ok, err = mw.next.Get(ctx, key)
	return val, ok, err
}

func (mw *metricsMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	start := time.Now()
	defer func() { mw.observe("set", start, err) }()
	err = mw.next.Set(ctx, key, value, ttl)
	return err
}

func (mw *metricsMiddleware) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { mw.observe("delete", start, err) }()
	err = mw.next.Delete(ctx, key)
	return err
}

func (mw *metricsMiddleware) Close() error {
	return mw.next.Close()
}

func (mw *metricsMiddleware) Ping(ctx context.Context) error {
	if pinger, ok := mw.next.(ports.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
