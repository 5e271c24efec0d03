package timer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "robustimer"

type metrics struct {
	fired      *prometheus.CounterVec
	lateness   prometheus.Histogram
	timers     prometheus.Gauge
	active     prometheus.Gauge
	adapterOps *prometheus.CounterVec
	schedErrs  prometheus.Counter
}

// newMetrics reg为nil时指标照常计数, 只是不对外暴露
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fired_total",
			Help:      "Timer firings by handler result.",
		}, []string{"result"}),
		lateness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fire_lateness_seconds",
			Help:      "Delay between the scheduled wake-up and the actual one.",
			Buckets:   []float64{.001, .002, .005, .01, .025, .05, .1, .25, 1},
		}),
		timers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timers",
			Help:      "Registered timers.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_timers",
			Help:      "Registered timers with active set.",
		}),
		adapterOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_ops_total",
			Help:      "Save and restore calls by result.",
		}, []string{"op", "result"}),
		schedErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_errors_total",
			Help:      "Wake-ups the clock source refused to schedule.",
		}),
	}
	if reg != nil {
		m.fired = register(reg, m.fired)
		m.lateness = register(reg, m.lateness)
		m.timers = register(reg, m.timers)
		m.active = register(reg, m.active)
		m.adapterOps = register(reg, m.adapterOps)
		m.schedErrs = register(reg, m.schedErrs)
	}
	return m
}

// register 重复注册时复用已有的collector
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) observeFire(err error) {
	if err != nil {
		m.fired.WithLabelValues("error").Inc()
	} else {
		m.fired.WithLabelValues("ok").Inc()
	}
}

func (m *metrics) observeAdapter(op string, err error) {
	if err != nil {
		m.adapterOps.WithLabelValues(op, "error").Inc()
	} else {
		m.adapterOps.WithLabelValues(op, "ok").Inc()
	}
}
