package mongo

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/event"
)

var (
	connDesc = prometheus.NewDesc("robustimer_mongo_connections",
		"Open connections in the mongo driver pool.", nil, nil)
	checkoutFailDesc = prometheus.NewDesc("robustimer_mongo_checkout_failures_total",
		"Connection checkouts that failed.", nil, nil)
)

// PoolMonitor 统计连接池事件, 同时作为prometheus collector
type PoolMonitor struct {
	activeConnections atomic.Int32 // 当前活跃连接数
	checkoutFailed    atomic.Int64
}

func (p *PoolMonitor) Event(evt *event.PoolEvent) {
	switch evt.Type {
	case event.ConnectionCreated:
		p.activeConnections.Add(1)
	case event.ConnectionClosed:
		p.activeConnections.Add(-1)
	case event.GetFailed:
		p.checkoutFailed.Add(1)
	}
}

// PoolMonitor 给options.Client().SetPoolMonitor用
func (p *PoolMonitor) PoolMonitor() *event.PoolMonitor {
	return &event.PoolMonitor{Event: p.Event}
}

func (p *PoolMonitor) GetActiveConnections() int {
	return int(p.activeConnections.Load())
}

func (p *PoolMonitor) Describe(ch chan<- *prometheus.Desc) {
	ch <- connDesc
	ch <- checkoutFailDesc
}

func (p *PoolMonitor) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(connDesc, prometheus.GaugeValue, float64(p.activeConnections.Load()))
	ch <- prometheus.MustNewConstMetric(checkoutFailDesc, prometheus.CounterValue, float64(p.checkoutFailed.Load()))
}
