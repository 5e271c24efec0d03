package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/fixkme/robustimer/mlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsModule 暴露/metrics
type MetricsModule struct {
	addr   string
	reg    *prometheus.Registry
	ln     net.Listener
	server *http.Server
	name   string
}

func NewMetricsModule(name, addr string, reg *prometheus.Registry) *MetricsModule {
	return &MetricsModule{addr: addr, reg: reg, name: name}
}

func (s *MetricsModule) OnInit() error {
	s.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{Registry: s.reg}))
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	mlog.Infof("metrics listen on %s", ln.Addr())
	return nil
}

// Addr OnInit之后有效
func (s *MetricsModule) Addr() string {
	return s.ln.Addr().String()
}

func (s *MetricsModule) Run() {
	if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		mlog.Errorf("metrics server exit: %v", err)
	}
}

func (s *MetricsModule) Destroy() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}

func (s *MetricsModule) Name() string {
	return s.name
}
