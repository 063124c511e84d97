package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/qosctl/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds producer metrics on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	frames   *prometheus.CounterVec
	bytes    prometheus.Counter
	sequence prometheus.Gauge
	records  prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "qosctl",
				Subsystem: "publisher",
				Name:      "frames_total",
				Help:      "Control frames handed to the publisher, by outcome.",
			},
			[]string{"result"},
		),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qosctl",
			Subsystem: "publisher",
			Name:      "bytes_total",
			Help:      "Bytes of control frames written to the socket.",
		}),
		sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qosctl",
			Subsystem: "sequencer",
			Name:      "next",
			Help:      "Sequence number the next batch will carry.",
		}),
		records: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qosctl",
			Subsystem: "encode",
			Name:      "records",
			Help:      "Update records per encoded batch.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
	}
	m.registry.MustRegister(m.frames, m.bytes, m.sequence, m.records)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFrame records one publisher outcome. Bytes count only sent frames.
func (m *Metrics) ObserveFrame(result string, n int) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(result).Inc()
	if result == transport.ResultSent {
		m.bytes.Add(float64(n))
	}
}

// ObserveBatch records a batch built with sequence seq.
func (m *Metrics) ObserveBatch(seq uint64, records int) {
	if m == nil {
		return
	}
	m.sequence.Set(float64(seq + 1))
	m.records.Observe(float64(records))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics listener on addr until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, m)
}

func serve(ctx context.Context, ln net.Listener, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Info().Str("addr", ln.Addr().String()).Msg("metrics listener started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
