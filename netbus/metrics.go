package netbus

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vinayprograms/netbus/errors"
)

// Send kinds used in metric labels and spans.
const (
	KindText   = "text"
	KindBytes  = "bytes"
	KindString = "string"
)

// ResultOK labels a successful send. Failures are labelled with their error code.
const ResultOK = "ok"

// Metrics holds the bus collectors.
type Metrics struct {
	SendsTotal         *prometheus.CounterVec
	HandlersRegistered prometheus.Gauge
	InitFailuresTotal  prometheus.Counter
}

// NewMetrics creates the bus collectors and registers them on reg.
// A nil reg gets a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		SendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netbus",
				Name:      "sends_total",
				Help:      "Total number of outbound sends by kind and result",
			},
			[]string{"kind", "result"},
		),

		HandlersRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "netbus",
				Name:      "handlers_registered",
				Help:      "Number of commands with a registered handler",
			},
		),

		InitFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "netbus",
				Name:      "init_failures_total",
				Help:      "Total number of failed transport constructions",
			},
		),
	}

	m.SendsTotal = registerOrExisting(reg, m.SendsTotal)
	m.HandlersRegistered = registerOrExisting(reg, m.HandlersRegistered)
	m.InitFailuresTotal = registerOrExisting(reg, m.InitFailuresTotal)
	return m
}

// registerOrExisting registers c, or returns the collector already
// registered under the same descriptor so several buses can share reg.
func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if stderrors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observeSend(kind string, err error) {
	result := ResultOK
	if err != nil {
		result = string(errors.CodeOf(err))
	}
	m.SendsTotal.WithLabelValues(kind, result).Inc()
}
