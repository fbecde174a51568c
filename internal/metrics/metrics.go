// Package metrics exposes correlator reports as Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gps-correlator/internal/channel"
	"gps-correlator/internal/engine"
)

const namespace = "gps_correlator"

type Collector struct {
	reg *prometheus.Registry

	accums     *prometheus.GaugeVec
	reports    prometheus.Counter
	dumps      prometheus.Gauge
	epoch      prometheus.Gauge
	carrierFCW prometheus.Gauge
	codeFCW    prometheus.Gauge
	power      prometheus.Gauge
}

// New registers the correlator collectors on a fresh registry. runID is
// attached as a constant label when non-empty.
func New(runID string) *Collector {
	var labels prometheus.Labels
	if runID != "" {
		labels = prometheus.Labels{"run_id": runID}
	}
	c := &Collector{
		reg: prometheus.NewRegistry(),
		accums: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "accumulator",
			Help:        "Latched integrate-and-dump value per integrator.",
			ConstLabels: labels,
		}, []string{"integrator"}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reports_total",
			Help:        "Status reports published.",
			ConstLabels: labels,
		}),
		dumps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "dumps",
			Help:        "Dump pulses seen since start.",
			ConstLabels: labels,
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "epoch",
			Help:        "Packed epoch counter at the last dump.",
			ConstLabels: labels,
		}),
		carrierFCW: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "carrier_fcw",
			Help:        "Carrier NCO frequency control word.",
			ConstLabels: labels,
		}),
		codeFCW: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "code_fcw",
			Help:        "Code NCO frequency control word.",
			ConstLabels: labels,
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "prompt_power",
			Help:        "IP^2 + QP^2 at the last dump.",
			ConstLabels: labels,
		}),
	}
	c.reg.MustRegister(c.accums, c.reports, c.dumps, c.epoch, c.carrierFCW, c.codeFCW, c.power)
	return c
}

// Registry lets callers add collectors of their own.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Publish updates the gauges. The accumulators only move on new data.
func (c *Collector) Publish(r engine.Report) error {
	c.reports.Inc()
	c.dumps.Set(float64(r.Dumps))
	c.carrierFCW.Set(float64(r.CarrierFCW))
	c.codeFCW.Set(float64(r.CodeFCW))
	if !r.NewData {
		return nil
	}
	for i := channel.Integrator(0); i < channel.NumIntegrators; i++ {
		c.accums.WithLabelValues(i.String()).Set(float64(r.Get(i)))
	}
	ip := float64(r.Get(channel.IP))
	qp := float64(r.Get(channel.QP))
	c.power.Set(ip*ip + qp*qp)
	c.epoch.Set(float64(r.Epoch))
	return nil
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
