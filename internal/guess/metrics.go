package guess

import (
	metrics "github.com/rcrowley/go-metrics"
)

// Metrics records operation outcomes and escrow movements.
type Metrics struct {
	registry metrics.Registry

	escrowIn  metrics.Counter
	escrowOut metrics.Counter
	claims    metrics.Meter
	escrow    metrics.Gauge
}

func NewMetrics(r metrics.Registry) *Metrics {
	if r == nil {
		r = metrics.NewRegistry()
	}
	return &Metrics{
		registry:  r,
		escrowIn:  metrics.GetOrRegisterCounter("guess.escrow.in", r),
		escrowOut: metrics.GetOrRegisterCounter("guess.escrow.out", r),
		claims:    metrics.GetOrRegisterMeter("guess.claims.paid", r),
		escrow:    metrics.GetOrRegisterGauge("guess.escrow.held", r),
	}
}

func (m *Metrics) Registry() metrics.Registry {
	return m.registry
}

func (m *Metrics) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	metrics.GetOrRegisterCounter("guess."+op+"."+outcome, m.registry).Inc(1)
}

func (m *Metrics) deposit(amount int64) {
	m.escrowIn.Inc(amount)
	m.escrow.Update(m.escrowIn.Count() - m.escrowOut.Count())
}

func (m *Metrics) payout(amount int64) {
	m.escrowOut.Inc(amount)
	m.claims.Mark(amount)
	m.escrow.Update(m.escrowIn.Count() - m.escrowOut.Count())
}
