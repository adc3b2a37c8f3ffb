package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Stock mutation kinds.
const (
	StockReserve = "reserve"
	StockRelease = "release"
)

// EngineMetrics counts order transitions and stock ledger mutations.
type EngineMetrics struct {
	transitions *prometheus.CounterVec
	stock       *prometheus.CounterVec
	stockUnits  *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordercore_order_transitions_total",
		Help: "Order transitions attempted, by action and result status.",
	}, []string{"action", "result"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordercore_stock_mutations_total",
		Help: "Committed-or-attempted stock ledger mutations, by kind.",
	}, []string{"kind"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordercore_stock_units_total",
		Help: "Inventory units moved by the stock ledger, by kind.",
	}, []string{"kind"})
	reg.MustRegister(transitions, stock, units)
	return &EngineMetrics{
		transitions: transitions,
		stock:       stock,
		stockUnits:  units,
	}
}

// ObserveTransition records one transition outcome.
func (m *EngineMetrics) ObserveTransition(action, result string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action), normalizeLabel(result)).Inc()
}

// ObserveStock records a stock mutation moving units.
func (m *EngineMetrics) ObserveStock(kind string, units int) {
	if m == nil || m.stock == nil {
		return
	}
	m.stock.WithLabelValues(normalizeLabel(kind)).Inc()
	if units > 0 {
		m.stockUnits.WithLabelValues(normalizeLabel(kind)).Add(float64(units))
	}
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
