// Package metrics exposes prometheus counters for the operator workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Module provides the metrics registry.
var Module = fx.Provide(New)

type Metrics struct {
	statementRows     *prometheus.CounterVec
	reconciliations   *prometheus.CounterVec
	invoicesGenerated prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		statementRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cobranza",
			Name:      "statement_rows_total",
			Help:      "Bank statement rows processed by import outcome.",
		}, []string{"outcome"}),
		reconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cobranza",
			Name:      "reconciliations_total",
			Help:      "Reconciliation commits and reverts.",
		}, []string{"action"}),
		invoicesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "cobranza",
			Name:      "invoices_generated_total",
			Help:      "Invoices created by the recurring charge generator.",
		}),
	}
}

func (m *Metrics) RecordStatementRow(outcome string) {
	if m == nil {
		return
	}
	m.statementRows.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordReconciliation(action string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordInvoiceGenerated() {
	if m == nil {
		return
	}
	m.invoicesGenerated.Inc()
}
