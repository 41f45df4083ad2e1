// Package metricsvc exposes ledger events as Prometheus metrics.
package metricsvc

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/mahudhurio/core/ledger"
)

const namespace = "mahudhurio"

type LedgerMetrics struct {
	hoursAccrued      prometheus.Counter
	hoursReleased     prometheus.Counter
	capRejections     *prometheus.CounterVec
	attendanceToggles *prometheus.CounterVec
	batchSubmissions  prometheus.Counter
	batchClasses      prometheus.Histogram
	reconciliations   prometheus.Counter
	reconciledDrift   prometheus.Histogram
}

var _ ledger.Metrics = (*LedgerMetrics)(nil)

// NewLedgerMetrics creates the ledger collectors and registers them on reg.
func NewLedgerMetrics(reg prometheus.Registerer) (*LedgerMetrics, error) {
	m := &LedgerMetrics{
		hoursAccrued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "hours_accrued_total",
			Help: "Hours added to daily entries.",
		}),
		hoursReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "hours_released_total",
			Help: "Hours removed from daily entries by unmarked attendance.",
		}),
		capRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "cap_rejections_total",
			Help: "Writes rejected by the daily cap, by operation.",
		}, []string{"operation"}),
		attendanceToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "attendance_toggles_total",
			Help: "Attended flag changes of single classes.",
		}, []string{"attended"}),
		batchSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "attendance_batches_total",
			Help: "Bulk attendance submissions committed.",
		}),
		batchClasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "attendance_batch_classes",
			Help:    "Classes per bulk attendance submission.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 10},
		}),
		reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "reconciliations_total",
			Help: "Cached monthly totals repaired.",
		}),
		reconciledDrift: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "reconciled_drift_hours",
			Help:    "Absolute difference between the cached and the aggregated monthly totals when repaired.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.hoursAccrued, m.hoursReleased, m.capRejections, m.attendanceToggles,
		m.batchSubmissions, m.batchClasses, m.reconciliations, m.reconciledDrift,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *LedgerMetrics) HoursAccrued(hours int)  { m.hoursAccrued.Add(float64(hours)) }
func (m *LedgerMetrics) HoursReleased(hours int) { m.hoursReleased.Add(float64(hours)) }

func (m *LedgerMetrics) CapRejected(operation string) {
	m.capRejections.WithLabelValues(operation).Inc()
}

func (m *LedgerMetrics) AttendanceToggled(attended bool) {
	m.attendanceToggles.WithLabelValues(strconv.FormatBool(attended)).Inc()
}

func (m *LedgerMetrics) BatchSubmitted(classes int) {
	m.batchSubmissions.Inc()
	m.batchClasses.Observe(float64(classes))
}

func (m *LedgerMetrics) Reconciled(drift int) {
	if drift < 0 {
		drift = -drift
	}
	m.reconciliations.Inc()
	m.reconciledDrift.Observe(float64(drift))
}
