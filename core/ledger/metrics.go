package ledger

// Metrics receives ledger events.
type Metrics interface {
	HoursAccrued(hours int)
	HoursReleased(hours int)
	CapRejected(operation string)
	AttendanceToggled(attended bool)
	BatchSubmitted(classes int)
	Reconciled(drift int)
}

type nopMetrics struct{}

func (nopMetrics) HoursAccrued(int)       {}
func (nopMetrics) HoursReleased(int)      {}
func (nopMetrics) CapRejected(string)     {}
func (nopMetrics) AttendanceToggled(bool) {}
func (nopMetrics) BatchSubmitted(int)     {}
func (nopMetrics) Reconciled(int)         {}
