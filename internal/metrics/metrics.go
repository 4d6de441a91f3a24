package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_transitions_total",
		Help: "Attendance transitions by action and outcome.",
	}, []string{"action", "result"})

	reportRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_report_requests_total",
		Help: "Attendance report generations by output format.",
	}, []string{"format"})
)

// TransitionAccepted counts an applied transition.
func TransitionAccepted(action string) {
	transitions.WithLabelValues(action, "accepted").Inc()
}

// TransitionRejected counts a transition refused by the state machine.
func TransitionRejected(action string) {
	transitions.WithLabelValues(action, "rejected").Inc()
}

// ReportGenerated counts a derived report by format ("csv", "pdf", "json").
func ReportGenerated(format string) {
	reportRequests.WithLabelValues(format).Inc()
}
