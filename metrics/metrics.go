package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_wizard_transitions_total",
			Help: "Wizard transitions by kind, step and result",
		},
		[]string{"transition", "step", "result"},
	)

	ProvisioningOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_provisioning_outcomes_total",
			Help: "Payment account provisioning outcomes",
		},
		[]string{"outcome"},
	)

	AvailabilityOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "availability_operations_total",
			Help: "Availability slot operations by kind and result",
		},
		[]string{"operation", "result"},
	)

	BookingStages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_stages_total",
			Help: "Booking flow stages reached, by result",
		},
		[]string{"stage", "result"},
	)

	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "In-memory wizard and booking sessions",
		},
		[]string{"kind"},
	)
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
