package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ValidationsRun      prometheus.Counter
	ValidatorFailures   *prometheus.CounterVec
	StatusesCreated     *prometheus.CounterVec
	StatusesTransitions *prometheus.CounterVec
	StatusesDeleted     prometheus.Counter
	RulesExecuted       prometheus.Counter
	PluginErrors        prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ValidationsRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edc_validations_run_total",
			Help: "Total number of field validations executed",
		}),
		ValidatorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edc_validator_failures_total",
			Help: "Total number of validator failures by validator id",
		}, []string{"validator"}),
		StatusesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edc_workflow_statuses_created_total",
			Help: "Total number of workflow statuses created by workflow id",
		}, []string{"workflow"}),
		StatusesTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edc_workflow_status_transitions_total",
			Help: "Total number of workflow status state transitions by workflow id",
		}, []string{"workflow"}),
		StatusesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edc_workflow_statuses_deleted_total",
			Help: "Total number of workflow statuses soft-deleted",
		}),
		RulesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edc_rules_executed_total",
			Help: "Total number of rules executed",
		}),
		PluginErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edc_plugin_errors_total",
			Help: "Total number of script validator plugin errors",
		}),
	}
}

// NewForTest builds metrics against a throwaway registry so parallel tests do
// not collide on the default registerer.
func NewForTest() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		ValidationsRun: factory.NewCounter(prometheus.CounterOpts{
			Name: "edc_validations_run_total",
		}),
		ValidatorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edc_validator_failures_total",
		}, []string{"validator"}),
		StatusesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edc_workflow_statuses_created_total",
		}, []string{"workflow"}),
		StatusesTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edc_workflow_status_transitions_total",
		}, []string{"workflow"}),
		StatusesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "edc_workflow_statuses_deleted_total",
		}),
		RulesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "edc_rules_executed_total",
		}),
		PluginErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "edc_plugin_errors_total",
		}),
	}
}
