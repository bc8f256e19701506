package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskCreations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi",
		Subsystem: "tasks",
		Name:      "created_total",
		Help:      "Tasks created, broken down by assignment rule and initial approval state.",
	}, []string{"rule", "approved"})

	taskAssignmentRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi",
		Subsystem: "tasks",
		Name:      "assignment_rejections_total",
		Help:      "Task assignments rejected by the authorizer, by rule.",
	}, []string{"rule"})

	approvalActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi",
		Subsystem: "tasks",
		Name:      "approval_actions_total",
		Help:      "Approval token actions, by action and result.",
	}, []string{"action", "result"})

	evaluationSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi",
		Subsystem: "evaluations",
		Name:      "submissions_total",
		Help:      "Evaluation submissions, by type and result.",
	}, []string{"type", "result"})

	evaluationUpdateRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kpi",
		Subsystem: "evaluations",
		Name:      "update_retries_total",
		Help:      "Score updates retried after losing a version race.",
	})

	notificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi",
		Subsystem: "notifications",
		Name:      "deliveries_total",
		Help:      "Notification deliveries, by template and result.",
	}, []string{"template", "result"})
)

func recordTaskCreated(rule string, approved bool) {
	state := "false"
	if approved {
		state = "true"
	}
	taskCreations.WithLabelValues(rule, state).Inc()
}

func recordAssignmentRejected(rule string) {
	taskAssignmentRejections.WithLabelValues(rule).Inc()
}

func recordApprovalAction(action ApprovalAction, result string) {
	approvalActions.WithLabelValues(string(action), result).Inc()
}

func recordEvaluationSubmission(evalType string, result string) {
	evaluationSubmissions.WithLabelValues(evalType, result).Inc()
}

func recordNotification(template NotificationTemplate, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationDeliveries.WithLabelValues(string(template), result).Inc()
}
