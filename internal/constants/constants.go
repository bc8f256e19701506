package constants

import "time"

// Session and context keys
const (
	SessionCookieName   = "kpi_session"
	ContextKeyUserID    = "user_id"
	ContextKeyUser      = "current_user"
	ContextKeyTask      = "task"
	ContextKeyRequestID = "request_id"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Authentication
const (
	MinPasswordLength = 8
)

// Hierarchy traversal guards
const (
	MaxSuperiorHops    = 10
	MaxKPISuperiorHops = 5
)

// Evaluations
const (
	MinEvaluationScore = 0
	MaxEvaluationScore = 100

	// MaxScoreUpdateAttempts bounds optimistic retries when two editors race on one record.
	MaxScoreUpdateAttempts = 3
)

// StandardAggregationWindows are the month windows exposed by the summary endpoint.
var StandardAggregationWindows = []int{3, 6, 9, 12}

// Approval tokens
const (
	DefaultApprovalTokenTTL = 7 * 24 * time.Hour
	ApprovalTokenIssuer     = "kpi-management-api"
)
