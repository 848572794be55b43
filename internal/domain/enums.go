package domain

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether no internal transition leaves this status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

type TaskType string

const (
	TaskCAPAction     TaskType = "cap_action"
	TaskAuditPrep     TaskType = "audit_prep"
	TaskPermitRenewal TaskType = "permit_renewal"
	TaskTraining      TaskType = "training"
	TaskMaintenance   TaskType = "maintenance"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities from low (1) to critical (4). Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

type RecurrencePattern string

const (
	RecurDaily   RecurrencePattern = "daily"
	RecurWeekly  RecurrencePattern = "weekly"
	RecurMonthly RecurrencePattern = "monthly"
	RecurYearly  RecurrencePattern = "yearly"
)

type ValidityPeriod string

const (
	Validity6Months ValidityPeriod = "6_months"
	Validity1Year   ValidityPeriod = "1_year"
	Validity2Years  ValidityPeriod = "2_years"
	Validity3Years  ValidityPeriod = "3_years"
	ValidityNever   ValidityPeriod = "never"
)

type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "active"
	CertificateRevoked CertificateStatus = "revoked"
	CertificateExpired CertificateStatus = "expired"
)

// AllDepartments is the matrix wildcard that applies an entry to every department.
const AllDepartments = "all"

// ValidTaskStatuses is the canonical set of accepted task status strings.
var ValidTaskStatuses = map[string]bool{
	"pending": true, "in_progress": true, "blocked": true,
	"completed": true, "cancelled": true,
}

// ValidTaskTypes is the canonical set of accepted task type strings.
var ValidTaskTypes = map[string]bool{
	"cap_action": true, "audit_prep": true, "permit_renewal": true,
	"training": true, "maintenance": true,
}

var ValidPriorities = map[string]bool{
	"low": true, "medium": true, "high": true, "critical": true,
}

var ValidRecurrencePatterns = map[string]bool{
	"daily": true, "weekly": true, "monthly": true, "yearly": true,
}

var ValidValidityPeriods = map[string]bool{
	"6_months": true, "1_year": true, "2_years": true, "3_years": true, "never": true,
}
