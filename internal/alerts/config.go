package alerts

// Config holds the alert rule thresholds.
type Config struct {
	// BlockedTaskThresholdDays is how long a task may stay blocked before it
	// alerts. Two and three times this escalate to high and critical.
	BlockedTaskThresholdDays float64 `json:"blocked_task_threshold"`

	// ApproachingDeadlineDays is the look-ahead window for deadline rules.
	ApproachingDeadlineDays int `json:"approaching_deadline_threshold"`

	// OverdueThresholdDays escalates overdue tasks: high at 1x, critical at 2x.
	OverdueThresholdDays int `json:"overdue_threshold"`

	// ResourceLowThreshold is the percentage below which a resource is
	// considered low. Reported in resource alert metadata.
	ResourceLowThreshold float64 `json:"resource_low_threshold"`

	// HighRiskThreshold is the risk score regarded as high risk.
	HighRiskThreshold float64 `json:"high_risk_threshold"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		BlockedTaskThresholdDays: 2,
		ApproachingDeadlineDays:  7,
		OverdueThresholdDays:     3,
		ResourceLowThreshold:     25,
		HighRiskThreshold:        0.7,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BlockedTaskThresholdDays <= 0 {
		c.BlockedTaskThresholdDays = d.BlockedTaskThresholdDays
	}
	if c.ApproachingDeadlineDays <= 0 {
		c.ApproachingDeadlineDays = d.ApproachingDeadlineDays
	}
	if c.OverdueThresholdDays <= 0 {
		c.OverdueThresholdDays = d.OverdueThresholdDays
	}
	if c.ResourceLowThreshold <= 0 {
		c.ResourceLowThreshold = d.ResourceLowThreshold
	}
	if c.HighRiskThreshold <= 0 {
		c.HighRiskThreshold = d.HighRiskThreshold
	}
	return c
}

// Fixed rule parameters.
const (
	closeDeadlineDays       = 3
	behindScheduleRatio     = 0.8
	atRiskProjectDays       = 14
	atRiskProjectCompletion = 80
	inactivityDays          = 7
	stallWindowDays         = 14
	stallTolerance          = 5
	stallCeiling            = 90
	overloadMinTasks        = 5
	overloadUrgentTasks     = 3
	highWorkloadTasks       = 8
)
