package workflow

// ActivityType classifies the audit activities recorded as an application
// moves through its workflow.
type ActivityType string

const (
	ActivityCreation     ActivityType = "creation"
	ActivityStageStarted ActivityType = "stage_started"
	ActivityStageEnded   ActivityType = "stage_ended"
	ActivityLevelStarted ActivityType = "level_started"
	ActivityLevelEnded   ActivityType = "level_ended"
	ActivitySubmitted    ActivityType = "submitted"
	ActivityApproved     ActivityType = "approved"
	ActivityRejected     ActivityType = "rejected"
	ActivityWithdrawn    ActivityType = "withdrawn"
	ActivityCompleted    ActivityType = "completed"
)

// ActivityRecorder collects activities emitted by state managers during a
// transition. Implementations decide how and when they are persisted.
type ActivityRecorder interface {
	Record(activity ActivityType, stageID, approvalLevelID int64)
}

// ActivityLog is an ActivityRecorder that accumulates entries in memory so a
// caller can persist them together with the state change.
type ActivityLog struct {
	Entries []ActivityEntry
}

// ActivityEntry is one recorded activity.
type ActivityEntry struct {
	Activity        ActivityType
	StageID         int64
	ApprovalLevelID int64
}

// Record appends an entry to the log.
func (l *ActivityLog) Record(activity ActivityType, stageID, approvalLevelID int64) {
	l.Entries = append(l.Entries, ActivityEntry{Activity: activity, StageID: stageID, ApprovalLevelID: approvalLevelID})
}
