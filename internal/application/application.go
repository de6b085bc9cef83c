// Package application models applications moving through approval
// workflows: the aggregate row, the actions and submissions recorded
// against it, and the progress views derived from them.
package application

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// Application is one request travelling through a workflow. UserID is the
// applicant the request is about; CreatorID is who opened it and OwnerID is
// who currently administers it.
type Application struct {
	ID                int64
	Title             string
	IDNumber          string
	UserID            int64
	ApplicantName     string // denormalized for dashboard filtering and sorting
	CreatorID         int64
	OwnerID           int64
	WorkflowVersionID int64
	AssignmentID      int64
	StageID           int64
	ApprovalLevelID   int64 // 0 outside approvals stages
	IsDraft           bool
	SubmitterID       int64
	SubmittedAt       *time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ActionCode identifies what an actor did to an application.
type ActionCode string

const (
	ActionSubmit                   ActionCode = "SUBMIT"
	ActionApprove                  ActionCode = "APPROVE"
	ActionReject                   ActionCode = "REJECT"
	ActionWithdrawInApprovals      ActionCode = "WITHDRAW_IN_APPROVALS"
	ActionWithdrawBeforeSubmission ActionCode = "WITHDRAW_BEFORE_SUBMISSION"
)

// IsWithdraw reports whether the code is one of the withdraw variants.
func (c ActionCode) IsWithdraw() bool {
	return c == ActionWithdrawInApprovals || c == ActionWithdrawBeforeSubmission
}

// Action records one approve, reject or withdraw against an application.
// Actions belonging to an abandoned pass through the workflow are marked
// superseded when the application is resubmitted.
type Action struct {
	ID              int64
	ApplicationID   int64
	UserID          int64
	Code            ActionCode
	StageID         int64
	ApprovalLevelID int64
	Superseded      bool
	CreatedAt       time.Time
}

// Submission is the form data saved for one stage. A submission starts as a
// draft and is published when the applicant submits the stage; publishing a
// new submission supersedes earlier ones for the same stage.
type Submission struct {
	ID            int64
	ApplicationID int64
	UserID        int64
	StageID       int64
	FormData      string // JSON form document
	Superseded    bool
	SubmittedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPublished reports whether the submission has been submitted.
func (s *Submission) IsPublished() bool {
	return s.SubmittedAt != nil
}

// OverallProgress is the applicant-facing summary of where the application
// stands.
type OverallProgress string

const (
	ProgressDraft      OverallProgress = "DRAFT"
	ProgressInProgress OverallProgress = "IN_PROGRESS"
	ProgressFinished   OverallProgress = "FINISHED"
	ProgressRejected   OverallProgress = "REJECTED"
	ProgressWithdrawn  OverallProgress = "WITHDRAWN"
)

// YourProgress is an approver-facing summary of what a given user still has
// to do with an application.
type YourProgress string

const (
	YourProgressPending  YourProgress = "PENDING"
	YourProgressApproved YourProgress = "APPROVED"
	YourProgressRejected YourProgress = "REJECTED"
	YourProgressNA       YourProgress = "NA"
)

// SourceDeleted is the SourceApplicationID reported when a clone's origin
// application no longer exists.
const SourceDeleted int64 = -1

// ActivityRecord is one audit trail entry for an application.
// SourceApplicationID links a clone's creation entry back to its origin; it
// is zero on entries without a source and SourceDeleted when the origin has
// since been removed.
type ActivityRecord struct {
	ID                  int64
	ApplicationID       int64
	ActorID             int64
	StageID             int64
	ApprovalLevelID     int64
	Activity            workflow.ActivityType
	SourceApplicationID int64
	CreatedAt           time.Time
}

const idNumberSuffixLen = 4

// GenerateIDNumber builds a human-readable application id number from the
// workflow type name, the creation time and a short hash to keep ids unique
// within the same second.
func GenerateIDNumber(workflowTypeName string, now time.Time) string {
	var prefix strings.Builder
	for _, r := range strings.ToUpper(workflowTypeName) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			prefix.WriteRune(r)
		}
	}

	h := fnv.New32a()
	h.Write([]byte(prefix.String()))
	h.Write([]byte(strconv.FormatInt(now.UnixNano(), 10)))
	sum := h.Sum32()

	suffix := make([]byte, idNumberSuffixLen)
	for i := range suffix {
		suffix[i] = byte('A' + sum%26)
		sum /= 26
	}

	return fmt.Sprintf("%s%d%s", prefix.String(), now.Unix(), suffix)
}
