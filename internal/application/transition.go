package application

import "github.com/pesio-ai/be-approval-workflows/internal/workflow"

// Transition describes one atomic application mutation: the guarded state
// write plus everything recorded alongside it. Stores apply the whole
// transition in a single transaction; a mismatch between Expected and the
// stored state fails the transition with a conflict.
type Transition struct {
	// Expected is the state the caller computed the transition from.
	Expected workflow.State

	// Next is the state to move to. It may equal Expected for mutations
	// that leave the application in place, such as withdrawals.
	Next workflow.State

	// Action is recorded with the transition, when set.
	Action *Action

	// Activities are appended to the audit trail.
	Activities []*ActivityRecord

	// SupersedePriorActions marks all earlier actions superseded before
	// Action is inserted, used when a resubmission starts a fresh pass.
	SupersedePriorActions bool

	// Submission is saved (inserted or updated) within the transition.
	Submission *Submission

	// SupersedeStageSubmissions marks earlier submissions of the given
	// stage superseded, keeping Submission as the stage's current one.
	SupersedeStageSubmissions int64

	// MarkSubmittedBy stamps the application's first submission.
	MarkSubmittedBy int64

	// MarkCompleted stamps the application completed.
	MarkCompleted bool
}
