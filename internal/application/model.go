package application

import (
	"context"

	"github.com/pesio-ai/be-approval-workflows/internal/assignment"
	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

// ApproverDeps bundles the backends needed to resolve approver users for an
// application's current level.
type ApproverDeps struct {
	Assignments   assignment.Store
	Hierarchy     assignment.HierarchyWalker
	Relationships assignment.RelationshipResolver
}

// Model is an application loaded together with everything its derived
// views need: the workflow definition, the assignment it runs under, and
// its recorded actions and submissions (both in ascending id order).
type Model struct {
	Application *Application
	Workflow    *workflow.Workflow
	Version     *workflow.WorkflowVersion
	Assignment  *assignment.Assignment
	Actions     []*Action
	Submissions []*Submission
}

// CurrentState rebuilds the application's state from its persisted columns.
func (m *Model) CurrentState() workflow.State {
	stage := m.Version.StageByID(m.Application.StageID)
	return workflow.RestoreState(stage, m.Application.IsDraft, m.Application.ApprovalLevelID)
}

// CurrentStage returns the stage the application sits in.
func (m *Model) CurrentStage() *workflow.Stage {
	return m.Version.StageByID(m.Application.StageID)
}

// CurrentLevel returns the approval level the application waits at, or nil
// outside approvals stages.
func (m *Model) CurrentLevel() *workflow.ApprovalLevel {
	if m.Application.ApprovalLevelID == 0 {
		return nil
	}
	return m.Version.LevelByID(m.Application.ApprovalLevelID)
}

// LastAction returns the latest non-superseded action, or nil.
func (m *Model) LastAction() *Action {
	for i := len(m.Actions) - 1; i >= 0; i-- {
		if !m.Actions[i].Superseded {
			return m.Actions[i]
		}
	}
	return nil
}

// LastActionBy returns the latest non-superseded action by a user, or nil.
func (m *Model) LastActionBy(userID int64) *Action {
	for i := len(m.Actions) - 1; i >= 0; i-- {
		if !m.Actions[i].Superseded && m.Actions[i].UserID == userID {
			return m.Actions[i]
		}
	}
	return nil
}

// LastSubmission returns the latest non-superseded submission, or nil.
func (m *Model) LastSubmission() *Submission {
	for i := len(m.Submissions) - 1; i >= 0; i-- {
		if !m.Submissions[i].Superseded {
			return m.Submissions[i]
		}
	}
	return nil
}

// LastSubmissionForStage returns the latest non-superseded submission for a
// stage, or nil.
func (m *Model) LastSubmissionForStage(stageID int64) *Submission {
	for i := len(m.Submissions) - 1; i >= 0; i-- {
		s := m.Submissions[i]
		if !s.Superseded && s.StageID == stageID {
			return s
		}
	}
	return nil
}

// LastPublishedSubmission returns the latest published non-superseded
// submission, or nil.
func (m *Model) LastPublishedSubmission() *Submission {
	for i := len(m.Submissions) - 1; i >= 0; i-- {
		s := m.Submissions[i]
		if !s.Superseded && s.IsPublished() {
			return s
		}
	}
	return nil
}

// BeforeSubmission reports whether the application has never left its first
// form stage: still a draft, or back at a form stage with nothing pending.
func (m *Model) BeforeSubmission() bool {
	return m.Application.SubmittedAt == nil
}

// OverallProgress summarizes the application's standing. A terminal reject
// or withdraw wins over the state; otherwise the state decides.
func (m *Model) OverallProgress() OverallProgress {
	if last := m.LastAction(); last != nil {
		switch {
		case last.Code == ActionReject:
			return ProgressRejected
		case last.Code.IsWithdraw():
			return ProgressWithdrawn
		}
	}
	state := m.CurrentState()
	switch {
	case state.IsDraft():
		return ProgressDraft
	case state.IsTerminal():
		return ProgressFinished
	default:
		return ProgressInProgress
	}
}

// ApproverUsers resolves the user ids allowed to act at the application's
// current approval level, including inherited approvers and relationship
// holders such as the applicant's managers. Outside approvals stages the
// set is empty.
func (m *Model) ApproverUsers(ctx context.Context, deps ApproverDeps) ([]int64, error) {
	level := m.CurrentLevel()
	if level == nil {
		return nil, nil
	}
	return m.ApproverUsersForLevel(ctx, deps, level)
}

// ApproverUsersForLevel resolves the approver users for any level of the
// application's workflow version.
func (m *Model) ApproverUsersForLevel(ctx context.Context, deps ApproverDeps, level *workflow.ApprovalLevel) ([]int64, error) {
	pairing := assignment.NewApprovalLevelAssignment(deps.Assignments, deps.Hierarchy, m.Assignment, level)
	approvers, err := pairing.ApproversWithInheritance(ctx)
	if err != nil {
		return nil, err
	}
	resolver := assignment.NewApproverResolver(deps.Relationships)
	return resolver.ResolveUsers(ctx, approvers, m.Application.UserID)
}

// YourProgress summarizes what a user still has to do with the application:
// PENDING while the user is an approver of the current level, otherwise the
// outcome of the user's own last action, or NA.
func (m *Model) YourProgress(ctx context.Context, deps ApproverDeps, userID int64) (YourProgress, error) {
	state := m.CurrentState()
	if state.IsStageType(workflow.StageApprovals) && !state.IsDraft() {
		users, err := m.ApproverUsers(ctx, deps)
		if err != nil {
			return "", err
		}
		for _, u := range users {
			if u == userID {
				return YourProgressPending, nil
			}
		}
	}
	if own := m.LastActionBy(userID); own != nil {
		switch own.Code {
		case ActionApprove:
			return YourProgressApproved, nil
		case ActionReject:
			return YourProgressRejected, nil
		}
	}
	return YourProgressNA, nil
}
