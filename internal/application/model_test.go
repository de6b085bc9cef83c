package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-approval-workflows/internal/assignment"
	"github.com/pesio-ai/be-approval-workflows/internal/workflow"
)

type stubAssignments struct {
	def       *assignment.Assignment
	approvers []*assignment.Approver
}

func (s *stubAssignments) DefaultAssignment(ctx context.Context, workflowID int64) (*assignment.Assignment, error) {
	return s.def, nil
}

func (s *stubAssignments) AssignmentByTarget(ctx context.Context, workflowID int64, t assignment.Type, identifier int64) (*assignment.Assignment, error) {
	return nil, nil
}

func (s *stubAssignments) ListOverrides(ctx context.Context, workflowID int64) ([]*assignment.Assignment, error) {
	return nil, nil
}

func (s *stubAssignments) ListApprovers(ctx context.Context, assignmentID, approvalLevelID int64, includeInherited bool) ([]*assignment.Approver, error) {
	var out []*assignment.Approver
	for _, a := range s.approvers {
		if a.AssignmentID == assignmentID && a.ApprovalLevelID == approvalLevelID && a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubWalker struct{}

func (stubWalker) Ancestors(ctx context.Context, t assignment.Type, id int64) ([]int64, error) {
	return nil, nil
}

func (stubWalker) Children(ctx context.Context, t assignment.Type, id int64) ([]int64, error) {
	return nil, nil
}

type stubRelationships map[int64][]int64 // relationship id -> users

func (s stubRelationships) ResolveRelationship(ctx context.Context, relationshipID, subjectUserID int64) ([]int64, error) {
	return s[relationshipID], nil
}

func testModel() (*Model, *stubAssignments) {
	form := &workflow.Stage{
		ID: 10, Name: "Request", Type: workflow.StageFormSubmission, Ordinal: 1, Active: true,
		Formviews: []*workflow.Formview{{ID: 1, StageID: 10, FieldKey: "reason", Visibility: workflow.FormviewEditableRequired, Active: true}},
	}
	approvals := &workflow.Stage{
		ID: 20, Name: "Sign-off", Type: workflow.StageApprovals, Ordinal: 2, Active: true,
		ApprovalLevels: []*workflow.ApprovalLevel{
			{ID: 21, StageID: 20, Name: "Level 1", Ordinal: 1, Active: true},
			{ID: 22, StageID: 20, Name: "Level 2", Ordinal: 2, Active: true},
		},
	}
	finished := &workflow.Stage{ID: 40, Name: "Done", Type: workflow.StageFinished, Ordinal: 3, Active: true}

	version := &workflow.WorkflowVersion{ID: 1, WorkflowID: 7, Status: workflow.StatusActive, Stages: []*workflow.Stage{form, approvals, finished}}
	wf := &workflow.Workflow{ID: 7, WorkflowTypeID: 1, WorkflowTypeName: "Leave", Name: "Leave requests", Active: true}
	def := &assignment.Assignment{ID: 100, WorkflowID: 7, Type: assignment.TypeOrganisation, Identifier: 1, IsDefault: true, Status: workflow.StatusActive}

	store := &stubAssignments{
		def: def,
		approvers: []*assignment.Approver{
			{ID: 1, AssignmentID: 100, ApprovalLevelID: 21, Kind: assignment.ApproverKindUser, Identifier: 501, Active: true},
			{ID: 2, AssignmentID: 100, ApprovalLevelID: 21, Kind: assignment.ApproverKindRelationship, Identifier: assignment.RelationshipManager, Active: true},
			{ID: 3, AssignmentID: 100, ApprovalLevelID: 22, Kind: assignment.ApproverKindUser, Identifier: 502, Active: true},
		},
	}

	m := &Model{
		Application: &Application{
			ID: 1000, Title: "Annual leave", UserID: 42, CreatorID: 42, OwnerID: 42,
			WorkflowVersionID: 1, AssignmentID: 100, StageID: 10, IsDraft: true,
		},
		Workflow:   wf,
		Version:    version,
		Assignment: def,
	}
	return m, store
}

func deps(store *stubAssignments, rel stubRelationships) ApproverDeps {
	return ApproverDeps{Assignments: store, Hierarchy: stubWalker{}, Relationships: rel}
}

func (m *Model) atLevel(levelID int64) *Model {
	m.Application.StageID = 20
	m.Application.ApprovalLevelID = levelID
	m.Application.IsDraft = false
	return m
}

func TestCurrentStateAndStage(t *testing.T) {
	m, _ := testModel()

	state := m.CurrentState()
	assert.True(t, state.IsDraft())
	assert.Equal(t, int64(10), state.StageID())
	assert.Equal(t, workflow.StageFormSubmission, m.CurrentStage().Type)
	assert.Nil(t, m.CurrentLevel())

	m.atLevel(22)
	state = m.CurrentState()
	assert.Equal(t, int64(22), state.ApprovalLevelID())
	assert.Equal(t, int64(22), m.CurrentLevel().ID)
}

func TestLastActionAndSubmission(t *testing.T) {
	m, _ := testModel()
	assert.Nil(t, m.LastAction())
	assert.Nil(t, m.LastSubmission())

	m.Actions = []*Action{
		{ID: 1, UserID: 501, Code: ActionApprove},
		{ID: 2, UserID: 502, Code: ActionReject, Superseded: true},
		{ID: 3, UserID: 501, Code: ActionApprove},
	}
	assert.Equal(t, int64(3), m.LastAction().ID)
	assert.Equal(t, int64(3), m.LastActionBy(501).ID)
	assert.Nil(t, m.LastActionBy(502))

	now := time.Now()
	m.Submissions = []*Submission{
		{ID: 1, StageID: 10, SubmittedAt: &now, Superseded: true},
		{ID: 2, StageID: 10, SubmittedAt: &now},
		{ID: 3, StageID: 10},
	}
	assert.Equal(t, int64(3), m.LastSubmission().ID)
	assert.Equal(t, int64(2), m.LastPublishedSubmission().ID)
	assert.Equal(t, int64(3), m.LastSubmissionForStage(10).ID)
	assert.Nil(t, m.LastSubmissionForStage(20))
}

func TestOverallProgress(t *testing.T) {
	m, _ := testModel()
	assert.Equal(t, ProgressDraft, m.OverallProgress())

	m.atLevel(21)
	assert.Equal(t, ProgressInProgress, m.OverallProgress())

	m.Actions = []*Action{{ID: 1, UserID: 501, Code: ActionReject}}
	assert.Equal(t, ProgressRejected, m.OverallProgress())

	// Resubmission supersedes the reject.
	m.Actions[0].Superseded = true
	assert.Equal(t, ProgressInProgress, m.OverallProgress())

	m.Actions = []*Action{{ID: 2, UserID: 42, Code: ActionWithdrawInApprovals}}
	assert.Equal(t, ProgressWithdrawn, m.OverallProgress())

	m.Actions = nil
	m.Application.StageID = 40
	m.Application.ApprovalLevelID = 0
	assert.Equal(t, ProgressFinished, m.OverallProgress())
}

func TestApproverUsers(t *testing.T) {
	m, store := testModel()
	ctx := context.Background()
	d := deps(store, stubRelationships{assignment.RelationshipManager: {601, 501}})

	// Draft: nobody is pending.
	users, err := m.ApproverUsers(ctx, d)
	require.NoError(t, err)
	assert.Empty(t, users)

	m.atLevel(21)
	users, err = m.ApproverUsers(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, []int64{501, 601}, users)

	m.atLevel(22)
	users, err = m.ApproverUsers(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, []int64{502}, users)
}

func TestYourProgress(t *testing.T) {
	m, store := testModel()
	ctx := context.Background()
	d := deps(store, stubRelationships{assignment.RelationshipManager: {601}})

	m.atLevel(21)
	for _, userID := range []int64{501, 601} {
		got, err := m.YourProgress(ctx, d, userID)
		require.NoError(t, err)
		assert.Equal(t, YourProgressPending, got)
	}

	// Not an approver of the current level, no actions: nothing to do.
	got, err := m.YourProgress(ctx, d, 502)
	require.NoError(t, err)
	assert.Equal(t, YourProgressNA, got)

	// A past level-1 approval shows as APPROVED once level 2 is current.
	m.atLevel(22)
	m.Actions = []*Action{{ID: 1, UserID: 501, Code: ActionApprove, StageID: 20, ApprovalLevelID: 21}}
	got, err = m.YourProgress(ctx, d, 501)
	require.NoError(t, err)
	assert.Equal(t, YourProgressApproved, got)

	m.Actions = append(m.Actions, &Action{ID: 2, UserID: 502, Code: ActionReject, StageID: 20, ApprovalLevelID: 22})
	m.Application.StageID = 10
	m.Application.ApprovalLevelID = 0
	got, err = m.YourProgress(ctx, d, 502)
	require.NoError(t, err)
	assert.Equal(t, YourProgressRejected, got)
}

func TestGenerateIDNumber(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	id := GenerateIDNumber("Leave Request 2", now)

	assert.True(t, strings.HasPrefix(id, "LEAVEREQUEST2"))
	rest := strings.TrimPrefix(id, "LEAVEREQUEST2")
	require.Len(t, rest, len("1777636800")+4)
	suffix := rest[len(rest)-4:]
	for _, r := range suffix {
		assert.GreaterOrEqual(t, r, 'A')
		assert.LessOrEqual(t, r, 'Z')
	}

	// Deterministic for identical inputs.
	assert.Equal(t, id, GenerateIDNumber("Leave Request 2", now))
}
