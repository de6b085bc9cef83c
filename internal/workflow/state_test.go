package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVersion() *WorkflowVersion {
	form := &Stage{
		ID:      10,
		Name:    "Request",
		Type:    StageFormSubmission,
		Ordinal: 1,
		Active:  true,
		Formviews: []*Formview{
			{ID: 1, StageID: 10, FieldKey: "reason", Visibility: FormviewEditableRequired, Active: true},
			{ID: 2, StageID: 10, FieldKey: "notes", Visibility: FormviewEditable, Active: true},
		},
	}
	approvals := &Stage{
		ID:      20,
		Name:    "Sign-off",
		Type:    StageApprovals,
		Ordinal: 2,
		Active:  true,
		ApprovalLevels: []*ApprovalLevel{
			{ID: 21, StageID: 20, Name: "Level 1", Ordinal: 1, Active: true},
			{ID: 22, StageID: 20, Name: "Level 2", Ordinal: 2, Active: true},
		},
	}
	waiting := &Stage{ID: 30, Name: "Processing", Type: StageWaiting, Ordinal: 3, Active: true}
	finished := &Stage{ID: 40, Name: "Done", Type: StageFinished, Ordinal: 4, Active: true}

	return &WorkflowVersion{
		ID:         1,
		WorkflowID: 1,
		Status:     StatusActive,
		Stages:     []*Stage{form, approvals, waiting, finished},
	}
}

func TestNewDraftState(t *testing.T) {
	v := testVersion()
	form := v.StageByID(10)

	state := NewDraftState(form)
	assert.Equal(t, int64(10), state.StageID())
	assert.True(t, state.IsDraft())
	assert.Zero(t, state.ApprovalLevelID())
	assert.True(t, state.IsStageType(StageFormSubmission))

	assert.Panics(t, func() { NewDraftState(v.StageByID(20)) })
	assert.Panics(t, func() { NewDraftState(v.StageByID(40)) })
}

func TestNewState(t *testing.T) {
	v := testVersion()

	state := NewState(v.StageByID(30))
	assert.Equal(t, int64(30), state.StageID())
	assert.False(t, state.IsDraft())
	assert.Zero(t, state.ApprovalLevelID())

	// An approvals stage always carries a level.
	assert.Panics(t, func() { NewState(v.StageByID(20)) })
}

func TestNewApprovalState(t *testing.T) {
	v := testVersion()
	approvals := v.StageByID(20)

	state := NewApprovalState(approvals, approvals.FirstLevel())
	assert.Equal(t, int64(20), state.StageID())
	assert.Equal(t, int64(21), state.ApprovalLevelID())
	assert.False(t, state.IsDraft())

	assert.Panics(t, func() { NewApprovalState(v.StageByID(10), approvals.FirstLevel()) })
	assert.Panics(t, func() { NewApprovalState(approvals, nil) })
	foreign := &ApprovalLevel{ID: 99, StageID: 77, Ordinal: 1}
	assert.Panics(t, func() { NewApprovalState(approvals, foreign) })
}

func TestRestoreState(t *testing.T) {
	v := testVersion()

	draft := RestoreState(v.StageByID(10), true, 0)
	assert.True(t, draft.IsDraft())

	inApprovals := RestoreState(v.StageByID(20), false, 22)
	assert.Equal(t, int64(22), inApprovals.ApprovalLevelID())

	assert.Panics(t, func() { RestoreState(v.StageByID(20), false, 0) })
	assert.Panics(t, func() { RestoreState(v.StageByID(30), false, 21) })
}

func TestStateIsSameAs(t *testing.T) {
	v := testVersion()
	approvals := v.StageByID(20)

	a := NewApprovalState(approvals, approvals.FirstLevel())
	b := NewApprovalState(approvals, approvals.FirstLevel())
	c := NewApprovalState(approvals, approvals.LastLevel())

	assert.True(t, a.IsSameAs(b))
	assert.False(t, a.IsSameAs(c))
}

func TestStateIsTerminal(t *testing.T) {
	v := testVersion()
	require.False(t, NewState(v.StageByID(30)).IsTerminal())
	require.True(t, NewState(v.StageByID(40)).IsTerminal())
}

func TestVersionStageNavigation(t *testing.T) {
	v := testVersion()

	assert.Equal(t, int64(10), v.FirstStage().ID)
	assert.Equal(t, int64(20), v.NextStage(10).ID)
	assert.Equal(t, int64(30), v.PreviousStage(40).ID)
	assert.Nil(t, v.NextStage(40))
	assert.Nil(t, v.PreviousStage(10))

	assert.True(t, v.HasApprovalLevel(22))
	assert.False(t, v.HasApprovalLevel(99))
}

func TestStageLevelNavigation(t *testing.T) {
	v := testVersion()
	approvals := v.StageByID(20)

	assert.Equal(t, int64(21), approvals.FirstLevel().ID)
	assert.Equal(t, int64(22), approvals.LastLevel().ID)
	assert.Equal(t, int64(22), approvals.NextLevel(21).ID)
	assert.Nil(t, approvals.NextLevel(22))
	assert.True(t, approvals.FirstLevel().IsFirst())
	assert.False(t, approvals.LastLevel().IsFirst())
}

func TestHasEditableFormviews(t *testing.T) {
	v := testVersion()
	assert.True(t, v.StageByID(10).HasEditableFormviews())

	readOnly := &Stage{
		ID:   50,
		Type: StageFormSubmission,
		Formviews: []*Formview{
			{FieldKey: "reason", Visibility: FormviewReadOnly},
			{FieldKey: "notes", Visibility: FormviewHidden},
		},
	}
	assert.False(t, readOnly.HasEditableFormviews())
	assert.False(t, v.StageByID(30).HasEditableFormviews())
}
