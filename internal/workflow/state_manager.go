package workflow

import (
	"fmt"

	"github.com/pesio-ai/be-approval-workflows/internal/errors"
)

// StateManager encapsulates the transition behaviour of one stage. Each
// stage type has its own implementation; StateManagerFor dispatches on the
// stage's type.
//
// NextState and PreviousState compute transitions without applying them.
// OnStateEntry and OnStateExit record the audit activities a transition
// produces; persisting the collected activities atomically with the state
// change is the caller's job.
type StateManager interface {
	// Stage returns the stage this manager operates on.
	Stage() *Stage

	// InitialState is the state an application lands in when it arrives at
	// this stage from another stage.
	InitialState() State

	// CreationState is the state a freshly created application starts in.
	// Only form submission stages can host new applications.
	CreationState() (State, error)

	// NextState computes the state after the current one is completed.
	NextState(current State) (State, error)

	// PreviousState computes the state to return to, used when an approval
	// is rejected back to the preceding stage.
	PreviousState(current State) (State, error)

	// OnApplicationStart records the activities of an application starting
	// its life on this stage.
	OnApplicationStart(rec ActivityRecorder)

	// OnStateEntry records the activities of arriving at this stage's state
	// from previous.
	OnStateEntry(rec ActivityRecorder, previous State, entered State)

	// OnStateExit records the activities of leaving current for next.
	OnStateExit(rec ActivityRecorder, current State, next State)
}

// StateManagerFor returns the state manager for a stage within its version.
func StateManagerFor(version *WorkflowVersion, stage *Stage) StateManager {
	switch stage.Type {
	case StageFormSubmission:
		return &formSubmissionManager{version: version, stage: stage}
	case StageApprovals:
		return &approvalsManager{version: version, stage: stage}
	case StageWaiting:
		return &waitingManager{version: version, stage: stage}
	case StageFinished:
		return &finishedManager{version: version, stage: stage}
	default:
		panic(fmt.Sprintf("unknown stage type %q", stage.Type))
	}
}

// StateManagerForState resolves the stage of a state and returns its manager.
func StateManagerForState(version *WorkflowVersion, state State) StateManager {
	stage := version.StageByID(state.StageID())
	if stage == nil {
		panic(fmt.Sprintf("stage %d does not belong to workflow version %d", state.StageID(), version.ID))
	}
	return StateManagerFor(version, stage)
}

type formSubmissionManager struct {
	version *WorkflowVersion
	stage   *Stage
}

func (m *formSubmissionManager) Stage() *Stage { return m.stage }

func (m *formSubmissionManager) InitialState() State {
	return NewState(m.stage)
}

func (m *formSubmissionManager) CreationState() (State, error) {
	return NewDraftState(m.stage), nil
}

func (m *formSubmissionManager) NextState(current State) (State, error) {
	return nextStageInitialState(m.version, m.stage)
}

func (m *formSubmissionManager) PreviousState(current State) (State, error) {
	return previousStageInitialState(m.version, m.stage)
}

func (m *formSubmissionManager) OnApplicationStart(rec ActivityRecorder) {
	rec.Record(ActivityStageStarted, m.stage.ID, 0)
}

func (m *formSubmissionManager) OnStateEntry(rec ActivityRecorder, previous State, entered State) {
	rec.Record(ActivityStageStarted, m.stage.ID, 0)
}

func (m *formSubmissionManager) OnStateExit(rec ActivityRecorder, current State, next State) {
	rec.Record(ActivityStageEnded, m.stage.ID, 0)
}

type approvalsManager struct {
	version *WorkflowVersion
	stage   *Stage
}

func (m *approvalsManager) Stage() *Stage { return m.stage }

func (m *approvalsManager) InitialState() State {
	first := m.stage.FirstLevel()
	if first == nil {
		panic(fmt.Sprintf("approvals stage %d has no approval levels", m.stage.ID))
	}
	return NewApprovalState(m.stage, first)
}

func (m *approvalsManager) CreationState() (State, error) {
	return State{}, errors.New(errors.ErrCodeConflict, "an application cannot start in an approvals stage")
}

func (m *approvalsManager) NextState(current State) (State, error) {
	if next := m.stage.NextLevel(current.ApprovalLevelID()); next != nil {
		return NewApprovalState(m.stage, next), nil
	}
	return nextStageInitialState(m.version, m.stage)
}

func (m *approvalsManager) PreviousState(current State) (State, error) {
	return previousStageInitialState(m.version, m.stage)
}

func (m *approvalsManager) OnApplicationStart(rec ActivityRecorder) {
	rec.Record(ActivityStageStarted, m.stage.ID, 0)
	rec.Record(ActivityLevelStarted, m.stage.ID, m.InitialState().ApprovalLevelID())
}

func (m *approvalsManager) OnStateEntry(rec ActivityRecorder, previous State, entered State) {
	if previous.StageID() != m.stage.ID {
		rec.Record(ActivityStageStarted, m.stage.ID, 0)
	}
	rec.Record(ActivityLevelStarted, m.stage.ID, entered.ApprovalLevelID())
}

func (m *approvalsManager) OnStateExit(rec ActivityRecorder, current State, next State) {
	rec.Record(ActivityLevelEnded, m.stage.ID, current.ApprovalLevelID())
	if next.StageID() != m.stage.ID {
		rec.Record(ActivityStageEnded, m.stage.ID, 0)
	}
}

type waitingManager struct {
	version *WorkflowVersion
	stage   *Stage
}

func (m *waitingManager) Stage() *Stage { return m.stage }

func (m *waitingManager) InitialState() State {
	return NewState(m.stage)
}

func (m *waitingManager) CreationState() (State, error) {
	return State{}, errors.New(errors.ErrCodeConflict, "an application cannot start in a waiting stage")
}

func (m *waitingManager) NextState(current State) (State, error) {
	return nextStageInitialState(m.version, m.stage)
}

func (m *waitingManager) PreviousState(current State) (State, error) {
	return previousStageInitialState(m.version, m.stage)
}

func (m *waitingManager) OnApplicationStart(rec ActivityRecorder) {
	rec.Record(ActivityStageStarted, m.stage.ID, 0)
}

func (m *waitingManager) OnStateEntry(rec ActivityRecorder, previous State, entered State) {
	rec.Record(ActivityStageStarted, m.stage.ID, 0)
}

func (m *waitingManager) OnStateExit(rec ActivityRecorder, current State, next State) {
	rec.Record(ActivityStageEnded, m.stage.ID, 0)
}

type finishedManager struct {
	version *WorkflowVersion
	stage   *Stage
}

func (m *finishedManager) Stage() *Stage { return m.stage }

func (m *finishedManager) InitialState() State {
	return NewState(m.stage)
}

func (m *finishedManager) CreationState() (State, error) {
	return State{}, errors.New(errors.ErrCodeConflict, "an application cannot start in a finished stage")
}

func (m *finishedManager) NextState(current State) (State, error) {
	return State{}, errors.New(errors.ErrCodeConflict, "there is no state after a finished stage")
}

func (m *finishedManager) PreviousState(current State) (State, error) {
	return previousStageInitialState(m.version, m.stage)
}

func (m *finishedManager) OnApplicationStart(rec ActivityRecorder) {
	rec.Record(ActivityStageStarted, m.stage.ID, 0)
}

func (m *finishedManager) OnStateEntry(rec ActivityRecorder, previous State, entered State) {
	rec.Record(ActivityStageStarted, m.stage.ID, 0)
	rec.Record(ActivityCompleted, m.stage.ID, 0)
}

func (m *finishedManager) OnStateExit(rec ActivityRecorder, current State, next State) {
	rec.Record(ActivityStageEnded, m.stage.ID, 0)
}

func nextStageInitialState(version *WorkflowVersion, stage *Stage) (State, error) {
	next := version.NextStage(stage.ID)
	if next == nil {
		return State{}, errors.New(errors.ErrCodeConflict, "there is no stage after the current one")
	}
	return StateManagerFor(version, next).InitialState(), nil
}

func previousStageInitialState(version *WorkflowVersion, stage *Stage) (State, error) {
	prev := version.PreviousStage(stage.ID)
	if prev == nil {
		return State{}, errors.New(errors.ErrCodeConflict, "there is no stage before the current one")
	}
	return StateManagerFor(version, prev).InitialState(), nil
}
