package workflow

import "fmt"

// State is an application's position in its workflow: the stage, the draft
// flag, and (only on APPROVALS stages) the current approval level. The
// constructors enforce the level-iff-approvals invariant; violating it is a
// programming error and panics.
type State struct {
	stageID         int64
	stageType       StageType
	draft           bool
	approvalLevelID int64
}

// NewDraftState returns the draft state of a form submission stage.
func NewDraftState(stage *Stage) State {
	if stage.Type != StageFormSubmission {
		panic(fmt.Sprintf("draft state requires a %s stage, got %s", StageFormSubmission, stage.Type))
	}
	return State{stageID: stage.ID, stageType: stage.Type, draft: true}
}

// NewState returns the plain (non-draft, no level) state of a stage. It must
// not be used for APPROVALS stages, which always carry a level.
func NewState(stage *Stage) State {
	if stage.Type == StageApprovals {
		panic(fmt.Sprintf("a %s stage state requires an approval level", StageApprovals))
	}
	return State{stageID: stage.ID, stageType: stage.Type}
}

// NewApprovalState returns the state of an APPROVALS stage at a given level.
func NewApprovalState(stage *Stage, level *ApprovalLevel) State {
	if stage.Type != StageApprovals {
		panic(fmt.Sprintf("approval state requires a %s stage, got %s", StageApprovals, stage.Type))
	}
	if level == nil {
		panic("approval state requires an approval level")
	}
	if stage.LevelByID(level.ID) == nil {
		panic(fmt.Sprintf("approval level %d does not belong to stage %d", level.ID, stage.ID))
	}
	return State{stageID: stage.ID, stageType: stage.Type, approvalLevelID: level.ID}
}

// RestoreState rebuilds a State from persisted columns, revalidating the
// invariant against the stage definition.
func RestoreState(stage *Stage, draft bool, approvalLevelID int64) State {
	if stage.Type == StageApprovals {
		level := stage.LevelByID(approvalLevelID)
		if level == nil {
			panic(fmt.Sprintf("approval level %d does not belong to stage %d", approvalLevelID, stage.ID))
		}
		return NewApprovalState(stage, level)
	}
	if approvalLevelID != 0 {
		panic(fmt.Sprintf("approval level set on a %s stage", stage.Type))
	}
	if draft {
		return NewDraftState(stage)
	}
	return NewState(stage)
}

// StageID returns the stage this state sits in.
func (s State) StageID() int64 {
	return s.stageID
}

// StageType returns the type of the stage this state sits in.
func (s State) StageType() StageType {
	return s.stageType
}

// IsDraft reports whether the application is still a draft.
func (s State) IsDraft() bool {
	return s.draft
}

// ApprovalLevelID returns the current approval level id, or 0 when the stage
// carries no levels.
func (s State) ApprovalLevelID() int64 {
	return s.approvalLevelID
}

// IsStageType reports whether the state's stage has the given type.
func (s State) IsStageType(t StageType) bool {
	return s.stageType == t
}

// IsSameAs reports whether two states are identical.
func (s State) IsSameAs(other State) bool {
	return s == other
}

// IsTerminal reports whether the state sits on a FINISHED stage.
func (s State) IsTerminal() bool {
	return s.stageType == StageFinished
}

// String renders the state for logs and error messages.
func (s State) String() string {
	if s.approvalLevelID != 0 {
		return fmt.Sprintf("stage %d level %d", s.stageID, s.approvalLevelID)
	}
	if s.draft {
		return fmt.Sprintf("stage %d (draft)", s.stageID)
	}
	return fmt.Sprintf("stage %d", s.stageID)
}
